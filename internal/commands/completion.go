// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"
	"unicode"
)

// =============================================================================
// COMPLETION TYPES
// =============================================================================

// Completion is a single completion candidate.
type Completion struct {
	// Value is the text inserted, prefix included
	Value string

	// Display is the text shown in a candidate list
	Display string

	// Description of the command
	Description string

	// Score ranks candidates, higher first
	Score int
}

// Completer provides tab completion for command names.
type Completer struct {
	registry *Registry
	prefix   string
}

// NewCompleter creates a completer over the registry.
func NewCompleter(registry *Registry, prefix string) *Completer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Completer{registry: registry, prefix: prefix}
}

// Complete returns candidates for the partially typed line.
// Only the verb is completed; once an argument has started nothing is returned.
func (c *Completer) Complete(line string) []Completion {
	if !strings.HasPrefix(line, c.prefix) {
		return nil
	}
	if strings.IndexFunc(line, unicode.IsSpace) >= 0 {
		return nil
	}
	return c.completeCommands(strings.TrimPrefix(line, c.prefix))
}

// Lines adapts Complete to line editors that want whole replacement lines.
func (c *Completer) Lines(line string) []string {
	completions := c.Complete(line)
	out := make([]string, 0, len(completions))
	for _, comp := range completions {
		out = append(out, comp.Value+" ")
	}
	return out
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

// completeCommands returns completions for command names.
func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}

		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       c.prefix + cmd.Name,
				Display:     c.prefix + cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}

		for _, alias := range cmd.Aliases {
			if partial == "" || !strings.HasPrefix(alias, partial) {
				continue
			}
			completions = append(completions, Completion{
				Value:       c.prefix + alias,
				Display:     c.prefix + alias + " -> " + cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(alias, partial) - 10, // Slightly lower score for aliases
			})
		}
	}

	sortCompletions(completions)

	return completions
}

// calculateScore calculates a match score for completion ranking.
// Higher score = better match.
func calculateScore(value, partial string) int {
	score := 100

	if value == partial {
		return score + 100
	}

	if strings.HasPrefix(value, partial) {
		score += 50
		score += 20 - len(value)
	}

	score -= len(value) / 2

	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}
