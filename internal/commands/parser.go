// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"unicode"
)

// DefaultPrefix is the character that marks input as a command.
const DefaultPrefix = "/"

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult contains the result of parsing user input.
type ParseResult struct {
	// IsCommand is true if the input starts with the command prefix
	IsCommand bool

	// Verb is the raw verb as typed, lowercased and without the prefix (e.g., "cat")
	Verb string

	// Command is the matched command (nil if not found)
	Command *Command

	// Args are the whitespace-separated tokens after the verb
	Args []string

	// Argument is Args joined with single spaces, with one pair of
	// surrounding quotes removed
	Argument string

	// RawInput is the original input string, trimmed
	RawInput string
}

// Name returns the canonical command name, or the raw verb when the command
// is unknown.
func (r ParseResult) Name() string {
	if r.Command != nil {
		return r.Command.Name
	}
	return r.Verb
}

// =============================================================================
// PARSER
// =============================================================================

// Parser handles parsing of prefixed commands and their arguments.
type Parser struct {
	registry *Registry
	prefix   string
}

// NewParser creates a new parser with the given registry and prefix.
// An empty prefix selects DefaultPrefix.
func NewParser(registry *Registry, prefix string) *Parser {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Parser{registry: registry, prefix: prefix}
}

// Prefix returns the command prefix the parser recognizes.
func (p *Parser) Prefix() string {
	return p.prefix
}

// IsCommand returns true if the input appears to be a command.
func (p *Parser) IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(input, unicode.IsSpace), p.prefix)
}

// Parse parses user input and returns the parse result.
// Returns IsCommand=false if the input doesn't start with the prefix.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)

	result := ParseResult{
		RawInput: input,
	}

	if !strings.HasPrefix(input, p.prefix) {
		return result
	}
	result.IsCommand = true

	parts := strings.Fields(strings.TrimPrefix(input, p.prefix))
	if len(parts) == 0 {
		return result
	}

	result.Verb = strings.ToLower(parts[0])
	if len(parts) > 1 {
		result.Args = parts[1:]
		result.Argument = unwrapQuotes(strings.Join(result.Args, " "))
	}

	if p.registry != nil {
		result.Command = p.registry.Get(result.Verb)
	}

	return result
}

// =============================================================================
// ARGUMENT HANDLING
// =============================================================================

// unwrapQuotes strips one pair of matching quotes around the whole argument.
// Quotes inside a path are kept.
func unwrapQuotes(arg string) string {
	if len(arg) < 2 {
		return arg
	}
	first, last := arg[0], arg[len(arg)-1]
	if (first == '"' || first == '\'') && last == first {
		return strings.TrimSpace(arg[1 : len(arg)-1])
	}
	return arg
}
