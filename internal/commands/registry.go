// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"

	"github.com/jeranaias/repochat/internal/util"
)

// Canonical command names.
const (
	CmdRead      = "read"
	CmdStructure = "structure"
	CmdFiles     = "files"
	CmdCommits   = "commits"
	CmdCreate    = "create"
	CmdEdit      = "edit"
	CmdWrite     = "write"
	CmdDelete    = "delete"
	CmdDiff      = "diff"
	CmdStatus    = "status"
	CmdHelp      = "help"
	CmdCancel    = "cancel"
	CmdClear     = "clear"
)

// Help categories, in display order.
const (
	CategoryBrowse       = "Browse"
	CategoryChange       = "Change"
	CategoryConversation = "Conversation"
)

var categoryOrder = []string{CategoryBrowse, CategoryChange, CategoryConversation}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command describes a command verb. Names and aliases carry no prefix.
type Command struct {
	// Name is the primary command name (e.g., "read")
	Name string

	// Aliases are alternative names (e.g., "cat")
	Aliases []string

	// Usage shows argument syntax without the prefix (e.g., "read <path>")
	Usage string

	// Description is shown in help and completion
	Description string

	// Category for grouping in help display
	Category string

	// ArgRequired commands refuse to run without an argument
	ArgRequired bool

	// NeedsWrite commands require repository write access
	NeedsWrite bool

	// Hidden commands don't appear in help
	Hidden bool
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry. Names are case-insensitive.
func (r *Registry) Register(cmd *Command) {
	r.commands[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[strings.ToLower(alias)] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = CategoryConversation
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// HelpText renders the command reference with the given prefix.
func (r *Registry) HelpText(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	groups := r.ByCategory()
	width := 0
	for _, cmds := range groups {
		for _, cmd := range cmds {
			if w := len(prefix) + len(cmd.Usage); w > width {
				width = w
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString("\n" + category + ":\n")
		for _, cmd := range cmds {
			sb.WriteString("  ")
			sb.WriteString(util.PadWidth(prefix+cmd.Usage, width))
			sb.WriteString("  ")
			sb.WriteString(cmd.Description)
			if len(cmd.Aliases) > 0 {
				sb.WriteString(" (aliases: ")
				for i, alias := range cmd.Aliases {
					if i > 0 {
						sb.WriteString(", ")
					}
					sb.WriteString(prefix + alias)
				}
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nAnything else is sent to the AI. After create, edit or write, the next reply's code block is committed.")
	return sb.String()
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Browse commands
	r.Register(&Command{
		Name:        CmdRead,
		Aliases:     []string{"cat"},
		Usage:       "read <path>",
		Description: "Show a file's content",
		Category:    CategoryBrowse,
		ArgRequired: true,
	})

	r.Register(&Command{
		Name:        CmdStructure,
		Aliases:     []string{"tree"},
		Usage:       "structure [path]",
		Description: "List the repository tree recursively",
		Category:    CategoryBrowse,
	})

	r.Register(&Command{
		Name:        CmdFiles,
		Aliases:     []string{"ls"},
		Usage:       "files [path]",
		Description: "List the entries of a directory",
		Category:    CategoryBrowse,
	})

	r.Register(&Command{
		Name:        CmdCommits,
		Aliases:     []string{"log"},
		Usage:       "commits",
		Description: "Show the most recent commits",
		Category:    CategoryBrowse,
	})

	// Change commands
	r.Register(&Command{
		Name:        CmdCreate,
		Aliases:     []string{"new"},
		Usage:       "create <path>",
		Description: "Ask the AI to write a new file",
		Category:    CategoryChange,
		ArgRequired: true,
		NeedsWrite:  true,
	})

	r.Register(&Command{
		Name:        CmdEdit,
		Usage:       "edit <path>",
		Description: "Ask the AI to rewrite an existing file",
		Category:    CategoryChange,
		ArgRequired: true,
		NeedsWrite:  true,
	})

	r.Register(&Command{
		Name:        CmdWrite,
		Usage:       "write <path>",
		Description: "Create or edit a file depending on whether it exists",
		Category:    CategoryChange,
		ArgRequired: true,
		NeedsWrite:  true,
	})

	r.Register(&Command{
		Name:        CmdDelete,
		Aliases:     []string{"rm"},
		Usage:       "delete <path>",
		Description: "Delete a file immediately",
		Category:    CategoryChange,
		ArgRequired: true,
		NeedsWrite:  true,
	})

	r.Register(&Command{
		Name:        CmdDiff,
		Aliases:     []string{"pending"},
		Usage:       "diff",
		Description: "List pending file operations",
		Category:    CategoryChange,
	})

	r.Register(&Command{
		Name:        CmdCancel,
		Usage:       "cancel [path]",
		Description: "Drop a pending operation, or all of them",
		Category:    CategoryChange,
	})

	// Conversation commands
	r.Register(&Command{
		Name:        CmdStatus,
		Usage:       "status",
		Description: "Show provider, repository and write access",
		Category:    CategoryConversation,
	})

	r.Register(&Command{
		Name:        CmdHelp,
		Aliases:     []string{"h", "?"},
		Usage:       "help",
		Description: "Show this command reference",
		Category:    CategoryConversation,
	})

	r.Register(&Command{
		Name:        CmdClear,
		Usage:       "clear",
		Description: "Clear the conversation and pending operations",
		Category:    CategoryConversation,
	})
}
