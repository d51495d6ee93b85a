// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestParser_IsCommand(t *testing.T) {
	p := NewParser(NewRegistry(), "")

	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/read lib/foo.txt", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, p.IsCommand(tc.input), "IsCommand(%q)", tc.input)
	}
}

func TestParser_Parse(t *testing.T) {
	p := NewParser(NewRegistry(), "/")

	tests := []struct {
		name     string
		input    string
		command  string
		verb     string
		argument string
	}{
		{"bare verb", "/status", CmdStatus, "status", ""},
		{"verb with path", "/read lib/foo.txt", CmdRead, "read", "lib/foo.txt"},
		{"path with spaces", "/read docs/release  notes.md", CmdRead, "read", "docs/release notes.md"},
		{"quoted path", `/edit "my file.go"`, CmdEdit, "edit", "my file.go"},
		{"single quoted path", `/create 'a b.txt'`, CmdCreate, "create", "a b.txt"},
		{"apostrophe kept", "/read don't.md", CmdRead, "read", "don't.md"},
		{"apostrophe with spaces", "/create don't panic.txt", CmdCreate, "create", "don't panic.txt"},
		{"inner quotes kept", `/read say "hi".md`, CmdRead, "read", `say "hi".md`},
		{"unbalanced quote kept", `/read "a.md`, CmdRead, "read", `"a.md`},
		{"alias", "/cat README.md", CmdRead, "cat", "README.md"},
		{"uppercase verb", "/READ a.txt", CmdRead, "read", "a.txt"},
		{"surrounding space", "   /diff   ", CmdDiff, "diff", ""},
		{"unknown verb", "/frobnicate x", "", "frobnicate", "x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := p.Parse(tc.input)
			require.True(t, res.IsCommand)
			assert.Equal(t, tc.verb, res.Verb)
			assert.Equal(t, tc.argument, res.Argument)
			if tc.command == "" {
				assert.Nil(t, res.Command)
				assert.Equal(t, tc.verb, res.Name())
				return
			}
			require.NotNil(t, res.Command)
			assert.Equal(t, tc.command, res.Command.Name)
			assert.Equal(t, tc.command, res.Name())
		})
	}
}

func TestParser_NotCommand(t *testing.T) {
	p := NewParser(NewRegistry(), "/")
	res := p.Parse("please read lib/foo.txt")
	assert.False(t, res.IsCommand)
	assert.Nil(t, res.Command)
	assert.Equal(t, "please read lib/foo.txt", res.RawInput)
}

func TestParser_PrefixOnly(t *testing.T) {
	p := NewParser(NewRegistry(), "/")
	res := p.Parse("/")
	assert.True(t, res.IsCommand)
	assert.Empty(t, res.Verb)
	assert.Nil(t, res.Command)
}

func TestParser_CustomPrefix(t *testing.T) {
	p := NewParser(NewRegistry(), "!")
	assert.Equal(t, "!", p.Prefix())

	res := p.Parse("!files src")
	require.True(t, res.IsCommand)
	require.NotNil(t, res.Command)
	assert.Equal(t, CmdFiles, res.Command.Name)
	assert.Equal(t, "src", res.Argument)

	assert.False(t, p.Parse("/files src").IsCommand)
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_Builtins(t *testing.T) {
	reg := NewRegistry()

	names := []string{
		CmdRead, CmdStructure, CmdFiles, CmdCommits, CmdCreate, CmdEdit, CmdWrite,
		CmdDelete, CmdDiff, CmdStatus, CmdHelp, CmdCancel, CmdClear,
	}
	for _, name := range names {
		cmd := reg.Get(name)
		require.NotNil(t, cmd, name)
		assert.Equal(t, name, cmd.Name)
	}
	assert.Len(t, reg.All(), len(names))

	aliases := map[string]string{
		"cat": CmdRead, "ls": CmdFiles, "tree": CmdStructure, "log": CmdCommits,
		"new": CmdCreate, "rm": CmdDelete, "pending": CmdDiff, "h": CmdHelp, "?": CmdHelp,
	}
	for alias, want := range aliases {
		cmd := reg.Get(alias)
		require.NotNil(t, cmd, alias)
		assert.Equal(t, want, cmd.Name, alias)
	}

	assert.Nil(t, reg.Get("nope"))
}

func TestRegistry_WriteFlags(t *testing.T) {
	reg := NewRegistry()
	for _, cmd := range reg.All() {
		switch cmd.Name {
		case CmdCreate, CmdEdit, CmdWrite, CmdDelete:
			assert.True(t, cmd.NeedsWrite, cmd.Name)
			assert.True(t, cmd.ArgRequired, cmd.Name)
		default:
			assert.False(t, cmd.NeedsWrite, cmd.Name)
		}
	}
	assert.True(t, reg.Get(CmdRead).ArgRequired)
	assert.False(t, reg.Get(CmdFiles).ArgRequired)
}

func TestRegistry_HelpText(t *testing.T) {
	reg := NewRegistry()
	help := reg.HelpText("/")

	for _, cmd := range reg.All() {
		assert.Contains(t, help, "/"+cmd.Usage)
	}
	assert.Contains(t, help, "/cat")
	assert.Less(t, strings.Index(help, CategoryBrowse+":"), strings.Index(help, CategoryChange+":"))
	assert.Equal(t, help, reg.HelpText("/"))

	assert.Contains(t, reg.HelpText("!"), "!read <path>")
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestCompleter(t *testing.T) {
	c := NewCompleter(NewRegistry(), "/")

	got := c.Complete("/st")
	require.Len(t, got, 2)
	assert.Equal(t, "/status", got[0].Value)
	assert.Equal(t, "/structure", got[1].Value)

	exact := c.Complete("/edit")
	require.NotEmpty(t, exact)
	assert.Equal(t, "/edit", exact[0].Value)

	assert.Nil(t, c.Complete("hello"))
	assert.Nil(t, c.Complete("/read lib"))

	assert.Equal(t, []string{"/clear ", "/cancel ", "/create ", "/commits ", "/cat "}, c.Lines("/c"))
}
