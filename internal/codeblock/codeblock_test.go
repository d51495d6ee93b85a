// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package codeblock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantLang string
		want     string
	}{
		{
			name:   "untagged",
			text:   "Here you go:\n```\nhello\n```\nDone.",
			wantOK: true,
			want:   "hello",
		},
		{
			name:     "tagged",
			text:     "```go\npackage main\n\nfunc main() {}\n```",
			wantOK:   true,
			wantLang: "go",
			want:     "package main\n\nfunc main() {}",
		},
		{
			name:     "tagged preferred over earlier untagged",
			text:     "```\nfirst\n```\nand\n```Python\nprint(1)\n```",
			wantOK:   true,
			wantLang: "python",
			want:     "print(1)",
		},
		{
			name:   "first untagged wins",
			text:   "```\none\n```\n```\ntwo\n```",
			wantOK: true,
			want:   "one",
		},
		{
			name:   "crlf line endings",
			text:   "```\r\nhello\r\n```",
			wantOK: true,
			want:   "hello",
		},
		{
			name:   "no fence",
			text:   "I updated the file for you.",
			wantOK: false,
		},
		{
			name:   "unterminated fence",
			text:   "```go\npackage main",
			wantOK: false,
		},
		{
			name:     "longer fence keeps inner fences",
			text:     "````markdown\n# Title\n```sh\nmake\n```\nmore text\n````",
			wantOK:   true,
			wantLang: "markdown",
			want:     "# Title\n```sh\nmake\n```\nmore text",
		},
		{
			name:   "closing run may be longer",
			text:   "```\nhello\n`````\n",
			wantOK: true,
			want:   "hello",
		},
		{
			name:   "shorter run does not close",
			text:   "````\na\n```\nb\n````",
			wantOK: true,
			want:   "a\n```\nb",
		},
		{
			name:   "text after run does not close",
			text:   "```\na\n``` not a fence\nb\n```",
			wantOK: true,
			want:   "a\n``` not a fence\nb",
		},
		{
			name:     "indented fence",
			text:     "1. Step:\n   ```go\n   package main\n   ```",
			wantOK:   true,
			wantLang: "go",
			want:     "   package main",
		},
		{
			name:   "inline backticks are not a fence",
			text:   "use ```inline``` here",
			wantOK: false,
		},
		{
			name:   "unterminated long fence",
			text:   "````md\n# a\n```",
			wantOK: false,
		},
		{
			name:     "empty block",
			text:     "```txt\n```",
			wantOK:   true,
			wantLang: "txt",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Extract(tt.text)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantLang, b.Language)
			assert.Equal(t, tt.want, b.Content)
		})
	}
}

func TestExtract_Info(t *testing.T) {
	b, ok := Extract("```go cmd/main.go\npackage main\n```")
	require.True(t, ok)
	assert.Equal(t, "go", b.Language)
	assert.Equal(t, "go cmd/main.go", b.Info)
}

func TestExtractAll(t *testing.T) {
	text := "intro\n```go a.go\npackage a\n```\nmiddle\n```\nplain\n```\n```docs/b.md\n# B\n```"
	blocks := ExtractAll(text)
	require.Len(t, blocks, 3)

	assert.Equal(t, Block{Language: "go", Info: "go a.go", Content: "package a"}, blocks[0])
	assert.Equal(t, Block{Content: "plain"}, blocks[1])
	assert.Equal(t, Block{Info: "docs/b.md", Content: "# B"}, blocks[2])

	assert.Empty(t, ExtractAll("no fences here"))
}

func TestExtractFor(t *testing.T) {
	text := "```go lib/a.go\npackage a\n```\n```text ./lib/b.txt\nbee\n```"

	tests := []struct {
		path string
		want string
	}{
		{"lib/a.go", "package a"},
		{"lib/b.txt", "bee"},
		{"/lib/b.txt", "bee"},
		// Unnamed paths fall back to the first tagged block.
		{"lib/c.txt", "package a"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			b, ok := ExtractFor(text, tc.path)
			require.True(t, ok)
			assert.Equal(t, tc.want, b.Content)
		})
	}

	b, ok := ExtractFor("```\nhello\n```", "lib/foo.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", b.Content)

	_, ok = ExtractFor("nothing", "lib/foo.txt")
	assert.False(t, ok)
}

func TestExtractNamed(t *testing.T) {
	text := "```go cmd/a.go\npackage main\n```\n```\nloose\n```"

	b, ok := ExtractNamed(text, "cmd/a.go")
	require.True(t, ok)
	assert.Equal(t, "package main", b.Content)

	// No fallback to unnamed blocks.
	_, ok = ExtractNamed(text, "notes/b.txt")
	assert.False(t, ok)
	_, ok = ExtractNamed("```\nhello\n```", "a.txt")
	assert.False(t, ok)
	_, ok = ExtractNamed(text, "")
	assert.False(t, ok)

	b, ok = ExtractNamed("````md docs/x.md\n```sh\nmake\n```\n````", "docs/x.md")
	require.True(t, ok)
	assert.Equal(t, "```sh\nmake\n```", b.Content)
}

func TestKeywordValidator(t *testing.T) {
	v := NewKeywordValidator(nil, nil)

	tests := []struct {
		name    string
		path    string
		content string
		wantErr bool
	}{
		{"plain text accepted", "lib/foo.txt", "hello", false},
		{"markdown accepted", "README.md", "# Title", false},
		{"go with keyword", "main.go", "package main", false},
		{"go prose rejected", "main.go", "Sure, here it is", true},
		{"keyword must be whole word", "x.py", "defrost imports", true},
		{"case insensitive", "q.sql", "SELECT 1", false},
		{"whitespace only", "notes.txt", "  \n\t", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.path, Block{Content: tt.content})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want *ValidationError, got %v", err)
			assert.Equal(t, tt.path, verr.Path)
		})
	}
}

func TestKeywordValidator_CustomStrategy(t *testing.T) {
	v := NewKeywordValidator([]string{"resource"}, []string{".tf"})
	assert.NoError(t, v.Validate("main.tf", Block{Content: `resource "aws_s3_bucket" "b" {}`}))
	assert.Error(t, v.Validate("main.tf", Block{Content: "package main"}))
	assert.NoError(t, v.Validate("main.go", Block{Content: "anything"}))
}

func TestValidatorFunc(t *testing.T) {
	called := false
	var v Validator = ValidatorFunc(func(path string, b Block) error {
		called = true
		return nil
	})
	require.NoError(t, v.Validate("a", Block{}))
	assert.True(t, called)
}
