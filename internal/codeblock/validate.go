// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package codeblock

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ValidationError reports an extracted block that does not look like
// content for the target file.
type ValidationError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("code block for %s rejected: %s", e.Path, e.Reason)
}

// Validator decides whether a block may be committed to path.
type Validator interface {
	Validate(path string, b Block) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(path string, b Block) error

// Validate calls f.
func (f ValidatorFunc) Validate(path string, b Block) error { return f(path, b) }

// =============================================================================
// KEYWORD VALIDATOR
// =============================================================================

// DefaultKeywords are language construct tokens across the common languages
// and config formats.
var DefaultKeywords = []string{
	// Go, C family, Java, C#, Rust, Swift, Kotlin
	"package", "import", "func", "type", "struct", "interface", "return",
	"const", "var", "let", "fn", "impl", "pub", "use", "mod", "class",
	"public", "private", "static", "void", "int", "include", "namespace",
	"enum", "fun", "val", "if", "else", "for", "while", "switch", "case",
	// JavaScript, TypeScript
	"function", "export", "require", "async", "await", "new", "this",
	// Python, Ruby, shell
	"def", "self", "from", "lambda", "end", "module", "echo", "then", "fi",
	"do", "done", "set",
	// SQL
	"select", "insert", "create", "table", "where",
	// markup and config
	"html", "div", "body", "xml", "version", "name", "true", "false", "null",
}

// DefaultCodeExtensions are the file extensions whose content must contain
// a keyword. Other files only need to be non-empty.
var DefaultCodeExtensions = []string{
	".go", ".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".java", ".kt", ".swift",
	".rs", ".js", ".jsx", ".ts", ".tsx", ".mjs", ".py", ".rb", ".php", ".sh",
	".bash", ".sql", ".html", ".xml", ".json", ".yaml", ".yml", ".toml",
}

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// KeywordValidator accepts non-empty blocks, and for source files also
// requires at least one keyword as a whole word (case-insensitive).
type KeywordValidator struct {
	keywords   map[string]bool
	extensions map[string]bool
}

// NewKeywordValidator builds a validator. Nil slices select the defaults.
func NewKeywordValidator(keywords, codeExtensions []string) *KeywordValidator {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	if codeExtensions == nil {
		codeExtensions = DefaultCodeExtensions
	}
	v := &KeywordValidator{
		keywords:   make(map[string]bool, len(keywords)),
		extensions: make(map[string]bool, len(codeExtensions)),
	}
	for _, k := range keywords {
		v.keywords[strings.ToLower(k)] = true
	}
	for _, e := range codeExtensions {
		v.extensions[strings.ToLower(e)] = true
	}
	return v
}

// Validate implements Validator.
func (v *KeywordValidator) Validate(p string, b Block) error {
	if strings.TrimSpace(b.Content) == "" {
		return &ValidationError{Path: p, Reason: "block is empty"}
	}
	if !v.extensions[strings.ToLower(path.Ext(p))] {
		return nil
	}
	for _, w := range wordPattern.FindAllString(b.Content, -1) {
		if v.keywords[strings.ToLower(w)] {
			return nil
		}
	}
	return &ValidationError{Path: p, Reason: "no recognizable language construct"}
}
