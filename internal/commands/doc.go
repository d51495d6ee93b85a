// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the prefixed command grammar for the chat REPL.
//
// Input that starts with the command prefix (default "/") is split into a
// verb and an argument. The argument is every remaining token joined with
// single spaces, so paths containing spaces work without quoting.
//
// # Key Types
//
//   - Registry: built-in verbs, their aliases and help text
//   - Parser: turns input into a ParseResult
//   - Completer: tab completion for verbs
//
// # Usage
//
//	reg := commands.NewRegistry()
//	p := commands.NewParser(reg, "/")
//	res := p.Parse("/read docs/release notes.md")
//	// res.Command.Name == "read", res.Argument == "docs/release notes.md"
package commands
