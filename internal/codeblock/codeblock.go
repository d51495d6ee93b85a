// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package codeblock finds fenced code blocks in AI replies and decides
// whether a block is plausible file content.
package codeblock

import (
	"strings"
)

// Block is a fenced region of a reply.
type Block struct {
	// Language is the info-string tag after the opening fence, or "".
	Language string

	// Info is the whole opening-fence line after the backticks, trimmed.
	Info string

	// Content is the text between the fences, without the newline that
	// precedes the closing fence.
	Content string
}

// minFence is the shortest backtick run that opens a block.
const minFence = 3

// scan splits text into fenced blocks in reading order. A block opens on a
// line starting with a run of at least three backticks whose info string has
// no backticks, and closes on a line holding only a backtick run at least as
// long as the opening one. Unclosed blocks are dropped.
func scan(text string) []Block {
	var (
		blocks []Block
		open   int // opening run length, 0 outside a block
		cur    Block
		body   []string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimLeft(line, " \t")
		run := len(trimmed) - len(strings.TrimLeft(trimmed, "`"))

		if open == 0 {
			info := trimmed[run:]
			if run < minFence || strings.Contains(info, "`") {
				continue
			}
			open = run
			cur = newBlock(strings.TrimSpace(info))
			body = body[:0]
			continue
		}

		if run >= open && strings.TrimSpace(trimmed[run:]) == "" {
			cur.Content = strings.Join(body, "\n")
			blocks = append(blocks, cur)
			open = 0
			continue
		}
		body = append(body, line)
	}
	return blocks
}

func newBlock(info string) Block {
	b := Block{Info: info}
	if fields := strings.Fields(info); len(fields) > 0 && !strings.ContainsAny(fields[0], "/\\") {
		b.Language = strings.ToLower(fields[0])
	}
	return b
}

// Extract returns the first language-tagged fenced block in text, falling
// back to the first block of any kind.
func Extract(text string) (Block, bool) {
	blocks := scan(text)
	for _, b := range blocks {
		if b.Language != "" {
			return b, true
		}
	}
	if len(blocks) > 0 {
		return blocks[0], true
	}
	return Block{}, false
}

// ExtractAll returns every fenced block in reading order.
func ExtractAll(text string) []Block {
	blocks := scan(text)
	if blocks == nil {
		return []Block{}
	}
	return blocks
}

// ExtractNamed returns the first block whose opening fence line names path.
func ExtractNamed(text, path string) (Block, bool) {
	want := trimPathPrefix(path)
	if want == "" {
		return Block{}, false
	}
	for _, b := range scan(text) {
		for _, field := range strings.Fields(b.Info) {
			if trimPathPrefix(field) == want {
				return b, true
			}
		}
	}
	return Block{}, false
}

// ExtractFor returns the block named for path, else behaves like Extract.
// Use it only when a single path is waiting for content.
func ExtractFor(text, path string) (Block, bool) {
	if b, ok := ExtractNamed(text, path); ok {
		return b, true
	}
	return Extract(text)
}

func trimPathPrefix(p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
}
