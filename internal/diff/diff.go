// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import (
	"fmt"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// Op is the kind of a diff line.
type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

// Prefix returns the unified diff marker for the op.
func (o Op) Prefix() string {
	switch o {
	case Insert:
		return "+"
	case Delete:
		return "-"
	default:
		return " "
	}
}

// Line is one line of a diff. OldLine and NewLine are 1-based and zero when
// the line does not exist on that side.
type Line struct {
	Op      Op
	Text    string
	OldLine int
	NewLine int
}

// Stats counts inserted and deleted lines.
type Stats struct {
	Added   int
	Removed int
}

// Changed reports whether any line differs.
func (s Stats) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

func (s Stats) String() string {
	return fmt.Sprintf("+%d -%d", s.Added, s.Removed)
}

// Result is the full line diff between two texts.
type Result struct {
	Lines []Line
	Stats Stats
}

// =============================================================================
// COMPUTATION
// =============================================================================

// Compute diffs prior against next line by line using a longest common
// subsequence table. A trailing newline does not count as an extra line.
func Compute(prior, next string) Result {
	a, b := splitLines(prior), splitLines(next)

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var r Result
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			r.Lines = append(r.Lines, Line{Op: Equal, Text: a[i], OldLine: i + 1, NewLine: j + 1})
			i++
			j++
		case j >= len(b) || (i < len(a) && lcs[i+1][j] >= lcs[i][j+1]):
			r.Lines = append(r.Lines, Line{Op: Delete, Text: a[i], OldLine: i + 1})
			r.Stats.Removed++
			i++
		default:
			r.Lines = append(r.Lines, Line{Op: Insert, Text: b[j], NewLine: j + 1})
			r.Stats.Added++
			j++
		}
	}
	return r
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// =============================================================================
// UNIFIED FORMAT
// =============================================================================

// hunk is a run of lines with its header positions.
type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []Line
}

// Unified renders r as a unified diff for path, keeping up to context
// unchanged lines around each change. An unchanged result renders as "".
func Unified(path string, r Result, context int) string {
	if !r.Stats.Changed() {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks(r.Lines, context) {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)
		for _, l := range h.lines {
			sb.WriteString(l.Op.Prefix())
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// hunks groups changed lines, merging changes whose context windows touch.
func hunks(lines []Line, context int) []hunk {
	if context < 0 {
		context = 0
	}

	var out []hunk
	start, end := -1, -1
	flush := func() {
		if start < 0 {
			return
		}
		out = append(out, newHunk(lines[start:end]))
		start, end = -1, -1
	}

	for i, l := range lines {
		if l.Op == Equal {
			continue
		}
		lo := max(0, i-context)
		hi := min(len(lines), i+context+1)
		if start >= 0 && lo > end {
			flush()
		}
		if start < 0 {
			start = lo
		}
		end = hi
	}
	flush()
	return out
}

func newHunk(lines []Line) hunk {
	h := hunk{lines: lines}
	for _, l := range lines {
		if l.Op != Insert {
			h.oldCount++
			if h.oldStart == 0 {
				h.oldStart = l.OldLine
			}
		}
		if l.Op != Delete {
			h.newCount++
			if h.newStart == 0 {
				h.newStart = l.NewLine
			}
		}
	}
	return h
}
