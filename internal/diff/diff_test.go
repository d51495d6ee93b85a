// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Stats(t *testing.T) {
	tests := []struct {
		name  string
		prior string
		next  string
		want  Stats
	}{
		{"identical", "a\nb\n", "a\nb\n", Stats{}},
		{"new file", "", "a\nb\nc", Stats{Added: 3}},
		{"emptied", "a\nb\n", "", Stats{Removed: 2}},
		{"one line changed", "a\nb\nc\n", "a\nB\nc\n", Stats{Added: 1, Removed: 1}},
		{"append", "a\n", "a\nb\n", Stats{Added: 1}},
		{"trailing newline ignored", "a\nb", "a\nb\n", Stats{}},
		{"both empty", "", "", Stats{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Compute(tc.prior, tc.next)
			assert.Equal(t, tc.want, r.Stats)
			assert.Equal(t, tc.want.Changed(), len(r.Lines) > 0 && r.Stats.Changed())
		})
	}
}

func TestCompute_LineNumbers(t *testing.T) {
	r := Compute("a\nb\nc", "a\nx\nc")
	require.Len(t, r.Lines, 4)

	assert.Equal(t, Line{Op: Equal, Text: "a", OldLine: 1, NewLine: 1}, r.Lines[0])
	assert.Equal(t, Line{Op: Delete, Text: "b", OldLine: 2}, r.Lines[1])
	assert.Equal(t, Line{Op: Insert, Text: "x", NewLine: 2}, r.Lines[2])
	assert.Equal(t, Line{Op: Equal, Text: "c", OldLine: 3, NewLine: 3}, r.Lines[3])
}

func TestStats_String(t *testing.T) {
	assert.Equal(t, "+3 -1", Stats{Added: 3, Removed: 1}.String())
	assert.Equal(t, "+0 -0", Stats{}.String())
}

func TestUnified(t *testing.T) {
	prior := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	next := "1\nTWO\n3\n4\n5\n6\n7\n8\n9\nTEN\n"

	got := Unified("lib/n.txt", Compute(prior, next), 1)
	want := "--- a/lib/n.txt\n+++ b/lib/n.txt\n" +
		"@@ -1,3 +1,3 @@\n 1\n-2\n+TWO\n 3\n" +
		"@@ -9,2 +9,2 @@\n 9\n-10\n+TEN\n"
	assert.Equal(t, want, got)
}

func TestUnified_MergesNearbyChanges(t *testing.T) {
	got := Unified("f", Compute("a\nb\nc\nd", "A\nb\nc\nD"), 3)
	assert.Equal(t, "--- a/f\n+++ b/f\n@@ -1,4 +1,4 @@\n-a\n+A\n b\n c\n-d\n+D\n", got)
}

func TestUnified_Unchanged(t *testing.T) {
	assert.Empty(t, Unified("f", Compute("same", "same"), 3))
}
