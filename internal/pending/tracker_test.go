// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pending

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"lib/foo.txt", "lib/foo.txt"},
		{"./lib/foo.txt", "lib/foo.txt"},
		{"/lib/foo.txt", "lib/foo.txt"},
		{"lib//foo.txt", "lib/foo.txt"},
		{"lib/../lib/foo.txt", "lib/foo.txt"},
		{`lib\foo.txt`, "lib/foo.txt"},
		{"  my file.md ", "my file.md"},
		{"café.md", "café.md"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestTracker_LastWriteWins(t *testing.T) {
	tr := NewTracker()

	tr.SetCreate("lib/foo.txt")
	tr.SetUpdate("./lib/foo.txt", "old", "sha1")

	require.Equal(t, 1, tr.Len())
	op, ok := tr.Get("/lib/foo.txt")
	require.True(t, ok)
	assert.Equal(t, Update, op.Kind)
	assert.Equal(t, "old", op.PriorContent)
	assert.Equal(t, "sha1", op.PriorRevision)
	assert.False(t, op.RequestedAt.IsZero())

	tr.SetCreate("lib/foo.txt")
	op, _ = tr.Get("lib/foo.txt")
	assert.Equal(t, Create, op.Kind)
	assert.Empty(t, op.PriorContent)
}

func TestTracker_RemoveAndClear(t *testing.T) {
	tr := NewTracker()
	tr.SetCreate("b.go")
	tr.SetCreate("a.go")

	assert.Equal(t, []string{"a.go", "b.go"}, tr.Paths())
	assert.True(t, tr.Remove("a.go"))
	assert.False(t, tr.Remove("a.go"))

	ops := tr.All()
	require.Len(t, ops, 1)
	assert.Equal(t, "b.go", ops[0].Path)

	tr.Clear()
	assert.Zero(t, tr.Len())
	_, ok := tr.Get("b.go")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "create", Create.String())
	assert.Equal(t, "update", Update.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.SetCreate("x.go")
		}()
		go func() {
			defer wg.Done()
			_ = tr.Paths()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, tr.Len())
}
