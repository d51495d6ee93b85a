// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pending tracks file operations the user has requested but the AI
// has not yet produced content for.
//
// Each repository path has at most one pending operation. Recording a new
// intent for a path replaces whatever was pending there; the tracker never
// rejects a transition.
package pending

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// OPERATION TYPES
// =============================================================================

// Kind is the type of a pending operation.
type Kind int

const (
	// Create writes a new file that must not already exist.
	Create Kind = iota
	// Update replaces the content of an existing file.
	Update
)

// String returns the lower-case verb for the kind.
func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Update:
		return "update"
	default:
		return "unknown"
	}
}

// Operation is one in-flight intent for a repository path.
type Operation struct {
	Path string
	Kind Kind

	// PriorContent and PriorRevision are the file state captured when the
	// edit was requested. Set for Update only.
	PriorContent  string
	PriorRevision string

	RequestedAt time.Time
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker is a concurrency-safe map of normalized path to Operation.
type Tracker struct {
	mu  sync.RWMutex
	ops map[string]Operation
	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ops: make(map[string]Operation),
		now: time.Now,
	}
}

// NormalizePath maps equivalent spellings of a repository path to one key:
// NFC Unicode form, cleaned, without leading "/" or "./".
func NormalizePath(p string) string {
	p = norm.NFC.String(strings.TrimSpace(p))
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// SetCreate records a Create intent for p, replacing any existing entry.
func (t *Tracker) SetCreate(p string) Operation {
	return t.set(Operation{Path: NormalizePath(p), Kind: Create})
}

// SetUpdate records an Update intent for p with the baseline the AI should
// edit from, replacing any existing entry.
func (t *Tracker) SetUpdate(p, priorContent, priorRevision string) Operation {
	return t.set(Operation{
		Path:          NormalizePath(p),
		Kind:          Update,
		PriorContent:  priorContent,
		PriorRevision: priorRevision,
	})
}

func (t *Tracker) set(op Operation) Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	op.RequestedAt = t.now()
	t.ops[op.Path] = op
	return op
}

// Get returns the pending operation for p.
func (t *Tracker) Get(p string) (Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[NormalizePath(p)]
	return op, ok
}

// Remove drops the entry for p and reports whether one existed.
func (t *Tracker) Remove(p string) bool {
	key := NormalizePath(p)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ops[key]; !ok {
		return false
	}
	delete(t.ops, key)
	return true
}

// Clear drops every entry.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = make(map[string]Operation)
}

// Len returns the number of pending operations.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ops)
}

// Paths returns the pending paths in sorted order.
func (t *Tracker) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.ops))
	for p := range t.ops {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// All returns a copy of every pending operation, sorted by path.
func (t *Tracker) All() []Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ops := make([]Operation, 0, len(t.ops))
	for _, op := range t.ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
	return ops
}
