// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jeranaias/repochat/internal/model"
)

// MemoryStore is a process-local Store. Ids are monotonic ULIDs.
type MemoryStore struct {
	mu      sync.Mutex
	msgs    []model.Message
	entropy io.Reader
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, msg model.Message, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", wrap("append", ErrClosed)
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", wrap("append", err)
	}
	msg.ID = id.String()
	s.msgs = append(s.msgs, msg)
	return msg.ID, nil
}

// LoadAll implements Store.
func (s *MemoryStore) LoadAll(_ context.Context) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, wrap("load", ErrClosed)
	}
	out := make([]model.Message, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrap("clear", ErrClosed)
	}
	s.msgs = nil
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrap("count", ErrClosed)
	}
	return len(s.msgs), nil
}

// DeleteOlderThan implements Store.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrap("prune", ErrClosed)
	}
	kept := s.msgs[:0:0]
	for _, m := range s.msgs {
		if !m.CreatedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := len(s.msgs) - len(kept)
	s.msgs = kept
	return removed, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
