// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/util"
)

// =============================================================================
// STORED LOG TYPE
// =============================================================================

// StoredLog is the on-disk document written by FileStore.
type StoredLog struct {
	NextID    int64           `json:"next_id"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []StoredMessage `json:"messages"`
}

// StoredMessage represents a persisted message.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	Provider  string    `json:"provider,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the whole log in one JSON file and rewrites it on every
// change. Suitable for short histories.
type FileStore struct {
	mu     sync.Mutex
	path   string
	log    StoredLog
	closed bool
}

// OpenFile loads the log at path, starting empty if the file does not exist.
func OpenFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, wrap("open", fmt.Errorf("log path is empty"))
	}

	s := &FileStore{path: path, log: StoredLog{NextID: 1}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, wrap("open", err)
	}

	if err := json.Unmarshal(data, &s.log); err != nil {
		return nil, wrap("open", fmt.Errorf("failed to decode %s: %w", path, err))
	}
	if s.log.NextID < 1 {
		s.log.NextID = int64(len(s.log.Messages)) + 1
	}
	return s, nil
}

// save writes the log. Caller must hold mu.
func (s *FileStore) save() error {
	s.log.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s.log, "", "  ")
	if err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.path, data, 0600)
}

// Append implements Store.
func (s *FileStore) Append(_ context.Context, msg model.Message, providerLabel string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", wrap("append", ErrClosed)
	}

	id := strconv.FormatInt(s.log.NextID, 10)
	s.log.NextID++
	s.log.Messages = append(s.log.Messages, StoredMessage{
		ID:        id,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Provider:  providerLabel,
		Timestamp: msg.CreatedAt,
	})

	if err := s.save(); err != nil {
		s.log.Messages = s.log.Messages[:len(s.log.Messages)-1]
		s.log.NextID--
		return "", wrap("append", err)
	}
	return id, nil
}

// LoadAll implements Store.
func (s *FileStore) LoadAll(_ context.Context) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, wrap("load", ErrClosed)
	}

	msgs := make([]model.Message, 0, len(s.log.Messages))
	for _, sm := range s.log.Messages {
		role, err := model.ParseRole(sm.Role)
		if err != nil {
			return nil, wrap("load", err)
		}
		msgs = append(msgs, model.Message{
			ID:        sm.ID,
			Role:      role,
			Content:   sm.Content,
			CreatedAt: sm.Timestamp,
		})
	}
	return msgs, nil
}

// Clear implements Store.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrap("clear", ErrClosed)
	}
	prev := s.log.Messages
	s.log.Messages = nil
	if err := s.save(); err != nil {
		s.log.Messages = prev
		return wrap("clear", err)
	}
	return nil
}

// Count implements Store.
func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrap("count", ErrClosed)
	}
	return len(s.log.Messages), nil
}

// DeleteOlderThan implements Store.
func (s *FileStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrap("prune", ErrClosed)
	}

	prev := s.log.Messages
	kept := make([]StoredMessage, 0, len(prev))
	for _, m := range prev {
		if !m.Timestamp.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := len(prev) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	s.log.Messages = kept
	if err := s.save(); err != nil {
		s.log.Messages = prev
		return 0, wrap("prune", err)
	}
	return removed, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
