// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the conversation log for repochat.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/repochat/internal/model"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is an append-only message log with bulk maintenance operations.
type Store interface {
	// Append persists msg and returns the id assigned to it. providerLabel
	// names the AI backend that was active when the message was recorded.
	Append(ctx context.Context, msg model.Message, providerLabel string) (string, error)

	// LoadAll returns every stored message in insertion order.
	LoadAll(ctx context.Context) ([]model.Message, error)

	// Clear removes every stored message.
	Clear(ctx context.Context) error

	// Count returns the number of stored messages.
	Count(ctx context.Context) (int, error)

	// DeleteOlderThan removes messages created before cutoff and returns how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases the backend.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// PersistenceError wraps any backend failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// FACTORY
// =============================================================================

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Options selects and locates a backend.
type Options struct {
	Backend string
	Path    string
}

// Open creates the backend named by opts.Backend. An empty backend selects
// SQLite.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendFile:
		return OpenFile(opts.Path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
