// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the conversation log for repochat.
//
// Every backend implements Store. The orchestrator treats persistence as
// best-effort: a failing Store never interrupts the conversation.
//
// # Backends
//
//   - SQLiteStore: durable, pure-Go SQLite (default)
//   - FileStore: durable, a single JSON document rewritten atomically
//   - MemoryStore: ephemeral, for tests and --no-history sessions
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Backend: "sqlite", Path: dbPath})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	id, err := store.Append(ctx, msg, "openrouter")
package storage
