// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/repochat/internal/model"
)

// SQLiteStore keeps the message log in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, wrap("open", fmt.Errorf("database path is empty"))
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, wrap("open", fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("open", err)
	}

	// Single writer; also keeps ":memory:" to one shared database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, wrap("open", fmt.Errorf("failed to set pragma %q: %w", pragma, err))
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, wrap("open", fmt.Errorf("failed to create schema: %w", err))
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO metadata(key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, wrap("open", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, msg model.Message, providerLabel string) (string, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(role, content, provider, created_at) VALUES (?, ?, ?, ?)`,
		string(msg.Role), msg.Content, providerLabel, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", wrap("append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", wrap("append", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// LoadAll implements Store.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages ORDER BY id`)
	if err != nil {
		return nil, wrap("load", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var (
			id        int64
			role      string
			content   string
			createdAt int64
		)
		if err := rows.Scan(&id, &role, &content, &createdAt); err != nil {
			return nil, wrap("load", err)
		}
		r, err := model.ParseRole(role)
		if err != nil {
			return nil, wrap("load", err)
		}
		msgs = append(msgs, model.Message{
			ID:        strconv.FormatInt(id, 10),
			Role:      r,
			Content:   content,
			CreatedAt: time.Unix(0, createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("load", err)
	}
	return msgs, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	return wrap("clear", err)
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// DeleteOlderThan implements Store.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, wrap("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("prune", err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return wrap("close", s.db.Close())
}
