// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"sync"

	"github.com/jeranaias/repochat/internal/model"
)

// DefaultEchoReplies are the canned replies Echo cycles through.
var DefaultEchoReplies = []string{
	"Echo provider is active. No AI backend is configured.",
	"Here is a placeholder file:\n\n```\nhello\n```",
	"Noted. Ask me to /create or /edit a file to try the commit flow.",
}

// Echo is a deterministic provider for development and tests. It cycles
// through a fixed list of replies and never fails.
type Echo struct {
	mu      sync.Mutex
	replies []string
	next    int
	calls   [][]model.Message
}

// NewEcho returns an Echo using DefaultEchoReplies.
func NewEcho() *Echo {
	return NewEchoWithReplies(DefaultEchoReplies...)
}

// NewEchoWithReplies returns an Echo cycling through replies.
func NewEchoWithReplies(replies ...string) *Echo {
	if len(replies) == 0 {
		replies = DefaultEchoReplies
	}
	return &Echo{replies: append([]string(nil), replies...)}
}

// Name implements Provider.
func (e *Echo) Name() string { return KindEcho }

// Initialize implements Provider. Echo needs no configuration.
func (e *Echo) Initialize(Options) error { return nil }

// Converse implements Provider.
func (e *Echo) Converse(_ context.Context, history []model.Message) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, append([]model.Message(nil), history...))
	reply := e.replies[e.next%len(e.replies)]
	e.next++
	return reply, nil
}

// Calls returns a copy of every history Converse received.
func (e *Echo) Calls() [][]model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]model.Message, len(e.calls))
	copy(out, e.calls)
	return out
}

// Close implements Provider.
func (e *Echo) Close() error { return nil }
