// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversation messages.
package model

import (
	"fmt"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// ParseRole converts a persisted role string back to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in the conversation log.
// A Message is never modified after it has been appended to a log.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message without an ID. The ID is assigned by the
// persistence store when the message is appended.
func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}

// WithID returns a copy of m carrying id.
func (m Message) WithID(id string) Message {
	m.ID = id
	return m
}

// IsUser reports whether the message was typed by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// IsSystem reports whether the message was produced by the client itself.
func (m Message) IsSystem() bool { return m.Role == RoleSystem }

// LastN returns the final n messages of log in chronological order.
// The returned slice is a copy.
func LastN(log []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	start := 0
	if len(log) > n {
		start = len(log) - n
	}
	out := make([]Message, len(log)-start)
	copy(out, log[start:])
	return out
}
