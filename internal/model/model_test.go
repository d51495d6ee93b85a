// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"system", RoleSystem, false},
		{"tool", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLastN(t *testing.T) {
	now := time.Now()
	var log []Message
	for i := 0; i < 5; i++ {
		log = append(log, NewMessage(RoleUser, string(rune('a'+i)), now.Add(time.Duration(i)*time.Second)))
	}

	tests := []struct {
		name  string
		n     int
		first string
		size  int
	}{
		{"fewer than log", 3, "c", 3},
		{"exact", 5, "a", 5},
		{"more than log", 20, "a", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LastN(log, tt.n)
			if len(got) != tt.size {
				t.Fatalf("LastN(%d) returned %d messages, want %d", tt.n, len(got), tt.size)
			}
			if got[0].Content != tt.first {
				t.Errorf("LastN(%d)[0] = %q, want %q", tt.n, got[0].Content, tt.first)
			}
		})
	}

	if got := LastN(log, 0); got != nil {
		t.Errorf("LastN(0) = %v, want nil", got)
	}

	window := LastN(log, 2)
	window[0].Content = "mutated"
	if log[3].Content == "mutated" {
		t.Error("LastN must return a copy")
	}
}

func TestMessageWithID(t *testing.T) {
	m := NewMessage(RoleSystem, "hi", time.Now())
	withID := m.WithID("42")
	if m.ID != "" {
		t.Error("WithID must not modify the receiver")
	}
	if withID.ID != "42" || !withID.IsSystem() || withID.IsUser() {
		t.Errorf("unexpected message %+v", withID)
	}
}
