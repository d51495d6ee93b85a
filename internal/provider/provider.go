// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the AI backend abstraction and its
// implementations.
//
// A Provider turns an ordered message history into one reply. Providers do
// not retry: a failed call is reported once and the conversation decides
// what to show the user.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/repochat/internal/model"
)

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Provider is an AI backend.
type Provider interface {
	// Name is the label recorded next to persisted messages.
	Name() string

	// Initialize validates opts and prepares the backend. It returns a
	// *ConfigurationError when a required credential is missing.
	Initialize(opts Options) error

	// Converse sends history, oldest first, and returns the reply text.
	// Failures are *ProviderError.
	Converse(ctx context.Context, history []model.Message) (string, error)

	// Close releases held resources.
	Close() error
}

// Options configures a provider.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Kind names accepted by New.
const (
	KindEcho       = "echo"
	KindOpenRouter = "openrouter"
	KindOllama     = "ollama"
	KindAnthropic  = "anthropic"
	KindOpenAI     = "openai"
)

// Kinds lists every supported provider kind.
func Kinds() []string {
	return []string{KindEcho, KindOpenRouter, KindOllama, KindAnthropic, KindOpenAI}
}

// New returns an uninitialized provider of the given kind.
func New(kind string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindEcho:
		return NewEcho(), nil
	case KindOpenRouter:
		return NewOpenRouter(), nil
	case KindOllama:
		return NewOllama(), nil
	case KindAnthropic:
		return NewAnthropic(), nil
	case KindOpenAI:
		return NewOpenAI(), nil
	default:
		return nil, &ConfigurationError{
			Provider: kind,
			Field:    "kind",
			Message:  fmt.Sprintf("unknown provider, must be one of: %s", strings.Join(Kinds(), ", ")),
		}
	}
}

// Open creates and initializes a provider in one step.
func Open(kind string, opts Options) (Provider, error) {
	p, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(opts); err != nil {
		return nil, err
	}
	return p, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ConfigurationError reports a missing or invalid provider setting.
type ConfigurationError struct {
	Provider string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "is required"
	}
	return fmt.Sprintf("%s provider: %s %s", e.Provider, e.Field, msg)
}

// ProviderError reports a failed Converse call. Status is 0 when no HTTP
// response was received.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}
