// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jeranaias/repochat/internal/model"
)

const (
	// DefaultOllamaURL is the local Ollama server.
	DefaultOllamaURL = "http://127.0.0.1:11434"

	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "qwen2.5-coder:14b"
)

// ollamaRequest is the request body for /api/chat endpoint.
type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ollamaResponse is the response from /api/chat endpoint.
type ollamaResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// ollamaError represents an error from the Ollama API.
type ollamaError struct {
	Error string `json:"error"`
}

// Ollama talks to a local or remote Ollama server. No key is needed.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama returns an uninitialized Ollama provider.
func NewOllama() *Ollama {
	return &Ollama{}
}

// Name implements Provider.
func (c *Ollama) Name() string { return KindOllama }

// Initialize implements Provider.
func (c *Ollama) Initialize(opts Options) error {
	c.baseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if c.baseURL == "" {
		c.baseURL = DefaultOllamaURL
	}
	if !strings.HasPrefix(c.baseURL, "http://") && !strings.HasPrefix(c.baseURL, "https://") {
		return &ConfigurationError{Provider: KindOllama, Field: "base_url", Message: "must start with http:// or https://"}
	}
	c.model = opts.Model
	if c.model == "" {
		c.model = DefaultOllamaModel
	}
	c.httpClient = httpClient(opts.Timeout)
	return nil
}

// Converse implements Provider.
func (c *Ollama) Converse(ctx context.Context, history []model.Message) (string, error) {
	if c.httpClient == nil {
		return "", &ProviderError{Provider: KindOllama, Message: "provider not initialized"}
	}

	reqBody := ollamaRequest{
		Model:    c.model,
		Messages: toChatMessages(history),
		Stream:   false,
	}

	status, body, err := postJSON(ctx, c.httpClient, KindOllama, c.baseURL+"/api/chat", reqBody, nil)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK {
		var oe ollamaError
		if json.Unmarshal(body, &oe) == nil && oe.Error != "" {
			return "", &ProviderError{Provider: KindOllama, Status: status, Message: oe.Error}
		}
		if status == http.StatusNotFound {
			return "", &ProviderError{Provider: KindOllama, Status: status, Message: "model not found: " + c.model}
		}
		return "", &ProviderError{Provider: KindOllama, Status: status, Message: "chat request failed"}
	}

	var result ollamaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ProviderError{Provider: KindOllama, Status: status, Message: "failed to decode response", Cause: err}
	}
	return result.Message.Content, nil
}

// Close implements Provider.
func (c *Ollama) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
