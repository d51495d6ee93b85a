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

// Configuration constants for OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultOpenRouterModel is used when no model is configured.
	DefaultOpenRouterModel = "anthropic/claude-3.5-sonnet"
)

// openRouterRequest represents a request to the chat completions endpoint.
type openRouterRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// openRouterResponse represents a response from the chat completions endpoint.
type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// apiErrorResponse represents an error response from the API.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// OpenRouter talks to any OpenAI-compatible /chat/completions endpoint,
// OpenRouter by default.
type OpenRouter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenRouter returns an uninitialized OpenRouter provider.
func NewOpenRouter() *OpenRouter {
	return &OpenRouter{}
}

// Name implements Provider.
func (c *OpenRouter) Name() string { return KindOpenRouter }

// Initialize implements Provider. An API key is required.
func (c *OpenRouter) Initialize(opts Options) error {
	if strings.TrimSpace(opts.APIKey) == "" {
		return &ConfigurationError{Provider: KindOpenRouter, Field: "api_key"}
	}
	c.apiKey = opts.APIKey
	c.baseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if c.baseURL == "" {
		c.baseURL = DefaultOpenRouterURL
	}
	c.model = opts.Model
	if c.model == "" {
		c.model = DefaultOpenRouterModel
	}
	c.httpClient = httpClient(opts.Timeout)
	return nil
}

func (c *OpenRouter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "repochat")
}

// Converse implements Provider.
func (c *OpenRouter) Converse(ctx context.Context, history []model.Message) (string, error) {
	if c.httpClient == nil {
		return "", &ProviderError{Provider: KindOpenRouter, Message: "provider not initialized"}
	}

	reqBody := openRouterRequest{
		Model:    c.model,
		Messages: toChatMessages(history),
		Stream:   false,
	}

	status, body, err := postJSON(ctx, c.httpClient, KindOpenRouter, c.baseURL+"/chat/completions", reqBody, c.setHeaders)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", c.handleErrorResponse(status, body)
	}

	var chatResp openRouterResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &ProviderError{Provider: KindOpenRouter, Status: status, Message: "failed to parse response", Cause: err}
	}
	if len(chatResp.Choices) == 0 {
		return "", &ProviderError{Provider: KindOpenRouter, Status: status, Message: "response contained no choices"}
	}
	return chatResp.Choices[0].Message.Content, nil
}

// handleErrorResponse converts HTTP error responses to a ProviderError,
// preferring the API's own message.
func (c *OpenRouter) handleErrorResponse(status int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &ProviderError{Provider: KindOpenRouter, Status: status, Message: apiErr.Error.Message}
	}

	msg := strings.TrimSpace(string(body))
	switch status {
	case http.StatusUnauthorized:
		msg = "authentication failed"
	case http.StatusPaymentRequired:
		msg = "insufficient credits"
	case http.StatusTooManyRequests:
		msg = "rate limited"
	}
	return &ProviderError{Provider: KindOpenRouter, Status: status, Message: msg}
}

// Close implements Provider.
func (c *OpenRouter) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
