// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/jeranaias/repochat/internal/model"
)

// Default models for the langchaingo backends.
const (
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
	DefaultOpenAIModel    = "gpt-4o"
)

// modelFactory builds a langchaingo model from validated options.
type modelFactory func(opts Options) (llms.Model, error)

// LangChain adapts a langchaingo llms.Model to Provider.
type LangChain struct {
	name         string
	defaultModel string
	factory      modelFactory
	llm          llms.Model
}

// NewAnthropic returns an uninitialized Anthropic provider.
func NewAnthropic() *LangChain {
	return &LangChain{
		name:         KindAnthropic,
		defaultModel: DefaultAnthropicModel,
		factory: func(opts Options) (llms.Model, error) {
			o := []anthropic.Option{
				anthropic.WithToken(opts.APIKey),
				anthropic.WithModel(opts.Model),
			}
			if opts.BaseURL != "" {
				o = append(o, anthropic.WithBaseURL(opts.BaseURL))
			}
			return anthropic.New(o...)
		},
	}
}

// NewOpenAI returns an uninitialized OpenAI provider.
func NewOpenAI() *LangChain {
	return &LangChain{
		name:         KindOpenAI,
		defaultModel: DefaultOpenAIModel,
		factory: func(opts Options) (llms.Model, error) {
			o := []openai.Option{
				openai.WithToken(opts.APIKey),
				openai.WithModel(opts.Model),
			}
			if opts.BaseURL != "" {
				o = append(o, openai.WithBaseURL(opts.BaseURL))
			}
			return openai.New(o...)
		},
	}
}

// NewLangChain wraps an already constructed model. Initialize on the result
// accepts any options.
func NewLangChain(name string, llm llms.Model) *LangChain {
	return &LangChain{name: name, llm: llm}
}

// Name implements Provider.
func (p *LangChain) Name() string { return p.name }

// Initialize implements Provider. An API key is required unless a model was
// injected with NewLangChain.
func (p *LangChain) Initialize(opts Options) error {
	if p.factory == nil {
		return nil
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return &ConfigurationError{Provider: p.name, Field: "api_key"}
	}
	if opts.Model == "" {
		opts.Model = p.defaultModel
	}
	llm, err := p.factory(opts)
	if err != nil {
		return &ConfigurationError{Provider: p.name, Field: "client", Message: err.Error()}
	}
	p.llm = llm
	return nil
}

// Converse implements Provider.
func (p *LangChain) Converse(ctx context.Context, history []model.Message) (string, error) {
	if p.llm == nil {
		return "", &ProviderError{Provider: p.name, Message: "provider not initialized"}
	}

	messages := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		messages = append(messages, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", &ProviderError{Provider: p.name, Cause: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.name, Message: "response contained no choices"}
	}
	return resp.Choices[0].Content, nil
}

// Close implements Provider.
func (p *LangChain) Close() error { return nil }

func chatMessageType(r model.Role) schema.ChatMessageType {
	switch r {
	case model.RoleSystem:
		return schema.ChatMessageTypeSystem
	case model.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
