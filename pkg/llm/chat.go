package llm

import (
	"context"
	"fmt"

	"github.com/ron-matt163/wiki-llm/internal/types"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// ChatConfig represents the configuration for a completion backend.
type ChatConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // server URL for ollama, API base for openai and gemini
	APIKey      string
}

// ChatEngine sends single-prompt completions through a langchaingo model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig builds the Generator for config.Provider.
func NewWithConfig(config ChatConfig) (types.Generator, error) {
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	switch config.Provider {
	case ProviderOpenAI:
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai provider needs an API key")
		}
		opts := []openai.Option{openai.WithToken(config.APIKey), openai.WithModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return NewChatEngine(model, config), nil

	case ProviderOllama:
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return NewChatEngine(model, config), nil

	case ProviderGemini:
		engine, err := NewGeminiEngine(context.Background(), config)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}

	return nil, fmt.Errorf("unknown provider %q", config.Provider)
}

// NewChatEngine wraps an already constructed langchaingo model.
func NewChatEngine(model llms.Model, config ChatConfig) *ChatEngine {
	return &ChatEngine{config: config, llm: model}
}

// Generate sends prompt as a single human message and returns the completion text.
func (ce *ChatEngine) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(ce.config.Temperature)}
	if ce.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(ce.config.MaxTokens))
	}

	completion, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	return completion, nil
}
