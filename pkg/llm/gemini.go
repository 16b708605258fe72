package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEngine sends completions to Google's Gemini API.
type GeminiEngine struct {
	config ChatConfig
	client *genai.Client
}

func NewGeminiEngine(ctx context.Context, config ChatConfig) (*GeminiEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini provider needs an API key")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiEngine{config: config, client: client}, nil
}

func (g *GeminiEngine) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.config.Temperature)),
	}
	if g.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.config.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return resp.Text(), nil
}
