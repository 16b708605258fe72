package types

import (
	"context"

	"github.com/ron-matt163/wiki-llm/internal/models"
)

// Generator turns a single text prompt into a single text completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Sink receives every bundle the pipeline produces. Errors are reported, never fatal.
type Sink interface {
	Save(ctx context.Context, bundle models.Bundle) error
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
