// Package topics asks a language model which encyclopedia pages are likely to
// answer a question.
package topics

import (
	"context"
	"fmt"

	"github.com/ron-matt163/wiki-llm/internal/failsoft"
	"github.com/ron-matt163/wiki-llm/internal/types"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"
)

type DeriverConfig struct {
	Logger *zap.Logger
	// OnResponse, when set, receives every raw completion before it is parsed.
	OnResponse func(question, raw string)
}

type Deriver struct {
	config    DeriverConfig
	generator types.Generator
	prompt    prompts.PromptTemplate
	logger    *zap.Logger
}

func NewWithConfig(generator types.Generator, config DeriverConfig) *Deriver {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deriver{
		config:    config,
		generator: generator,
		prompt:    newPromptTemplate(),
		logger:    logger,
	}
}

func New(generator types.Generator) *Deriver {
	return NewWithConfig(generator, DeriverConfig{})
}

// Prompt renders the few-shot prompt for question.
func (d *Deriver) Prompt(question string) (string, error) {
	p, err := d.prompt.Format(map[string]any{"question": question})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return p, nil
}

// Derive returns the topics the model lists for question, in the model's order.
// A failed model call or an unparseable completion yields an empty slice.
func (d *Deriver) Derive(ctx context.Context, question string) []string {
	prompt, err := d.Prompt(question)
	if err != nil {
		d.logger.Error("could not build topic prompt", zap.Error(err))
		return []string{}
	}

	raw, ok := failsoft.Do(d.logger, "topic generation failed", func() (string, error) {
		return d.generator.Generate(ctx, prompt)
	}, zap.String("question", question))
	if !ok {
		return []string{}
	}

	d.logger.Debug("model response", zap.String("question", question), zap.String("response", raw))
	if d.config.OnResponse != nil {
		d.config.OnResponse(question, raw)
	}

	topics, err := ParseTopics(raw)
	if err != nil {
		d.logger.Warn("unexpected response format", zap.String("response", raw), zap.Error(err))
		return []string{}
	}
	return topics
}
