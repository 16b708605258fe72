// Package pipeline answers a question with evidence: it derives topics, then
// fetches and extracts each topic's page.
package pipeline

import (
	"context"
	"sync"

	"github.com/ron-matt163/wiki-llm/internal/models"
	"github.com/ron-matt163/wiki-llm/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type TopicDeriver interface {
	Derive(ctx context.Context, question string) []string
}

type PageFetcher interface {
	FetchMarkup(ctx context.Context, title, lang string) (string, bool)
}

type ContentExtractor interface {
	Extract(markup string) models.Evidence
}

type PipelineConfig struct {
	Lang string
	// Workers bounds how many topics are fetched at once.
	Workers int
	// Sink, when set, receives every bundle. Its failures are logged only.
	Sink       types.Sink
	OnTopics   func(topics []string)
	// OnProgress is called once per topic, possibly from several goroutines at once.
	OnProgress func(topic string, found bool)
	Logger     *zap.Logger
}

type Pipeline struct {
	config    PipelineConfig
	deriver   TopicDeriver
	fetcher   PageFetcher
	extractor ContentExtractor
	logger    *zap.Logger
}

// Result maps each topic whose page could be fetched to its evidence. Topics
// without a page are listed in Topics but have no entry in Evidence.
type Result struct {
	Question string
	Topics   []string
	Evidence map[string]models.Evidence
}

// Found lists the topics that have evidence, in derivation order.
func (r Result) Found() []string {
	var found []string
	seen := make(map[string]bool)
	for _, t := range r.Topics {
		if _, ok := r.Evidence[t]; ok && !seen[t] {
			found = append(found, t)
			seen[t] = true
		}
	}
	return found
}

func NewWithConfig(deriver TopicDeriver, fetcher PageFetcher, extractor ContentExtractor, config PipelineConfig) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Lang == "" {
		config.Lang = "en"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:    config,
		deriver:   deriver,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
	}
}

// Run never fails on a per-topic basis. The only error it returns is the
// context's, when ctx ends before every topic was processed.
func (p *Pipeline) Run(ctx context.Context, question string) (Result, error) {
	topics := p.deriver.Derive(ctx, question)
	result := Result{
		Question: question,
		Topics:   topics,
		Evidence: make(map[string]models.Evidence),
	}
	p.logger.Info("derived topics", zap.String("question", question), zap.Strings("topics", topics))
	if p.config.OnTopics != nil {
		p.config.OnTopics(topics)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)

	for _, topic := range topics {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			ev, found := p.gather(gctx, topic)
			if found {
				mu.Lock()
				result.Evidence[topic] = ev
				mu.Unlock()
			}
			if p.config.OnProgress != nil {
				p.config.OnProgress(topic, found)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, ctx.Err()
}

func (p *Pipeline) gather(ctx context.Context, topic string) (models.Evidence, bool) {
	markup, ok := p.fetcher.FetchMarkup(ctx, topic, p.config.Lang)
	if !ok {
		p.logger.Info("no content retrieved", zap.String("topic", topic))
		return models.Evidence{}, false
	}

	ev := p.extractor.Extract(markup)
	p.logger.Debug("extracted evidence",
		zap.String("topic", topic),
		zap.Int("text_len", len(ev.Text)),
		zap.Int("tables", len(ev.Tables)))

	if p.config.Sink != nil {
		bundle := models.Bundle{Topic: topic, Lang: p.config.Lang, Evidence: ev}
		if err := p.config.Sink.Save(ctx, bundle); err != nil {
			p.logger.Warn("could not save evidence", zap.String("topic", topic), zap.Error(err))
		}
	}
	return ev, true
}
