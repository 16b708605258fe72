package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/ron-matt163/wiki-llm/pkg/extractor"
	"github.com/ron-matt163/wiki-llm/pkg/llm"
	"github.com/ron-matt163/wiki-llm/pkg/pipeline"
	"github.com/ron-matt163/wiki-llm/pkg/scraper"
	"github.com/ron-matt163/wiki-llm/pkg/store"
	"github.com/ron-matt163/wiki-llm/pkg/topics"
)

// app holds the components shared by the subcommands.
type app struct {
	deriver   *topics.Deriver
	scraper   *scraper.Scraper
	extractor *extractor.Extractor
	store     *store.VectorStore
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (o *rootOptions) newScraper() (*scraper.Scraper, error) {
	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		APIURL:     o.cfg.Wiki.APIURL,
		UserAgent:  o.cfg.Wiki.UserAgent,
		Timeout:    o.cfg.Wiki.Timeout,
		MaxRetries: o.cfg.Wiki.MaxRetries,
		Logger:     o.logger.Named("scraper"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}
	return s, nil
}

func (o *rootOptions) newDeriver() (*topics.Deriver, error) {
	gen, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    o.cfg.LLM.Provider,
		Model:       o.cfg.LLM.Model,
		Temperature: o.cfg.LLM.Temperature,
		MaxTokens:   o.cfg.LLM.MaxTokens,
		BaseURL:     o.cfg.LLM.BaseURL,
		APIKey:      o.cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	dc := topics.DeriverConfig{Logger: o.logger.Named("topics")}
	if o.showRaw {
		raw := color.New(color.FgMagenta)
		dc.OnResponse = func(question, response string) {
			raw.Fprintf(os.Stderr, "raw model response: %s\n", response)
		}
	}
	return topics.NewWithConfig(gen, dc), nil
}

// newApp wires the full pipeline. The evidence store is only opened when a
// database URL is configured.
func (o *rootOptions) newApp(ctx context.Context) (*app, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	deriver, err := o.newDeriver()
	if err != nil {
		return nil, err
	}
	s, err := o.newScraper()
	if err != nil {
		return nil, err
	}
	a := &app{
		deriver:   deriver,
		scraper:   s,
		extractor: extractor.NewWithConfig(extractor.ExtractorConfig{Logger: o.logger.Named("extractor")}),
	}

	if o.cfg.Store.URL != "" {
		ec := llm.EmbedderConfig{Model: o.cfg.Store.EmbedModel}
		if o.cfg.LLM.Provider == llm.ProviderOllama {
			ec.BaseURL = o.cfg.LLM.BaseURL
		}
		emb, err := llm.NewEmbedderWithConfig(ec)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString:   o.cfg.Store.URL,
			TableName:    o.cfg.Store.TableName,
			VectorDim:    o.cfg.Store.VectorDim,
			ChunkSize:    o.cfg.Store.ChunkSize,
			ChunkOverlap: chunkOverlap(o.cfg.Store.ChunkOverlap),
		}, emb)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		a.store = vs
	}
	return a, nil
}

// chunkOverlap maps a configured overlap of 0 to the processor's "no overlap" value.
func chunkOverlap(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

func (o *rootOptions) pipelineConfig(a *app, lang string) pipeline.PipelineConfig {
	pc := pipeline.PipelineConfig{
		Lang:    lang,
		Workers: o.cfg.Pipeline.Workers,
		Logger:  o.logger.Named("pipeline"),
	}
	if a.store != nil {
		pc.Sink = a.store
	}
	return pc
}
