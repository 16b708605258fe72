package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/ron-matt163/wiki-llm/internal/models"
	"github.com/ron-matt163/wiki-llm/internal/types"
	"github.com/ron-matt163/wiki-llm/pkg/processor"
)

type VectorStoreConfig struct {
	ConnString   string
	TableName    string
	VectorDim    int
	ChunkSize    int
	ChunkOverlap int // negative disables overlap
}

// VectorStore keeps extracted evidence as embedded chunks in PostgreSQL.
// It implements types.Sink.
type VectorStore struct {
	config    VectorStoreConfig
	pool      *pgxpool.Pool
	embedder  types.Embedder
	processor processor.Processor
	table     string
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "evidence"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := newVectorStore(config, pool, embedder)
	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func newVectorStore(config VectorStoreConfig, pool *pgxpool.Pool, embedder types.Embedder) *VectorStore {
	return &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
		processor: processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:    config.ChunkSize,
			ChunkOverlap: config.ChunkOverlap,
		}),
		table: pgx.Identifier{config.TableName}.Sanitize(),
	}
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = vs.pool.Exec(ctx, vs.createTableSQL())
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	index := pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize()
	_, err = vs.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, index, vs.table))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *VectorStore) createTableSQL() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			topic TEXT NOT NULL,
			lang TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.table, vs.config.VectorDim)
}

// Chunks cuts the bundle's evidence into chunks ready to embed.
func (vs *VectorStore) Chunks(bundle models.Bundle) []models.Chunk {
	texts := vs.processor.Process(bundle.Evidence)
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, models.Chunk{Index: i, Content: sanitizeUTF8(text)})
	}
	return chunks
}

// Save embeds and stores every chunk of the bundle in one transaction.
func (vs *VectorStore) Save(ctx context.Context, bundle models.Bundle) error {
	chunks := vs.Chunks(bundle)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := vs.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, topic, lang, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`, vs.table)

	for i, c := range chunks {
		_, err = tx.Exec(ctx, stmt,
			uuid.New().String(),
			sanitizeUTF8(bundle.Topic),
			bundle.Lang,
			c.Index,
			c.Content,
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d of %q: %w", c.Index, bundle.Topic, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
