// Package app wires configuration into the index backends shared by the
// API server and the indexctl CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"docqa/internal/config"
	"docqa/internal/corpus"
	"docqa/internal/indexer"
	"docqa/internal/llm"
	"docqa/internal/vectorindex"
	"docqa/internal/vectorstore"
)

// Retriever is the query side of an index backend.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]indexer.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// App holds the clients derived from one Config.
type App struct {
	Config   *config.Config
	Embedder *llm.EmbeddingsClient
	store    *vectorstore.QdrantStore
}

// New creates the embedding client and, for the qdrant backend, the Qdrant client.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Embedder: llm.NewEmbeddingsClient(
			cfg.EmbeddingBaseURL,
			cfg.LLMAPIKey,
			cfg.EmbeddingModelName,
			cfg.EmbeddingVectorSize,
			cfg.EmbeddingTimeout,
		),
	}

	if cfg.IndexBackend == config.BackendQdrant {
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.store = store
	}
	return a, nil
}

// Close releases the Qdrant connection, if any.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// NewLogger builds the process logger selected by LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// CheckEmbedder embeds a probe text so an unreachable or misconfigured
// embedding server fails startup instead of the first request.
func (a *App) CheckEmbedder(ctx context.Context) error {
	vecs, err := a.Embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != a.Config.EmbeddingVectorSize {
		return fmt.Errorf("embedding vector size mismatch: expected %d", a.Config.EmbeddingVectorSize)
	}
	return nil
}

// Target returns the build target of the configured backend.
func (a *App) Target() indexer.Target {
	opts := []vectorindex.Option{
		vectorindex.WithBatchSize(a.Config.EmbeddingBatchSize),
		vectorindex.WithEmbeddingModel(a.Config.EmbeddingModelName),
	}

	if a.store != nil {
		return vectorstore.CollectionTarget{
			Store:      a.store,
			Collection: a.Config.QdrantCollection,
			Embedder:   a.Embedder,
			VectorSize: a.Config.EmbeddingVectorSize,
			Options:    opts,
		}
	}
	return vectorindex.Target{
		Path:     a.Config.IndexPath,
		Embedder: a.Embedder,
		Options:  opts,
	}
}

// EnsureIndex builds the index from DOCS_PATH unless the target already exists.
func (a *App) EnsureIndex(ctx context.Context) (indexer.BuildStats, error) {
	splitter, err := indexer.NewRecursiveSplitter(
		indexer.WithChunkSize(a.Config.ChunkSize),
		indexer.WithChunkOverlap(a.Config.ChunkOverlap),
	)
	if err != nil {
		return indexer.BuildStats{}, err
	}

	builder := indexer.NewBuilder(splitter)
	return builder.EnsureIndex(ctx, a.Target(), corpus.NewSource(a.Config.DocsPath))
}

// OpenRetriever loads the local index or connects to the Qdrant collection.
func (a *App) OpenRetriever(ctx context.Context) (Retriever, error) {
	if a.store == nil {
		idx, err := vectorindex.Load(ctx, a.Config.IndexPath, a.Embedder)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}

	exists, err := a.store.CollectionExists(ctx, a.Config.QdrantCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("collection %s does not exist", a.Config.QdrantCollection)
	}
	return vectorstore.NewRetriever(a.store, a.Config.QdrantCollection, a.Embedder), nil
}
