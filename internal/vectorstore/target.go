package vectorstore

import (
	"context"
	"fmt"

	"docqa/internal/contextutil"
	"docqa/internal/indexer"
	"docqa/internal/vectorindex"
)

// Payload keys stored with every point.
const (
	payloadSource     = "source"
	payloadTitle      = "title"
	payloadText       = "text"
	payloadStartIndex = "start_index"
	payloadPosition   = "position"
)

// CollectionTarget stores a built index as a Qdrant collection.
// The collection is created by Write; an existing collection counts as a built index.
type CollectionTarget struct {
	Store      VectorStore
	Collection string
	Embedder   indexer.Embedder
	VectorSize int // Expected embedding size; 0 accepts whatever the embedder returns
	Options    []vectorindex.Option
}

// Exists reports whether the collection is present.
func (t CollectionTarget) Exists(ctx context.Context) (bool, error) {
	return t.Store.CollectionExists(ctx, t.Collection)
}

// Write embeds chunks, creates the collection and uploads every point.
// If the upload fails the collection is dropped again.
func (t CollectionTarget) Write(ctx context.Context, chunks []indexer.Chunk) error {
	logger := contextutil.LoggerFromContext(ctx)

	idx, err := vectorindex.Build(ctx, chunks, t.Embedder, t.Options...)
	if err != nil {
		return err
	}
	if t.VectorSize > 0 && idx.Dimension() != t.VectorSize {
		return fmt.Errorf("embedding size mismatch: expected %d, got %d", t.VectorSize, idx.Dimension())
	}

	points := make([]Point, idx.Len())
	for i, chunk := range idx.Chunks() {
		points[i] = Point{
			ID:  chunk.ID,
			Vec: idx.Vector(i),
			Meta: map[string]any{
				payloadSource:     chunk.Source,
				payloadTitle:      chunk.Title,
				payloadText:       chunk.Text,
				payloadStartIndex: chunk.StartIndex,
				payloadPosition:   chunk.Position,
			},
		}
	}

	if err := t.Store.CreateCollection(ctx, t.Collection, idx.Dimension()); err != nil {
		return err
	}
	if err := t.Store.Upsert(ctx, t.Collection, points); err != nil {
		if delErr := t.Store.DeleteCollection(ctx, t.Collection); delErr != nil {
			logger.ErrorContext(ctx, "failed to remove partial collection", "collection", t.Collection, "error", delErr)
		}
		return err
	}
	return nil
}
