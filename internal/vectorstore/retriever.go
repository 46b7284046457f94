package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"docqa/internal/indexer"
)

// Retriever searches a Qdrant collection written by CollectionTarget.
type Retriever struct {
	store      VectorStore
	collection string
	embedder   indexer.Embedder
}

// NewRetriever creates a retriever over collection.
func NewRetriever(store VectorStore, collection string, embedder indexer.Embedder) *Retriever {
	return &Retriever{
		store:      store,
		collection: collection,
		embedder:   embedder,
	}
}

// Search embeds query and returns the k most similar chunks.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]indexer.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: expected 1, got %d", len(vecs))
	}

	hits, err := r.store.Search(ctx, r.collection, vecs[0], k)
	if err != nil {
		return nil, err
	}

	results := make([]indexer.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, indexer.SearchResult{
			Chunk: chunkFromPayload(hit.PointID, hit.Meta),
			Score: hit.Score,
		})
	}
	// Qdrant does not order equal scores; fall back to insertion order like the local index.
	slices.SortStableFunc(results, func(a, b indexer.SearchResult) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.Chunk.Position, b.Chunk.Position))
	})
	return results, nil
}

// Count returns the number of points in the collection.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, r.collection)
}

func chunkFromPayload(id string, meta map[string]any) indexer.Chunk {
	return indexer.Chunk{
		ID:         id,
		Source:     stringValue(meta[payloadSource]),
		Title:      stringValue(meta[payloadTitle]),
		Text:       stringValue(meta[payloadText]),
		StartIndex: intValue(meta[payloadStartIndex]),
		Position:   intValue(meta[payloadPosition]),
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
