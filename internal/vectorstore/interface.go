package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks docqa/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k points closest to query, best first.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// CreateCollection creates a cosine-distance collection for vectors of the given size.
	CreateCollection(ctx context.Context, collection string, vectorSize int) error

	// DeleteCollection drops the collection and all its points.
	DeleteCollection(ctx context.Context, collection string) error

	// Count returns the exact number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
}
