package vectorindex

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/viant/vec/search"

	"docqa/internal/indexer"
)

const (
	defaultBatchSize = 32
	normTolerance    = 1e-3
)

// Index is an in-memory, write-once vector index over document chunks.
// Entry i pairs chunk i with vector i, in insertion order.
//
// Similarity is the plain inner product. That equals cosine similarity only
// because every stored vector is checked to be unit length and queries come
// from the same normalising embedder; Build and FromVectors reject anything else.
type Index struct {
	chunks   []indexer.Chunk
	vectors  [][]float32
	dim      int
	embedder indexer.Embedder
	manifest Manifest
}

type options struct {
	batchSize int
	model     string
}

// Option configures Build and FromVectors.
type Option func(*options)

// WithBatchSize sets how many chunk texts are sent to the embedder per call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithEmbeddingModel records the embedding model name in the manifest.
func WithEmbeddingModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

func newOptions(opts []Option) options {
	o := options{batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Build embeds every chunk text and returns the resulting index.
// Chunk positions are reassigned to match their slot in the index.
func Build(ctx context.Context, chunks []indexer.Chunk, embedder indexer.Embedder, opts ...Option) (*Index, error) {
	o := newOptions(opts)

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += o.batchSize {
		end := min(start+o.batchSize, len(chunks))

		texts := make([]string, end-start)
		for i, chunk := range chunks[start:end] {
			texts[i] = chunk.Text
		}

		batch, err := embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(batch))
		}
		vectors = append(vectors, batch...)
	}

	return FromVectors(chunks, vectors, embedder, opts...)
}

// FromVectors builds an index from chunks whose vectors are already known.
func FromVectors(chunks []indexer.Chunk, vectors [][]float32, embedder indexer.Embedder, opts ...Option) (*Index, error) {
	o := newOptions(opts)

	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return nil, fmt.Errorf("vectors must not be empty")
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("inconsistent vector dims %d vs %d at entry %d", len(v), dim, i)
		}
		if err := checkUnitNorm(v); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	stored := make([]indexer.Chunk, len(chunks))
	copy(stored, chunks)
	for i := range stored {
		stored[i].Position = i
	}

	return &Index{
		chunks:   stored,
		vectors:  append([][]float32(nil), vectors...),
		dim:      dim,
		embedder: embedder,
		manifest: Manifest{
			Format:         formatName,
			Version:        formatVersion,
			Dimension:      dim,
			Count:          len(stored),
			Metric:         metricDot,
			EmbeddingModel: o.model,
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
		},
	}, nil
}

func checkUnitNorm(v []float32) error {
	norm := search.Float32s(v).Magnitude()
	if math.Abs(float64(norm)-1) > normTolerance {
		return fmt.Errorf("vector is not unit length (norm %.4f)", norm)
	}
	return nil
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.chunks) }

// Count reports Len; it lets health checks treat local and remote stores alike.
func (idx *Index) Count(context.Context) (int, error) { return len(idx.chunks), nil }

// Dimension returns the vector dimension, or 0 for an empty index.
func (idx *Index) Dimension() int { return idx.dim }

// Manifest returns the metadata written alongside the index.
func (idx *Index) Manifest() Manifest { return idx.manifest }

// Chunks returns the indexed chunks in insertion order.
func (idx *Index) Chunks() []indexer.Chunk {
	return append([]indexer.Chunk(nil), idx.chunks...)
}

// Vector returns the stored vector of entry i.
func (idx *Index) Vector(i int) []float32 { return idx.vectors[i] }

// Search embeds query and returns its k most similar chunks.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]indexer.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(idx.chunks) == 0 {
		return []indexer.SearchResult{}, nil
	}
	if idx.embedder == nil {
		return nil, fmt.Errorf("index has no embedder")
	}

	vecs, err := idx.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: expected 1, got %d", len(vecs))
	}

	return idx.SearchVector(vecs[0], k)
}

// SearchVector returns the k entries with the highest inner product with vec,
// best first. Equal scores keep insertion order. Fewer than k results are
// returned only when the index holds fewer than k entries.
func (idx *Index) SearchVector(vec []float32, k int) ([]indexer.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(idx.chunks) == 0 {
		return []indexer.SearchResult{}, nil
	}
	if len(vec) != idx.dim {
		return nil, fmt.Errorf("query dim %d != index dim %d", len(vec), idx.dim)
	}

	type scored struct {
		idx   int
		score float32
	}
	scores := make([]scored, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = scored{idx: i, score: dot(vec, v)}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(scores))
	results := make([]indexer.SearchResult, k)
	for i := range k {
		results[i] = indexer.SearchResult{
			Chunk: idx.chunks[scores[i].idx],
			Score: scores[i].score,
		}
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s)
}
