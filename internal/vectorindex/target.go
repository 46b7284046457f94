package vectorindex

import (
	"context"

	"docqa/internal/indexer"
)

// Target stores a built index as a directory on the local filesystem.
type Target struct {
	Path     string
	Embedder indexer.Embedder
	Options  []Option
}

// Exists reports whether something is already present at Path.
func (t Target) Exists(ctx context.Context) (bool, error) {
	return Exists(t.Path)
}

// Write embeds chunks and persists the resulting index to Path.
// Nothing is written unless every chunk was embedded.
func (t Target) Write(ctx context.Context, chunks []indexer.Chunk) error {
	idx, err := Build(ctx, chunks, t.Embedder, t.Options...)
	if err != nil {
		return err
	}
	return idx.Persist(ctx, t.Path)
}
