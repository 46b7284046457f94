package indexer

import (
	"context"

	"docqa/internal/contextutil"
	"docqa/internal/service"
)

// BuildStats summarises one EnsureIndex call.
type BuildStats struct {
	Existing  bool // Target was already present; nothing was built
	Documents int
	Chunks    int
	Skipped   int // Documents that produced no chunks
}

// Builder creates an index from a document source when none exists yet.
type Builder struct {
	splitter *RecursiveSplitter
}

// NewBuilder creates a builder that splits documents with splitter.
func NewBuilder(splitter *RecursiveSplitter) *Builder {
	return &Builder{splitter: splitter}
}

// EnsureIndex builds and writes an index to target unless target already exists.
// An existing target is trusted as is: its contents are not validated.
// On any failure a *service.BuildError is returned and target is left untouched.
func (b *Builder) EnsureIndex(ctx context.Context, target Target, source DocumentSource) (BuildStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := target.Exists(ctx)
	if err != nil {
		return BuildStats{}, &service.BuildError{Reason: "failed to check index target", Err: err}
	}
	if exists {
		logger.InfoContext(ctx, "index already exists, skipping build")
		return BuildStats{Existing: true}, nil
	}

	docs, err := source.Documents(ctx)
	if err != nil {
		return BuildStats{}, &service.BuildError{Reason: "failed to read documents", Err: err}
	}
	if len(docs) == 0 {
		return BuildStats{}, &service.BuildError{Reason: "no documents found"}
	}

	logger.InfoContext(ctx, "building index", "documents", len(docs))

	stats := BuildStats{Documents: len(docs)}
	var chunks []Chunk
	for _, doc := range docs {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return BuildStats{}, &service.BuildError{Reason: "build cancelled", Err: ctx.Err()}
		default:
		}

		before := len(chunks)
		for chunk := range b.splitter.Split(doc) {
			chunk.Position = len(chunks)
			chunks = append(chunks, chunk)
		}
		if len(chunks) == before {
			stats.Skipped++
			logger.WarnContext(ctx, "document produced no chunks", "source", doc.Source)
			continue
		}
		logger.DebugContext(ctx, "split document", "source", doc.Source, "chunks", len(chunks)-before)
	}

	if len(chunks) == 0 {
		return BuildStats{}, &service.BuildError{Reason: "documents produced no chunks"}
	}
	stats.Chunks = len(chunks)

	if err := target.Write(ctx, chunks); err != nil {
		return BuildStats{}, &service.BuildError{Reason: "failed to write index", Err: err}
	}

	logger.InfoContext(ctx, "index built", "documents", stats.Documents, "chunks", stats.Chunks, "skipped", stats.Skipped)
	return stats, nil
}
