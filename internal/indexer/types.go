package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_indexer.go -package=mocks docqa/internal/indexer Embedder,DocumentSource,Target

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk ids so they never collide with other UUIDv5 users.
var chunkNamespace = uuid.MustParse("6f1c3c4e-5a0b-4f3e-9d8e-2b7a1c0d9e51")

// Document is one markdown file read from the document root.
type Document struct {
	Source  string // Path relative to the document root, forward slashes
	Title   string
	Content string
}

// Chunk represents a contiguous span of a document's text.
type Chunk struct {
	ID         string // Deterministic UUIDv5 of source, start index and text
	Source     string
	Title      string
	Text       string // Whitespace-trimmed chunk text
	StartIndex int    // Offset of Text in the document content, in runes
	Position   int    // Insertion order inside an index (starts at 0)
}

// SearchResult is a chunk paired with its similarity to a query.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Embedder turns texts into unit-norm vectors of a fixed dimension.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentSource yields the documents an index is built from.
type DocumentSource interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Target is where a built index is stored.
// Exists is a presence check only; Write must persist all chunks or nothing.
type Target interface {
	Exists(ctx context.Context) (bool, error)
	Write(ctx context.Context, chunks []Chunk) error
}

// ChunkID derives the stable id of a chunk.
func ChunkID(source string, startIndex int, text string) string {
	name := source + "\x00" + strconv.Itoa(startIndex) + "\x00" + text
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
