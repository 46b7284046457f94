package storage

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ChunkRecord is one row of the chunks table.
// Position is the chunk's slot in the vector file and orders the table.
type ChunkRecord struct {
	Position   int
	ID         string // Same id as the vector entry (and Qdrant point)
	Source     string // Document path relative to the document root
	Title      string
	StartIndex int // Rune offset of Text in the source document
	Text       string
}
