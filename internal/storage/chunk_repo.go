package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// InsertBatch inserts chunks in a single transaction; either all rows are written or none.
	InsertBatch(ctx context.Context, chunks []ChunkRecord) error
	// List returns every chunk ordered by position.
	List(ctx context.Context) ([]ChunkRecord, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch inserts chunks in a single transaction.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []ChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (position, id, source, title, start_index, text) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			chunk.Position, chunk.ID, chunk.Source, chunk.Title, chunk.StartIndex, chunk.Text,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// List returns every chunk ordered by position.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) List(ctx context.Context) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT position, id, source, title, start_index, text FROM chunks ORDER BY position",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := []ChunkRecord{}
	for rows.Next() {
		var chunk ChunkRecord
		var title sql.NullString
		if err := rows.Scan(&chunk.Position, &chunk.ID, &chunk.Source, &title, &chunk.StartIndex, &chunk.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Title = title.String
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// Count returns the number of stored chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	var title sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT position, id, source, title, start_index, text FROM chunks WHERE id = ?",
		id,
	).Scan(&chunk.Position, &chunk.ID, &chunk.Source, &title, &chunk.StartIndex, &chunk.Text)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}
	chunk.Title = title.String

	return &chunk, nil
}
