package vectorindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"docqa/internal/contextutil"
	"docqa/internal/indexer"
	"docqa/internal/service"
	"docqa/internal/storage"
)

// Exists reports whether anything is present at path.
// It does not check that the directory holds a valid index.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// Persist writes the index to the directory at path.
// Files are written to a hidden sibling directory which is then renamed into
// place, so path holds either the previous index or the complete new one.
func (idx *Index) Persist(ctx context.Context, path string) error {
	logger := contextutil.LoggerFromContext(ctx)

	path = filepath.Clean(path)
	parent := filepath.Dir(path)
	base := filepath.Base(path)

	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create index parent directory: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+base+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := idx.writeVectors(filepath.Join(tmp, vectorsFile)); err != nil {
		return fmt.Errorf("failed to write vectors: %w", err)
	}
	if err := idx.writeChunks(ctx, filepath.Join(tmp, chunksFile)); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	// The manifest goes last: a staging directory without one is never valid.
	if err := writeManifest(filepath.Join(tmp, manifestFile), idx.manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := syncDir(tmp); err != nil {
		return fmt.Errorf("failed to sync staging directory: %w", err)
	}

	exists, err := Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("failed to move index into place: %w", err)
		}
	} else {
		old := filepath.Join(parent, "."+base+".old-"+uuid.NewString())
		if err := os.Rename(path, old); err != nil {
			return fmt.Errorf("failed to move previous index aside: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Rename(old, path)
			return fmt.Errorf("failed to move index into place: %w", err)
		}
		if err := os.RemoveAll(old); err != nil {
			logger.WarnContext(ctx, "failed to remove previous index", "path", old, "error", err)
		}
	}
	committed = true

	if err := syncDir(parent); err != nil {
		logger.WarnContext(ctx, "failed to sync index parent directory", "path", parent, "error", err)
	}

	logger.InfoContext(ctx, "persisted index", "path", path, "entries", len(idx.chunks), "dimension", idx.dim)
	return nil
}

func (idx *Index) writeVectors(path string) error {
	ids := make([]string, len(idx.chunks))
	for i, chunk := range idx.chunks {
		ids[i] = chunk.ID
	}

	var buf bytes.Buffer
	if err := encodeVectors(&buf, idx.dim, ids, idx.vectors); err != nil {
		return err
	}
	return writeFileSync(path, buf.Bytes())
}

func (idx *Index) writeChunks(ctx context.Context, path string) error {
	db, err := storage.New(path)
	if err != nil {
		return fmt.Errorf("failed to open chunk database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate chunk database: %w", err)
	}

	records := make([]storage.ChunkRecord, len(idx.chunks))
	for i, chunk := range idx.chunks {
		records[i] = storage.ChunkRecord{
			Position:   i,
			ID:         chunk.ID,
			Source:     chunk.Source,
			Title:      chunk.Title,
			StartIndex: chunk.StartIndex,
			Text:       chunk.Text,
		}
	}
	if err := storage.NewChunkRepo(db).InsertBatch(ctx, records); err != nil {
		return err
	}
	return db.Close()
}

// Load reads the index directory at path. Every failure is an *service.IndexLoadError.
// The embedder is used for later Search calls; its dimension is not checked here.
func Load(ctx context.Context, path string, embedder indexer.Embedder) (*Index, error) {
	loadErr := func(reason string, err error) error {
		return &service.IndexLoadError{Path: path, Reason: reason, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, loadErr("index not found", err)
	}
	if !info.IsDir() {
		return nil, loadErr("index path is not a directory", nil)
	}

	manifest, err := readManifest(filepath.Join(path, manifestFile))
	if err != nil {
		return nil, loadErr("failed to read manifest", err)
	}
	if err := manifest.validate(); err != nil {
		return nil, loadErr("invalid manifest", err)
	}

	data, err := os.ReadFile(filepath.Join(path, vectorsFile))
	if err != nil {
		return nil, loadErr("failed to read vectors", err)
	}
	dim, ids, vectors, err := decodeVectors(data)
	if err != nil {
		return nil, loadErr("failed to decode vectors", err)
	}
	if len(ids) != manifest.Count {
		return nil, loadErr(fmt.Sprintf("manifest lists %d entries, vector file has %d", manifest.Count, len(ids)), nil)
	}
	if len(ids) > 0 && dim != manifest.Dimension {
		return nil, loadErr(fmt.Sprintf("manifest dimension %d, vector file dimension %d", manifest.Dimension, dim), nil)
	}

	chunksPath := filepath.Join(path, chunksFile)
	if _, err := os.Stat(chunksPath); err != nil {
		return nil, loadErr("failed to read chunks", err)
	}
	db, err := storage.OpenReadOnly(chunksPath)
	if err != nil {
		return nil, loadErr("failed to open chunk database", err)
	}
	defer func() {
		_ = db.Close()
	}()

	records, err := storage.NewChunkRepo(db).List(ctx)
	if err != nil {
		return nil, loadErr("failed to read chunks", err)
	}
	if len(records) != len(ids) {
		return nil, loadErr(fmt.Sprintf("chunk database has %d rows, vector file has %d", len(records), len(ids)), nil)
	}

	chunks := make([]indexer.Chunk, len(records))
	for i, rec := range records {
		if rec.Position != i || rec.ID != ids[i] {
			return nil, loadErr(fmt.Sprintf("chunk row %d does not match vector entry %d", rec.Position, i), nil)
		}
		chunks[i] = indexer.Chunk{
			ID:         rec.ID,
			Source:     rec.Source,
			Title:      rec.Title,
			Text:       rec.Text,
			StartIndex: rec.StartIndex,
			Position:   rec.Position,
		}
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "loaded index", "path", path, "entries", len(chunks), "dimension", manifest.Dimension)

	return &Index{
		chunks:   chunks,
		vectors:  vectors,
		dim:      dim,
		embedder: embedder,
		manifest: manifest,
	}, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
	}()
	return d.Sync()
}
