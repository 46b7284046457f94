package vectorindex

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"docqa/internal/service"
	"docqa/internal/storage"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	chunks := testChunks(
		"Install packages with apt.",
		"Configure the network with netplan.",
		"Check disk usage with df.",
		"Add a user with adduser.",
		"Ünïcode text about the network and apt.",
	)
	idx, err := Build(context.Background(), chunks, keywordEmbedder{}, WithEmbeddingModel("keywords"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := buildTestIndex(t)
	path := filepath.Join(t.TempDir(), "data", "index")

	if err := idx.Persist(ctx, path); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	for _, name := range []string{manifestFile, vectorsFile, chunksFile} {
		if _, err := os.Stat(filepath.Join(path, name)); err != nil {
			t.Errorf("Persist() did not write %s: %v", name, err)
		}
	}

	loaded, err := Load(ctx, path, keywordEmbedder{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(loaded.Chunks(), idx.Chunks()) {
		t.Errorf("Load() chunks differ:\n got %+v\nwant %+v", loaded.Chunks(), idx.Chunks())
	}
	if loaded.Dimension() != idx.Dimension() {
		t.Errorf("Load() Dimension() = %d, want %d", loaded.Dimension(), idx.Dimension())
	}
	gotManifest, wantManifest := loaded.Manifest(), idx.Manifest()
	if !gotManifest.CreatedAt.Equal(wantManifest.CreatedAt) {
		t.Errorf("Load() CreatedAt = %v, want %v", gotManifest.CreatedAt, wantManifest.CreatedAt)
	}
	gotManifest.CreatedAt, wantManifest.CreatedAt = wantManifest.CreatedAt, wantManifest.CreatedAt
	if gotManifest != wantManifest {
		t.Errorf("Load() Manifest() = %+v, want %+v", gotManifest, wantManifest)
	}

	for _, query := range []string{"network", "apt", "disk space", "new user"} {
		want, err := idx.Search(ctx, query, 3)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		got, err := loaded.Search(ctx, query, 3)
		if err != nil {
			t.Fatalf("loaded Search() error = %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Search(%q) after Load() = %+v, want %+v", query, got, want)
		}
	}
}

func TestPersistLoad_SpecialCharacterPaths(t *testing.T) {
	ctx := context.Background()
	idx := buildTestIndex(t)

	for _, name := range []string{"idx?x", "idx#1", "idx%41", "idx with space"} {
		t.Run(name, func(t *testing.T) {
			parent := t.TempDir()
			path := filepath.Join(parent, name)

			if err := idx.Persist(ctx, path); err != nil {
				t.Fatalf("Persist() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(path, chunksFile)); err != nil {
				t.Errorf("Persist() did not write %s inside %q: %v", chunksFile, name, err)
			}

			entries, err := os.ReadDir(parent)
			if err != nil {
				t.Fatalf("ReadDir() error = %v", err)
			}
			if len(entries) != 1 || entries[0].Name() != name {
				var names []string
				for _, e := range entries {
					names = append(names, e.Name())
				}
				t.Errorf("parent directory holds %v, want only %q", names, name)
			}

			loaded, err := Load(ctx, path, keywordEmbedder{})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(loaded.Chunks(), idx.Chunks()) {
				t.Errorf("Load() chunks differ:\n got %+v\nwant %+v", loaded.Chunks(), idx.Chunks())
			}
		})
	}
}

func TestPersistLoad_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := FromVectors(nil, nil, keywordEmbedder{})
	if err != nil {
		t.Fatalf("FromVectors() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "index")
	if err := idx.Persist(ctx, path); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	loaded, err := Load(ctx, path, keywordEmbedder{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 0 {
		t.Errorf("Load() Len() = %d, want 0", loaded.Len())
	}
}

func TestPersist_Idempotent(t *testing.T) {
	ctx := context.Background()
	idx := buildTestIndex(t)
	parent := t.TempDir()
	path := filepath.Join(parent, "index")

	if err := idx.Persist(ctx, path); err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}
	firstVectors, _ := os.ReadFile(filepath.Join(path, vectorsFile))
	firstManifest, _ := os.ReadFile(filepath.Join(path, manifestFile))

	if err := idx.Persist(ctx, path); err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}
	secondVectors, _ := os.ReadFile(filepath.Join(path, vectorsFile))
	secondManifest, _ := os.ReadFile(filepath.Join(path, manifestFile))

	if !bytes.Equal(firstVectors, secondVectors) {
		t.Error("Persist() twice produced different vector files")
	}
	if !bytes.Equal(firstManifest, secondManifest) {
		t.Error("Persist() twice produced different manifests")
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "index" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("Persist() left extra entries in parent: %v", names)
	}

	if _, err := Load(ctx, path, keywordEmbedder{}); err != nil {
		t.Errorf("Load() after second Persist() error = %v", err)
	}
}

func TestPersist_FailureLeavesNoTarget(t *testing.T) {
	ctx := context.Background()
	idx := buildTestIndex(t)

	parentFile := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(parentFile, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	if err := idx.Persist(ctx, filepath.Join(parentFile, "index")); err == nil {
		t.Fatal("Persist() under a regular file should fail")
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		corrupt func(t *testing.T, path string)
	}{
		{
			name: "missing directory",
			corrupt: func(t *testing.T, path string) {
				if err := os.RemoveAll(path); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "path is a file",
			corrupt: func(t *testing.T, path string) {
				if err := os.RemoveAll(path); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "missing manifest",
			corrupt: func(t *testing.T, path string) {
				removeFile(t, filepath.Join(path, manifestFile))
			},
		},
		{
			name: "unknown version",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, manifestFile), func(data []byte) []byte {
					return []byte(strings.Replace(string(data), "version: 1\n", "version: 99\n", 1))
				})
			},
		},
		{
			name: "unknown format",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, manifestFile), func(data []byte) []byte {
					return []byte(strings.Replace(string(data), formatName, "faiss", 1))
				})
			},
		},
		{
			name: "malformed manifest",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, manifestFile), func([]byte) []byte {
					return []byte("format: [unclosed")
				})
			},
		},
		{
			name: "missing vectors",
			corrupt: func(t *testing.T, path string) {
				removeFile(t, filepath.Join(path, vectorsFile))
			},
		},
		{
			name: "flipped vector byte",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, vectorsFile), func(data []byte) []byte {
					data[len(data)/2] ^= 0xff
					return data
				})
			},
		},
		{
			name: "truncated vectors",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, vectorsFile), func(data []byte) []byte {
					return data[:len(data)-37]
				})
			},
		},
		{
			name: "tiny vector file",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, vectorsFile), func([]byte) []byte {
					return []byte("DQVX")
				})
			},
		},
		{
			name: "count disagrees with manifest",
			corrupt: func(t *testing.T, path string) {
				rewriteFile(t, filepath.Join(path, manifestFile), func(data []byte) []byte {
					return []byte(strings.Replace(string(data), "count: 5\n", "count: 4\n", 1))
				})
			},
		},
		{
			name: "missing chunk database",
			corrupt: func(t *testing.T, path string) {
				removeFile(t, filepath.Join(path, chunksFile))
			},
		},
		{
			name: "chunk ids misaligned",
			corrupt: func(t *testing.T, path string) {
				execChunks(t, path, "UPDATE chunks SET id = 'other' WHERE position = 2")
			},
		},
		{
			name: "chunk row missing",
			corrupt: func(t *testing.T, path string) {
				execChunks(t, path, "DELETE FROM chunks WHERE position = 4")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index")
			if err := buildTestIndex(t).Persist(ctx, path); err != nil {
				t.Fatalf("Persist() error = %v", err)
			}
			tt.corrupt(t, path)

			_, err := Load(ctx, path, keywordEmbedder{})
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			var loadErr *service.IndexLoadError
			if !errors.As(err, &loadErr) {
				t.Errorf("Load() error type = %T, want *service.IndexLoadError", err)
			}
			if !errors.Is(err, service.ErrIndexLoad) {
				t.Errorf("Load() error should match service.ErrIndexLoad")
			}
		})
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()

	exists, err := Exists(filepath.Join(dir, "missing"))
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", exists, err)
	}

	exists, err = Exists(dir)
	if err != nil || !exists {
		t.Errorf("Exists(dir) = %v, %v; want true, nil", exists, err)
	}
}

func TestTarget(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")
	target := Target{Path: path, Embedder: keywordEmbedder{}, Options: []Option{WithBatchSize(2)}}

	exists, err := target.Exists(ctx)
	if err != nil || exists {
		t.Fatalf("Exists() = %v, %v; want false, nil", exists, err)
	}

	if err := target.Write(ctx, testChunks("apt", "network", "disk")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	exists, err = target.Exists(ctx)
	if err != nil || !exists {
		t.Fatalf("Exists() after Write() = %v, %v; want true, nil", exists, err)
	}

	idx, err := Load(ctx, path, keywordEmbedder{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
}

func TestTarget_WriteFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")
	target := Target{Path: path, Embedder: failingEmbedder{}}

	if err := target.Write(ctx, testChunks("apt")); err == nil {
		t.Fatal("Write() expected error, got nil")
	}
	if exists, _ := Exists(path); exists {
		t.Error("Write() failure should not create the index directory")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Errorf("Write() failure left %d entries behind", len(entries))
	}
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding server down")
}

func removeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove %s: %v", path, err)
	}
}

func rewriteFile(t *testing.T, path string, fn func([]byte) []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	if err := os.WriteFile(path, fn(data), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func execChunks(t *testing.T, path, stmt string) {
	t.Helper()
	db, err := storage.New(filepath.Join(path, chunksFile))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("Exec(%q) error = %v", stmt, err)
	}
}
