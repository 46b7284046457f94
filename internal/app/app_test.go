package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docqa/internal/config"
	"docqa/internal/service"
	"docqa/internal/vectorindex"
	"docqa/internal/vectorstore"
)

// embeddingServer returns 2-d embeddings: texts mentioning "apt" point one way,
// everything else the other.
func embeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			vec := []float64{0.1, 1}
			if strings.Contains(strings.ToLower(text), "apt") {
				vec = []float64{1, 0.1}
			}
			data[i] = item{Index: i, Embedding: vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, embeddingURL string) *config.Config {
	t.Helper()
	docs := t.TempDir()
	files := map[string]string{
		"install.md": "# Install\n\nUse apt install docqa to install the package.",
		"network.md": "# Network\n\nEdit the netplan configuration file.",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(docs, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	return &config.Config{
		DocsPath:            docs,
		IndexPath:           filepath.Join(t.TempDir(), "index"),
		IndexBackend:        config.BackendLocal,
		EmbeddingBaseURL:    embeddingURL,
		EmbeddingModelName:  "test-model",
		EmbeddingVectorSize: 2,
		EmbeddingBatchSize:  1,
		EmbeddingTimeout:    5 * time.Second,
		ChunkSize:           1000,
		ChunkOverlap:        100,
		RetrievalK:          4,
	}
}

func TestApp_LocalBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, embeddingServer(t).URL)

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.CheckEmbedder(ctx); err != nil {
		t.Fatalf("CheckEmbedder() error = %v", err)
	}
	if _, ok := a.Target().(vectorindex.Target); !ok {
		t.Errorf("Target() = %T, want vectorindex.Target", a.Target())
	}

	stats, err := a.EnsureIndex(ctx)
	if err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if stats.Existing || stats.Documents != 2 || stats.Chunks != 2 {
		t.Errorf("EnsureIndex() stats = %+v", stats)
	}

	again, err := a.EnsureIndex(ctx)
	if err != nil || !again.Existing {
		t.Errorf("second EnsureIndex() = %+v, %v; want existing index", again, err)
	}

	retriever, err := a.OpenRetriever(ctx)
	if err != nil {
		t.Fatalf("OpenRetriever() error = %v", err)
	}
	results, err := retriever.Search(ctx, "how do I use apt?", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Source != "install.md" {
		t.Errorf("Search() = %+v, want install.md first", results)
	}
	if n, _ := retriever.Count(ctx); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestApp_OpenRetriever_MissingIndex(t *testing.T) {
	cfg := testConfig(t, embeddingServer(t).URL)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	retriever, err := a.OpenRetriever(context.Background())
	if !errors.Is(err, service.ErrIndexLoad) {
		t.Errorf("OpenRetriever() error = %v, want index load error", err)
	}
	if retriever != nil {
		t.Errorf("OpenRetriever() retriever = %v, want nil", retriever)
	}
}

func TestApp_CheckEmbedder_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	a, err := New(testConfig(t, server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.CheckEmbedder(context.Background()); err == nil {
		t.Error("CheckEmbedder() expected error, got nil")
	}
}

func TestApp_QdrantBackendTarget(t *testing.T) {
	cfg := testConfig(t, "http://localhost:0")
	cfg.IndexBackend = config.BackendQdrant
	cfg.QdrantURL = "http://localhost:6333"
	cfg.QdrantCollection = "docs"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	target, ok := a.Target().(vectorstore.CollectionTarget)
	if !ok {
		t.Fatalf("Target() = %T, want vectorstore.CollectionTarget", a.Target())
	}
	if target.Collection != "docs" || target.VectorSize != 2 {
		t.Errorf("Target() = %+v", target)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		level     slog.Level
		wantJSON  bool
		wantDebug bool
	}{
		{name: "text info", format: "text", level: slog.LevelInfo},
		{name: "json debug", format: "json", level: slog.LevelDebug, wantJSON: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&config.Config{LogFormat: tt.format, LogLevel: tt.level}, &buf)

			logger.Debug("debug line")
			logger.Info("info line", "key", "value")

			out := buf.String()
			if strings.Contains(out, "debug line") != tt.wantDebug {
				t.Errorf("debug output present = %v, want %v", !tt.wantDebug, tt.wantDebug)
			}
			if strings.HasPrefix(out, "{") != tt.wantJSON {
				t.Errorf("output %q, want JSON = %v", out, tt.wantJSON)
			}
		})
	}
}
