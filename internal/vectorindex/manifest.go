package vectorindex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	manifestFile = "manifest.yaml"
	vectorsFile  = "vectors.bin"
	chunksFile   = "chunks.db"

	formatName    = "docqa-vector-index"
	formatVersion = 1
	metricDot     = "dot"
)

// Manifest describes a persisted index directory.
type Manifest struct {
	Format         string    `yaml:"format"`
	Version        int       `yaml:"version"`
	Dimension      int       `yaml:"dimension"`
	Count          int       `yaml:"count"`
	Metric         string    `yaml:"metric"`
	EmbeddingModel string    `yaml:"embedding_model,omitempty"`
	CreatedAt      time.Time `yaml:"created_at"`
}

// ChunksPath returns the location of the chunk database inside an index directory.
func ChunksPath(dir string) string { return filepath.Join(dir, chunksFile) }

func (m Manifest) validate() error {
	if m.Format != formatName {
		return fmt.Errorf("unknown index format %q", m.Format)
	}
	if m.Version != formatVersion {
		return fmt.Errorf("unsupported index version %d", m.Version)
	}
	if m.Metric != metricDot {
		return fmt.Errorf("unsupported metric %q", m.Metric)
	}
	if m.Count < 0 || m.Dimension < 0 {
		return fmt.Errorf("invalid manifest sizes: count %d, dimension %d", m.Count, m.Dimension)
	}
	return nil
}

func writeManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return writeFileSync(path, data)
}

func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}
