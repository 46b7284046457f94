package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docqa/internal/contextutil"
	"docqa/internal/indexer"
)

// Source reads markdown documents from a directory tree.
// Hidden files and directories (names starting with ".") are skipped.
type Source struct {
	root   string
	titles *TitleExtractor
}

// NewSource creates a document source rooted at root.
func NewSource(root string) *Source {
	return &Source{
		root:   root,
		titles: NewTitleExtractor(),
	}
}

// Root returns the directory the source reads from.
func (s *Source) Root() string { return s.root }

// Documents walks the root directory and returns every visible .md file in
// lexical path order.
func (s *Source) Documents(ctx context.Context) ([]indexer.Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to access document root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", s.root)
	}

	var docs []indexer.Document
	err = filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path != s.root && isHidden(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		// Filter for markdown files
		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		// Normalize relative path (use forward slashes for consistency)
		relPath = filepath.ToSlash(relPath)

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}

		docs = append(docs, indexer.Document{
			Source:  relPath,
			Title:   s.titles.Title(content, relPath),
			Content: strings.ToValidUTF8(string(content), "\uFFFD"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	logger.DebugContext(ctx, "scanned document root", "root", s.root, "documents", len(docs))
	return docs, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
