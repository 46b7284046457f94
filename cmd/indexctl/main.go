package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/storage"
	"docqa/internal/vectorindex"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "indexctl",
		Short:        "Build and query the docqa vector index",
		Long:         "Builds the vector index from DOCS_PATH, searches it without calling the language model, and inspects its manifest and stored chunks. Configuration is read from the environment and .env, like the API server.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createSearchCommand())
	rootCmd.AddCommand(createInspectCommand())
	rootCmd.AddCommand(createShowCommand())

	return rootCmd
}

// setup loads configuration and routes logs to stderr so command output stays clean.
func setup(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(app.NewLogger(cfg, cmd.ErrOrStderr()))
	return app.New(cfg)
}

func createBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the index unless it already exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			if err := a.CheckEmbedder(ctx); err != nil {
				return err
			}

			start := time.Now()
			stats, err := a.EnsureIndex(ctx)
			if err != nil {
				return err
			}

			if stats.Existing {
				cmd.Println("Index already exists, nothing to do.")
				return nil
			}
			cmd.Printf("Indexed %d documents into %d chunks (%d skipped) in %s\n",
				stats.Documents, stats.Chunks, stats.Skipped, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func createSearchCommand() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the chunks most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if k <= 0 {
				k = a.Config.RetrievalK
			}

			ctx := cmd.Context()
			retriever, err := a.OpenRetriever(ctx)
			if err != nil {
				return err
			}
			results, err := retriever.Search(ctx, args[0], k)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if len(results) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for i, result := range results {
				cmd.Printf("[%d] %.4f %s (%s @%d)\n", i+1, result.Score, result.Chunk.Title, result.Chunk.Source, result.Chunk.StartIndex)
				cmd.Printf("    %s\n", preview(result.Chunk.Text, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of results (default RETRIEVAL_K)")
	return cmd
}

func createInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the index manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			if a.Config.IndexBackend == config.BackendQdrant {
				return inspectCollection(ctx, cmd, a)
			}

			idx, err := vectorindex.Load(ctx, a.Config.IndexPath, nil)
			if err != nil {
				return err
			}
			m := idx.Manifest()
			cmd.Printf("path:            %s\n", a.Config.IndexPath)
			cmd.Printf("format:          %s v%d\n", m.Format, m.Version)
			cmd.Printf("entries:         %d\n", m.Count)
			cmd.Printf("dimension:       %d\n", m.Dimension)
			cmd.Printf("metric:          %s\n", m.Metric)
			cmd.Printf("embedding model: %s\n", m.EmbeddingModel)
			cmd.Printf("created at:      %s\n", m.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func inspectCollection(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	retriever, err := a.OpenRetriever(ctx)
	if err != nil {
		return err
	}
	n, err := retriever.Count(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("collection:      %s\n", a.Config.QdrantCollection)
	cmd.Printf("entries:         %d\n", n)
	return nil
}

func createShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <chunk-id>",
		Short: "Print one stored chunk of the local index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if a.Config.IndexBackend != config.BackendLocal {
				return fmt.Errorf("show requires the %s backend", config.BackendLocal)
			}

			path := vectorindex.ChunksPath(a.Config.IndexPath)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("failed to open chunk database: %w", err)
			}
			db, err := storage.OpenReadOnly(path)
			if err != nil {
				return fmt.Errorf("failed to open chunk database: %w", err)
			}
			defer func() { _ = db.Close() }()

			return showChunk(cmd, storage.NewChunkRepo(db), args[0])
		},
	}
}

func showChunk(cmd *cobra.Command, chunks storage.ChunkStore, id string) error {
	ctx := cmd.Context()

	chunk, err := chunks.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("chunk %s not found", id)
	}
	if err != nil {
		return err
	}
	total, err := chunks.Count(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("id:       %s\n", chunk.ID)
	cmd.Printf("position: %d of %d\n", chunk.Position, total)
	cmd.Printf("source:   %s @%d\n", chunk.Source, chunk.StartIndex)
	cmd.Printf("title:    %s\n\n", chunk.Title)
	cmd.Println(chunk.Text)
	return nil
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
