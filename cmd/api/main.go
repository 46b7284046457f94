package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/http"
	"docqa/internal/llm"
	"docqa/internal/rag"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions from a directory of markdown documents using
// retrieval-augmented generation.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: docqa API
//   description: |
//     Question answering over a markdown document corpus. Documents are chunked,
//     embedded and indexed at startup; questions are answered from the most
//     similar chunks by a language model.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/x-www-form-urlencoded
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx := context.Background()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize backend: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()

	// Fail fast when the embedding server is unreachable or returns the wrong size
	if err := a.CheckEmbedder(ctx); err != nil {
		log.Fatalf("Embedding model unavailable: %v", err)
	}
	slog.Info("Embedding client validated", "model", cfg.EmbeddingModelName, "vector_size", cfg.EmbeddingVectorSize)

	stats, err := a.EnsureIndex(ctx)
	if err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	if !stats.Existing {
		slog.Info("Index built", "documents", stats.Documents, "chunks", stats.Chunks, "skipped", stats.Skipped)
	}

	retriever, err := a.OpenRetriever(ctx)
	if err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}
	entries, err := retriever.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to read index: %v", err)
	}
	slog.Info("Index loaded", "backend", cfg.IndexBackend, "entries", entries)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, cfg.LLMTimeout)

	ragEngine := rag.NewEngine(retriever, llmClient, cfg.RetrievalK)
	slog.Info("RAG engine initialized", "k", cfg.RetrievalK)

	router := http.NewRouter(&http.Deps{
		RAGEngine: ragEngine,
		Index:     retriever,
		Backend:   cfg.IndexBackend,
	})

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
