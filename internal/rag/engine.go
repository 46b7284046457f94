package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks docqa/internal/rag Engine,Retriever,AnswerGenerator

import (
	"context"
	"strings"

	"docqa/internal/contextutil"
	"docqa/internal/indexer"
	"docqa/internal/service"
)

// Engine provides RAG (Retrieval-Augmented Generation) functionality.
type Engine interface {
	// Ask answers a question by retrieving relevant chunks and generating an answer from them.
	Ask(ctx context.Context, question string) (AskResponse, error)
}

// Retriever returns the chunks most similar to a query, best first.
// Both the local vector index and the Qdrant retriever satisfy it.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]indexer.SearchResult, error)
}

// AnswerGenerator produces an answer to question from the given context passages.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, contexts []string) (string, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever Retriever
	generator AnswerGenerator
	k         int
}

// NewEngine creates a new RAG engine that retrieves k chunks per question.
// A non-positive k falls back to DefaultK.
func NewEngine(retriever Retriever, generator AnswerGenerator, k int) Engine {
	if k <= 0 {
		k = DefaultK
	}
	return &ragEngine{
		retriever: retriever,
		generator: generator,
		k:         k,
	}
}

// Ask answers a question using RAG.
func (e *ragEngine) Ask(ctx context.Context, question string) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(question) == "" {
		return AskResponse{}, &service.ValidationError{Field: "question", Message: "question cannot be empty"}
	}

	logger.InfoContext(ctx, "RAG query started", "question_length", len(question), "k", e.k)

	results, err := e.retriever.Search(ctx, question, e.k)
	if err != nil {
		logger.ErrorContext(ctx, "failed to retrieve chunks", "error", err)
		return AskResponse{}, &service.RetrievalError{Err: err}
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return AskResponse{
			Question:   question,
			Answer:     NoResultsAnswer,
			References: []Reference{},
		}, nil
	}

	contexts := make([]string, 0, len(results))
	references := make([]Reference, 0, len(results))
	for i, result := range results {
		contexts = append(contexts, result.Chunk.Text)
		references = append(references, Reference{
			Source:     result.Chunk.Source,
			Title:      result.Chunk.Title,
			StartIndex: result.Chunk.StartIndex,
			Score:      result.Score,
		})
		logger.DebugContext(ctx, "retrieved chunk",
			"rank", i+1,
			"score", result.Score,
			"source", result.Chunk.Source,
			"start_index", result.Chunk.StartIndex,
		)
	}

	answer, err := e.generator.Generate(ctx, question, contexts)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		return AskResponse{}, &service.GenerationError{Err: err}
	}

	logger.InfoContext(ctx, "RAG query completed", "chunks_used", len(results), "answer_length", len(answer))

	return AskResponse{
		Question:   question,
		Answer:     escapeNewlines(answer),
		References: references,
	}, nil
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}
