package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"docqa/internal/contextutil"
	"docqa/internal/rag"
	"docqa/internal/service"
)

const (
	msgEmptyQuestion   = "Question cannot be empty."
	msgGenerationError = "Error generating response from the language model."
	msgInternalError   = "Internal Server Error."
)

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	ragEngine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(ragEngine rag.Engine) *AskHandler {
	return &AskHandler{ragEngine: ragEngine}
}

// AskResponse represents the HTTP response payload for RAG queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// The question as submitted
	Question string `json:"question"`

	// The generated answer, newlines escaped as \n
	Answer string `json:"answer"`

	// Chunks the answer was generated from, best match first
	References []ReferenceResponse `json:"references,omitempty"`
}

// ReferenceResponse represents a reference in the HTTP response.
//
// swagger:model ReferenceResponse
type ReferenceResponse struct {
	// Document path relative to the docs root
	Source string `json:"source"`

	// Document title
	Title string `json:"title"`

	// Character offset of the chunk inside the document
	StartIndex int `json:"start_index"`

	// Similarity score
	Score float32 `json:"score"`
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for RAG queries.
//
// swagger:route POST /ask askQuestion
//
// # Ask a question
//
// Answers a question from the indexed documents. The question is sent as
// the form field `question`.
//
// ---
// consumes:
// - application/x-www-form-urlencoded
// produces:
// - application/json
// parameters:
//   - in: formData
//     name: question
//     type: string
//     required: true
//
// responses:
//
//	'200':
//	  description: Answer with source references
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Empty question
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'500':
//	  description: Answer generation or internal failure
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "invalid form body", "error", err)
		writeError(w, http.StatusBadRequest, msgEmptyQuestion)
		return
	}
	question := r.PostForm.Get("question")

	ragResp, err := h.ragEngine.Ask(ctx, question)
	if err != nil {
		h.handleRAGError(ctx, w, err)
		return
	}

	references := make([]ReferenceResponse, len(ragResp.References))
	for i, ref := range ragResp.References {
		references[i] = ReferenceResponse{
			Source:     ref.Source,
			Title:      ref.Title,
			StartIndex: ref.StartIndex,
			Score:      ref.Score,
		}
	}

	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Question:   ragResp.Question,
		Answer:     ragResp.Answer,
		References: references,
	})
}

// handleRAGError maps RAG engine errors to HTTP status codes.
func (h *AskHandler) handleRAGError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		logger.WarnContext(ctx, "invalid question", "error", err)
		writeError(w, http.StatusBadRequest, msgEmptyQuestion)
	case errors.Is(err, service.ErrGeneration):
		logger.ErrorContext(ctx, "answer generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgGenerationError)
	default:
		logger.ErrorContext(ctx, "RAG engine error", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
