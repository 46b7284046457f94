package handlers

import (
	"context"
	"net/http"
	"time"

	"docqa/internal/contextutil"
)

// IndexCounter reports how many entries the serving index holds.
// Both the local vector index and the Qdrant retriever satisfy it.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	index              IndexCounter
	backend            string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(index IndexCounter, backend string) *HealthHandler {
	return &HealthHandler{
		index:              index,
		backend:            backend,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Index backend in use ("local" or "qdrant")
	Backend string `json:"backend"`

	// Number of entries in the index
	IndexEntries int `json:"index_entries"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /health healthCheck
//
// # Health check endpoint
//
// Reports whether the index can be queried and how many entries it holds.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: Index unavailable
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Backend:   h.backend,
	}
	httpStatus := http.StatusOK

	count, err := h.index.Count(checkCtx)
	if err != nil {
		logger.WarnContext(ctx, "index health check failed", "error", err)
		response.Status = "unhealthy"
		response.Issues = []string{"index_unavailable"}
		httpStatus = http.StatusServiceUnavailable
	} else {
		response.IndexEntries = count
	}

	writeJSON(ctx, w, httpStatus, response)
}
