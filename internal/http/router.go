package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docqa/internal/handlers"
	"docqa/internal/rag"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	RAGEngine rag.Engine
	Index     handlers.IndexCounter
	Backend   string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(CORS)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)

	r.Method(http.MethodPost, "/ask", handlers.NewAskHandler(deps.RAGEngine))
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Index, deps.Backend))

	return r
}
