package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/llmgate/gateway/internal/handler"
	"github.com/llmgate/gateway/internal/middleware"
	"github.com/llmgate/gateway/internal/service"
)

// New builds the HTTP router for one listener: every workspace path is a
// POST endpoint. Unknown paths answer 404, known paths with any other method
// answer 406, both as {status, message} JSON.
func New(table *service.PathTable, orch *service.Orchestrator) http.Handler {
	chatH := handler.NewChatHandler(table, orch)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Trace)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	for _, path := range table.Paths() {
		r.Post(path, chatH.Chat)
	}

	return r
}
