package handler

import (
	"net/http"

	"github.com/llmgate/gateway/internal/apierr"
	"github.com/llmgate/gateway/internal/chat"
	"github.com/llmgate/gateway/internal/service"
)

// ChatHandler serves the workspace chat endpoints: it resolves the request
// path to a workspace and hands the conversation to the orchestrator.
type ChatHandler struct {
	table *service.PathTable
	orch  *service.Orchestrator
}

func NewChatHandler(table *service.PathTable, orch *service.Orchestrator) *ChatHandler {
	return &ChatHandler{table: table, orch: orch}
}

// POST /<workspace-path>
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.table.Lookup(r.URL.Path)
	if !ok {
		NotFound(w, r)
		return
	}

	var conv chat.Conversation
	if err := decodeBody(r, &conv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orch.Run(r.Context(), ws, &conv)
	if err != nil {
		apiErr := apierr.From(err)
		writeJSON(w, apiErr.Status, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
