package handler

import (
	"encoding/json"
	"net/http"

	"github.com/llmgate/gateway/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apierr.New(status, "%s", message))
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// NotFound replies 404 for paths no workspace is bound to.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Path not found")
}

// MethodNotAllowed replies 406 for non-POST requests on a known path.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotAcceptable, "Method not allowed")
}
