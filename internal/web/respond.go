package web

// respond.go centralizes response writing. API errors go out as a JSON
// envelope with a stable machine-readable code; the technical error is
// logged server-side with the request ID for correlation.

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/meridianhq/custflow/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message, code string) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", message,
		"code", code,
		"request_id", chimw.GetReqID(r.Context()),
	)
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
