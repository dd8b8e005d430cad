package web

import (
	"encoding/json"
	"net/http"

	"github.com/mosaicly/catalog/internal/logging"
)

// ErrorResponse is the JSON body for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError logs the error with request context and returns a JSON error
// body. The API is JSON-only, so no content negotiation happens here.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}
