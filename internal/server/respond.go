package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/insightduck/insightduck/internal/auth"
	"github.com/insightduck/insightduck/internal/projects"
	"github.com/insightduck/insightduck/internal/secrets"
	"github.com/insightduck/insightduck/internal/store"
)

// badRequestError marks client mistakes that map to 400.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequestError{msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var badReq *badRequestError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, projects.ErrProjectNotFound), store.NotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &badReq), errors.Is(err, projects.ErrNoCredentials):
		status = http.StatusBadRequest
	case errors.Is(err, secrets.ErrDecrypt):
		// Stored credentials exist but cannot be opened; re-saving them
		// is the only fix, so tell the caller which case this is.
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
