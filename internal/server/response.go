package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/shopview/shopview/internal/session"
	"github.com/shopview/shopview/internal/store"
)

// writeJSON writes v as JSON with the given HTTP status code.
// Logs a warning if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("writeJSON: encoding response")
	}
}

// writeError writes a JSON error response with the given status
// and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleContextError detects context.Canceled and
// context.DeadlineExceeded errors, returning true so the caller stops
// processing. It does NOT write an HTTP response — the withTimeout
// middleware handles that via http.TimeoutHandler (503). Writing here
// would race with the middleware's buffered response.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// errorPanel is the all-or-nothing failure response: when the store
// cannot be read, the whole render degrades to this single panel.
type errorPanel struct {
	Error       string `json:"error"`
	Remediation string `json:"remediation,omitempty"`
}

// loadTable fetches the cached session table, writing the error panel
// on failure. Returns false if the response has already been written.
func (s *Server) loadTable(
	w http.ResponseWriter, r *http.Request,
) (session.Table, bool) {
	table, err := s.cache.Get(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return nil, false
		}
		s.log.Error().Err(err).Msg("loading session table")
		writeJSON(w, http.StatusServiceUnavailable, errorPanel{
			Error:       err.Error(),
			Remediation: store.Remediation(err),
		})
		return nil, false
	}
	return table, true
}
