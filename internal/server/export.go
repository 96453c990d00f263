package server

import (
	"net/http"

	"github.com/shopview/shopview/internal/session"
)

// handleExport streams the filtered table as a CSV attachment. The
// columns are exactly the table's fields, raw and normalized, with a
// header row.
func (s *Server) handleExport(
	w http.ResponseWriter, r *http.Request,
) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	f, ok := parseFilter(w, r, table)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set(
		"Content-Disposition", `attachment; filename="session_data.csv"`,
	)
	if err := session.WriteCSV(w, f.Apply(table)); err != nil {
		// Headers are already out; all we can do is log.
		s.log.Error().Err(err).Msg("writing csv export")
	}
}
