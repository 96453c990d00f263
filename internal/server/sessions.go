package server

import "net/http"

func (s *Server) handleListSessions(
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

	rows := f.Apply(table)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": rows,
		"count":    len(rows),
	})
}

// handleFilterOptions returns the selector options a UI needs: the
// distinct devices and session types, and the table's date extent.
func (s *Server) handleFilterOptions(
	w http.ResponseWriter, r *http.Request,
) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	minDate, maxDate := table.DateBounds()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":       orEmpty(table.Devices()),
		"session_types": orEmpty(table.SessionTypes()),
		"date_from":     minDate,
		"date_to":       maxDate,
	})
}

// orEmpty keeps empty option lists as [] rather than null in JSON.
func orEmpty(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}
