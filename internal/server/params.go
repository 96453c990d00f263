package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopview/shopview/internal/session"
)

// isValidDate checks that s is a well-formed YYYY-MM-DD string.
func isValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// parseFilter extracts the filter params from a request, defaulting
// to the table's full extent the way the dashboard UI defaults to
// everything selected. A from date after the to date is not an
// error: the filter simply matches nothing.
func parseFilter(
	w http.ResponseWriter, r *http.Request, table session.Table,
) (session.Filter, bool) {
	q := r.URL.Query()

	from := q.Get("from")
	to := q.Get("to")
	for _, d := range []string{from, to} {
		if d != "" && !isValidDate(d) {
			writeError(w, http.StatusBadRequest,
				"invalid date format: use YYYY-MM-DD")
			return session.Filter{}, false
		}
	}

	minDate, maxDate := table.DateBounds()
	if from == "" {
		from = minDate
	}
	if to == "" {
		to = maxDate
	}

	return session.Filter{
		From:         from,
		To:           to,
		Devices:      listParam(q, "devices", table.Devices()),
		SessionTypes: listParam(q, "types", table.SessionTypes()),
	}, true
}

// listParam splits a comma-separated query param into values. An
// absent param means no restriction and yields the fallback; a
// present-but-empty param is an explicit empty set, which matches
// nothing.
func listParam(
	q url.Values, key string, fallback []string,
) []string {
	if !q.Has(key) {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(q.Get(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
