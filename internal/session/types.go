// Package session defines the in-memory session table: raw documents
// as loaded from the store, normalized rows with the nested
// sub-objects flattened into columns, and the filter applied to them.
package session

import (
	"sort"
	"time"
)

// Document is one session record as it comes out of the store. The
// three nested sub-objects are kept as loose maps; Normalize flattens
// them into typed columns with defaults.
type Document struct {
	ID              string
	StartTime       time.Time
	LastActivity    time.Time
	DeviceInfo      map[string]any
	SessionMetadata map[string]any
	SessionTags     map[string]any
}

// Row is one normalized session: the raw identity and timestamps plus
// the nine derived columns. Rows are immutable once built; filters
// produce new tables and never mutate the source.
type Row struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"startTime"`
	LastActivity time.Time `json:"lastActivity"`
	Device       string    `json:"device"`
	Browser      string    `json:"browser"`
	Source       string    `json:"source"`
	Sales        float64   `json:"sales"`
	PageViews    int       `json:"pageViews"`
	Duration     float64   `json:"duration"`
	SessionType  string    `json:"session_type"`
	Segment      string    `json:"segment"`
	Category     string    `json:"category"`
}

// StartDate returns the date portion of StartTime as YYYY-MM-DD in
// UTC. Rows with no parseable start time report year-1 dates, which
// fall outside any realistic filter range.
func (r Row) StartDate() string {
	return r.StartTime.UTC().Format("2006-01-02")
}

// Table is a normalized session table, one Row per session record.
type Table []Row

// timeLayouts are the timestamp formats seen in session documents.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a session timestamp string, returning the zero
// time when no known layout matches.
func ParseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Devices returns the distinct device values in the table, sorted.
func (t Table) Devices() []string {
	return t.distinct(func(r Row) string { return r.Device })
}

// SessionTypes returns the distinct session_type values, sorted.
func (t Table) SessionTypes() []string {
	return t.distinct(func(r Row) string { return r.SessionType })
}

// DateBounds returns the earliest and latest start dates in the
// table, or empty strings for an empty table. Rows without a start
// time are ignored.
func (t Table) DateBounds() (minDate, maxDate string) {
	for _, r := range t {
		if r.StartTime.IsZero() {
			continue
		}
		d := r.StartDate()
		if minDate == "" || d < minDate {
			minDate = d
		}
		if d > maxDate {
			maxDate = d
		}
	}
	return minDate, maxDate
}

func (t Table) distinct(key func(Row) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t {
		k := key(r)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
