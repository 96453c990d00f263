package session

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Columns is the CSV export column order: identity and timestamps
// first, then the nine derived fields.
var Columns = []string{
	"id", "startTime", "lastActivity",
	"device", "browser", "source",
	"sales", "pageViews", "duration",
	"session_type", "segment", "category",
}

// WriteCSV writes the table as CSV with a header row, one record per
// session.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range t {
		rec := []string{
			r.ID,
			formatTimestamp(r.StartTime),
			formatTimestamp(r.LastActivity),
			r.Device,
			r.Browser,
			r.Source,
			formatNumber(r.Sales),
			strconv.Itoa(r.PageViews),
			formatNumber(r.Duration),
			r.SessionType,
			r.Segment,
			r.Category,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
