package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopview/shopview/internal/metrics"
	"github.com/shopview/shopview/internal/session"
)

// Metric is one scalar summary with a display-ready rendering.
type Metric struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

// Chart is a chart-library-agnostic widget spec.
type Chart struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Kind   string          `json:"kind"` // pie, bar, line
	Points []metrics.Point `json:"points"`
}

// Dashboard is the full render payload for one filtered view. It is
// all-or-nothing: the handler returns either this or an error panel,
// never a partial mix.
type Dashboard struct {
	Metrics  []Metric `json:"metrics"`
	Charts   []Chart  `json:"charts"`
	RowCount int      `json:"row_count"`
	NoData   bool     `json:"no_data"`
}

func (s *Server) handleDashboard(
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

	writeJSON(w, http.StatusOK, buildDashboard(f.Apply(table)))
}

func buildDashboard(rows session.Table) Dashboard {
	n := metrics.Count(rows)
	empty := n == 0

	totalSales := metrics.Sum(rows, metrics.Sales)
	avgDurationMin := metrics.Mean(rows, metrics.Duration) / 60
	conversionRate := metrics.Rate(rows, metrics.SessionType, "converted")
	avgPageViews := metrics.Mean(rows, metrics.PageViews)
	abandonRate := metrics.Rate(rows, metrics.SessionType, "cart_abandoned")
	avgSales := metrics.Mean(rows, metrics.Sales)
	bounceRate := metrics.Rate(rows, metrics.SessionType, "bounced")

	return Dashboard{
		RowCount: n,
		NoData:   empty,
		Metrics: []Metric{
			{"Total Sessions", float64(n), strconv.Itoa(n)},
			{"Total Sales", totalSales, formatMoney(totalSales)},
			{"Avg Duration", avgDurationMin,
				sentinel(empty, fmt.Sprintf("%.1f min", avgDurationMin))},
			{"Conversion Rate", conversionRate,
				sentinel(empty, formatPercent(conversionRate))},
			{"Avg Page Views", avgPageViews,
				sentinel(empty, fmt.Sprintf("%.1f", avgPageViews))},
			{"Cart Abandonment Rate", abandonRate,
				sentinel(empty, formatPercent(abandonRate))},
			{"Avg Sales/Session", avgSales,
				sentinel(empty, fmt.Sprintf("$%.2f", avgSales))},
			{"Bounce Rate", bounceRate,
				sentinel(empty, formatPercent(bounceRate))},
		},
		Charts: []Chart{
			{
				ID: "device_distribution", Title: "Device Distribution",
				Kind:   "pie",
				Points: metrics.GroupCount(rows, metrics.Device),
			},
			{
				ID: "session_types", Title: "Session Types",
				Kind:   "bar",
				Points: metrics.GroupCount(rows, metrics.SessionType),
			},
			{
				ID: "sales_by_source", Title: "Sales by Source",
				Kind: "bar",
				Points: metrics.GroupSum(
					rows, metrics.Source, metrics.Sales,
				),
			},
			{
				ID: "customer_segments", Title: "Customer Segments",
				Kind:   "pie",
				Points: metrics.GroupCount(rows, metrics.Segment),
			},
			{
				ID: "daily_sessions", Title: "Daily Sessions",
				Kind:   "line",
				Points: datePoints(metrics.TimeSeriesCount(rows)),
			},
			{
				ID: "sales_by_category", Title: "Top Categories by Sales",
				Kind: "bar",
				Points: metrics.GroupSum(
					rows, metrics.Category, metrics.Sales,
				),
			},
		},
	}
}

func datePoints(ds []metrics.DatePoint) []metrics.Point {
	points := make([]metrics.Point, len(ds))
	for i, d := range ds {
		points[i] = metrics.Point{Label: d.Date, Value: float64(d.Count)}
	}
	return points
}

// sentinel reports "N/A" for metrics that are undefined over an
// empty table.
func sentinel(empty bool, formatted string) string {
	if empty {
		return "N/A"
	}
	return formatted
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// formatMoney renders a dollar amount with thousands separators,
// like "$12,345.67".
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}

	out := "$" + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
