// Package metrics computes scalar summaries and grouped aggregates
// over a filtered session table. Every function is pure and re-scans
// the table it is given; there is no hidden state.
package metrics

import (
	"sort"

	"github.com/shopview/shopview/internal/session"
)

// NumericField selects one of the numeric columns.
type NumericField int

const (
	Sales NumericField = iota
	PageViews
	Duration
)

func (f NumericField) value(r session.Row) float64 {
	switch f {
	case Sales:
		return r.Sales
	case PageViews:
		return float64(r.PageViews)
	case Duration:
		return r.Duration
	}
	return 0
}

// CategoricalField selects one of the categorical columns.
type CategoricalField int

const (
	Device CategoricalField = iota
	Browser
	Source
	SessionType
	Segment
	Category
)

func (f CategoricalField) value(r session.Row) string {
	switch f {
	case Device:
		return r.Device
	case Browser:
		return r.Browser
	case Source:
		return r.Source
	case SessionType:
		return r.SessionType
	case Segment:
		return r.Segment
	case Category:
		return r.Category
	}
	return ""
}

// Point is one labeled value in a chart-agnostic series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DatePoint is one calendar date's row count.
type DatePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Count returns the row count.
func Count(t session.Table) int {
	return len(t)
}

// Sum returns the sum of a numeric field over the table.
func Sum(t session.Table, f NumericField) float64 {
	var total float64
	for _, r := range t {
		total += f.value(r)
	}
	return total
}

// Mean returns the mean of a numeric field. The mean of an empty
// table is undefined; this returns 0, and callers that need a
// sentinel must check Count first.
func Mean(t session.Table, f NumericField) float64 {
	if len(t) == 0 {
		return 0
	}
	return Sum(t, f) / float64(len(t))
}

// Rate returns the percentage of rows whose categorical field equals
// value. Returns 0 on an empty table; same caveat as Mean.
func Rate(t session.Table, f CategoricalField, value string) float64 {
	if len(t) == 0 {
		return 0
	}
	matched := 0
	for _, r := range t {
		if f.value(r) == value {
			matched++
		}
	}
	return float64(matched) / float64(len(t)) * 100
}

// GroupSum sums a measure per distinct value of the group field,
// sorted descending by sum. Ties keep first-seen input order.
func GroupSum(
	t session.Table, group CategoricalField, measure NumericField,
) []Point {
	return groupBy(t, group, measure.value)
}

// GroupCount counts rows per distinct value of the group field,
// sorted descending by count. Ties keep first-seen input order.
func GroupCount(t session.Table, group CategoricalField) []Point {
	return groupBy(t, group, func(session.Row) float64 { return 1 })
}

func groupBy(
	t session.Table, group CategoricalField,
	weight func(session.Row) float64,
) []Point {
	index := make(map[string]int)
	points := []Point{}
	for _, r := range t {
		label := group.value(r)
		i, ok := index[label]
		if !ok {
			i = len(points)
			index[label] = i
			points = append(points, Point{Label: label})
		}
		points[i].Value += weight(r)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value > points[j].Value
	})
	return points
}

// TimeSeriesCount counts rows per calendar date of startTime, in
// chronological order. Dates with zero sessions are simply absent,
// and rows without a start time are skipped.
func TimeSeriesCount(t session.Table) []DatePoint {
	counts := make(map[string]int)
	for _, r := range t {
		if r.StartTime.IsZero() {
			continue
		}
		counts[r.StartDate()]++
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]DatePoint, len(dates))
	for i, d := range dates {
		points[i] = DatePoint{Date: d, Count: counts[d]}
	}
	return points
}
