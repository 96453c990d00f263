package session

// Filter selects rows by start date and categorical membership. Dates
// are ISO YYYY-MM-DD, inclusive on both ends, compared against the
// date portion of startTime. The allowed sets are explicit: an empty
// set matches nothing rather than everything, and an inverted date
// range simply matches nothing. An empty bound is unbounded on that
// end.
type Filter struct {
	From         string
	To           string
	Devices      []string
	SessionTypes []string
}

// Apply returns the subsequence of rows satisfying the conjunction of
// all three predicates, in input order. The source table is never
// mutated.
func (f Filter) Apply(t Table) Table {
	devices := toSet(f.Devices)
	types := toSet(f.SessionTypes)

	out := make(Table, 0, len(t))
	for _, r := range t {
		d := r.StartDate()
		if f.From != "" && d < f.From {
			continue
		}
		if f.To != "" && d > f.To {
			continue
		}
		if !devices[r.Device] || !types[r.SessionType] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
