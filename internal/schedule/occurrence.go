package schedule

import (
	"slices"
	"time"
)

const week = 7 * 24 * time.Hour

// NextOccurrence returns the first start of s strictly after now.
// A start equal to now counts as passed.
func NextOccurrence(s Show, now time.Time, ref *time.Location) Occurrence {
	n := now.In(s.Location)
	for d := 0; d <= 7; d++ {
		t := time.Date(n.Year(), n.Month(), n.Day()+d, s.Start.Hour, s.Start.Minute, 0, 0, s.Location)
		if t.Weekday() != s.Weekday || !t.After(now) {
			continue
		}
		return Occurrence{
			Show:      s,
			Reference: t.In(ref),
			Source:    t,
		}
	}
	// only reachable when a DST gap pushes the slot onto another weekday
	t := time.Date(n.Year(), n.Month(), n.Day()+7, s.Start.Hour, s.Start.Minute, 0, 0, s.Location)
	for !t.After(now) {
		t = t.AddDate(0, 0, 7)
	}
	return Occurrence{Show: s, Reference: t.In(ref), Source: t}
}

// NextOccurrences returns the next n starts of s after now.
func NextOccurrences(s Show, now time.Time, ref *time.Location, n int) []Occurrence {
	if n <= 0 {
		return []Occurrence{}
	}
	occs := make([]Occurrence, n)
	for i := 0; i < n; i++ {
		occs[i] = NextOccurrence(s, now, ref)
		now = occs[i].Reference
	}
	return occs
}

// Day groups occurrences by calendar date in the reference zone.
type Day struct {
	Date        time.Time
	Occurrences []Occurrence
}

// Next7Days lists, per reference-zone date, every show whose next start is before now+7 days.
// Days are ascending, as are occurrences within a day. Nothing is cached; call again as now moves.
func Next7Days(shows []Show, now time.Time, ref *time.Location) []Day {
	horizon := now.Add(week)
	occs := make([]Occurrence, 0, len(shows))
	for _, s := range shows {
		o := NextOccurrence(s, now, ref)
		if o.Reference.Before(horizon) {
			occs = append(occs, o)
		}
	}
	slices.SortStableFunc(occs, func(a, b Occurrence) int {
		return a.Reference.Compare(b.Reference)
	})

	days := make([]Day, 0, 8)
	for _, o := range occs {
		y, m, d := o.Reference.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, ref)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			days = append(days, Day{Date: date})
		}
		last := &days[len(days)-1]
		last.Occurrences = append(last.Occurrences, o)
	}
	return days
}

// Earliest returns the soonest next occurrence among shows, false if there are none.
func Earliest(shows []Show, now time.Time, ref *time.Location) (Occurrence, bool) {
	var (
		first Occurrence
		found bool
	)
	for _, s := range shows {
		o := NextOccurrence(s, now, ref)
		if !found || o.Reference.Before(first.Reference) {
			first, found = o, true
		}
	}
	return first, found
}
