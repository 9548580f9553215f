package recorder

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abekoh/showrec/internal/schedule"
)

// dueTolerance lets an entry fire on the tick just before its start instead of the one after.
const dueTolerance = 500 * time.Millisecond

// Dispatcher holds the next occurrence of every show and launches it once it is due.
type Dispatcher struct {
	ref    *time.Location
	launch func(schedule.Occurrence)
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	table map[string]schedule.Occurrence
}

// NewDispatcher creates an empty dispatcher. launch is called with the table lock held and
// must hand the occurrence off without blocking.
func NewDispatcher(ref *time.Location, launch func(schedule.Occurrence)) *Dispatcher {
	return &Dispatcher{
		ref:    ref,
		launch: launch,
		now:    time.Now,
		logger: slog.Default().With("job", "dispatcher"),
		table:  make(map[string]schedule.Occurrence),
	}
}

func sortOccurrences(occs []schedule.Occurrence) {
	slices.SortFunc(occs, func(a, b schedule.Occurrence) int {
		if c := a.Reference.Compare(b.Reference); c != 0 {
			return c
		}
		return strings.Compare(a.Show.Name, b.Show.Name)
	})
}

// Tick launches every entry due at now and re-arms its show for the following week.
// It returns the number of launched jobs.
func (d *Dispatcher) Tick(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var due []schedule.Occurrence
	for _, occ := range d.table {
		if !occ.Reference.After(now.Add(dueTolerance)) {
			due = append(due, occ)
		}
	}
	if len(due) == 0 {
		return 0
	}
	sortOccurrences(due)

	for _, occ := range due {
		d.logger.Info("dispatch", "event", "Dispatched", "occurrence", occ, "late", now.Sub(occ.Reference))
		d.launch(occ)

		base := now
		if occ.Reference.After(base) {
			base = occ.Reference
		}
		next := schedule.NextOccurrence(occ.Show, base, d.ref)
		d.table[occ.Show.Name] = next
		d.logger.Info("scheduled", "event", "Scheduled", "occurrence", next)
	}
	return len(due)
}

// Rebuild replaces the whole table with one entry per show.
func (d *Dispatcher) Rebuild(shows []schedule.Show, now time.Time) {
	table := make(map[string]schedule.Occurrence, len(shows))
	for _, s := range shows {
		table[s.Name] = schedule.NextOccurrence(s, now, d.ref)
	}

	d.mu.Lock()
	d.table = table
	d.mu.Unlock()

	for _, occ := range d.Entries() {
		d.logger.Info("scheduled", "event", "Scheduled", "occurrence", occ)
	}
}

// Entries returns the armed occurrences, soonest first.
func (d *Dispatcher) Entries() []schedule.Occurrence {
	d.mu.Lock()
	defer d.mu.Unlock()
	occs := make([]schedule.Occurrence, 0, len(d.table))
	for _, occ := range d.table {
		occs = append(occs, occ)
	}
	sortOccurrences(occs)
	return occs
}

// Next returns the soonest armed occurrence.
func (d *Dispatcher) Next() (schedule.Occurrence, bool) {
	occs := d.Entries()
	if len(occs) == 0 {
		return schedule.Occurrence{}, false
	}
	return occs[0], true
}

// Run ticks every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	d.logger.Debug("start dispatcher", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Tick(d.now())
		case <-ctx.Done():
			d.logger.Debug("stop dispatcher")
			return nil
		}
	}
}
