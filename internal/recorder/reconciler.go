package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"

	"github.com/abekoh/showrec/internal/schedule"
)

var ErrConfigurationLoad = errors.New("configuration load failure")

type CycleResult int

const (
	CycleRebuilt CycleResult = iota
	CycleDeferred
	CycleLoadFailed
)

func (c CycleResult) String() string {
	switch c {
	case CycleRebuilt:
		return "rebuilt"
	case CycleDeferred:
		return "deferred"
	case CycleLoadFailed:
		return "load-failed"
	}
	return fmt.Sprintf("CycleResult(%d)", int(c))
}

// Reconciler periodically reloads the shows and rebuilds the dispatch table,
// unless an occurrence is due within the quiet window.
//
// The quiet window check is best effort: a rebuild that starts just outside the window
// still races with a tick that fires moments later.
type Reconciler struct {
	load        func() ([]schedule.Show, error)
	dispatcher  *Dispatcher
	ref         *time.Location
	interval    time.Duration
	quietWindow time.Duration
	watchPath   string
	now         func() time.Time
	logger      *slog.Logger

	applied []string
}

func NewReconciler(
	load func() ([]schedule.Show, error),
	dispatcher *Dispatcher,
	ref *time.Location,
	interval, quietWindow time.Duration,
) *Reconciler {
	return &Reconciler{
		load:        load,
		dispatcher:  dispatcher,
		ref:         ref,
		interval:    interval,
		quietWindow: quietWindow,
		now:         time.Now,
		logger:      slog.Default().With("job", "reconciler"),
	}
}

// Watch makes Run reconcile as soon as path changes, in addition to the periodic cycle.
func (r *Reconciler) Watch(path string) {
	r.watchPath = path
}

func (r *Reconciler) loadShows() ([]schedule.Show, error) {
	shows, err := r.load()
	if shows == nil && err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigurationLoad, err)
	}
	if err != nil {
		r.logger.Warn("some shows were skipped", "event", "ShowSkipped", "error", err)
	}
	return shows, nil
}

// Reconcile runs one cycle at now.
func (r *Reconciler) Reconcile(now time.Time) (CycleResult, error) {
	shows, err := r.loadShows()
	if err != nil {
		r.logger.Error("failed to load shows, keeping current schedule", "event", "ConfigurationLoadFailed", "error", err)
		return CycleLoadFailed, err
	}

	if occ, ok := r.imminent(shows, now); ok {
		r.logger.Info("occurrence within quiet window, defer rebuild",
			"event", "RebuildDeferred",
			"occurrence", occ,
			"in", occ.Reference.Sub(now),
			"quietWindow", r.quietWindow,
		)
		return CycleDeferred, nil
	}

	r.rebuild(shows, now)
	return CycleRebuilt, nil
}

// Force rebuilds without checking the quiet window. Used on startup when nothing is armed yet.
func (r *Reconciler) Force(now time.Time) error {
	shows, err := r.loadShows()
	if err != nil {
		r.logger.Error("failed to load shows", "event", "ConfigurationLoadFailed", "error", err)
		return err
	}
	r.rebuild(shows, now)
	return nil
}

// imminent reports the soonest occurrence among both the new shows and the armed table
// if it falls within the quiet window.
func (r *Reconciler) imminent(shows []schedule.Show, now time.Time) (schedule.Occurrence, bool) {
	first, found := schedule.Earliest(shows, now, r.ref)
	if armed, ok := r.dispatcher.Next(); ok && (!found || armed.Reference.Before(first.Reference)) {
		first, found = armed, true
	}
	if !found {
		return schedule.Occurrence{}, false
	}
	return first, first.Reference.Sub(now) <= r.quietWindow
}

func (r *Reconciler) rebuild(shows []schedule.Show, now time.Time) {
	summary := make([]string, len(shows))
	for i, s := range shows {
		summary[i] = s.String()
	}
	if diff := cmp.Diff(r.applied, summary); diff != "" {
		r.logger.Info("shows updated", "diff", diff)
	}
	r.applied = summary

	r.dispatcher.Rebuild(shows, now)
	r.logger.Info("rebuilt schedule", "event", "Rebuilt", "shows", len(shows))
}

// Run forces an initial rebuild, then reconciles every interval and whenever the watched
// file changes, until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Debug("start reconciler", "interval", r.interval, "quietWindow", r.quietWindow)
	if err := r.Force(r.now()); err != nil {
		return err
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if r.watchPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			r.logger.Warn("failed to create watcher, falling back to periodic reload", "error", err)
		} else {
			defer watcher.Close()
			// editors replace files by rename, so watch the directory
			if err := watcher.Add(filepath.Dir(r.watchPath)); err != nil {
				r.logger.Warn("failed to add watcher, falling back to periodic reload", "error", err)
			} else {
				events, errs = watcher.Events, watcher.Errors
			}
		}
	}
	target := filepath.Clean(r.watchPath)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = r.Reconcile(r.now())
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				r.logger.Debug("shows file updated", "path", event.Name, "op", event.Op)
				_, _ = r.Reconcile(r.now())
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("watcher error", "error", err)
		case <-ctx.Done():
			r.logger.Debug("stop reconciler")
			return nil
		}
	}
}
