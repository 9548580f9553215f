package recorder

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abekoh/showrec/internal/schedule"
)

type showSource struct {
	mu    sync.Mutex
	shows []schedule.Show
	err   error
}

func (s *showSource) set(shows []schedule.Show, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows, s.err = shows, err
}

func (s *showSource) load() ([]schedule.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shows, s.err
}

func newTestReconciler(t *testing.T, src *showSource) (*Reconciler, *Dispatcher) {
	t.Helper()
	ref := mustLoad(t, "America/Chicago")
	d := NewDispatcher(ref, func(schedule.Occurrence) {})
	return NewReconciler(src.load, d, ref, time.Hour, 15*time.Minute), d
}

func names(d *Dispatcher) []string {
	var out []string
	for _, occ := range d.Entries() {
		out = append(out, occ.Show.Name)
	}
	return out
}

func TestReconcileRebuildsOutsideQuietWindow(t *testing.T) {
	captureLogs(t)
	ref := mustLoad(t, "America/Chicago")
	src := &showSource{}
	r, d := newTestReconciler(t, src)

	// 9:00 Chicago, 70 minutes away
	src.set([]schedule.Show{testShow(t, "Morning", time.Wednesday, 10, 0)}, nil)
	got, err := r.Reconcile(time.Date(2024, 1, 10, 7, 50, 0, 0, ref))
	if err != nil || got != CycleRebuilt {
		t.Fatalf("Reconcile() = %v, %v, want rebuilt", got, err)
	}
	if diff := cmp.Diff([]string{"Morning"}, names(d)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileDefersWithinQuietWindow(t *testing.T) {
	logs := captureLogs(t)
	ref := mustLoad(t, "America/Chicago")
	src := &showSource{}
	r, d := newTestReconciler(t, src)

	src.set([]schedule.Show{testShow(t, "Morning", time.Wednesday, 10, 0)}, nil)
	if err := r.Force(time.Date(2024, 1, 10, 7, 0, 0, 0, ref)); err != nil {
		t.Fatal(err)
	}

	// the configuration changes ten minutes before Morning starts
	src.set([]schedule.Show{
		testShow(t, "Morning", time.Wednesday, 10, 30),
		testShow(t, "Added", time.Friday, 10, 0),
	}, nil)
	got, err := r.Reconcile(time.Date(2024, 1, 10, 8, 50, 0, 0, ref))
	if err != nil || got != CycleDeferred {
		t.Fatalf("Reconcile() = %v, %v, want deferred", got, err)
	}
	if diff := cmp.Diff([]string{"Morning"}, names(d)); diff != "" {
		t.Errorf("table changed inside the quiet window (-want +got):\n%s", diff)
	}
	next, _ := d.Next()
	if !next.Reference.Equal(time.Date(2024, 1, 10, 9, 0, 0, 0, ref)) {
		t.Errorf("armed occurrence moved to %v", next.Reference)
	}
	if !strings.Contains(logs.String(), `"event":"RebuildDeferred"`) {
		t.Error("no RebuildDeferred log entry")
	}

	// exactly at the window boundary is still deferred
	got, _ = r.Reconcile(time.Date(2024, 1, 10, 8, 45, 0, 0, ref))
	if got != CycleDeferred {
		t.Errorf("Reconcile() at the boundary = %v, want deferred", got)
	}

	// once Morning has fired and the nearest start is far away, the rebuild goes through
	d.Tick(time.Date(2024, 1, 10, 9, 0, 0, 0, ref))
	got, err = r.Reconcile(time.Date(2024, 1, 10, 11, 0, 0, 0, ref))
	if err != nil || got != CycleRebuilt {
		t.Fatalf("Reconcile() = %v, %v, want rebuilt", got, err)
	}
	if diff := cmp.Diff([]string{"Added", "Morning"}, names(d)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileDefersForArmedShowRemovedFromConfig(t *testing.T) {
	captureLogs(t)
	ref := mustLoad(t, "America/Chicago")
	src := &showSource{}
	r, d := newTestReconciler(t, src)

	src.set([]schedule.Show{testShow(t, "Leaving", time.Wednesday, 10, 0)}, nil)
	if err := r.Force(time.Date(2024, 1, 10, 7, 0, 0, 0, ref)); err != nil {
		t.Fatal(err)
	}
	src.set([]schedule.Show{}, nil)
	got, _ := r.Reconcile(time.Date(2024, 1, 10, 8, 55, 0, 0, ref))
	if got != CycleDeferred {
		t.Errorf("Reconcile() = %v, want deferred", got)
	}
	if diff := cmp.Diff([]string{"Leaving"}, names(d)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileWithNoShows(t *testing.T) {
	captureLogs(t)
	ref := mustLoad(t, "America/Chicago")
	src := &showSource{shows: []schedule.Show{}}
	r, d := newTestReconciler(t, src)

	got, err := r.Reconcile(time.Date(2024, 1, 10, 7, 0, 0, 0, ref))
	if err != nil || got != CycleRebuilt {
		t.Errorf("Reconcile() = %v, %v, want rebuilt", got, err)
	}
	if _, ok := d.Next(); ok {
		t.Error("table should be empty")
	}
}

func TestReconcileLoadFailureKeepsTable(t *testing.T) {
	logs := captureLogs(t)
	ref := mustLoad(t, "America/Chicago")
	src := &showSource{}
	r, d := newTestReconciler(t, src)

	src.set([]schedule.Show{testShow(t, "Kept", time.Friday, 10, 0)}, nil)
	if err := r.Force(time.Date(2024, 1, 10, 7, 0, 0, 0, ref)); err != nil {
		t.Fatal(err)
	}

	src.set(nil, os.ErrNotExist)
	got, err := r.Reconcile(time.Date(2024, 1, 10, 8, 0, 0, 0, ref))
	if got != CycleLoadFailed || !errors.Is(err, ErrConfigurationLoad) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Reconcile() = %v, %v, want load failure", got, err)
	}
	if diff := cmp.Diff([]string{"Kept"}, names(d)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), `"event":"ConfigurationLoadFailed"`) {
		t.Error("no ConfigurationLoadFailed log entry")
	}
}

func TestReconcilePartialShows(t *testing.T) {
	logs := captureLogs(t)
	ref := mustLoad(t, "America/Chicago")
	src := &showSource{}
	r, d := newTestReconciler(t, src)

	src.set([]schedule.Show{testShow(t, "Valid", time.Friday, 10, 0)}, schedule.ErrInvalidTimezone)
	got, err := r.Reconcile(time.Date(2024, 1, 10, 8, 0, 0, 0, ref))
	if err != nil || got != CycleRebuilt {
		t.Errorf("Reconcile() = %v, %v, want rebuilt", got, err)
	}
	if diff := cmp.Diff([]string{"Valid"}, names(d)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), `"event":"ShowSkipped"`) {
		t.Error("no ShowSkipped log entry")
	}
}

func TestCycleResultString(t *testing.T) {
	for c, want := range map[CycleResult]string{
		CycleRebuilt:    "rebuilt",
		CycleDeferred:   "deferred",
		CycleLoadFailed: "load-failed",
		CycleResult(9):  "CycleResult(9)",
	} {
		if got := c.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
