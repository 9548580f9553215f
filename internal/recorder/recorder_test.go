package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/abekoh/showrec/internal/config"
	"github.com/abekoh/showrec/internal/schedule"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		OutDirPath: dir,
		ShowsPath:  filepath.Join(dir, "shows.json"),
		StatusPath: filepath.Join(dir, "status.json"),
		Recorder: config.Recorder{
			ReferenceLocation: mustLoad(t, "America/Chicago"),
			FFmpegPath:        "ffmpeg",
			PollInterval:      10 * time.Millisecond,
			ReconcileInterval: time.Hour,
			QuietWindow:       15 * time.Minute,
			CaptureOverhead:   time.Minute,
		},
	}
}

func TestRecorderRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	captureLogs(t)

	cnf := testConfig(t)
	ref := cnf.Recorder.ReferenceLocation
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, ref)
	clock := &fakeClock{t: start.Add(-time.Minute)}

	finished := make(chan RecordingOutcome, 1)
	tagger := &fakeTagger{}
	rec := New(cnf,
		WithCapturer(&fakeCapturer{}),
		WithTagWriter(tagger),
		WithClock(clock.Now),
		WithOnFinish(func(o RecordingOutcome) { finished <- o }),
		WithShowsLoader(func() ([]schedule.Show, error) {
			return []schedule.Show{testShow(t, "Morning", time.Wednesday, 10, 0)}, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rec.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for len(rec.Schedule()) == 0 {
		select {
		case <-deadline:
			t.Fatal("schedule was never built")
		case <-time.After(10 * time.Millisecond):
		}
	}
	clock.Set(start)

	select {
	case o := <-finished:
		if o.Failed() || o.Show != "Morning" {
			t.Errorf("unexpected outcome: %+v", o)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("recording never ran")
	}

	next := rec.Schedule()
	if len(next) != 1 || !next[0].Reference.Equal(start.AddDate(0, 0, 7)) {
		t.Errorf("Schedule() after firing = %v", next)
	}
	if len(tagger.Tagged()) != 1 {
		t.Errorf("tagged %d files, want 1", len(tagger.Tagged()))
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error: %v", err)
	}
	if len(rec.Status().Active) != 0 {
		t.Errorf("active after shutdown: %v", rec.Status().Active)
	}
	s, err := ReadStatus(cnf.StatusPath)
	if err != nil {
		t.Fatalf("status file not written: %v", err)
	}
	if len(s.Active) != 0 || !s.UpdatedAt.Equal(start) {
		t.Errorf("status file = %+v", s)
	}
}

func TestRecorderRunCancelsCapturesOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	captureLogs(t)

	cnf := testConfig(t)
	ref := cnf.Recorder.ReferenceLocation
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, ref)
	clock := &fakeClock{t: start.Add(-time.Minute)}
	capturer := &fakeCapturer{release: make(chan struct{}), started: make(chan CaptureRequest, 1)}

	rec := New(cnf,
		WithCapturer(capturer),
		WithTagWriter(&fakeTagger{}),
		WithClock(clock.Now),
		WithShowsLoader(func() ([]schedule.Show, error) {
			return []schedule.Show{testShow(t, "Long", time.Wednesday, 10, 0)}, nil
		}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rec.Run(ctx)
	}()
	for len(rec.Schedule()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	clock.Set(start)

	select {
	case <-capturer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("capture never started")
	}
	if running := rec.Running(); len(running) != 1 || running[0].Show != "Long" {
		t.Errorf("Running() = %v", running)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(rec.Running()) != 0 || len(rec.Status().Active) != 0 {
		t.Errorf("jobs left after shutdown: %v %v", rec.Running(), rec.Status().Active)
	}
}

func TestRecorderRunFailsWithoutShows(t *testing.T) {
	captureLogs(t)
	rec := New(testConfig(t), WithCapturer(&fakeCapturer{}))
	err := rec.Run(context.Background())
	if !errors.Is(err, ErrConfigurationLoad) {
		t.Errorf("Run() error = %v, want ErrConfigurationLoad", err)
	}
}

func TestRecordNow(t *testing.T) {
	captureLogs(t)
	cnf := testConfig(t)
	capturer := &fakeCapturer{}
	rec := New(cnf,
		WithCapturer(capturer),
		WithTagWriter(&fakeTagger{}),
		WithShowsLoader(func() ([]schedule.Show, error) {
			return []schedule.Show{testShow(t, "Adhoc", time.Sunday, 3, 0)}, nil
		}),
	)

	out, err := rec.RecordNow(context.Background(), "Adhoc")
	if err != nil || out.Failed() {
		t.Fatalf("RecordNow() = %+v, %v", out, err)
	}
	if len(capturer.Calls()) != 1 {
		t.Errorf("captures = %d, want 1", len(capturer.Calls()))
	}
	if _, err := rec.RecordNow(context.Background(), "Missing"); err == nil {
		t.Error("RecordNow() for an unknown show should fail")
	}
}
