package recorder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abekoh/showrec/internal/schedule"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load location %s: %v", name, err)
	}
	return loc
}

// captureLogs routes slog.Default into a buffer for the duration of the test.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(prev)
	})
	return buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeCapturer struct {
	mu      sync.Mutex
	calls   []CaptureRequest
	fail    map[string]error
	panicOn string
	// release, if set, holds every capture until it is closed
	release chan struct{}
	started chan CaptureRequest
	// during is called inside Capture before it returns
	during func(CaptureRequest)
}

func (f *fakeCapturer) Capture(ctx context.Context, req CaptureRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- req
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.during != nil {
		f.during(req)
	}
	if req.URL == f.panicOn {
		panic("capture exploded")
	}
	if err := f.fail[req.URL]; err != nil {
		return err
	}
	return os.WriteFile(req.OutPath, []byte("audio from "+req.URL), 0o644)
}

func (f *fakeCapturer) Calls() []CaptureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CaptureRequest(nil), f.calls...)
}

type taggedFile struct {
	Path string
	Tags Tags
}

type fakeTagger struct {
	mu     sync.Mutex
	tagged []taggedFile
	err    error
}

func (f *fakeTagger) WriteTags(path string, tags Tags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagged = append(f.tagged, taggedFile{Path: path, Tags: tags})
	return f.err
}

func (f *fakeTagger) Tagged() []taggedFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]taggedFile(nil), f.tagged...)
}

// fakeClock is a settable clock shared between the test and the components.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func testShow(t *testing.T, name string, wd time.Weekday, hour, minute int) schedule.Show {
	t.Helper()
	return schedule.Show{
		Name:     name,
		URL:      "http://stream.example.com/" + name,
		Weekday:  wd,
		Start:    schedule.TimeOfDay{Hour: hour, Minute: minute},
		Location: mustLoad(t, "America/New_York"),
		Duration: 30 * time.Minute,
		Metadata: schedule.Metadata{Artist: name + " Artist", Album: name + " Album", Genre: "Talk"},
	}
}

var errBoom = errors.New("boom")
