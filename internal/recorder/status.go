package recorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// ActiveRecording is a capture job that is currently running.
type ActiveRecording struct {
	JobID   uint64    `json:"job_id"`
	Show    string    `json:"show"`
	Started time.Time `json:"started"`
}

// Snapshot is an immutable copy of the tracker state.
type Snapshot struct {
	Seq        uint64            `json:"-"`
	UpdatedAt  time.Time         `json:"last_updated"`
	Active     []string          `json:"active_recordings"`
	Recordings []ActiveRecording `json:"recordings"`
}

// Tracker holds the set of running capture jobs. Every mutation is published to the sinks.
type Tracker struct {
	mu     sync.RWMutex
	active map[uint64]ActiveRecording
	seq    uint64
	now    func() time.Time
	sinks  []func(Snapshot)
}

func NewTracker(sinks ...func(Snapshot)) *Tracker {
	return &Tracker{
		active: make(map[uint64]ActiveRecording),
		now:    time.Now,
		sinks:  sinks,
	}
}

func (t *Tracker) Add(r ActiveRecording) {
	t.mu.Lock()
	t.active[r.JobID] = r
	t.seq++
	s := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(s)
}

func (t *Tracker) Remove(jobID uint64) {
	t.mu.Lock()
	delete(t.active, jobID)
	t.seq++
	s := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(s)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Len is the number of running jobs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{
		Seq:        t.seq,
		UpdatedAt:  t.now(),
		Active:     make([]string, 0, len(t.active)),
		Recordings: make([]ActiveRecording, 0, len(t.active)),
	}
	for _, r := range t.active {
		s.Active = append(s.Active, r.Show)
		s.Recordings = append(s.Recordings, r)
	}
	slices.Sort(s.Active)
	slices.SortFunc(s.Recordings, func(a, b ActiveRecording) int {
		if a.JobID < b.JobID {
			return -1
		} else if a.JobID > b.JobID {
			return 1
		}
		return 0
	})
	return s
}

func (t *Tracker) publish(s Snapshot) {
	for _, sink := range t.sinks {
		sink(s)
	}
}

// StatusWriter persists snapshots as JSON, atomically replacing the file.
// A snapshot older than the last one written is dropped.
type StatusWriter struct {
	path    string
	mu      sync.Mutex
	lastSeq uint64
	logger  *slog.Logger
}

func NewStatusWriter(path string) *StatusWriter {
	return &StatusWriter{
		path:   path,
		logger: slog.Default().With("job", "status-writer"),
	}
}

func (w *StatusWriter) Write(s Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s.Seq != 0 && s.Seq <= w.lastSeq {
		return
	}
	if err := w.write(s); err != nil {
		w.logger.Error("failed to write status", "path", w.path, "error", err)
		return
	}
	w.lastSeq = s.Seq
}

func (w *StatusWriter) write(s Snapshot) error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create status dir: %w", err)
		}
	}
	pendingFile, err := renameio.NewPendingFile(w.path)
	if err != nil {
		return fmt.Errorf("create pending status file: %w", err)
	}
	defer func() {
		_ = pendingFile.Cleanup()
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace status file: %w", err)
	}
	return nil
}

// ReadStatus loads a snapshot written by StatusWriter.
func ReadStatus(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode status: %w", err)
	}
	return s, nil
}
