package recorder

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abekoh/showrec/internal/schedule"
)

// Job is a handle on one in-flight capture.
type Job struct {
	ID         uint64
	Occurrence schedule.Occurrence
	Started    time.Time

	done    chan struct{}
	outcome RecordingOutcome
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Outcome must only be called after Done is closed.
func (j *Job) Outcome() RecordingOutcome {
	return j.outcome
}

type JobInfo struct {
	ID      uint64
	Show    string
	Started time.Time
}

// Supervisor starts capture jobs in their own goroutines and keeps track of them until they finish.
type Supervisor struct {
	ctx context.Context
	run func(ctx context.Context, id uint64, occ schedule.Occurrence) RecordingOutcome

	mu     sync.Mutex
	nextID uint64
	jobs   map[uint64]*Job
	wg     sync.WaitGroup
}

func NewSupervisor(ctx context.Context, run func(context.Context, uint64, schedule.Occurrence) RecordingOutcome) *Supervisor {
	return &Supervisor{
		ctx:  ctx,
		run:  run,
		jobs: make(map[uint64]*Job),
	}
}

// Start never blocks on the job itself.
func (s *Supervisor) Start(occ schedule.Occurrence) *Job {
	s.mu.Lock()
	s.nextID++
	j := &Job{
		ID:         s.nextID,
		Occurrence: occ,
		Started:    time.Now(),
		done:       make(chan struct{}),
	}
	s.jobs[j.ID] = j
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(j.done)
		defer func() {
			s.mu.Lock()
			delete(s.jobs, j.ID)
			s.mu.Unlock()
		}()
		j.outcome = s.run(s.ctx, j.ID, occ)
	}()
	return j
}

// Running lists in-flight jobs ordered by id.
func (s *Supervisor) Running() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, JobInfo{ID: j.ID, Show: j.Occurrence.Show.Name, Started: j.Started})
	}
	slices.SortFunc(infos, func(a, b JobInfo) int {
		if a.ID < b.ID {
			return -1
		} else if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return infos
}

// Wait blocks until every started job has finished.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
