package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abekoh/showrec/internal/config"
	"github.com/abekoh/showrec/internal/schedule"
)

// Recorder wires the dispatcher, reconciler, supervisor and status tracker together.
type Recorder struct {
	cnf     *config.Config
	opts    options
	tracker *Tracker
	runner  *runner

	dispatcher *Dispatcher
	supervisor *Supervisor
	reconciler *Reconciler
	jobCtx     context.Context
	cancelJobs context.CancelFunc
}

func New(cnf *config.Config, opts ...Option) *Recorder {
	o := options{
		capturer: &FFmpeg{Path: cnf.Recorder.FFmpegPath, Overhead: cnf.Recorder.CaptureOverhead},
		tagger:   ID3Tagger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.load == nil {
		fallback := schedule.Metadata{
			Artist: cnf.Metadata.Artist,
			Album:  cnf.Metadata.Album,
			Genre:  cnf.Metadata.Genre,
		}
		o.load = func() ([]schedule.Show, error) {
			return schedule.LoadShows(cnf.ShowsPath, fallback)
		}
	}

	var sinks []func(Snapshot)
	if cnf.StatusPath != "" {
		sinks = append(sinks, NewStatusWriter(cnf.StatusPath).Write)
	}
	tracker := NewTracker(sinks...)
	tracker.now = o.now

	r := &Recorder{
		cnf:     cnf,
		opts:    o,
		tracker: tracker,
		runner: &runner{
			tracker:  tracker,
			capturer: o.capturer,
			tagger:   o.tagger,
			outDir:   cnf.OutDirPath,
			now:      o.now,
			onFinish: o.onFinish,
		},
	}
	rcnf := cnf.Recorder
	r.jobCtx, r.cancelJobs = context.WithCancel(context.Background())
	r.supervisor = NewSupervisor(r.jobCtx, r.runner.run)
	r.dispatcher = NewDispatcher(rcnf.ReferenceLocation, func(occ schedule.Occurrence) {
		r.supervisor.Start(occ)
	})
	r.dispatcher.now = o.now
	r.reconciler = NewReconciler(o.load, r.dispatcher, rcnf.ReferenceLocation, rcnf.ReconcileInterval, rcnf.QuietWindow)
	r.reconciler.now = o.now
	r.reconciler.Watch(cnf.ShowsPath)
	return r
}

// Status returns the current set of active recordings.
func (r *Recorder) Status() Snapshot {
	return r.tracker.Snapshot()
}

// Running lists in-flight capture jobs.
func (r *Recorder) Running() []JobInfo {
	return r.supervisor.Running()
}

// Schedule returns the armed dispatch table, soonest first.
func (r *Recorder) Schedule() []schedule.Occurrence {
	return r.dispatcher.Entries()
}

// LoadShows reads the shows file the reconciler watches.
func (r *Recorder) LoadShows() ([]schedule.Show, error) {
	return r.opts.load()
}

// Run dispatches recordings until ctx is done or the initial shows load fails.
// Running captures are then cancelled and waited for. A Recorder runs once.
func (r *Recorder) Run(ctx context.Context) error {
	logger := slog.Default().With("job", "recorder")
	r.tracker.publish(r.tracker.Snapshot())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.dispatcher.Run(gctx, r.cnf.Recorder.PollInterval)
	})
	g.Go(func() error {
		return r.reconciler.Run(gctx)
	})
	err := g.Wait()

	r.cancelJobs()
	if running := r.supervisor.Running(); len(running) > 0 {
		logger.Info("waiting for running recordings", "jobs", running)
	}
	r.supervisor.Wait()
	return err
}

// RecordNow records the named show immediately and waits for it to finish.
func (r *Recorder) RecordNow(ctx context.Context, name string) (RecordingOutcome, error) {
	shows, err := r.opts.load()
	if shows == nil && err != nil {
		return RecordingOutcome{}, fmt.Errorf("%w: %w", ErrConfigurationLoad, err)
	}
	for _, s := range shows {
		if s.Name != name {
			continue
		}
		now := r.opts.now()
		occ := schedule.Occurrence{
			Show:      s,
			Reference: now.In(r.cnf.Recorder.ReferenceLocation),
			Source:    now.In(s.Location),
		}
		return r.runner.run(ctx, 0, occ), nil
	}
	return RecordingOutcome{}, fmt.Errorf("show not found: %s", name)
}
