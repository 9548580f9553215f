package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abekoh/showrec/internal/schedule"
)

const tagTimeFormat = "Mon, Jan 2 2006 3:04 PM MST"

// RecordingOutcome is the result of one capture job.
type RecordingOutcome struct {
	JobID    uint64
	Show     string
	Path     string
	Started  time.Time
	Finished time.Time
	// Err is set when the capture itself failed; no tags were written then.
	Err error
	// TagErr is set when tagging failed. The recording is still valid.
	TagErr error
}

func (o RecordingOutcome) Failed() bool {
	return o.Err != nil
}

// runner executes capture jobs. It is shared by all concurrently running jobs.
type runner struct {
	tracker  *Tracker
	capturer Capturer
	tagger   TagWriter
	outDir   string
	now      func() time.Time
	onFinish func(RecordingOutcome)
}

func composeTags(occ schedule.Occurrence, started time.Time) Tags {
	s := occ.Show
	local := started.In(s.Location)
	return Tags{
		Title:   fmt.Sprintf("%s - %s", s.Name, local.Format(tagTimeFormat)),
		Artist:  s.Metadata.Artist,
		Album:   s.Metadata.Album,
		Genre:   s.Metadata.Genre,
		Comment: fmt.Sprintf("Recorded from %s on %s", s.URL, local.Format(time.RFC1123)),
	}
}

// run records occ. The tracker entry for id exists for exactly as long as run executes,
// and nothing that happens inside escapes as a panic.
func (r *runner) run(ctx context.Context, id uint64, occ schedule.Occurrence) (out RecordingOutcome) {
	show := occ.Show
	started := r.now()
	log := slog.Default().With("job", fmt.Sprintf("capture-%d", id), "show", show.Name)

	out = RecordingOutcome{
		JobID:   id,
		Show:    show.Name,
		Started: started,
	}

	r.tracker.Add(ActiveRecording{JobID: id, Show: show.Name, Started: started})
	defer func() {
		if p := recover(); p != nil {
			out.Err = fmt.Errorf("capture job panicked: %v", p)
			log.Error("recording failed", "event", "RecordingFailed", "reason", out.Err)
			if out.Path != "" {
				_, _ = removeIfEmpty(out.Path)
			}
		}
		r.tracker.Remove(id)
		out.Finished = r.now()
		if r.onFinish != nil {
			r.onFinish(out)
		}
	}()

	path, err := reserveOutputPath(r.outDir, show.Name, started.In(occ.Reference.Location()))
	if err != nil {
		out.Err = err
		log.Error("recording failed", "event", "RecordingFailed", "reason", err)
		return out
	}
	out.Path = path
	log.Info("start recording",
		"event", "RecordingStarted",
		"url", show.URL,
		"duration", show.Duration,
		"path", out.Path,
		"scheduled", occ.Reference,
	)

	if err := r.capturer.Capture(ctx, CaptureRequest{
		URL:      show.URL,
		Duration: show.Duration,
		OutPath:  out.Path,
	}); err != nil {
		out.Err = err
		log.Error("recording failed", "event", "RecordingFailed", "reason", err)
		if _, rmErr := removeIfEmpty(out.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("failed to remove empty recording", "path", out.Path, "error", rmErr)
		}
		return out
	}
	log.Info("finish recording", "event", "RecordingFinished", "path", out.Path, "elapsed", r.now().Sub(started))

	empty, err := removeIfEmpty(out.Path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (empty && err == nil):
		log.Warn("recording produced no file, skip tagging", "path", out.Path)
		return out
	case err != nil:
		log.Warn("failed to check recording, skip tagging", "path", out.Path, "error", err)
		return out
	}
	if err := r.tagger.WriteTags(out.Path, composeTags(occ, started)); err != nil {
		out.TagErr = err
		log.Error("tagging failed", "event", "TaggingFailed", "path", out.Path, "error", err)
		return out
	}
	log.Info("tagged", "event", "Tagged", "path", out.Path)
	return out
}
