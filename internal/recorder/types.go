package recorder

import (
	"time"

	"github.com/abekoh/showrec/internal/schedule"
)

type options struct {
	capturer Capturer
	tagger   TagWriter
	now      func() time.Time
	onFinish func(RecordingOutcome)
	load     func() ([]schedule.Show, error)
}

type Option func(*options)

// WithCapturer replaces the ffmpeg capturer.
func WithCapturer(c Capturer) Option {
	return func(o *options) { o.capturer = c }
}

// WithTagWriter replaces the ID3 tag writer.
func WithTagWriter(t TagWriter) Option {
	return func(o *options) { o.tagger = t }
}

// WithClock replaces time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithOnFinish registers a callback invoked after each capture job ends.
func WithOnFinish(f func(RecordingOutcome)) Option {
	return func(o *options) { o.onFinish = f }
}

// WithShowsLoader replaces reading shows from the configured shows file.
func WithShowsLoader(load func() ([]schedule.Show, error)) Option {
	return func(o *options) { o.load = load }
}
