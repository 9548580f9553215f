package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	stderrTailSize  = 2048
	maxOutputSuffix = 100
)

type CaptureRequest struct {
	URL      string
	Duration time.Duration
	OutPath  string
}

// Capturer records a stream into a file. It returns once the capture is complete.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) error
}

// CaptureError is returned when the capture tool could not be started or exited non-zero.
type CaptureError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CaptureError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("capture failed (exit %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("capture failed (exit %d): %v: %s", e.ExitCode, e.Err, e.Stderr)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// FFmpeg captures streams with the ffmpeg command, copying the audio codec as is.
type FFmpeg struct {
	Path string
	// Overhead is added to the capture duration to bound the whole process.
	Overhead time.Duration
}

func (f *FFmpeg) args(req CaptureRequest) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", req.URL,
		"-t", strconv.FormatFloat(req.Duration.Seconds(), 'f', -1, 64),
		"-acodec", "copy",
		req.OutPath,
	}
}

func (f *FFmpeg) Capture(ctx context.Context, req CaptureRequest) error {
	ctx, cancel := context.WithTimeout(ctx, req.Duration+f.Overhead)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, f.args(req)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		ce := &CaptureError{
			ExitCode: -1,
			Stderr:   tail(stderr.String(), stderrTailSize),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ce.ExitCode = exitErr.ExitCode()
		}
		return ce
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

var unsafePathChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)

func sanitizePathString(input string) string {
	removed := unsafePathChars.ReplaceAllString(input, "")
	fullSpaceRemoved := strings.ReplaceAll(removed, "　", "_")
	return strings.ReplaceAll(strings.TrimSpace(fullSpaceRemoved), " ", "_")
}

func outputFileName(show string, start time.Time) string {
	return fmt.Sprintf("%s_%s.mp3", sanitizePathString(show), start.Format("20060102_150405"))
}

// reserveOutputPath creates the empty output file for a recording. While a name is taken,
// a numeric suffix is added, so two jobs never write the same file.
func reserveOutputPath(dir, show string, start time.Time) (string, error) {
	base := strings.TrimSuffix(outputFileName(show, start), ".mp3")
	for n := 1; n <= maxOutputSuffix; n++ {
		name := base + ".mp3"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.mp3", base, n)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create output file: %w", err)
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free output file name for %s", base)
}

// removeIfEmpty deletes a reserved output file nothing was written to.
func removeIfEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.Size() > 0 {
		return false, nil
	}
	return true, os.Remove(path)
}
