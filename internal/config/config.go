package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultOutDirPath        = "recordings"
	defaultShowsPath         = "shows.json"
	defaultStatusPath        = "status.json"
	defaultReferenceTimezone = "America/Chicago"
	defaultFFmpegPath        = "ffmpeg"
	defaultPollInterval      = "1s"
	defaultReconcileInterval = "1h"
	defaultQuietWindow       = "15m"
	defaultCaptureOverhead   = "1m"
	defaultServerPort        = 8080
)

type Config struct {
	OutDirPath string   `toml:"out_dir_path"`
	ShowsPath  string   `toml:"shows_path"`
	StatusPath string   `toml:"status_path"`
	Recorder   Recorder `toml:"recorder"`
	Metadata   Metadata `toml:"metadata"`
	Server     Server   `toml:"server"`
}

type Recorder struct {
	ReferenceTimezone    string `toml:"reference_timezone"`
	FFmpegPath           string `toml:"ffmpeg_path"`
	PollIntervalStr      string `toml:"poll_interval"`
	ReconcileIntervalStr string `toml:"reconcile_interval"`
	QuietWindowStr       string `toml:"quiet_window"`
	CaptureOverheadStr   string `toml:"capture_overhead"`

	ReferenceLocation *time.Location `toml:"-"`
	PollInterval      time.Duration  `toml:"-"`
	ReconcileInterval time.Duration  `toml:"-"`
	QuietWindow       time.Duration  `toml:"-"`
	CaptureOverhead   time.Duration  `toml:"-"`
}

// Metadata is applied to shows that carry no artist, album or genre of their own.
type Metadata struct {
	Artist string `toml:"artist"`
	Album  string `toml:"album"`
	Genre  string `toml:"genre"`
}

type Server struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	BaseURL string `toml:"base_url"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (r *Recorder) update() error {
	r.ReferenceTimezone = orDefault(r.ReferenceTimezone, defaultReferenceTimezone)
	r.FFmpegPath = orDefault(r.FFmpegPath, defaultFFmpegPath)

	loc, err := time.LoadLocation(r.ReferenceTimezone)
	if err != nil {
		return fmt.Errorf("failed to load reference_timezone: %w", err)
	}
	r.ReferenceLocation = loc

	durations := []struct {
		name string
		str  *string
		def  string
		dst  *time.Duration
	}{
		{"poll_interval", &r.PollIntervalStr, defaultPollInterval, &r.PollInterval},
		{"reconcile_interval", &r.ReconcileIntervalStr, defaultReconcileInterval, &r.ReconcileInterval},
		{"quiet_window", &r.QuietWindowStr, defaultQuietWindow, &r.QuietWindow},
		{"capture_overhead", &r.CaptureOverheadStr, defaultCaptureOverhead, &r.CaptureOverhead},
	}
	for _, d := range durations {
		*d.str = orDefault(*d.str, d.def)
		v, err := time.ParseDuration(*d.str)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", d.name, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative: %s", d.name, *d.str)
		}
		*d.dst = v
	}
	if r.PollInterval == 0 || r.ReconcileInterval == 0 || r.CaptureOverhead == 0 {
		return fmt.Errorf("poll_interval, reconcile_interval and capture_overhead must be positive")
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SHOWREC_SHOWS_PATH"); v != "" {
		c.ShowsPath = v
	}
	if v := os.Getenv("SHOWREC_OUT_DIR"); v != "" {
		c.OutDirPath = v
	}
	if v := os.Getenv("SHOWREC_STATUS_PATH"); v != "" {
		c.StatusPath = v
	}
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cnf := &Config{}
	cnf.fill()
	if err := cnf.Recorder.update(); err != nil {
		panic(fmt.Errorf("invalid default config: %w", err))
	}
	return cnf
}

func (c *Config) fill() {
	c.applyEnv()
	c.OutDirPath = orDefault(c.OutDirPath, defaultOutDirPath)
	c.ShowsPath = orDefault(c.ShowsPath, defaultShowsPath)
	c.StatusPath = orDefault(c.StatusPath, defaultStatusPath)
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
}

func Parse(path string) (*Config, error) {
	var cnf Config
	if _, err := toml.DecodeFile(path, &cnf); err != nil {
		return nil, err
	}
	cnf.fill()
	if err := cnf.Recorder.update(); err != nil {
		return nil, err
	}
	return &cnf, nil
}
