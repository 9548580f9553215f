package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/abekoh/showrec/internal/config"
	"github.com/abekoh/showrec/internal/recorder"
	"github.com/abekoh/showrec/internal/server"
)

func init() {
	_ = godotenv.Load()

	var logLevel slog.Level
	logLevelEnv := os.Getenv("LOG_LEVEL")
	switch {
	case strings.EqualFold(logLevelEnv, "debug"):
		logLevel = slog.LevelDebug
	case strings.EqualFold(logLevelEnv, "warn"):
		logLevel = slog.LevelWarn
	case strings.EqualFold(logLevelEnv, "error"):
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.Warn("failed to open log file", "path", logFile, "error", err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
		}
	}

	if strings.EqualFold(os.Getenv("LOG_COLOR"), "true") {
		slog.SetDefault(
			slog.New(
				tint.NewHandler(
					w,
					&tint.Options{
						Level:      logLevel,
						TimeFormat: time.Kitchen,
					},
				),
			),
		)
	} else {
		slog.SetDefault(
			slog.New(
				slog.NewJSONHandler(
					w,
					&slog.HandlerOptions{
						Level: logLevel,
					},
				)),
		)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cnf, err := config.Parse(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().With("job", "main").Info("config not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return cnf, err
}

func main() {
	logger := slog.Default().With("job", "main")

	var configPath, nowShow string
	flag.StringVar(&configPath, "config", "config.toml", "config path")
	flag.StringVar(&nowShow, "now", "", "record the named show right now and exit")
	flag.Parse()

	cnf, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to parse config", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cnf.OutDirPath, 0755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	if _, err := exec.LookPath(cnf.Recorder.FFmpegPath); err != nil {
		logger.Error("ffmpeg command is not available", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rec := recorder.New(cnf)

	if nowShow != "" {
		out, err := rec.RecordNow(ctx, nowShow)
		if err != nil {
			logger.Error("failed to record", "show", nowShow, "error", err)
			os.Exit(1)
		}
		if out.Failed() {
			os.Exit(1)
		}
		logger.Info("recorded", "show", nowShow, "path", out.Path)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rec.Run(gctx)
	})
	if cnf.Server.Enabled {
		srv := server.New(cnf, rec.LoadShows)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
