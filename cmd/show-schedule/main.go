package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/abekoh/showrec/internal/config"
	"github.com/abekoh/showrec/internal/schedule"
)

const occurrenceFormat = "Monday, January 02, 2006 at 03:04 PM MST"

func init() {
	slog.SetDefault(
		slog.New(
			tint.NewHandler(
				os.Stderr,
				&tint.Options{
					Level:      slog.LevelWarn,
					TimeFormat: time.Kitchen,
				},
			),
		),
	)
}

func main() {
	logger := slog.Default().With("job", "main")

	var configPath, showsPath string
	flag.StringVar(&configPath, "config", "config.toml", "config path")
	flag.StringVar(&showsPath, "shows", "", "shows file path, overrides config")
	flag.Parse()

	cnf, err := config.Parse(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cnf, err = config.Default(), nil
	}
	if err != nil {
		logger.Error("failed to parse config", "error", err)
		os.Exit(1)
	}
	if showsPath != "" {
		cnf.ShowsPath = showsPath
	}

	fallback := schedule.Metadata{
		Artist: cnf.Metadata.Artist,
		Album:  cnf.Metadata.Album,
		Genre:  cnf.Metadata.Genre,
	}
	shows, err := schedule.LoadShows(cnf.ShowsPath, fallback)
	if shows == nil {
		logger.Error("failed to load shows", "path", cnf.ShowsPath, "error", err)
		os.Exit(1)
	}
	if err != nil {
		logger.Warn("some shows were skipped", "error", err)
	}

	ref := cnf.Recorder.ReferenceLocation
	days := schedule.Next7Days(shows, time.Now().In(ref), ref)
	if len(days) == 0 {
		fmt.Println("No shows scheduled in the next 7 days.")
		return
	}
	for _, d := range days {
		fmt.Println(d.Date.Format("Monday, January 02"))
		for _, o := range d.Occurrences {
			fmt.Printf("  %s: %s\n", o.Show.Name, o.Reference.Format(occurrenceFormat))
		}
	}
}
