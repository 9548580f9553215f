package server

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"

	"github.com/abekoh/showrec/internal/config"
	"github.com/abekoh/showrec/internal/recorder"
	"github.com/abekoh/showrec/internal/schedule"
)

const (
	defaultChannelTitle = "Recordings"
	shutdownTimeout     = 5 * time.Second
)

type Server struct {
	cnf       *config.Config
	loadShows func() ([]schedule.Show, error)
	now       func() time.Time
	logger    *slog.Logger

	rssMu sync.RWMutex
	rss   *RSS
}

func New(cnf *config.Config, loadShows func() ([]schedule.Show, error)) *Server {
	return &Server{
		cnf:       cnf,
		loadShows: loadShows,
		now:       time.Now,
		logger:    slog.Default().With("job", "server"),
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/feed.xml", s.getRSS).Methods(http.MethodGet)
	r.HandleFunc("/schedule", s.getSchedule).Methods(http.MethodGet)
	return r
}

// Run serves HTTP and keeps the feed in sync with the output directory until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.refresh(); err != nil {
		return fmt.Errorf("failed to generate RSS: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.cnf.OutDirPath); err != nil {
		return fmt.Errorf("failed to add watcher: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cnf.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("start server", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	for {
		select {
		case event := <-watcher.Events:
			if filepath.Ext(event.Name) != ".mp3" {
				continue
			}
			if err := s.refresh(); err != nil {
				s.logger.Error("failed to generate RSS", "error", err)
			}
		case err := <-watcher.Errors:
			s.logger.Warn("watcher error", "error", err)
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.logger.Debug("stop server")
			return srv.Shutdown(shutdownCtx)
		}
	}
}

func (s *Server) refresh() error {
	rs, err := GenerateRSS(s.cnf.OutDirPath, s.cnf.Server.BaseURL, s.cnf.Recorder.ReferenceLocation)
	if err != nil {
		return err
	}
	s.rssMu.Lock()
	s.rss = rs
	s.rssMu.Unlock()
	return nil
}

var recordedAtPattern = regexp.MustCompile(`_(\d{8}_\d{6})(?:_\d+)?\.mp3$`)

// GenerateRSS builds one channel per album from the tagged recordings under outDirPath.
func GenerateRSS(outDirPath, baseURL string, loc *time.Location) (*RSS, error) {
	logger := slog.Default().With("job", "generateRSS")
	channelMap := make(map[string]*Channel)
	if err := filepath.WalkDir(outDirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk: %w", err)
		}
		if d.IsDir() || filepath.Ext(path) != ".mp3" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.Size() == 0 {
			return nil
		}
		tags, err := recorder.ReadTags(path)
		if err != nil {
			logger.Warn("failed to read tags", "path", path, "error", err)
		}

		rel, err := filepath.Rel(outDirPath, path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		published := info.ModTime()
		if m := recordedAtPattern.FindStringSubmatch(path); m != nil {
			if t, err := time.ParseInLocation("20060102_150405", m[1], loc); err == nil {
				published = t
			}
		}

		title := tags.Album
		if title == "" {
			title = defaultChannelTitle
		}
		channel, ok := channelMap[title]
		if !ok {
			channel = &Channel{
				Title:        title,
				Generator:    "abekoh/showrec",
				ITunesAuthor: tags.Artist,
				Category:     ITunesCategory{Text: tags.Genre},
				Item:         []Item{},
			}
			channelMap[title] = channel
		}

		itemTitle := tags.Title
		if itemTitle == "" {
			itemTitle = strings.TrimSuffix(filepath.Base(path), ".mp3")
		}
		channel.Item = append(channel.Item, Item{
			Title:       itemTitle,
			Description: tags.Comment,
			PubDate:     published.Format(time.RFC1123Z),
			GUID:        GUID{Content: rel},
			Author:      tags.Artist,
			Enclosure: Enclosure{
				URL:    enclosureURL(baseURL, rel),
				Type:   "audio/mpeg",
				Length: info.Size(),
			},
			published: published,
		})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to walk: %w", err)
	}

	channels := make([]Channel, 0, len(channelMap))
	for _, channel := range channelMap {
		slices.SortStableFunc(channel.Item, func(a, b Item) int {
			return b.published.Compare(a.published)
		})
		channels = append(channels, *channel)
	}
	slices.SortFunc(channels, func(a, b Channel) int {
		return strings.Compare(a.Title, b.Title)
	})
	rs := &RSS{
		Version: "2.0",
		Channel: channels,
	}
	logger.Debug("complete generating RSS", "channels", len(channels))
	return rs, nil
}

func enclosureURL(baseURL, rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.Join(parts, "/")
}

func (s *Server) getRSS(w http.ResponseWriter, r *http.Request) {
	s.rssMu.RLock()
	defer s.rssMu.RUnlock()
	if s.rss == nil {
		http.Error(w, "RSS is not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(s.rss); err != nil {
		s.logger.Error("failed to encode RSS", "error", err)
	}
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	shows, err := s.loadShows()
	if shows == nil && err != nil {
		s.logger.Error("failed to load shows", "error", err)
		http.Error(w, "failed to load shows", http.StatusInternalServerError)
		return
	}
	ref := s.cnf.Recorder.ReferenceLocation
	days := schedule.Next7Days(shows, s.now().In(ref), ref)

	resp := make([]ScheduleDay, 0, len(days))
	for _, d := range days {
		day := ScheduleDay{
			Date:    d.Date.Format("2006-01-02"),
			Weekday: d.Date.Weekday().String(),
			Shows:   make([]ScheduleEntry, 0, len(d.Occurrences)),
		}
		for _, o := range d.Occurrences {
			day.Shows = append(day.Shows, ScheduleEntry{
				Name:            o.Show.Name,
				Start:           o.Reference,
				SourceStart:     o.Source,
				DurationSeconds: int64(o.Show.Duration / time.Second),
			})
		}
		resp = append(resp, day)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode schedule", "error", err)
	}
}
