package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type ShowEntry struct {
	Name     string `json:"name" toml:"name" yaml:"name" validate:"required"`
	URL      string `json:"url" toml:"url" yaml:"url" validate:"required,url"`
	Day      string `json:"day" toml:"day" yaml:"day" validate:"required"`
	Time     string `json:"time" toml:"time" yaml:"time" validate:"required"`
	Timezone string `json:"timezone" toml:"timezone" yaml:"timezone" validate:"required"`
	Duration int    `json:"duration" toml:"duration" yaml:"duration" validate:"gt=0"`
	Artist   string `json:"artist,omitempty" toml:"artist" yaml:"artist,omitempty"`
	Album    string `json:"album,omitempty" toml:"album" yaml:"album,omitempty"`
	Genre    string `json:"genre,omitempty" toml:"genre" yaml:"genre,omitempty"`
}

type DefaultsEntry struct {
	Artist string `json:"artist,omitempty" toml:"artist" yaml:"artist,omitempty"`
	Album  string `json:"album,omitempty" toml:"album" yaml:"album,omitempty"`
	Genre  string `json:"genre,omitempty" toml:"genre" yaml:"genre,omitempty"`
}

// Document is the shows file as written by the admin UI.
type Document struct {
	Defaults DefaultsEntry `json:"defaults" toml:"defaults" yaml:"defaults"`
	Shows    []ShowEntry   `json:"shows" toml:"shows" yaml:"shows"`
}

// ReadDocument decodes path as JSON, TOML or YAML depending on its extension.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported shows file extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &doc, nil
}

// Compile builds every entry of the document. Broken entries are left out and reported in
// the returned error; the remaining shows are still usable.
func (d *Document) Compile(fallback Metadata) ([]Show, error) {
	defaults := Metadata{
		Artist: d.Defaults.Artist,
		Album:  d.Defaults.Album,
		Genre:  d.Defaults.Genre,
	}.Or(fallback)

	shows := make([]Show, 0, len(d.Shows))
	seen := make(map[string]struct{}, len(d.Shows))
	var errs []error
	for i, e := range d.Shows {
		s, err := e.Show(defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("shows[%d] %q: %w", i, e.Name, err))
			continue
		}
		if _, ok := seen[s.Name]; ok {
			errs = append(errs, fmt.Errorf("shows[%d] %q: %w: duplicate name", i, e.Name, ErrInvalidShow))
			continue
		}
		seen[s.Name] = struct{}{}
		shows = append(shows, s)
	}
	return shows, errors.Join(errs...)
}

func (e ShowEntry) Show(defaults Metadata) (Show, error) {
	if err := validate.Struct(e); err != nil {
		return Show{}, fmt.Errorf("%w: %v", ErrInvalidShow, err)
	}
	loc, err := LoadLocation(e.Timezone)
	if err != nil {
		return Show{}, err
	}
	wd, err := ParseWeekday(e.Day)
	if err != nil {
		return Show{}, err
	}
	tod, err := ParseTimeOfDay(e.Time)
	if err != nil {
		return Show{}, err
	}
	return Show{
		Name:     e.Name,
		URL:      e.URL,
		Weekday:  wd,
		Start:    tod,
		Location: loc,
		Duration: time.Duration(e.Duration) * time.Second,
		Metadata: Metadata{
			Artist: e.Artist,
			Album:  e.Album,
			Genre:  e.Genre,
		}.Or(defaults),
	}, nil
}

// LoadShows reads the document at path. A nil slice with a non-nil error means the document
// itself could not be read; a non-nil slice with an error means some entries were skipped.
func LoadShows(path string, fallback Metadata) ([]Show, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.Compile(fallback)
}
