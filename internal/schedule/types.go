package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTimezone   = errors.New("invalid timezone")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidWeekday    = errors.New("invalid weekday")
	ErrInvalidShow       = errors.New("invalid show")
)

// weekdays is ordered Monday first, as shows are written in the config.
var weekdays = [...]time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// ParseWeekday accepts full ("Monday") and short ("Mon") names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	for _, wd := range weekdays {
		name := wd.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

type TimeOfDay struct {
	Hour   int
	Minute int
}

var timeOfDayLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"15:04",
}

// ParseTimeOfDay parses 12-hour ("11:00 PM") or 24-hour ("23:00") clock times.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// LoadLocation wraps time.LoadLocation with ErrInvalidTimezone.
// The empty string and "Local" are rejected; shows must name their zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, name, err)
	}
	return loc, nil
}

type Metadata struct {
	Artist string
	Album  string
	Genre  string
}

// Or fills empty fields from fallback.
func (m Metadata) Or(fallback Metadata) Metadata {
	if m.Artist == "" {
		m.Artist = fallback.Artist
	}
	if m.Album == "" {
		m.Album = fallback.Album
	}
	if m.Genre == "" {
		m.Genre = fallback.Genre
	}
	return m
}

// Show is a weekly recording rule. Weekday and Start are wall-clock values in Location.
type Show struct {
	Name     string
	URL      string
	Weekday  time.Weekday
	Start    TimeOfDay
	Location *time.Location
	Duration time.Duration
	Metadata Metadata
}

func (s Show) String() string {
	return fmt.Sprintf(
		"%s %s %s(%s) for %s",
		s.Name,
		s.Weekday.String()[:3],
		s.Start,
		s.Location,
		s.Duration,
	)
}

// Occurrence is the next start of a Show. Reference and Source are the same instant.
type Occurrence struct {
	Show      Show
	Reference time.Time
	Source    time.Time
}

func (o Occurrence) String() string {
	return fmt.Sprintf(
		"%s %s-%s (%s)",
		o.Show.Name,
		o.Reference.Format("2006/01/02 15:04"),
		o.Reference.Add(o.Show.Duration).Format("15:04"),
		o.Source.Format("Mon 15:04 MST"),
	)
}
