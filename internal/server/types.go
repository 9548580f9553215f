package server

import (
	"encoding/xml"
	"time"
)

type RSS struct {
	XMLName xml.Name  `xml:"rss"`
	Version string    `xml:"version,attr"`
	Channel []Channel `xml:"channel"`
}

type Channel struct {
	Title        string         `xml:"title"`
	Description  string         `xml:"description,omitempty"`
	Generator    string         `xml:"generator,omitempty"`
	Link         string         `xml:"link,omitempty"`
	ITunesAuthor string         `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd author,omitempty"`
	Category     ITunesCategory `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd category,omitempty"`
	Language     string         `xml:"language,omitempty"`
	Item         []Item         `xml:"item"`
}

type ITunesCategory struct {
	Text string `xml:"text,attr,omitempty"`
}

type Item struct {
	Title       string    `xml:"title,omitempty"`
	Description string    `xml:"description,omitempty"`
	PubDate     string    `xml:"pubDate,omitempty"`
	GUID        GUID      `xml:"guid,omitempty"`
	Author      string    `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd author,omitempty"`
	Enclosure   Enclosure `xml:"enclosure,omitempty"`

	published time.Time
}

type GUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Content     string `xml:",chardata"`
}

type Enclosure struct {
	URL    string `xml:"url,attr,omitempty"`
	Type   string `xml:"type,attr,omitempty"`
	Length int64  `xml:"length,attr,omitempty"`
}

type ScheduleDay struct {
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Shows   []ScheduleEntry `json:"shows"`
}

type ScheduleEntry struct {
	Name            string    `json:"name"`
	Start           time.Time `json:"start"`
	SourceStart     time.Time `json:"source_start"`
	DurationSeconds int64     `json:"duration_seconds"`
}
