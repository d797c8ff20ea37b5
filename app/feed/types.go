package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

type ImageOrigin string

const (
	OriginEnclosure      ImageOrigin = "enclosure"
	OriginMediaContent   ImageOrigin = "media:content"
	OriginMediaThumbnail ImageOrigin = "media:thumbnail"
	OriginItemImage      ImageOrigin = "image"
)

// ImageHint is an image candidate announced by the feed itself.
type ImageHint struct {
	URL    string
	Type   string // MIME type or media medium, may be empty
	Origin ImageOrigin
}

type Entry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string // description, usually short HTML
	Content     string // content:encoded or atom content
	PublishedAt *time.Time
	Authors     []string
	Categories  []string
	Images      []ImageHint
}

// Configuration types

type Config struct {
	Key      string         // Derived from filename (without .yml extension)
	Name     string         `yaml:"name"`
	URL      string         `yaml:"url"`
	Slug     string         `yaml:"slug"`
	Category string         `yaml:"category"` // default category hint
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled  bool `yaml:"enabled"`
	MaxItems int  `yaml:"max_items"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
