package database

import (
	"time"
)

type Source struct {
	ID            int64      `db:"id"`
	Key           string     `db:"key"` // configuration key derived from the file name
	Name          string     `db:"name"`
	FeedURL       string     `db:"feed_url"`
	Slug          string     `db:"slug"`
	IsActive      bool       `db:"is_active"`
	CategoryHint  string     `db:"category_hint"`
	LastFetchedAt *time.Time `db:"last_fetched_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type Category struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	CreatedAt time.Time `db:"created_at"`
}

type ImportedItem struct {
	ID            int64     `db:"id"`
	Title         string    `db:"title"`
	Link          string    `db:"link"` // canonical link, dedup key
	Summary       string    `db:"summary"`
	ImageURL      string    `db:"image_url"`
	PublishedAt   time.Time `db:"published_at"`
	SourceID      *int64    `db:"source_id"`
	CategoryID    *int64    `db:"category_id"`
	Slug          string    `db:"slug"`
	IsPlaceholder bool      `db:"is_placeholder"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ItemView is an imported item joined with its source and category.
type ItemView struct {
	ImportedItem
	SourceName   string `db:"source_name"`
	SourceSlug   string `db:"source_slug"`
	CategoryName string `db:"category_name"`
	CategorySlug string `db:"category_slug"`
}

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

type OperationLog struct {
	ID        int64     `db:"id"`
	RunID     string    `db:"run_id"`
	Level     LogLevel  `db:"level"`
	Source    string    `db:"source"`
	Link      string    `db:"link"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// CategoryCount is a category with the number of items assigned to it.
type CategoryCount struct {
	Category
	Items int `db:"items"`
}

// ImageRef points at an item image for liveness checks.
type ImageRef struct {
	ID       int64  `db:"id"`
	Slug     string `db:"slug"`
	Link     string `db:"link"`
	ImageURL string `db:"image_url"`
}
