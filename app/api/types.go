package api

import (
	"time"

	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
	"github.com/izotovlife/izotovlife.ru-sub000/app/tasks"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	FeedItemsLimit  = 50
)

type GeneratorInterface interface {
	Run(source database.Source, items []database.ItemView) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	sourceRepo    database.SourceRepository
	itemRepo      database.ItemRepository
	categoryRepo  database.CategoryRepository
	generator     GeneratorInterface
	configCache   *feed.ConfigCache
	scheduler     tasks.TaskSchedulerInterface
	ingester      tasks.Ingester
	classifier    tasks.Reclassifier
	classifyLimit int
	baseURL       string
}

type NewsItem struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Summary     string    `json:"summary"`
	Image       string    `json:"image"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	SEOURL      string    `json:"seo_url"`
}

type NewsList struct {
	Items  []NewsItem `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type CategoryInfo struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Items int    `json:"items"`
}

type SourceInfo struct {
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	FeedURL       string     `json:"feed_url"`
	IsActive      bool       `json:"is_active"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
}

type TaskInfo struct {
	ID     string         `json:"id"`
	Type   tasks.TaskType `json:"type"`
	Target string         `json:"target"`
}
