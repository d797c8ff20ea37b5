package database

import (
	"context"
	"time"
)

// SourceState is the configured state of a source, written by Sync.
type SourceState struct {
	Key          string
	Name         string
	FeedURL      string
	Slug         string
	IsActive     bool
	CategoryHint string
}

type ItemFilter struct {
	SourceSlug   string
	CategorySlug string
	Limit        int
	Offset       int
}

type SourceRepository interface {
	Sync(ctx context.Context, state SourceState) (*Source, error)
	GetByKey(ctx context.Context, key string) (*Source, error)
	GetBySlug(ctx context.Context, slug string) (*Source, error)
	List(ctx context.Context, activeOnly bool) ([]Source, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetSlug(ctx context.Context, id int64, slug string) error
	Touch(ctx context.Context, id int64, fetchedAt time.Time) error
}

type ItemRepository interface {
	GetByLink(ctx context.Context, link string) (*ImportedItem, error)
	GetBySlug(ctx context.Context, slug string) (*ItemView, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Insert(ctx context.Context, item *ImportedItem) error
	Update(ctx context.Context, item *ImportedItem) error
	List(ctx context.Context, filter ItemFilter) ([]ItemView, error)
	Count(ctx context.Context, filter ItemFilter) (int, error)
	ListByCategories(ctx context.Context, categoryIDs []int64, uncategorized bool, limit int) ([]ImportedItem, error)
	UpdateCategory(ctx context.Context, id int64, categoryID int64) error
	ListImages(ctx context.Context, limit int) ([]ImageRef, error)
}

type CategoryRepository interface {
	GetOrCreate(ctx context.Context, name string) (*Category, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	List(ctx context.Context) ([]CategoryCount, error)
}

type LogRepository interface {
	Add(ctx context.Context, entry OperationLog) error
	ListByRun(ctx context.Context, runID string) ([]OperationLog, error)
}

var (
	_ SourceRepository   = (*SourceRepo)(nil)
	_ ItemRepository     = (*ItemRepo)(nil)
	_ CategoryRepository = (*CategoryRepo)(nil)
	_ LogRepository      = (*LogRepo)(nil)
)
