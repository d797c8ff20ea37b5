package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/links"
	"github.com/izotovlife/izotovlife.ru-sub000/app/slug"
)

const maxSlugAttempts = 100

// Candidate is an accepted entry ready to be stored.
type Candidate struct {
	Title         string
	Link          string
	Summary       string
	ImageURL      string
	PublishedAt   time.Time // zero when the feed has no date
	Source        *database.Source
	CategoryID    *int64
	IsPlaceholder bool
}

// Upserter stores candidates keyed by canonical link. Existing items are
// updated in place and keep their slug; new items get a unique slug.
type Upserter struct {
	items database.ItemRepository
}

func NewUpserter(items database.ItemRepository) *Upserter {
	return &Upserter{items: items}
}

// Upsert returns the stored item and whether it was created.
func (u *Upserter) Upsert(ctx context.Context, c Candidate) (*database.ImportedItem, bool, error) {
	link, err := links.CanonicalLink(c.Link)
	if err != nil {
		return nil, false, err
	}

	existing, err := u.items.GetByLink(ctx, link)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := u.update(ctx, existing, c); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	prefix := ""
	if c.Source != nil {
		prefix = c.Source.Slug
	}
	base := slug.ForItem(prefix, c.Title, link)

	item := &database.ImportedItem{Link: link}
	apply(item, c)

	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := slug.Suffixed(base, n)

		taken, err := u.items.SlugExists(ctx, candidate)
		if err != nil {
			return nil, false, err
		}
		if taken {
			continue
		}

		item.Slug = candidate
		err = u.items.Insert(ctx, item)
		if err == nil {
			return item, true, nil
		}

		switch {
		case database.IsDuplicateOf(err, "imported_items.slug"):
			slog.Debug("Slug taken concurrently, trying next suffix", "slug", candidate)
			continue
		case database.IsDuplicateOf(err, "imported_items.link"):
			winner, getErr := u.items.GetByLink(ctx, link)
			if getErr != nil {
				return nil, false, getErr
			}
			if winner == nil {
				return nil, false, err
			}
			if err := u.update(ctx, winner, c); err != nil {
				return nil, false, err
			}
			return winner, false, nil
		default:
			return nil, false, err
		}
	}

	return nil, false, fmt.Errorf("failed to find a free slug for %s after %d attempts", base, maxSlugAttempts)
}

func (u *Upserter) update(ctx context.Context, item *database.ImportedItem, c Candidate) error {
	apply(item, c)
	return u.items.Update(ctx, item)
}

func apply(item *database.ImportedItem, c Candidate) {
	item.Title = c.Title
	item.Summary = c.Summary
	item.ImageURL = c.ImageURL
	switch {
	case !c.PublishedAt.IsZero():
		item.PublishedAt = c.PublishedAt
	case item.PublishedAt.IsZero():
		item.PublishedAt = time.Now()
	}
	item.CategoryID = c.CategoryID
	item.IsPlaceholder = c.IsPlaceholder
	if c.Source != nil {
		item.SourceID = &c.Source.ID
	}
}
