package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// Sync inserts or updates the source identified by state.Key. An empty
// configured slug never clears a slug that is already stored.
func (r *SourceRepo) Sync(ctx context.Context, state SourceState) (*Source, error) {
	var source Source
	err := r.db.GetContext(ctx, &source, `
		INSERT INTO sources (key, name, feed_url, slug, is_active, category_hint)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			name = excluded.name,
			feed_url = excluded.feed_url,
			slug = CASE WHEN excluded.slug <> '' THEN excluded.slug ELSE sources.slug END,
			is_active = excluded.is_active,
			category_hint = excluded.category_hint,
			updated_at = CURRENT_TIMESTAMP
		RETURNING *
	`, state.Key, state.Name, state.FeedURL, state.Slug, state.IsActive, state.CategoryHint)
	if err != nil {
		return nil, fmt.Errorf("failed to sync source %s: %w", state.Key, asDuplicate(err))
	}

	return &source, nil
}

func (r *SourceRepo) GetByKey(ctx context.Context, key string) (*Source, error) {
	return r.getOne(ctx, `SELECT * FROM sources WHERE key = ?`, key)
}

func (r *SourceRepo) GetBySlug(ctx context.Context, slug string) (*Source, error) {
	return r.getOne(ctx, `SELECT * FROM sources WHERE slug = ? AND slug <> ''`, slug)
}

func (r *SourceRepo) getOne(ctx context.Context, query string, args ...any) (*Source, error) {
	var source Source
	err := r.db.GetContext(ctx, &source, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (r *SourceRepo) List(ctx context.Context, activeOnly bool) ([]Source, error) {
	query := `SELECT * FROM sources ORDER BY key`
	if activeOnly {
		query = `SELECT * FROM sources WHERE is_active = 1 ORDER BY key`
	}

	sources := make([]Source, 0)
	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

func (r *SourceRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM sources WHERE slug = ?)`, slug); err != nil {
		return false, fmt.Errorf("failed to check source slug: %w", err)
	}
	return exists, nil
}

func (r *SourceRepo) SetSlug(ctx context.Context, id int64, slug string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sources SET slug = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, slug, id)
	if err != nil {
		return fmt.Errorf("failed to set source slug: %w", asDuplicate(err))
	}
	return nil
}

func (r *SourceRepo) Touch(ctx context.Context, id int64, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sources SET last_fetched_at = ? WHERE id = ?`, dbTime(fetchedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update source fetch time: %w", err)
	}
	return nil
}

// dbTime stores times in UTC at second precision so text ordering matches time ordering.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
