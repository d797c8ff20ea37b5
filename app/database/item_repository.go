package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const itemViewColumns = `i.*,
	COALESCE(s.name, '') AS source_name,
	COALESCE(s.slug, '') AS source_slug,
	COALESCE(c.name, '') AS category_name,
	COALESCE(c.slug, '') AS category_slug`

type ItemRepo struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func (r *ItemRepo) GetByLink(ctx context.Context, link string) (*ImportedItem, error) {
	var item ImportedItem
	err := r.db.GetContext(ctx, &item, `SELECT * FROM imported_items WHERE link = ?`, link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by link: %w", err)
	}
	return &item, nil
}

func (r *ItemRepo) GetBySlug(ctx context.Context, slug string) (*ItemView, error) {
	query, args, err := r.viewQuery().Where(sq.Eq{"i.slug": slug}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var item ItemView
	err = r.db.GetContext(ctx, &item, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by slug: %w", err)
	}
	return &item, nil
}

func (r *ItemRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM imported_items WHERE slug = ?)`, slug); err != nil {
		return false, fmt.Errorf("failed to check item slug: %w", err)
	}
	return exists, nil
}

// Insert stores a new item and sets its ID and timestamps. UNIQUE violations
// come back as *DuplicateError naming the column.
func (r *ItemRepo) Insert(ctx context.Context, item *ImportedItem) error {
	now := dbTime(time.Now())
	item.PublishedAt = dbTime(item.PublishedAt)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO imported_items (
			title, link, summary, image_url, published_at,
			source_id, category_id, slug, is_placeholder, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Title, item.Link, item.Summary, item.ImageURL, item.PublishedAt,
		item.SourceID, item.CategoryID, item.Slug, item.IsPlaceholder, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", asDuplicate(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted item id: %w", err)
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// Update refreshes the mutable fields of an item. The slug and link are never changed.
func (r *ItemRepo) Update(ctx context.Context, item *ImportedItem) error {
	now := dbTime(time.Now())
	item.PublishedAt = dbTime(item.PublishedAt)

	_, err := r.db.ExecContext(ctx, `
		UPDATE imported_items
		SET title = ?, summary = ?, image_url = ?, published_at = ?,
			source_id = ?, category_id = ?, is_placeholder = ?, updated_at = ?
		WHERE id = ?
	`, item.Title, item.Summary, item.ImageURL, item.PublishedAt,
		item.SourceID, item.CategoryID, item.IsPlaceholder, now, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	item.UpdatedAt = now
	return nil
}

// List returns items newest first, optionally filtered by source and category slug.
func (r *ItemRepo) List(ctx context.Context, filter ItemFilter) ([]ItemView, error) {
	builder := r.applyFilter(r.viewQuery(), filter).OrderBy("i.published_at DESC", "i.id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	items := make([]ItemView, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) Count(ctx context.Context, filter ItemFilter) (int, error) {
	builder := sq.Select("COUNT(*)").
		From("imported_items i").
		LeftJoin("sources s ON s.id = i.source_id").
		LeftJoin("categories c ON c.id = i.category_id")

	query, args, err := r.applyFilter(builder, filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// ListByCategories returns items assigned to one of categoryIDs, plus the
// uncategorized ones when requested.
func (r *ItemRepo) ListByCategories(ctx context.Context, categoryIDs []int64, uncategorized bool, limit int) ([]ImportedItem, error) {
	or := sq.Or{}
	if len(categoryIDs) > 0 {
		or = append(or, sq.Eq{"category_id": categoryIDs})
	}
	if uncategorized {
		or = append(or, sq.Eq{"category_id": nil})
	}
	if len(or) == 0 {
		return []ImportedItem{}, nil
	}

	builder := sq.Select("*").From("imported_items").Where(or).OrderBy("published_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	items := make([]ImportedItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list items by category: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) UpdateCategory(ctx context.Context, id int64, categoryID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE imported_items SET category_id = ?, updated_at = ? WHERE id = ?`,
		categoryID, dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update item category: %w", err)
	}
	return nil
}

// ListImages returns items that carry an image URL, newest first.
func (r *ItemRepo) ListImages(ctx context.Context, limit int) ([]ImageRef, error) {
	builder := sq.Select("id", "slug", "link", "image_url").
		From("imported_items").
		Where(sq.NotEq{"image_url": ""}).
		OrderBy("published_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	refs := make([]ImageRef, 0)
	if err := r.db.SelectContext(ctx, &refs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list item images: %w", err)
	}
	return refs, nil
}

func (r *ItemRepo) viewQuery() sq.SelectBuilder {
	return sq.Select(itemViewColumns).
		From("imported_items i").
		LeftJoin("sources s ON s.id = i.source_id").
		LeftJoin("categories c ON c.id = i.category_id")
}

func (r *ItemRepo) applyFilter(builder sq.SelectBuilder, filter ItemFilter) sq.SelectBuilder {
	if filter.SourceSlug != "" {
		builder = builder.Where(sq.Eq{"s.slug": filter.SourceSlug})
	}
	if filter.CategorySlug != "" {
		builder = builder.Where(sq.Eq{"c.slug": filter.CategorySlug})
	}
	return builder
}
