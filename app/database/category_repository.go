package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/izotovlife/izotovlife.ru-sub000/app/slug"
)

const maxSlugAttempts = 50

type CategoryRepo struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// GetOrCreate finds a category by slug, then by case-insensitive name, and
// creates it when neither matches. A concurrent insert of the same slug
// returns the winner; other collisions get a numeric suffix.
func (r *CategoryRepo) GetOrCreate(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is empty")
	}

	base := slug.ForName(name, "category")
	if !slug.IsValid(base) {
		return nil, fmt.Errorf("category %s: invalid slug %q", name, base)
	}

	existing, err := r.GetBySlug(ctx, base)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	existing, err = r.getOne(ctx, `SELECT * FROM categories WHERE lower(name) = lower(?) ORDER BY id LIMIT 1`, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	for n := 1; n <= maxSlugAttempts; n++ {
		var category Category
		err := r.db.GetContext(ctx, &category,
			`INSERT INTO categories (name, slug) VALUES (?, ?) RETURNING *`,
			name, slug.Suffixed(base, n))
		if err == nil {
			return &category, nil
		}
		if err = asDuplicate(err); !IsDuplicateOf(err, "categories.slug") {
			return nil, fmt.Errorf("failed to create category %s: %w", name, err)
		}

		if n == 1 {
			winner, err := r.GetBySlug(ctx, base)
			if err != nil {
				return nil, err
			}
			if winner != nil {
				return winner, nil
			}
		}
	}

	return nil, fmt.Errorf("failed to create category %s: no free slug for %s", name, base)
}

func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	return r.getOne(ctx, `SELECT * FROM categories WHERE slug = ?`, slug)
}

func (r *CategoryRepo) getOne(ctx context.Context, query string, args ...any) (*Category, error) {
	var category Category
	err := r.db.GetContext(ctx, &category, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// List returns all categories with their item counts, ordered by name.
func (r *CategoryRepo) List(ctx context.Context) ([]CategoryCount, error) {
	categories := make([]CategoryCount, 0)
	err := r.db.SelectContext(ctx, &categories, `
		SELECT c.*, COUNT(i.id) AS items
		FROM categories c
		LEFT JOIN imported_items i ON i.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
