package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
)

type Result struct {
	Checked   int
	Updated   int
	Unchanged int
}

// Runner re-classifies items that sit in the fallback buckets.
type Runner struct {
	classifier *Classifier
	items      database.ItemRepository
	categories database.CategoryRepository
}

func NewRunner(classifier *Classifier, items database.ItemRepository, categories database.CategoryRepository) *Runner {
	return &Runner{
		classifier: classifier,
		items:      items,
		categories: categories,
	}
}

// Run classifies up to limit items (0 means all) from the default bucket, the
// unclassified bucket and items without a category.
func (r *Runner) Run(ctx context.Context, limit int) (Result, error) {
	var result Result

	bucketIDs := make([]int64, 0, 2)
	for _, name := range []string{r.classifier.Default(), r.classifier.Unclassified()} {
		category, err := r.categories.GetOrCreate(ctx, name)
		if err != nil {
			return result, fmt.Errorf("failed to resolve category %s: %w", name, err)
		}
		bucketIDs = append(bucketIDs, category.ID)
	}

	items, err := r.items.ListByCategories(ctx, bucketIDs, true, limit)
	if err != nil {
		return result, fmt.Errorf("failed to list items to classify: %w", err)
	}

	resolved := make(map[string]int64)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		name := r.classifier.Classify(item.Title + "\n" + item.Summary)
		categoryID, ok := resolved[name]
		if !ok {
			category, err := r.categories.GetOrCreate(ctx, name)
			if err != nil {
				return result, fmt.Errorf("failed to resolve category %s: %w", name, err)
			}
			categoryID = category.ID
			resolved[name] = categoryID
		}

		if item.CategoryID != nil && *item.CategoryID == categoryID {
			result.Unchanged++
			continue
		}

		if err := r.items.UpdateCategory(ctx, item.ID, categoryID); err != nil {
			return result, err
		}
		result.Updated++

		slog.Debug("Item classified", "slug", item.Slug, "category", name)
	}

	slog.Info("Classification completed", "checked", result.Checked, "updated", result.Updated, "unchanged", result.Unchanged)

	return result, nil
}
