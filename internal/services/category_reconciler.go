package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/core"
	"ledger/internal/repository"
)

// CategoryReconciler resolves category names to stored categories,
// creating the ones that do not exist yet.
type CategoryReconciler struct {
	repo repository.CategoryRepository
}

func NewCategoryReconciler(repo repository.CategoryRepository) *CategoryReconciler {
	return &CategoryReconciler{repo: repo}
}

// Reconcile returns a category for every distinct name, keyed by title.
// Existing categories are looked up in one call and the missing ones are
// created in one batch, so each new name yields exactly one category.
func (r *CategoryReconciler) Reconcile(ctx context.Context, names []string) (map[string]core.Category, error) {
	distinct := dedup(names)
	if len(distinct) == 0 {
		return map[string]core.Category{}, nil
	}

	existing, err := r.repo.FindCategoriesByTitles(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}

	byTitle := make(map[string]core.Category, len(distinct))
	for _, c := range existing {
		byTitle[c.Title] = c
	}

	var missing []string
	for _, name := range distinct {
		if _, ok := byTitle[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return byTitle, nil
	}

	created, err := r.repo.CreateCategories(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("create categories: %w", err)
	}
	for _, c := range created {
		byTitle[c.Title] = c
	}

	slog.InfoContext(ctx, "Categories reconciled",
		"existing", len(existing),
		"created", len(created))

	return byTitle, nil
}

// dedup keeps the first occurrence of each name.
func dedup(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
