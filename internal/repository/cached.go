package repository

import (
	"context"
	"log/slog"

	"ledger/internal/cache"
	"ledger/internal/core"
)

// CachedRepository keeps resolved categories in an LRU so repeated imports of
// the same names skip the lookup. Categories are never deleted, so a cached
// entry stays valid until it expires. Inside Atomic, categories read or
// created by the unit of work are cached only after it commits.
type CachedRepository struct {
	Repository
	categories *cache.LRUCache[string, core.Category]
}

func NewCached(inner Repository, categories *cache.LRUCache[string, core.Category]) *CachedRepository {
	return &CachedRepository{Repository: inner, categories: categories}
}

func (r *CachedRepository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	found, err := lookupCategories(ctx, r.categories, r.Repository, titles)
	if err != nil {
		return nil, err
	}
	for _, c := range found {
		r.categories.Set(c.Title, c)
	}
	return found, nil
}

func (r *CachedRepository) Atomic(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	var view *cachedTx
	err := r.Repository.Atomic(ctx, func(ctx context.Context, tx Repository) error {
		view = &cachedTx{Repository: tx, categories: r.categories}
		return fn(ctx, view)
	})
	if err != nil || view == nil {
		return err
	}
	for _, c := range view.pending {
		r.categories.Set(c.Title, c)
	}
	return nil
}

// cachedTx reads committed categories from the cache and holds back what the
// unit of work sees until it commits.
type cachedTx struct {
	Repository
	categories *cache.LRUCache[string, core.Category]
	pending    []core.Category
}

func (v *cachedTx) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	found, err := lookupCategories(ctx, v.categories, v.Repository, titles)
	if err != nil {
		return nil, err
	}
	v.pending = append(v.pending, found...)
	return found, nil
}

func (v *cachedTx) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	created, err := v.Repository.CreateCategories(ctx, titles)
	if err != nil {
		return nil, err
	}
	v.pending = append(v.pending, created...)
	return created, nil
}

// Atomic joins the enclosing unit of work through the wrapped store.
func (v *cachedTx) Atomic(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return v.Repository.Atomic(ctx, func(ctx context.Context, _ Repository) error {
		return fn(ctx, v)
	})
}

// lookupCategories answers from the cache and asks store only for the misses.
// Returned store hits are not cached here.
func lookupCategories(ctx context.Context, c *cache.LRUCache[string, core.Category], store CategoryRepository, titles []string) ([]core.Category, error) {
	var (
		hits   []core.Category
		misses []string
		seen   = make(map[string]struct{}, len(titles))
	)
	for _, t := range titles {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if cat, ok := c.Get(t); ok {
			hits = append(hits, cat)
			continue
		}
		misses = append(misses, t)
	}

	if len(misses) == 0 {
		slog.DebugContext(ctx, "Category lookup served from cache", "count", len(hits))
		return hits, nil
	}

	found, err := store.FindCategoriesByTitles(ctx, misses)
	if err != nil {
		return nil, err
	}
	return append(hits, found...), nil
}
