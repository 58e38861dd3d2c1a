package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/repository"
	"ledger/internal/repository/memory"
)

type countingRepo struct {
	repository.Repository
	finds   int
	lastArg []string
}

func (c *countingRepo) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	c.finds++
	c.lastArg = append([]string(nil), titles...)
	return c.Repository.FindCategoriesByTitles(ctx, titles)
}

func TestCachedRepositoryServesRepeatedLookups(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if _, err := store.CreateCategories(ctx, []string{"Food", "Rent"}); err != nil {
		t.Fatal(err)
	}
	inner := &countingRepo{Repository: store}
	repo := repository.NewCached(inner, cache.NewLRUCache[string, core.Category](10, time.Minute))

	got, err := repo.FindCategoriesByTitles(ctx, []string{"Food", "Rent", "Missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2", len(got))
	}

	got, err = repo.FindCategoriesByTitles(ctx, []string{"Food", "Rent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2", len(got))
	}
	if inner.finds != 1 {
		t.Fatalf("inner finds = %d, want 1", inner.finds)
	}

	// Misses are not cached.
	if _, err := repo.FindCategoriesByTitles(ctx, []string{"Food", "Missing"}); err != nil {
		t.Fatal(err)
	}
	if inner.finds != 2 || len(inner.lastArg) != 1 || inner.lastArg[0] != "Missing" {
		t.Fatalf("finds=%d lastArg=%v", inner.finds, inner.lastArg)
	}
}

func TestCachedRepositoryAtomicCachesOnCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := cache.NewLRUCache[string, core.Category](10, time.Minute)
	repo := repository.NewCached(store, c)

	err := repo.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		if _, err := tx.CreateCategories(ctx, []string{"Food"}); err != nil {
			return err
		}
		if c.Size() != 0 {
			t.Fatalf("category cached before commit")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("Food"); !ok {
		t.Fatalf("committed category not cached")
	}

	// A second unit of work resolves Food without touching the store.
	inner := &countingRepo{Repository: store}
	repo = repository.NewCached(inner, c)
	err = repo.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		got, err := tx.FindCategoriesByTitles(ctx, []string{"Food"})
		if err != nil {
			return err
		}
		if len(got) != 1 {
			t.Fatalf("got %d categories, want 1", len(got))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if inner.finds != 0 {
		t.Fatalf("inner finds = %d, want 0", inner.finds)
	}
}

func TestCachedRepositoryAtomicRollbackLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	c := cache.NewLRUCache[string, core.Category](10, time.Minute)
	repo := repository.NewCached(memory.New(), c)

	boom := errors.New("boom")
	err := repo.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		if _, err := tx.CreateCategories(ctx, []string{"Food"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Size() != 0 {
		t.Fatalf("cache size = %d, want 0", c.Size())
	}
	if got, _ := repo.FindCategoriesByTitles(ctx, []string{"Food"}); len(got) != 0 {
		t.Fatalf("rolled back category still visible")
	}
}
