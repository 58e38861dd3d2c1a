package services

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/core"
	"ledger/internal/repository/memory"
)

func TestCategoryReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	existing, err := store.CreateCategories(ctx, []string{"Food"})
	if err != nil {
		t.Fatal(err)
	}

	spy := &spyRepo{Repository: store}
	got, err := NewCategoryReconciler(spy).Reconcile(ctx, []string{"Food", "Rent", "Work", "Rent", "Food", "Work"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if spy.finds != 1 || spy.createCats != 1 {
		t.Fatalf("finds=%d createCats=%d, want 1 and 1", spy.finds, spy.createCats)
	}
	if len(got) != 3 {
		t.Fatalf("got %d categories, want 3", len(got))
	}
	if got["Food"].ID != existing[0].ID {
		t.Errorf("existing category was not reused")
	}

	all, err := store.FindCategoriesByTitles(ctx, []string{"Food", "Rent", "Work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("store holds %d categories, want 3", len(all))
	}
}

func TestCategoryReconciler_CreatesOnePerDistinctName(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	names := []string{"a", "b", "c", "d", "a", "b", "c", "d", "e"}

	got, err := NewCategoryReconciler(store).Reconcile(ctx, names)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d categories, want 5", len(got))
	}
	found, err := store.FindCategoriesByTitles(ctx, []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 5 {
		t.Fatalf("store holds %d categories, want 5", len(found))
	}
}

func TestCategoryReconciler_AllExistingSkipsCreate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if _, err := store.CreateCategories(ctx, []string{"Food"}); err != nil {
		t.Fatal(err)
	}
	spy := &spyRepo{Repository: store}

	if _, err := NewCategoryReconciler(spy).Reconcile(ctx, []string{"Food"}); err != nil {
		t.Fatal(err)
	}
	if spy.createCats != 0 {
		t.Errorf("createCats = %d, want 0", spy.createCats)
	}
}

func TestCategoryReconciler_EmptyInput(t *testing.T) {
	spy := &spyRepo{Repository: memory.New()}
	got, err := NewCategoryReconciler(spy).Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 || spy.finds != 0 || spy.createCats != 0 {
		t.Fatalf("got=%v finds=%d creates=%d", got, spy.finds, spy.createCats)
	}
}

type failingFind struct {
	spyRepo
}

func (f *failingFind) FindCategoriesByTitles(context.Context, []string) ([]core.Category, error) {
	return nil, core.PersistenceError("find categories", errors.New("disk on fire"))
}

func TestCategoryReconciler_StoreFailure(t *testing.T) {
	repo := &failingFind{spyRepo{Repository: memory.New()}}
	_, err := NewCategoryReconciler(repo).Reconcile(context.Background(), []string{"Food"})
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
}
