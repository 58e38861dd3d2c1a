package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/repository"
)

func newTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_CategoriesAndTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	cats, err := repo.CreateCategories(ctx, []string{"Food", "Rent"})
	if err != nil {
		t.Fatalf("CreateCategories: %v", err)
	}
	if len(cats) != 2 || cats[0].ID == "" || cats[0].ID == cats[1].ID {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	found, err := repo.FindCategoriesByTitles(ctx, []string{"Food", "Nope"})
	if err != nil {
		t.Fatalf("FindCategoriesByTitles: %v", err)
	}
	if len(found) != 1 || found[0].ID != cats[0].ID {
		t.Fatalf("found = %+v", found)
	}

	created, err := repo.CreateTransactions(ctx, []core.Transaction{
		{Title: "Groceries", Value: decimal.RequireFromString("12.34"), Type: core.Outcome, CategoryID: cats[0].ID},
		{Title: "Salary", Value: decimal.RequireFromString("1000"), Type: core.Income, CategoryID: cats[1].ID},
	})
	if err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}
	if len(created) != 2 || created[0].Category == nil || created[0].Category.Title != "Food" {
		t.Fatalf("created = %+v", created)
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if !list[0].Value.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("value = %s, want 12.34", list[0].Value)
	}
	if list[1].Category == nil || list[1].Category.Title != "Rent" {
		t.Errorf("category = %+v", list[1].Category)
	}

	ok, err := repo.DeleteTransaction(ctx, list[0].ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTransaction = %v, %v", ok, err)
	}
	ok, err = repo.DeleteTransaction(ctx, list[0].ID)
	if err != nil || ok {
		t.Fatalf("second DeleteTransaction = %v, %v", ok, err)
	}
}

func TestSQLiteRepository_DuplicateTitleRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	if _, err := repo.CreateCategories(ctx, []string{"Food"}); err != nil {
		t.Fatal(err)
	}
	_, err := repo.CreateCategories(ctx, []string{"Bills", "Food"})
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	found, err := repo.FindCategoriesByTitles(ctx, []string{"Bills"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Fatalf("batch was partially applied: %+v", found)
	}
}

func TestSQLiteRepository_UnknownCategoryRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	_, err := repo.CreateTransactions(ctx, []core.Transaction{
		{Title: "x", Value: decimal.Zero, Type: core.Income, CategoryID: "missing"},
	})
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
}

func TestSQLiteRepository_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)
	boom := errors.New("boom")

	err := repo.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		cats, err := tx.CreateCategories(ctx, []string{"Food"})
		if err != nil {
			return err
		}
		if _, err := tx.CreateTransactions(ctx, []core.Transaction{
			{Title: "Lunch", Value: decimal.NewFromInt(10), Type: core.Outcome, CategoryID: cats[0].ID},
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found, err := repo.FindCategoriesByTitles(ctx, []string{"Food"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 || len(found) != 0 {
		t.Fatalf("rollback left data: %d transactions, %d categories", len(list), len(found))
	}
}

func TestPgx5URL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://localhost/db?sslmode=disable", "pgx5://localhost/db?sslmode=disable"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		if got := pgx5URL(tt.in); got != tt.want {
			t.Errorf("pgx5URL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteRepository_OversizedValueRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	cats, err := repo.CreateCategories(ctx, []string{"Food"})
	if err != nil {
		t.Fatalf("CreateCategories: %v", err)
	}

	tests := []struct {
		name  string
		value string
	}{
		{"beyond int64 cents", "184467440737095516.17"},
		{"just past int64 cents", "92233720368547758.08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateTransactions(ctx, []core.Transaction{
				{Title: "Small", Value: decimal.RequireFromString("1"), Type: core.Income, CategoryID: cats[0].ID},
				{Title: "Huge", Value: decimal.RequireFromString(tt.value), Type: core.Income, CategoryID: cats[0].ID},
			})
			if !errors.Is(err, core.ErrInvalidValue) {
				t.Fatalf("CreateTransactions err = %v, want ErrInvalidValue", err)
			}

			list, err := repo.ListTransactions(ctx)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(list) != 0 {
				t.Fatalf("batch partially stored: %+v", list)
			}
		})
	}
}

func TestSQLiteRepository_MaxValueRoundTrips(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	cats, err := repo.CreateCategories(ctx, []string{"Food"})
	if err != nil {
		t.Fatalf("CreateCategories: %v", err)
	}
	if _, err := repo.CreateTransactions(ctx, []core.Transaction{
		{Title: "Max", Value: core.MaxValue, Type: core.Income, CategoryID: cats[0].ID},
	}); err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}
	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 1 || !list[0].Value.Equal(core.MaxValue) {
		t.Fatalf("stored = %+v, want %s", list, core.MaxValue)
	}
}
