//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Run with: LEDGER_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/storage

func TestIntegration_PostgresRepository(t *testing.T) {
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	repo, err := ConnectPostgres(ctx, url)
	if err != nil {
		t.Fatalf("ConnectPostgres: %v", err)
	}
	defer repo.Close()

	title := "it-" + t.Name()
	cats, err := repo.CreateCategories(ctx, []string{title})
	if err != nil {
		t.Fatalf("CreateCategories: %v", err)
	}

	created, err := repo.CreateTransactions(ctx, []core.Transaction{
		{Title: "Rent", Value: decimal.RequireFromString("300.50"), Type: core.Outcome, CategoryID: cats[0].ID},
	})
	if err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}
	t.Cleanup(func() {
		repo.DeleteTransaction(ctx, created[0].ID)
		repo.pool.Exec(ctx, `DELETE FROM categories WHERE title = $1`, title)
	})

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	var seen bool
	for _, tx := range list {
		if tx.ID == created[0].ID {
			seen = true
			if !tx.Value.Equal(decimal.RequireFromString("300.50")) {
				t.Errorf("value = %s", tx.Value)
			}
		}
	}
	if !seen {
		t.Fatal("created transaction not listed")
	}
}
