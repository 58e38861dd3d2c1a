package repository

import (
	"context"

	"ledger/internal/core"
)

// Ports for persistence adapters.
type (
	CategoryRepository interface {
		// FindCategoriesByTitles returns the stored categories whose title is in titles.
		FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error)

		// CreateCategories assigns identities to new categories with the given titles and saves them in one batch.
		CreateCategories(ctx context.Context, titles []string) ([]core.Category, error)
	}

	TransactionRepository interface {
		// ListTransactions returns every stored transaction with its category attached.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)

		// CreateTransactions assigns identities to drafts and saves them in one batch.
		CreateTransactions(ctx context.Context, drafts []core.Transaction) ([]core.Transaction, error)

		// DeleteTransaction removes a transaction and reports whether it existed.
		DeleteTransaction(ctx context.Context, id string) (found bool, err error)
	}

	// Repository is the full persistence capability consumed by the services.
	Repository interface {
		CategoryRepository
		TransactionRepository

		// Atomic runs fn against a repository whose writes commit together.
		// If fn returns an error nothing it wrote is kept.
		Atomic(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	}
)
