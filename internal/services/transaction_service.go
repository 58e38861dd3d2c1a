package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/repository"
)

// CreateTransactionInput is the raw payload of a single transaction.
type CreateTransactionInput struct {
	Title    string
	Value    string
	Type     string
	Category string
}

// Overview is the full ledger together with its balance.
type Overview struct {
	Transactions []core.Transaction `json:"transactions"`
	Balance      core.Balance       `json:"balance"`
}

// TransactionService handles single-transaction create, delete and the read side.
type TransactionService struct {
	repo   repository.Repository
	events EventPublisher
}

func NewTransactionService(repo repository.Repository, events EventPublisher) *TransactionService {
	return &TransactionService{repo: repo, events: events}
}

func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	title := strings.TrimSpace(in.Title)
	if err := core.ValidateTitle(title); err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	value, err := core.ParseValue(in.Value)
	if err != nil {
		return core.Transaction{}, err
	}
	categoryTitle := core.CategoryTitle(in.Category)

	var created core.Transaction
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		categories, err := NewCategoryReconciler(tx).Reconcile(ctx, []string{categoryTitle})
		if err != nil {
			return err
		}
		cat, ok := categories[categoryTitle]
		if !ok {
			return core.PersistenceError("resolve category", fmt.Errorf("category %q was not created", categoryTitle))
		}

		draft := core.Transaction{Title: title, Value: value, Type: typ, CategoryID: cat.ID}
		if err := draft.Validate(); err != nil {
			return err
		}

		saved, err := tx.CreateTransactions(ctx, []core.Transaction{draft})
		if err != nil {
			return err
		}
		if len(saved) != 1 {
			return core.PersistenceError("create transaction", fmt.Errorf("store returned %d transactions", len(saved)))
		}
		created = saved[0]
		return nil
	})
	if err != nil {
		return core.Transaction{}, core.PersistenceError("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"type", created.Type,
		"value", created.Value.StringFixed(core.ValuePlaces),
		"category", categoryTitle)

	publish(ctx, s.events, amqp.TransactionsCreated, []string{created.ID})
	return created, nil
}

// Delete removes a transaction. Unknown or malformed ids are reported as not found.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.NotFoundError("transaction", id)
	}

	found, err := s.repo.DeleteTransaction(ctx, id)
	if err != nil {
		return core.PersistenceError("delete transaction", err)
	}
	if !found {
		return core.NotFoundError("transaction", id)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	publish(ctx, s.events, amqp.TransactionDeleted, []string{id})
	return nil
}

func (s *TransactionService) Overview(ctx context.Context) (Overview, error) {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return Overview{}, core.PersistenceError("list transactions", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return Overview{Transactions: txs, Balance: core.ComputeBalance(txs)}, nil
}

func (s *TransactionService) Balance(ctx context.Context) (core.Balance, error) {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return core.Balance{}, core.PersistenceError("list transactions", err)
	}
	return core.ComputeBalance(txs), nil
}
