package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/repository"
)

// RowSource yields raw delimited rows, header excluded.
type RowSource interface {
	// Next returns the next row or io.EOF at end of stream.
	Next() ([]string, error)
	// Release frees the backing resource. It is called once reading ends.
	Release() error
}

type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Transactions []core.Transaction `json:"transactions"`
	Skipped      []SkippedRow       `json:"skipped,omitempty"`
}

type candidate struct {
	line int
	row  core.CSVTransaction
}

// ImportService bulk-loads transactions from a row source.
type ImportService struct {
	repo   repository.Repository
	events EventPublisher
}

func NewImportService(repo repository.Repository, events EventPublisher) *ImportService {
	return &ImportService{repo: repo, events: events}
}

// Import reads every row, resolves the referenced categories in one pass and
// saves the resulting transactions in one batch. Categories and transactions
// are written in a single unit of work. Malformed rows are skipped and reported.
func (s *ImportService) Import(ctx context.Context, src RowSource) (ImportResult, error) {
	candidates, skipped, readErr := readCandidates(src)

	if err := src.Release(); err != nil {
		slog.WarnContext(ctx, "Failed to release import source", "error", err)
	}
	if readErr != nil {
		return ImportResult{}, core.SourceReadError("read import rows", readErr)
	}

	result := ImportResult{Transactions: []core.Transaction{}, Skipped: skipped}
	if len(candidates) == 0 {
		slog.InfoContext(ctx, "Import contained no usable rows", "skipped", len(skipped))
		return result, nil
	}

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.row.CategoryName)
	}

	err := s.repo.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		categories, err := NewCategoryReconciler(tx).Reconcile(ctx, names)
		if err != nil {
			return err
		}

		drafts := make([]core.Transaction, 0, len(candidates))
		for _, c := range candidates {
			cat, ok := categories[c.row.CategoryName]
			if !ok {
				result.Skipped = append(result.Skipped, SkippedRow{Line: c.line, Reason: "category could not be resolved"})
				continue
			}
			draft := core.Transaction{
				Title:      c.row.Title,
				Value:      c.row.Value,
				Type:       c.row.Type,
				CategoryID: cat.ID,
			}
			// rows were checked while reading; this guards the store
			if err := draft.Validate(); err != nil {
				result.Skipped = append(result.Skipped, SkippedRow{Line: c.line, Reason: reason(err)})
				continue
			}
			drafts = append(drafts, draft)
		}
		if len(drafts) == 0 {
			return nil
		}

		created, err := tx.CreateTransactions(ctx, drafts)
		if err != nil {
			return err
		}
		result.Transactions = created
		return nil
	})
	if err != nil {
		return ImportResult{}, core.PersistenceError("import transactions", err)
	}

	slog.InfoContext(ctx, "Transactions imported",
		"imported", len(result.Transactions),
		"skipped", len(result.Skipped))

	if len(result.Transactions) > 0 {
		publish(ctx, s.events, amqp.TransactionsImported, transactionIDs(result.Transactions))
	}
	return result, nil
}

// readCandidates drains src. Lines are numbered from 2, the header being line 1.
func readCandidates(src RowSource) ([]candidate, []SkippedRow, error) {
	var (
		candidates []candidate
		skipped    []SkippedRow
	)
	for line := 2; ; line++ {
		cells, err := src.Next()
		if errors.Is(err, io.EOF) {
			return candidates, skipped, nil
		}
		if err != nil {
			return nil, nil, err
		}

		row, err := parseRow(cells)
		if err != nil {
			skipped = append(skipped, SkippedRow{Line: line, Reason: reason(err)})
			continue
		}
		candidates = append(candidates, candidate{line: line, row: row})
	}
}

var errIncompleteRow = errors.New("title, type and value are required")

func parseRow(cells []string) (core.CSVTransaction, error) {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	title, typ, value, category := cell(0), cell(1), cell(2), cell(3)
	if title == "" || typ == "" || value == "" {
		return core.CSVTransaction{}, errIncompleteRow
	}
	if err := core.ValidateTitle(title); err != nil {
		return core.CSVTransaction{}, err
	}

	t, err := core.ParseTransactionType(typ)
	if err != nil {
		return core.CSVTransaction{}, err
	}
	v, err := core.ParseValue(value)
	if err != nil {
		return core.CSVTransaction{}, err
	}

	return core.CSVTransaction{
		Title:        title,
		Type:         t,
		Value:        v,
		CategoryName: core.CategoryTitle(category),
	}, nil
}

// reason strips the error kind prefix for row reports.
func reason(err error) string {
	return strings.TrimPrefix(err.Error(), core.ErrValidation.Error()+": ")
}
