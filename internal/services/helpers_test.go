package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/repository"
)

// spyRepo counts store calls made through it and through any unit of work it opens.
type spyRepo struct {
	repository.Repository
	finds, createCats, createTxs int
	failCreateTxs               error
	// dropCategory is left out of what CreateCategories returns.
	dropCategory string
}

func (s *spyRepo) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	s.finds++
	return s.Repository.FindCategoriesByTitles(ctx, titles)
}

func (s *spyRepo) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	s.createCats++
	created, err := s.Repository.CreateCategories(ctx, titles)
	if err != nil || s.dropCategory == "" {
		return created, err
	}
	kept := created[:0:0]
	for _, c := range created {
		if c.Title != s.dropCategory {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (s *spyRepo) CreateTransactions(ctx context.Context, drafts []core.Transaction) ([]core.Transaction, error) {
	s.createTxs++
	if s.failCreateTxs != nil {
		return nil, s.failCreateTxs
	}
	return s.Repository.CreateTransactions(ctx, drafts)
}

func (s *spyRepo) Atomic(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	return s.Repository.Atomic(ctx, func(ctx context.Context, tx repository.Repository) error {
		inner := &spyRepo{Repository: tx, failCreateTxs: s.failCreateTxs, dropCategory: s.dropCategory}
		err := fn(ctx, inner)
		s.finds += inner.finds
		s.createCats += inner.createCats
		s.createTxs += inner.createTxs
		return err
	})
}

type sliceSource struct {
	rows     [][]string
	readErr  error
	pos      int
	released int
}

func (s *sliceSource) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		if s.readErr != nil {
			return nil, s.readErr
		}
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceSource) Release() error {
	s.released++
	return errors.New("already removed")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
