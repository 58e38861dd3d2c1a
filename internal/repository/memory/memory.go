package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/repository"
)

// Store keeps categories and transactions in process memory.
// Atomic writes run on a copy that replaces the live state only on success.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ repository.Repository = (*Store)(nil)

type state struct {
	categories   []core.Category
	transactions []core.Transaction
}

func New() *Store {
	return &Store{state: &state{}, now: time.Now}
}

// NewFromFiles seeds categories from base/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	s := New()
	titles := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(titles) > 0 {
		_, _ = s.state.createCategories(titles, s.now())
	}
	return s
}

func (s *Store) FindCategoriesByTitles(_ context.Context, titles []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findCategories(titles), nil
}

func (s *Store) CreateCategories(_ context.Context, titles []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createCategories(titles, s.now())
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listTransactions(), nil
}

func (s *Store) CreateTransactions(_ context.Context, drafts []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createTransactions(drafts, s.now())
}

func (s *Store) DeleteTransaction(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deleteTransaction(id), nil
}

// Atomic holds the store lock for the duration of fn.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &txView{state: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// txView is the repository handed to Atomic callbacks. The store lock is already held.
type txView struct {
	state *state
	now   func() time.Time
}

func (v *txView) FindCategoriesByTitles(_ context.Context, titles []string) ([]core.Category, error) {
	return v.state.findCategories(titles), nil
}

func (v *txView) CreateCategories(_ context.Context, titles []string) ([]core.Category, error) {
	return v.state.createCategories(titles, v.now())
}

func (v *txView) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	return v.state.listTransactions(), nil
}

func (v *txView) CreateTransactions(_ context.Context, drafts []core.Transaction) ([]core.Transaction, error) {
	return v.state.createTransactions(drafts, v.now())
}

func (v *txView) DeleteTransaction(_ context.Context, id string) (bool, error) {
	return v.state.deleteTransaction(id), nil
}

// Atomic on a view joins the enclosing unit of work.
func (v *txView) Atomic(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	return fn(ctx, v)
}

func (st *state) clone() *state {
	return &state{
		categories:   append([]core.Category(nil), st.categories...),
		transactions: append([]core.Transaction(nil), st.transactions...),
	}
}

func (st *state) findCategories(titles []string) []core.Category {
	wanted := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		wanted[t] = struct{}{}
	}
	var out []core.Category
	for _, c := range st.categories {
		if _, ok := wanted[c.Title]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (st *state) createCategories(titles []string, now time.Time) ([]core.Category, error) {
	out := make([]core.Category, 0, len(titles))
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			return nil, core.PersistenceError("create categories", fmt.Errorf("empty category title"))
		}
		out = append(out, core.Category{
			ID:        uuid.NewString(),
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	st.categories = append(st.categories, out...)
	return out, nil
}

func (st *state) categoryByID(id string) (core.Category, bool) {
	for _, c := range st.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (st *state) listTransactions() []core.Transaction {
	out := make([]core.Transaction, len(st.transactions))
	for i, t := range st.transactions {
		if c, ok := st.categoryByID(t.CategoryID); ok {
			t.Category = &c
		}
		out[i] = t
	}
	return out
}

func (st *state) createTransactions(drafts []core.Transaction, now time.Time) ([]core.Transaction, error) {
	stored := make([]core.Transaction, 0, len(drafts))
	out := make([]core.Transaction, 0, len(drafts))
	for _, d := range drafts {
		c, ok := st.categoryByID(d.CategoryID)
		if !ok {
			return nil, core.PersistenceError("create transactions",
				fmt.Errorf("category %q does not exist", d.CategoryID))
		}
		d.ID = uuid.NewString()
		d.CreatedAt = now
		d.UpdatedAt = now
		d.Category = nil
		stored = append(stored, d)

		d.Category = &c
		out = append(out, d)
	}
	st.transactions = append(st.transactions, stored...)
	return out, nil
}

func (st *state) deleteTransaction(id string) bool {
	for i, t := range st.transactions {
		if t.ID == id {
			st.transactions = append(st.transactions[:i:i], st.transactions[i+1:]...)
			return true
		}
	}
	return false
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	seen := map[string]struct{}{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
