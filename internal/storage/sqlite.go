package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ledger/internal/core"
	"ledger/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db  *sql.DB
	q   dbtx
	tx  bool
	now func() time.Time
}

var _ repository.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: db, now: time.Now}, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && !r.tx {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	query := `SELECT id, title, created_at, updated_at FROM categories WHERE title IN (` +
		placeholders(len(titles)) + `)`
	rows, err := r.q.QueryContext(ctx, query, anySlice(titles)...)
	if err != nil {
		return nil, core.PersistenceError("find categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, core.PersistenceError("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.PersistenceError("find categories", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	var out []core.Category
	err := r.Atomic(ctx, func(ctx context.Context, repo repository.Repository) error {
		tx := repo.(*SQLiteRepository)
		now := tx.now().UTC()
		out = make([]core.Category, 0, len(titles))
		for _, title := range titles {
			c := core.Category{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
			if _, err := tx.q.ExecContext(ctx,
				`INSERT INTO categories (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
				c.ID, c.Title, c.CreatedAt, c.UpdatedAt,
			); err != nil {
				return core.PersistenceError(fmt.Sprintf("insert category %q", title), err)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Categories saved to SQLite", "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.title, t.value_cents, t.type, t.category_id, t.created_at, t.updated_at,
		       c.id, c.title, c.created_at, c.updated_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		ORDER BY t.rowid`)
	if err != nil {
		return nil, core.PersistenceError("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t     core.Transaction
			c     core.Category
			cents int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &cents, &t.Type, &t.CategoryID, &t.CreatedAt, &t.UpdatedAt,
			&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, core.PersistenceError("scan transaction", err)
		}
		t.Value = core.FromCents(cents)
		t.Category = &c
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.PersistenceError("list transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTransactions(ctx context.Context, drafts []core.Transaction) ([]core.Transaction, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	var out []core.Transaction
	err := r.Atomic(ctx, func(ctx context.Context, repo repository.Repository) error {
		tx := repo.(*SQLiteRepository)
		now := tx.now().UTC()
		categories := map[string]*core.Category{}
		out = make([]core.Transaction, 0, len(drafts))
		for _, d := range drafts {
			cents, err := core.ToCents(d.Value)
			if err != nil {
				return fmt.Errorf("insert transaction %q: %w", d.Title, err)
			}
			d.ID = uuid.NewString()
			d.CreatedAt = now
			d.UpdatedAt = now
			if _, err := tx.q.ExecContext(ctx, `
				INSERT INTO transactions (id, title, value_cents, type, category_id, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				d.ID, d.Title, cents, string(d.Type), d.CategoryID, d.CreatedAt, d.UpdatedAt,
			); err != nil {
				return core.PersistenceError(fmt.Sprintf("insert transaction %q", d.Title), err)
			}
			c, err := tx.categoryByID(ctx, d.CategoryID, categories)
			if err != nil {
				return err
			}
			d.Category = c
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) categoryByID(ctx context.Context, id string, seen map[string]*core.Category) (*core.Category, error) {
	if c, ok := seen[id]; ok {
		return c, nil
	}
	var c core.Category
	err := r.q.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, core.PersistenceError("get category", err)
	}
	seen[id] = &c
	return &c, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, core.PersistenceError("delete transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.PersistenceError("delete transaction", err)
	}
	return n > 0, nil
}

// Atomic runs fn inside a database transaction. Calls on a repository
// already bound to a transaction join it.
func (r *SQLiteRepository) Atomic(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) (err error) {
	if r.tx {
		return fn(ctx, r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.PersistenceError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, &SQLiteRepository{db: r.db, q: tx, tx: true, now: r.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return core.PersistenceError("commit transaction", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
