package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/repository"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type PostgresRepository struct {
	pool *pgxpool.Pool
	q    pgQuerier
	tx   bool
	now  func() time.Time
}

var _ repository.Repository = (*PostgresRepository)(nil)

// ConnectPostgres opens a pool, pings it and applies migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 2 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresRepository{pool: pool, q: pool, now: time.Now}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil && !r.tx {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx,
		`SELECT id::text, title, created_at, updated_at FROM categories WHERE title = ANY($1)`, titles)
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

func (r *PostgresRepository) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	now := r.now().UTC()
	out := make([]core.Category, 0, len(titles))
	batch := &pgx.Batch{}
	for _, title := range titles {
		c := core.Category{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
		batch.Queue(`INSERT INTO categories (id, title, created_at, updated_at) VALUES ($1::text::uuid, $2, $3, $4)`,
			c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
		out = append(out, c)
	}

	if err := r.sendBatch(ctx, batch, "insert categories"); err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Categories saved to Postgres", "count", len(out))
	return out, nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT t.id::text, t.title, t.value::text, t.type, t.category_id::text, t.created_at, t.updated_at,
		       c.id::text, c.title, c.created_at, c.updated_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		ORDER BY t.created_at, t.id`)
	if err != nil {
		return nil, core.PersistenceError("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t   core.Transaction
			c   core.Category
			amt string
			typ string
		)
		if err := rows.Scan(&t.ID, &t.Title, &amt, &typ, &t.CategoryID, &t.CreatedAt, &t.UpdatedAt,
			&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, core.PersistenceError("scan transaction", err)
		}
		value, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, core.PersistenceError("parse stored value", err)
		}
		t.Value = value
		t.Type = core.TransactionType(typ)
		t.Category = &c
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.PersistenceError("list transactions", err)
	}
	return out, nil
}

func (r *PostgresRepository) CreateTransactions(ctx context.Context, drafts []core.Transaction) ([]core.Transaction, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	var out []core.Transaction
	err := r.Atomic(ctx, func(ctx context.Context, repo repository.Repository) error {
		tx := repo.(*PostgresRepository)
		now := tx.now().UTC()
		out = make([]core.Transaction, 0, len(drafts))

		batch := &pgx.Batch{}
		for _, d := range drafts {
			d.ID = uuid.NewString()
			d.CreatedAt = now
			d.UpdatedAt = now
			batch.Queue(`
				INSERT INTO transactions (id, title, value, type, category_id, created_at, updated_at)
				VALUES ($1::text::uuid, $2, $3::text::numeric, $4, $5::text::uuid, $6, $7)`,
				d.ID, d.Title, d.Value.StringFixed(core.ValuePlaces), string(d.Type), d.CategoryID, d.CreatedAt, d.UpdatedAt)
			out = append(out, d)
		}
		if err := tx.sendBatch(ctx, batch, "insert transactions"); err != nil {
			return err
		}

		categories, err := tx.categoriesByID(ctx, out)
		if err != nil {
			return err
		}
		for i := range out {
			if c, ok := categories[out[i].CategoryID]; ok {
				out[i].Category = &c
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transactions saved to Postgres", "count", len(out))
	return out, nil
}

func (r *PostgresRepository) categoriesByID(ctx context.Context, txs []core.Transaction) (map[string]core.Category, error) {
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.CategoryID)
	}
	rows, err := r.q.Query(ctx,
		`SELECT id::text, title, created_at, updated_at FROM categories WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, core.PersistenceError("get categories", err)
	}
	defer rows.Close()

	out := make(map[string]core.Category, len(ids))
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, core.PersistenceError("scan category", err)
		}
		out[c.ID] = c
	}
	return out, core.PersistenceError("get categories", rows.Err())
}

func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM transactions WHERE id = $1::text::uuid`, id)
	if err != nil {
		return false, core.PersistenceError("delete transaction", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Atomic runs fn inside a pgx transaction. Calls on a repository already
// bound to a transaction join it.
func (r *PostgresRepository) Atomic(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) (err error) {
	if r.tx {
		return fn(ctx, r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return core.PersistenceError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, &PostgresRepository{pool: r.pool, q: tx, tx: true, now: r.now}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return core.PersistenceError("commit transaction", err)
	}
	return nil
}

// sendBatch executes every queued statement. Outside a transaction the
// batch runs implicitly transactional, so a failure keeps none of it.
func (r *PostgresRepository) sendBatch(ctx context.Context, batch *pgx.Batch, op string) error {
	br := r.q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return core.PersistenceError(op, err)
		}
	}
	return core.PersistenceError(op, br.Close())
}
