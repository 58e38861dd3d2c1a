package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// BalanceReader recomputes the ledger balance from the store.
type BalanceReader interface {
	Balance(ctx context.Context) (core.Balance, error)
}

// Snapshot is the last balance the worker computed.
type Snapshot struct {
	Balance    core.Balance
	ComputedAt time.Time
	Trigger    amqp.EventKind
}

// BalanceWorker recomputes the balance whenever the ledger changes.
type BalanceWorker struct {
	reader BalanceReader

	mu   sync.RWMutex
	last Snapshot
	now  func() time.Time
}

func NewBalanceWorker(reader BalanceReader) *BalanceWorker {
	return &BalanceWorker{reader: reader, now: time.Now}
}

// HandleLedgerEvent processes a single ledger event from AMQP.
func (w *BalanceWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"transactions", len(ev.TransactionIDs),
		"published_at", ev.Timestamp)

	return w.recompute(ctx, ev.Kind)
}

// StartupBalanceCheck logs the balance once before consuming events.
func (w *BalanceWorker) StartupBalanceCheck(ctx context.Context) error {
	return w.recompute(ctx, "startup")
}

// RunPeriodic recomputes on every tick until ctx is done.
// It covers events lost while the worker was down.
func (w *BalanceWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.recompute(ctx, "periodic"); err != nil {
				slog.ErrorContext(ctx, "Periodic balance check failed", "error", err)
			}
		}
	}
}

func (w *BalanceWorker) Last() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

func (w *BalanceWorker) recompute(ctx context.Context, trigger amqp.EventKind) error {
	bal, err := w.reader.Balance(ctx)
	if err != nil {
		return fmt.Errorf("compute balance: %w", err)
	}

	w.mu.Lock()
	prev := w.last
	w.last = Snapshot{Balance: bal, ComputedAt: w.now(), Trigger: trigger}
	w.mu.Unlock()

	slog.InfoContext(ctx, "Balance recomputed",
		"trigger", trigger,
		"income", bal.Income.StringFixed(core.ValuePlaces),
		"outcome", bal.Outcome.StringFixed(core.ValuePlaces),
		"total", bal.Total.StringFixed(core.ValuePlaces),
		"delta", bal.Total.Sub(prev.Balance.Total).StringFixed(core.ValuePlaces))

	if bal.Total.IsNegative() {
		slog.WarnContext(ctx, "Ledger total is negative", "total", bal.Total.StringFixed(core.ValuePlaces))
	}
	return nil
}
