package services

import (
	"context"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// publish never fails the caller: the change is already committed.
func publish(ctx context.Context, events EventPublisher, kind amqp.EventKind, ids []string) {
	if events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event", "kind", kind)
		return
	}
	if err := events.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(kind, ids...)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind,
			"transactions", len(ids),
			"error", err)
	}
}

func transactionIDs(txs []core.Transaction) []string {
	ids := make([]string, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}
