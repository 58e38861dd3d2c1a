package amqp

import (
	"encoding/json"
	"time"
)

// EventKind names the ledger change that produced an event.
type EventKind string

const (
	TransactionsCreated  EventKind = "transactions.created"
	TransactionsImported EventKind = "transactions.imported"
	TransactionDeleted   EventKind = "transaction.deleted"
)

// LedgerEvent is a lightweight notification that the ledger changed.
// It carries ids only; consumers read the current state from the store.
type LedgerEvent struct {
	Kind           EventKind `json:"kind"`
	TransactionIDs []string  `json:"transaction_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, ids ...string) *LedgerEvent {
	if ids == nil {
		ids = []string{}
	}
	return &LedgerEvent{
		Kind:           kind,
		TransactionIDs: ids,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON creates a message from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
