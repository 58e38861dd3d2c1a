package core

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap one of these so callers can branch
// with errors.Is regardless of the underlying cause.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrSourceRead  = errors.New("source read error")
	ErrPersistence = errors.New("persistence error")
)

// PersistenceError marks err as a store failure while performing op.
// It returns nil for a nil err and leaves errors that already carry a kind untouched.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isKind(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// SourceReadError marks err as a failure opening or reading an import source.
func SourceReadError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrSourceRead, err)
}

// NotFoundError reports a missing entity by kind and id.
func NotFoundError(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

func isKind(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSourceRead) ||
		errors.Is(err, ErrPersistence)
}
