package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

// DefaultCategoryTitle is used when a transaction names no category.
const DefaultCategoryTitle = "Others"

const maxTitleLength = 200

type (
	TransactionType string

	Category struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Transaction struct {
		ID         string          `json:"id"`
		Title      string          `json:"title"`
		Value      decimal.Decimal `json:"value"`
		Type       TransactionType `json:"type"`
		CategoryID string          `json:"category_id"`
		Category   *Category       `json:"category,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
		UpdatedAt  time.Time       `json:"updated_at"`
	}

	// CSVTransaction is an import row after its cells have been parsed,
	// before the category name is resolved to an identity.
	CSVTransaction struct {
		Title        string
		Type         TransactionType
		Value        decimal.Decimal
		CategoryName string
	}
)

var (
	ErrEmptyTitle      = fmt.Errorf("%w: empty title", ErrValidation)
	ErrTitleTooLong    = fmt.Errorf("%w: title too long (max %d characters)", ErrValidation, maxTitleLength)
	ErrInvalidType     = fmt.Errorf("%w: type must be income or outcome", ErrValidation)
	ErrInvalidValue    = fmt.Errorf("%w: value must be a non-negative number not above 999999999999.99", ErrValidation)
	ErrMissingCategory = fmt.Errorf("%w: missing category", ErrValidation)
)

// ParseTransactionType accepts exactly "income" or "outcome".
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.TrimSpace(s)); t {
	case Income, Outcome:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

// CategoryTitle normalizes a referenced category name.
func CategoryTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultCategoryTitle
	}
	return name
}

// ValidateTitle checks a transaction title after trimming.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Value.IsNegative() || t.Value.GreaterThan(MaxValue) {
		return ErrInvalidValue
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrMissingCategory
	}
	return nil
}
