package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCategory is assigned to every parsed expense.
	DefaultCategory = "Uncategorized"

	// NoDescription is shown in place of an empty description.
	NoDescription = "N/A"
)

type (
	// ExpenseDraft is the result of a successful parse, not yet persisted.
	ExpenseDraft struct {
		Amount      decimal.Decimal
		Description string
		Category    string
	}

	// ExpenseRecord is one persisted expense. Records are never updated.
	ExpenseRecord struct {
		ID          int64
		UserID      int64
		Amount      decimal.Decimal
		Description string
		Category    string
		Date        time.Time
	}
)

var (
	ErrRejected      = errors.New("expense text rejected")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidUser   = errors.New("invalid user id")
	ErrInvalidDate   = errors.New("invalid date")
)

// DisplayDescription returns the description or the placeholder when empty.
func (r ExpenseRecord) DisplayDescription() string {
	if strings.TrimSpace(r.Description) == "" {
		return NoDescription
	}
	return r.Description
}

// MaxAmount is the largest amount the ledger accepts. Fifteen significant
// digits survive the REAL column unchanged.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// ValidateAmount reports whether amount can be stored: positive, at most two
// fractional digits, not above MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func (r ExpenseRecord) Validate() error {
	if r.UserID == 0 {
		return ErrInvalidUser
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
