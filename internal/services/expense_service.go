package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledgerbot/internal/core"
	"ledgerbot/internal/log"
)

// ExpenseInserter persists one expense and returns its id.
type ExpenseInserter interface {
	Insert(ctx context.Context, userID int64, amount decimal.Decimal, description, category string, at time.Time) (int64, error)
}

// EventPublisher announces recorded expenses to downstream consumers.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, id, userID int64) error
}

// ExpenseService turns "/new" messages into stored records
type ExpenseService struct {
	store     ExpenseInserter
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewExpenseService wires the record flow. publisher may be nil when events
// are disabled.
func NewExpenseService(store ExpenseInserter, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentExpense),
		now:       time.Now,
	}
}

// Record parses text, stores the expense for userID and returns the
// confirmation. The event publish that follows never fails the request.
func (s *ExpenseService) Record(ctx context.Context, userID int64, text string) Reply {
	draft, err := core.ParseExpense(text)
	if err != nil {
		s.logger.InfoContext(ctx, "Expense text rejected",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpParse,
			log.FieldError, err)
		return Reply{Outcome: OutcomeRejected, Text: RejectedMessage, Err: err}
	}

	at := s.now()
	id, err := s.store.Insert(ctx, userID, draft.Amount, draft.Description, draft.Category, at)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record expense",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpInsert,
			log.FieldError, err)
		return Reply{Outcome: OutcomeStorageFailure, Text: InsertFailedMessage, Err: fmt.Errorf("record expense: %w", err)}
	}

	rec := core.ExpenseRecord{
		ID:          id,
		UserID:      userID,
		Amount:      draft.Amount,
		Description: draft.Description,
		Category:    draft.Category,
		Date:        at,
	}

	if err := s.publish(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, id,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}

	return Reply{Outcome: OutcomeRecorded, Text: Confirmation(rec), Record: &rec}
}

func (s *ExpenseService) publish(ctx context.Context, rec core.ExpenseRecord) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping expense event")
		return nil
	}
	if err := s.publisher.PublishExpenseRecorded(ctx, rec.ID, rec.UserID); err != nil {
		return fmt.Errorf("publish expense.recorded: %w", err)
	}
	return nil
}

// Confirmation renders the reply for a stored record.
func Confirmation(rec core.ExpenseRecord) string {
	return fmt.Sprintf("Expense recorded successfully!\nAmount: %s\nDescription: %s\nCategory: %s\nDate: %s\nID: %d",
		rec.Amount.StringFixed(2),
		rec.DisplayDescription(),
		rec.Category,
		rec.Date.Format(time.DateOnly),
		rec.ID)
}
