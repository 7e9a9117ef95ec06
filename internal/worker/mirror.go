package worker

import (
	"context"
	"errors"
	"fmt"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/core"
	"ledgerbot/internal/log"
	"ledgerbot/internal/sheets"
	"ledgerbot/internal/storage"
)

// RecordLoader fetches a stored expense by id.
type RecordLoader interface {
	Get(ctx context.Context, id int64) (core.ExpenseRecord, error)
}

// Mirror copies recorded expenses from the ledger to a sheet
type Mirror struct {
	store  RecordLoader
	sheets sheets.RecordWriter
	logger *log.Logger
}

func NewMirror(store RecordLoader, writer sheets.RecordWriter, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Discard()
	}
	return &Mirror{
		store:  store,
		sheets: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecorded processes a single expense.recorded message. Records that
// no longer exist are skipped; other failures are returned so the message is
// redelivered.
func (m *Mirror) HandleRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	m.logger.InfoContext(ctx, "Processing expense.recorded message",
		log.FieldExpenseID, msg.ID,
		log.FieldUserID, msg.UserID)

	rec, err := m.store.Get(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.WarnContext(ctx, "Expense not found, skipping", log.FieldExpenseID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if msg.UserID != 0 && rec.UserID != msg.UserID {
		m.logger.WarnContext(ctx, "Message user does not match stored expense",
			log.FieldExpenseID, msg.ID,
			log.FieldUserID, msg.UserID,
			"stored_user_id", rec.UserID)
	}

	ref, err := m.sheets.Append(ctx, rec)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	m.logger.InfoContext(ctx, "Mirrored expense",
		log.FieldExpenseID, rec.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmount, rec.Amount.StringFixed(2))

	return nil
}
