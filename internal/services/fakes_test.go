package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledgerbot/internal/core"
)

type insertCall struct {
	userID      int64
	amount      decimal.Decimal
	description string
	category    string
	at          time.Time
}

type fakeInserter struct {
	mu     sync.Mutex
	calls  []insertCall
	nextID int64
	err    error
}

func (f *fakeInserter) Insert(_ context.Context, userID int64, amount decimal.Decimal, description, category string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, insertCall{userID, amount, description, category, at})
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	return f.nextID, nil
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (f *fakePublisher) PublishExpenseRecorded(_ context.Context, id, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return f.err
}

type queryCall struct {
	userID int64
	month  core.Month
}

type fakeQuerier struct {
	mu      sync.Mutex
	calls   []queryCall
	records []core.ExpenseRecord
	err     error
}

func (f *fakeQuerier) QueryByUserAndMonth(_ context.Context, userID int64, month core.Month) ([]core.ExpenseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, queryCall{userID, month})
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeQuerier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
