package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerbot/internal/cache"
	"ledgerbot/internal/core"
	"ledgerbot/internal/storage"
)

var selectionNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestSelection(store ExpenseQuerier) *MonthSelection {
	sel := NewMonthSelection(store, cache.NewLRUCache[int64](100, time.Hour), nil)
	sel.now = fixedClock(selectionNow)
	return sel
}

func TestOfferListsRecentMonths(t *testing.T) {
	sel := newTestSelection(&fakeQuerier{})

	offer := sel.Offer(context.Background(), 42)

	require.Len(t, offer.Choices(), SelectionWindow)
	labels := []string{}
	for _, c := range offer.Choices() {
		labels = append(labels, c.Label)
		assert.LessOrEqual(t, len(c.Data), MaxCallbackData)
	}
	assert.Equal(t, []string{"Oct 2026", "Sep 2026", "Aug 2026"}, labels)
	assert.Equal(t, CancelLabel, offer.Cancel().Label)
	assert.NotEqual(t, offer.ID, sel.Offer(context.Background(), 42).ID)
}

func TestOfferAcrossYearBoundary(t *testing.T) {
	sel := newTestSelection(&fakeQuerier{})
	sel.now = fixedClock(time.Date(2027, 1, 5, 8, 0, 0, 0, time.UTC))

	offer := sel.Offer(context.Background(), 1)

	var tokens []string
	for _, m := range offer.Months {
		tokens = append(tokens, m.Token())
	}
	assert.Equal(t, []string{"2027-01", "2026-12", "2026-11"}, tokens)
}

func TestSelectionRoundTrip(t *testing.T) {
	sel := Selection{OfferID: "9b2f7e4e-2a55-4c52-9a5c-2f0d1b7a1e33", Anchor: core.Month{Year: 2026, Month: time.October}, Choice: "2026-08"}

	decoded, err := DecodeSelection(EncodeSelection(sel))

	require.NoError(t, err)
	assert.Equal(t, sel, decoded)
	m, ok := decoded.Month()
	assert.True(t, ok)
	assert.Equal(t, time.August, m.Month)
}

func TestDecodeSelectionMalformed(t *testing.T) {
	for _, data := range []string{
		"",
		"2026-10",
		"not-a-uuid:2026-10:2026-10",
		"9b2f7e4e-2a55-4c52-9a5c-2f0d1b7a1e33:2026-13:2026-10",
		"9b2f7e4e-2a55-4c52-9a5c-2f0d1b7a1e33:2026-10:",
		"9b2f7e4e-2a55-4c52-9a5c-2f0d1b7a1e33:2026-10:2026-10:extra",
	} {
		_, err := DecodeSelection(data)
		assert.ErrorIs(t, err, ErrMalformedSelection, "data %q", data)
	}
}

func TestResolveMonth(t *testing.T) {
	at := time.Date(2026, 9, 3, 18, 0, 0, 0, time.UTC)
	store := &fakeQuerier{records: []core.ExpenseRecord{
		{ID: 2, UserID: 42, Amount: decimal.RequireFromString("4.50"), Description: "tea", Category: core.DefaultCategory, Date: at},
		{ID: 1, UserID: 42, Amount: decimal.RequireFromString("1.25"), Description: "gum", Category: core.DefaultCategory, Date: at.Add(-time.Hour)},
	}}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	reply := sel.Resolve(context.Background(), 42, offer.Choices()[1].Data)

	assert.Equal(t, OutcomeSummary, reply.Outcome)
	assert.Contains(t, reply.Text, "2 expense(s) found!")
	assert.Contains(t, reply.Text, "Total expenditure: $5.75")
	require.Len(t, store.calls, 1)
	assert.Equal(t, queryCall{userID: 42, month: core.Month{Year: 2026, Month: time.September}}, store.calls[0])
}

func TestResolveEmptyMonth(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	reply := sel.Resolve(context.Background(), 42, offer.Choices()[2].Data)

	assert.Equal(t, OutcomeEmpty, reply.Outcome)
	assert.Equal(t, core.NoRecordsMessage, reply.Text)
	assert.NoError(t, reply.Err)
}

func TestResolveStorageFailure(t *testing.T) {
	store := &fakeQuerier{err: &storage.Error{Op: "query", Err: errors.New("database is locked")}}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	reply := sel.Resolve(context.Background(), 42, offer.Choices()[0].Data)

	assert.Equal(t, OutcomeStorageFailure, reply.Outcome)
	assert.Equal(t, SummaryFailedMessage, reply.Text)
	assert.ErrorIs(t, reply.Err, storage.ErrUnavailable)
}

func TestResolveCancelNeverQueries(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	first := sel.Resolve(context.Background(), 42, offer.Cancel().Data)
	second := sel.Resolve(context.Background(), 42, offer.Cancel().Data)

	assert.Equal(t, OutcomeCancelled, first.Outcome)
	assert.Equal(t, CancelledMessage, first.Text)
	assert.Equal(t, OutcomeIgnored, second.Outcome)
	assert.Equal(t, 0, store.callCount())
}

func TestResolveIsSingleUse(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	assert.Equal(t, OutcomeEmpty, sel.Resolve(context.Background(), 42, offer.Choices()[0].Data).Outcome)
	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, offer.Choices()[1].Data).Outcome)
	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, offer.Cancel().Data).Outcome)
	assert.Equal(t, 1, store.callCount())

	other := sel.Offer(context.Background(), 42)
	assert.Equal(t, OutcomeCancelled, sel.Resolve(context.Background(), 42, other.Cancel().Data).Outcome)
	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, other.Choices()[0].Data).Outcome)
	assert.Equal(t, 1, store.callCount())
}

func TestResolveRejectsMonthsOutsideWindow(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	forged := []Selection{
		{OfferID: offer.ID, Anchor: offer.Anchor, Choice: "2026-07"},
		{OfferID: offer.ID, Anchor: offer.Anchor, Choice: "2026-11"},
		{OfferID: offer.ID, Anchor: offer.Anchor, Choice: "junk"},
		{OfferID: offer.ID, Anchor: core.Month{Year: 2027, Month: time.March}, Choice: "2027-03"},
	}
	for _, f := range forged {
		reply := sel.Resolve(context.Background(), 42, EncodeSelection(f))
		assert.Equal(t, OutcomeIgnored, reply.Outcome, f.Choice)
		assert.Equal(t, IgnoredMessage, reply.Text)
	}
	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, "garbage").Outcome)
	assert.Equal(t, 0, store.callCount())

	// Misuse does not consume the offer.
	assert.Equal(t, OutcomeEmpty, sel.Resolve(context.Background(), 42, offer.Choices()[0].Data).Outcome)
}

func TestResolveRejectsStaleOrForgedAnchors(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)

	anchors := []struct {
		anchor core.Month
		choice string
	}{
		{core.Month{Year: 2019, Month: time.March}, "2019-01"},
		{core.Month{Year: 2026, Month: time.August}, "2026-06"},
		{core.Month{Year: 2026, Month: time.August}, "2026-08"},
		{core.Month{Year: 2025, Month: time.October}, "2025-10"},
		{core.Month{Year: 2026, Month: time.November}, "2026-10"},
	}
	for _, a := range anchors {
		data := EncodeSelection(Selection{OfferID: uuid.NewString(), Anchor: a.anchor, Choice: a.choice})
		reply := sel.Resolve(context.Background(), 42, data)
		assert.Equal(t, OutcomeIgnored, reply.Outcome, data)
	}
	assert.Equal(t, 0, store.callCount())

	cancel := EncodeSelection(Selection{OfferID: uuid.NewString(), Anchor: core.Month{Year: 2019, Month: time.March}, Choice: CancelToken})
	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, cancel).Outcome)
}

func TestResolveOfferFromTwoMonthsAgoIsStale(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	sel.now = fixedClock(time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, offer.Choices()[0].Data).Outcome)
	assert.Equal(t, 0, store.callCount())
}

func TestResolveAfterMonthRollover(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	sel.now = fixedClock(time.Date(2026, 11, 1, 0, 5, 0, 0, time.UTC))
	reply := sel.Resolve(context.Background(), 42, offer.Choices()[2].Data)

	assert.Equal(t, OutcomeEmpty, reply.Outcome)
	require.Len(t, store.calls, 1)
	assert.Equal(t, core.Month{Year: 2026, Month: time.August}, store.calls[0].month)
}

func TestResolveUsesActingUser(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	sel.Resolve(context.Background(), 99, offer.Choices()[0].Data)

	require.Len(t, store.calls, 1)
	assert.Equal(t, int64(99), store.calls[0].userID)
	assert.Equal(t, OutcomeIgnored, sel.Resolve(context.Background(), 42, offer.Choices()[0].Data).Outcome)
}

func TestResolveConcurrentPressesSettleOnce(t *testing.T) {
	store := &fakeQuerier{}
	sel := newTestSelection(store)
	offer := sel.Offer(context.Background(), 42)

	var settled int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := offer.Choices()[i%SelectionWindow].Data
			if i%4 == 0 {
				data = offer.Cancel().Data
			}
			if sel.Resolve(context.Background(), 42, data).Outcome != OutcomeIgnored {
				atomic.AddInt32(&settled, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), settled)
	assert.LessOrEqual(t, store.callCount(), 1)
}

func TestResolveAgainstStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, t.TempDir()+"/ledger.db", storage.WithLocation(time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Insert(ctx, 42, decimal.RequireFromString("10.00"), "groceries", core.DefaultCategory, selectionNow.Add(-time.Hour))
	require.NoError(t, err)
	_, err = store.Insert(ctx, 42, decimal.RequireFromString("5.50"), "lunch", core.DefaultCategory, selectionNow)
	require.NoError(t, err)
	_, err = store.Insert(ctx, 7, decimal.RequireFromString("99.00"), "other user", core.DefaultCategory, selectionNow)
	require.NoError(t, err)

	sel := newTestSelection(store)
	offer := sel.Offer(ctx, 42)
	reply := sel.Resolve(ctx, 42, offer.Choices()[0].Data)

	require.Equal(t, OutcomeSummary, reply.Outcome)
	assert.Contains(t, reply.Text, "2 expense(s) found!")
	assert.Less(t, strings.Index(reply.Text, "lunch"), strings.Index(reply.Text, "groceries"))
	assert.Contains(t, reply.Text, "Total expenditure: $15.50")
	assert.NotContains(t, reply.Text, "other user")
}
