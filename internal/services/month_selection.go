package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgerbot/internal/cache"
	"ledgerbot/internal/core"
	"ledgerbot/internal/log"
)

const (
	// CancelToken is the choice token of the cancel option.
	CancelToken = "0"
	CancelLabel = "Cancel"

	// SelectionWindow is how many months an offer lists, current month first.
	SelectionWindow = 3

	// MaxCallbackData is the chat transport's limit on button payloads.
	MaxCallbackData = 64

	selectionSep = ":"
)

var ErrMalformedSelection = errors.New("malformed selection data")

// ExpenseQuerier reads one user's expenses for a month.
type ExpenseQuerier interface {
	QueryByUserAndMonth(ctx context.Context, userID int64, month core.Month) ([]core.ExpenseRecord, error)
}

// Offer is a month-selection prompt. All options share the offer ID, so
// settling any of them settles the whole offer.
type Offer struct {
	ID     string
	Anchor core.Month
	Months []core.Month
}

// Choice is one selectable option of an offer.
type Choice struct {
	Label string
	Data  string
}

// Choices returns the month options, newest first.
func (o Offer) Choices() []Choice {
	choices := make([]Choice, 0, len(o.Months))
	for _, m := range o.Months {
		choices = append(choices, Choice{
			Label: m.Label(),
			Data:  EncodeSelection(Selection{OfferID: o.ID, Anchor: o.Anchor, Choice: m.Token()}),
		})
	}
	return choices
}

// Cancel returns the cancel option.
func (o Offer) Cancel() Choice {
	return Choice{
		Label: CancelLabel,
		Data:  EncodeSelection(Selection{OfferID: o.ID, Anchor: o.Anchor, Choice: CancelToken}),
	}
}

// Selection is the decoded payload of a pressed option.
type Selection struct {
	OfferID string
	Anchor  core.Month
	Choice  string
}

func (s Selection) Cancelled() bool {
	return s.Choice == CancelToken
}

// Label returns the text of the pressed option.
func (s Selection) Label() string {
	if s.Cancelled() {
		return CancelLabel
	}
	if m, err := core.ParseMonth(s.Choice); err == nil {
		return m.Label()
	}
	return s.Choice
}

// Month returns the chosen month if it lies within the offer's window.
func (s Selection) Month() (core.Month, bool) {
	m, err := core.ParseMonth(s.Choice)
	if err != nil {
		return core.Month{}, false
	}
	for _, offered := range core.RecentMonths(s.anchorTime(), SelectionWindow) {
		if offered == m {
			return m, true
		}
	}
	return core.Month{}, false
}

func (s Selection) anchorTime() time.Time {
	start, _ := s.Anchor.Bounds(time.UTC)
	return start
}

// EncodeSelection renders s as "<offer>:<anchor>:<choice>".
func EncodeSelection(s Selection) string {
	return strings.Join([]string{s.OfferID, s.Anchor.Token(), s.Choice}, selectionSep)
}

// DecodeSelection parses callback data produced by EncodeSelection.
func DecodeSelection(data string) (Selection, error) {
	if data == "" || len(data) > MaxCallbackData {
		return Selection{}, ErrMalformedSelection
	}

	parts := strings.Split(data, selectionSep)
	if len(parts) != 3 {
		return Selection{}, ErrMalformedSelection
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return Selection{}, fmt.Errorf("%w: offer id: %v", ErrMalformedSelection, err)
	}
	anchor, err := core.ParseMonth(parts[1])
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrMalformedSelection, err)
	}
	if parts[2] == "" {
		return Selection{}, fmt.Errorf("%w: empty choice", ErrMalformedSelection)
	}

	return Selection{OfferID: id.String(), Anchor: anchor, Choice: parts[2]}, nil
}

// MonthSelection runs the two-step summary dialogue: Offer lists the recent
// months, Resolve settles the pressed option exactly once.
type MonthSelection struct {
	store   ExpenseQuerier
	settled cache.Cache[int64]
	logger  *log.Logger
	now     func() time.Time
}

// NewMonthSelection creates the protocol. settled remembers consumed offer IDs
// and must keep them at least as long as offers stay clickable.
func NewMonthSelection(store ExpenseQuerier, settled cache.Cache[int64], logger *log.Logger) *MonthSelection {
	if logger == nil {
		logger = log.Discard()
	}
	return &MonthSelection{
		store:   store,
		settled: settled,
		logger:  logger.WithComponent(log.ComponentSelection),
		now:     time.Now,
	}
}

// Offer builds a fresh prompt from the current clock.
func (m *MonthSelection) Offer(ctx context.Context, userID int64) Offer {
	now := m.now()
	offer := Offer{
		ID:     uuid.NewString(),
		Anchor: core.MonthOf(now),
		Months: core.RecentMonths(now, SelectionWindow),
	}

	m.logger.DebugContext(ctx, "Month selection offered",
		log.FieldUserID, userID,
		log.FieldOfferID, offer.ID,
		log.FieldMonth, offer.Anchor.Token())

	return offer
}

// Resolve settles the option encoded in data on behalf of userID, the user
// reported by the gateway.
func (m *MonthSelection) Resolve(ctx context.Context, userID int64, data string) Reply {
	sel, err := DecodeSelection(data)
	if err != nil {
		return m.ignore(ctx, userID, err)
	}

	var month core.Month
	if !sel.Cancelled() {
		var ok bool
		if month, ok = sel.Month(); !ok {
			return m.ignore(ctx, userID, fmt.Errorf("month %q not offered by %s", sel.Choice, sel.OfferID))
		}
	}
	if !liveAnchor(sel.Anchor, m.now()) {
		return m.ignore(ctx, userID, fmt.Errorf("offer %s anchored at %s, not made this month or last", sel.OfferID, sel.Anchor))
	}

	if !m.settled.SetIfAbsent(sel.OfferID, userID) {
		return m.ignore(ctx, userID, fmt.Errorf("offer %s already settled", sel.OfferID))
	}

	if sel.Cancelled() {
		m.logger.InfoContext(ctx, "Month selection cancelled",
			log.FieldUserID, userID,
			log.FieldOfferID, sel.OfferID)
		return Reply{Outcome: OutcomeCancelled, Text: CancelledMessage}
	}

	records, err := m.store.QueryByUserAndMonth(ctx, userID, month)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to fetch summary",
			log.FieldUserID, userID,
			log.FieldMonth, month.Token(),
			log.FieldOperation, log.OpQuery,
			log.FieldError, err)
		return Reply{Outcome: OutcomeStorageFailure, Text: SummaryFailedMessage, Err: fmt.Errorf("summary %s: %w", month, err)}
	}

	m.logger.InfoContext(ctx, "Month selection resolved",
		log.FieldUserID, userID,
		log.FieldOfferID, sel.OfferID,
		log.FieldMonth, month.Token(),
		log.FieldCount, len(records))

	if len(records) == 0 {
		return Reply{Outcome: OutcomeEmpty, Text: core.NoRecordsMessage}
	}
	return Reply{Outcome: OutcomeSummary, Text: core.FormatSummary(records)}
}

// liveAnchor reports whether an offer anchored at anchor could have been made
// recently enough to still be pressed: in the current month, or in the
// previous one for prompts left open across a month change.
func liveAnchor(anchor core.Month, now time.Time) bool {
	current := core.MonthOf(now)
	return anchor == current || anchor == current.Prev(1)
}

func (m *MonthSelection) ignore(ctx context.Context, userID int64, cause error) Reply {
	m.logger.WarnContext(ctx, "Ignoring selection",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpResolve,
		log.FieldError, cause)
	return Reply{Outcome: OutcomeIgnored, Text: IgnoredMessage, Err: cause}
}
