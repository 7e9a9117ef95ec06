// Package bot connects the ledger services to Telegram.
package bot

import (
	"context"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"ledgerbot/internal/log"
	"ledgerbot/internal/middleware/trace"
	"ledgerbot/internal/services"
)

const (
	// Greeting answers /start.
	Greeting = "I'm a bot, please talk to me!\n" +
		"Record an expense with /new <amount> for <description> and review a month with /summary."

	selectedPrefix = "Selected option: "
)

type (
	// Recorder runs the /new flow.
	Recorder interface {
		Record(ctx context.Context, userID int64, text string) services.Reply
	}

	// Selector runs the /summary dialogue.
	Selector interface {
		Offer(ctx context.Context, userID int64) services.Offer
		Resolve(ctx context.Context, userID int64, data string) services.Reply
	}

	// Initializer prepares the ledger schema.
	Initializer interface {
		Init(ctx context.Context) error
	}
)

// Handlers holds the update handlers. It does not own the telebot instance,
// so it can be exercised without a network connection.
type Handlers struct {
	store     Initializer
	recorder  Recorder
	selection Selector
	logger    *log.Logger
}

func NewHandlers(store Initializer, recorder Recorder, selection Selector, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.Discard()
	}
	return &Handlers{
		store:     store,
		recorder:  recorder,
		selection: selection,
		logger:    logger.WithComponent(log.ComponentBot),
	}
}

// Register installs the handlers and middleware on b.
func (h *Handlers) Register(b *tele.Bot, middleware ...tele.MiddlewareFunc) {
	b.Use(middleware...)
	b.Handle("/start", h.OnStart)
	b.Handle("/new", h.OnNew)
	b.Handle("/summary", h.OnSummary)
	b.Handle(tele.OnCallback, h.OnCallback)
	b.Handle(tele.OnText, h.OnText)
}

// OnStart ensures the schema exists and greets the user.
func (h *Handlers) OnStart(c tele.Context) error {
	ctx := trace.Context(c)
	if err := h.store.Init(ctx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to initialize ledger", log.FieldError, err)
	}
	return c.Send(Greeting)
}

// OnNew records an expense from the message text.
func (h *Handlers) OnNew(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := trace.Context(c)

	reply := h.recorder.Record(ctx, sender.ID, c.Text())
	h.logOutcome(ctx, reply)
	return c.Send(reply.Text)
}

// OnSummary sends the month-selection prompt.
func (h *Handlers) OnSummary(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := trace.Context(c)

	offer := h.selection.Offer(ctx, sender.ID)
	return c.Send(services.OfferPrompt, OfferMarkup(offer))
}

// OnCallback settles a pressed month-selection option.
func (h *Handlers) OnCallback(c tele.Context) error {
	cb := c.Callback()
	sender := c.Sender()
	if cb == nil || sender == nil {
		return nil
	}
	ctx := trace.Context(c)

	reply := h.selection.Resolve(ctx, sender.ID, cb.Data)
	h.logOutcome(ctx, reply)

	if reply.Outcome == services.OutcomeIgnored {
		return c.Respond(&tele.CallbackResponse{Text: reply.Text})
	}

	if err := c.Respond(); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to answer callback", log.FieldError, err)
	}

	if sel, err := services.DecodeSelection(cb.Data); err == nil {
		if err := c.Edit(selectedPrefix + sel.Label()); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Failed to edit offer message", log.FieldError, err)
		}
	}

	return c.Send(reply.Text)
}

// OnText answers unknown commands. Plain text is ignored.
func (h *Handlers) OnText(c tele.Context) error {
	if !strings.HasPrefix(strings.TrimSpace(c.Text()), "/") {
		return nil
	}
	return c.Send(services.UnknownCommand)
}

// OnError is the telebot error hook.
func (h *Handlers) OnError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = trace.Context(c)
	}
	log.FromContext(ctx).ErrorContext(ctx, "Update handler failed", log.FieldError, err)
}

func (h *Handlers) logOutcome(ctx context.Context, reply services.Reply) {
	logger := log.FromContext(ctx)
	if reply.Failed() {
		logger.ErrorContext(ctx, "Request failed",
			log.FieldOutcome, reply.Outcome.String(),
			log.FieldError, reply.Err)
		return
	}
	logger.DebugContext(ctx, "Request handled", log.FieldOutcome, reply.Outcome.String())
}

// OfferMarkup renders an offer as one row of months and a cancel row.
func OfferMarkup(offer services.Offer) *tele.ReplyMarkup {
	choices := offer.Choices()
	row := make([]tele.InlineButton, 0, len(choices))
	for _, choice := range choices {
		row = append(row, tele.InlineButton{Text: choice.Label, Data: choice.Data})
	}
	cancel := offer.Cancel()

	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{
			row,
			{{Text: cancel.Label, Data: cancel.Data}},
		},
	}
}

// Settings holds what New needs to reach Telegram.
type Settings struct {
	Token       string
	PollTimeout time.Duration
}

// New creates the telebot instance with long polling and h wired as the
// error hook.
func New(s Settings, h *Handlers) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:   s.Token,
		Poller:  &tele.LongPoller{Timeout: s.PollTimeout},
		OnError: h.OnError,
	})
}
