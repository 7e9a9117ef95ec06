package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v3"

	"ledgerbot/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for the update's trace ID
	TraceIDKey ContextKey = "trace_id"

	// contextSlot is where the request context is stored on the update
	contextSlot = "ledger.ctx"
)

// Middleware traces each update: it assigns a trace ID, carries a tagged
// logger in the request context and logs completion with the duration.
type Middleware struct {
	base    context.Context
	logger  *log.Logger
	metrics *Metrics
}

// Metrics tracks update metrics
type Metrics struct {
	TotalUpdates   int64
	FailedUpdates  int64
	LastDurationUs int64
}

// NewMiddleware creates a new trace middleware. base is the parent of every
// request context, so cancelling it cancels in-flight work.
func NewMiddleware(base context.Context, logger *log.Logger) *Middleware {
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{
		base:    base,
		logger:  logger.WithComponent(log.ComponentTrace),
		metrics: &Metrics{},
	}
}

// Middleware returns telebot middleware for update tracing
func (m *Middleware) Middleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			traceID := GenerateTraceID()

			var userID, chatID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			if ch := c.Chat(); ch != nil {
				chatID = ch.ID
			}
			command := commandOf(c)

			logger := m.logger.With(
				log.FieldTraceID, traceID,
				log.FieldUserID, userID,
				log.FieldChatID, chatID)
			ctx := context.WithValue(m.base, TraceIDKey, traceID)
			ctx = log.WithContext(ctx, logger)
			c.Set(contextSlot, ctx)

			logger.DebugContext(ctx, "Update started", log.FieldCommand, command)
			atomic.AddInt64(&m.metrics.TotalUpdates, 1)

			err := next(c)

			duration := time.Since(start)
			atomic.StoreInt64(&m.metrics.LastDurationUs, duration.Microseconds())

			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				atomic.AddInt64(&m.metrics.FailedUpdates, 1)
			}
			logger.Log(ctx, level, "Update completed",
				log.FieldComponent, logger.Component(),
				log.FieldCommand, command,
				log.FieldDuration, duration.Milliseconds(),
				"success", err == nil)

			return err
		}
	}
}

func commandOf(c tele.Context) string {
	if c.Callback() != nil {
		return "callback"
	}
	fields := strings.Fields(c.Text())
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		return strings.ToLower(fields[0])
	}
	return "text"
}

// GenerateTraceID creates a unique trace ID
func GenerateTraceID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("upd_%d", time.Now().UnixNano())
	}
	return "upd_" + hex.EncodeToString(bytes)
}

// Context returns the request context stored on the update, or a background
// context when the update was not traced.
func Context(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextSlot).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// GetTraceID extracts the trace ID from context
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalUpdates:   atomic.LoadInt64(&m.metrics.TotalUpdates),
		FailedUpdates:  atomic.LoadInt64(&m.metrics.FailedUpdates),
		LastDurationUs: atomic.LoadInt64(&m.metrics.LastDurationUs),
	}
}
