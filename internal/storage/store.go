package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledgerbot/internal/core"
	"ledgerbot/internal/log"

	_ "modernc.org/sqlite"
)

// TimestampLayout is the on-disk form of the date column.
const TimestampLayout = "2006-01-02 15:04:05"

// Earlier versions of the bot wrote ISO-8601 with a "T" separator.
var readLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

var (
	// ErrUnavailable matches every *Error: the backend could not serve the call.
	ErrUnavailable = errors.New("ledger storage unavailable")
	ErrNotFound    = errors.New("expense not found")

	// ErrInvalidRecord is returned by Insert for values the parser never
	// produces. It does not match ErrUnavailable.
	ErrInvalidRecord = errors.New("invalid expense record")
)

// Error is returned for any persistence failure. The cause is kept for
// operators; callers only need errors.Is(err, ErrUnavailable).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}

// Store persists expense records in SQLite.
type Store struct {
	mu     sync.Mutex // guards db
	initMu sync.Mutex
	path   string
	dsn    string
	loc    *time.Location
	db     *sql.DB
	logger *log.Logger
}

type Option func(*Store)

// WithLocation sets the zone used to write timestamps and to compute month
// boundaries. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.WithComponent(log.ComponentStorage)
		}
	}
}

// Open connects to the database at path and initializes the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		dsn:    dsnFor(path),
		loc:    time.Local,
		logger: log.FromContext(ctx).WithComponent(log.ComponentStorage),
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &Error{Op: log.OpConnect, Err: fmt.Errorf("create db directory: %w", err)}
		}
	}

	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func dsnFor(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Location returns the zone timestamps are written in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// conn returns the open connection, making one attempt to reopen it when it
// has been closed.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error connecting to database", log.FieldError, err, "path", s.path)
		return nil, &Error{Op: log.OpConnect, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		s.logger.ErrorContext(ctx, "Error connecting to database", log.FieldError, err, "path", s.path)
		return nil, &Error{Op: log.OpConnect, Err: err}
	}

	s.db = db
	s.logger.InfoContext(ctx, "Connected to database", "path", s.path)
	return db, nil
}

// Init creates the expenses table and its index when absent. It never
// touches existing rows and may be called any number of times.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if _, err := s.conn(ctx); err != nil {
		return err
	}

	version, err := RunMigrations(s.dsn)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating table", log.FieldError, err)
		return &Error{Op: log.OpInit, Err: err}
	}

	s.logger.InfoContext(ctx, "Expenses table checked/created", "schema_version", version)
	return nil
}

// Insert stores one expense and returns its new id. Nothing is persisted
// when an error is returned.
func (s *Store) Insert(ctx context.Context, userID int64, amount decimal.Decimal, description, category string, at time.Time) (int64, error) {
	rec := core.ExpenseRecord{UserID: userID, Amount: amount, Date: at}
	if err := rec.Validate(); err != nil {
		return 0, fmt.Errorf("insert expense: %w: %w", ErrInvalidRecord, err)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.DebugContext(ctx, "Attempting to insert expense", log.FieldUserID, userID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.insertFailed(ctx, userID, err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount, description, category, date) VALUES (?, ?, ?, ?, ?)",
		userID, amount.InexactFloat64(), nullString(description), nullString(category), s.formatTime(at),
	)
	if err != nil {
		return 0, s.rollback(ctx, tx, userID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.rollback(ctx, tx, userID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, s.rollback(ctx, tx, userID, err)
	}

	s.logger.InfoContext(ctx, "Expense saved",
		log.FieldExpenseID, id,
		log.FieldUserID, userID,
		log.FieldAmount, amount.StringFixed(2))

	return id, nil
}

func (s *Store) rollback(ctx context.Context, tx *sql.Tx, userID int64, cause error) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.ErrorContext(ctx, "Rollback failed", log.FieldUserID, userID, log.FieldError, err)
	}
	return s.insertFailed(ctx, userID, cause)
}

func (s *Store) insertFailed(ctx context.Context, userID int64, cause error) error {
	s.logger.ErrorContext(ctx, "Database error during insert", log.FieldUserID, userID, log.FieldError, cause)
	return &Error{Op: log.OpInsert, Err: cause}
}

// QueryByUserAndMonth returns the user's expenses dated within month, most
// recent first. No matching rows yields an empty slice and a nil error.
func (s *Store) QueryByUserAndMonth(ctx context.Context, userID int64, month core.Month) ([]core.ExpenseRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	start, end := month.Bounds(s.loc)
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, amount, description, category, date
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date DESC, id DESC`,
		userID, s.formatTime(start), s.formatTime(end),
	)
	if err != nil {
		return nil, &Error{Op: log.OpQuery, Err: err}
	}
	defer rows.Close()

	records := make([]core.ExpenseRecord, 0)
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, &Error{Op: log.OpQuery, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: log.OpQuery, Err: err}
	}

	// Text order differs from time order when legacy and current encodings
	// share a day.
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].ID > records[j].ID
	})

	s.logger.DebugContext(ctx, "Expenses fetched",
		log.FieldUserID, userID,
		log.FieldMonth, month.Token(),
		log.FieldCount, len(records))

	return records, nil
}

// Get returns the expense with the given id.
func (s *Store) Get(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	row := db.QueryRowContext(ctx,
		"SELECT id, user_id, amount, description, category, date FROM expenses WHERE id = ?", id)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.ExpenseRecord{}, &Error{Op: log.OpGet, Err: err}
	}
	return rec, nil
}

// Close releases the connection. Closing a closed store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	if err != nil {
		return &Error{Op: log.OpClose, Err: err}
	}

	s.logger.Info("Disconnected from database", "path", s.path)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (core.ExpenseRecord, error) {
	var (
		rec         core.ExpenseRecord
		amount      float64
		description sql.NullString
		category    sql.NullString
		date        string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &amount, &description, &category, &date); err != nil {
		return core.ExpenseRecord{}, err
	}

	at, err := s.parseTime(date)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", rec.ID, err)
	}

	rec.Amount = decimal.NewFromFloat(amount).Round(2)
	rec.Description = description.String
	rec.Category = category.String
	rec.Date = at
	return rec, nil
}

func (s *Store) formatTime(t time.Time) string {
	return t.In(s.loc).Format(TimestampLayout)
}

func (s *Store) parseTime(v string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
