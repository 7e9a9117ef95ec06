package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerbot/internal/core"
)

type appendCall struct {
	path  string
	query string
	body  gsheet.ValueRange
}

func newTestClient(t *testing.T, status int) (*Client, *[]appendCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []appendCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		mu.Lock()
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, body: vr})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Expenses!A7:F7","updatedRows":1}}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return NewWithService(svc, "sheet-1", "", nil), &calls
}

func testRecord() core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:          7,
		UserID:      42,
		Amount:      decimal.RequireFromString("15.75"),
		Description: "coffee",
		Category:    core.DefaultCategory,
		Date:        time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewMissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNewUnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:      "sheet-1",
		ServiceAccountFile: t.TempDir() + "/missing.json",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestAppend(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK)

	ref, err := c.Append(context.Background(), testRecord())

	require.NoError(t, err)
	assert.Equal(t, "Expenses!A7:F7", ref)
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.True(t, strings.HasSuffix(call.path, ":append"), call.path)
	assert.Contains(t, call.path, "sheet-1")
	assert.Contains(t, call.query, "valueInputOption=USER_ENTERED")
	assert.Contains(t, call.query, "insertDataOption=INSERT_ROWS")
	require.Len(t, call.body.Values, 1)
	assert.Equal(t, []any{float64(7), float64(42), "2026-10-16 09:30:00", "coffee", "15.75", "Uncategorized"}, call.body.Values[0])
}

func TestAppendAPIError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusForbidden)

	_, err := c.Append(context.Background(), testRecord())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "append to sheet Expenses")
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK)
	rec := testRecord()
	rec.Amount = decimal.Zero

	_, err := c.Append(context.Background(), rec)

	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Empty(t, *calls)
}

func TestAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet-1", sheetName: "Expenses"}

	_, err := c.Append(context.Background(), testRecord())

	assert.EqualError(t, err, "sheets service not initialized")
}
