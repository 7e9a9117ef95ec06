package sheets

import (
	"context"

	"ledgerbot/internal/core"
)

// RecordWriter mirrors stored expenses to an external sheet.
type RecordWriter interface {
	Append(ctx context.Context, rec core.ExpenseRecord) (rowRef string, err error)
}

// Columns of a mirrored row, in order.
var Header = []string{"ID", "User", "Date", "Description", "Amount", "Category"}

// DateLayout formats the Date column.
const DateLayout = "2006-01-02 15:04:05"

// Row renders rec as sheet cells matching Header.
func Row(rec core.ExpenseRecord) []any {
	return []any{
		rec.ID,
		rec.UserID,
		rec.Date.Format(DateLayout),
		rec.DisplayDescription(),
		rec.Amount.StringFixed(2),
		rec.Category,
	}
}
