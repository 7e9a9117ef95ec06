package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// NoRecordsMessage is the summary text for a month without expenses.
	NoRecordsMessage = "No expenses found for the selected period."

	summaryDateLayout = "02 Jan 2006, 03:04 PM"
)

// Total adds up the stored amounts without intermediate rounding.
func Total(records []ExpenseRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// FormatSummary renders records in the order given, one numbered block per
// record, followed by the total.
func FormatSummary(records []ExpenseRecord) string {
	if len(records) == 0 {
		return NoRecordsMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d expense(s) found!\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "#%d) %s for $%s\n", i+1, r.DisplayDescription(), r.Amount.StringFixed(2))
		fmt.Fprintf(&b, "Category: %s\n", r.Category)
		fmt.Fprintf(&b, "Date: %s\n\n", r.Date.Format(summaryDateLayout))
	}
	fmt.Fprintf(&b, "Total expenditure: $%s", Total(records).StringFixed(2))

	return b.String()
}
