package core

import (
	"fmt"
	"time"
)

const (
	monthTokenLayout = "2006-01"
	monthLabelLayout = "Jan 2006"
)

// Month identifies a calendar month. Its token form ("2006-01") is both the
// selection data and the query key.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" token.
func ParseMonth(token string) (Month, error) {
	t, err := time.Parse(monthTokenLayout, token)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month token %q: %w", token, err)
	}
	return MonthOf(t), nil
}

// Token returns the "YYYY-MM" form.
func (m Month) Token() string {
	return m.first(time.UTC).Format(monthTokenLayout)
}

// Label returns the human-readable form, e.g. "Oct 2026".
func (m Month) Label() string {
	return m.first(time.UTC).Format(monthLabelLayout)
}

func (m Month) String() string {
	return m.Token()
}

// Prev returns the month n months before m.
func (m Month) Prev(n int) Month {
	return MonthOf(m.first(time.UTC).AddDate(0, -n, 0))
}

// Bounds returns the half-open interval [start, end) covering the month in loc.
func (m Month) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := m.first(loc)
	return start, start.AddDate(0, 1, 0)
}

func (m Month) first(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// RecentMonths returns n months ending with the month of now, newest first.
func RecentMonths(now time.Time, n int) []Month {
	current := MonthOf(now)
	months := make([]Month, 0, n)
	for i := 0; i < n; i++ {
		months = append(months, current.Prev(i))
	}
	return months
}
