package domain

import "time"

// MonthLayout is the YYYY-MM format used by the monthly output tables.
const MonthLayout = "2006-01"

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts a month start by n months.
func AddMonths(month time.Time, n int) time.Time {
	return MonthStart(month).AddDate(0, n, 0)
}

// MonthsBetween returns the number of whole months from a to b.
func MonthsBetween(a, b time.Time) int {
	a, b = MonthStart(a), MonthStart(b)
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// FormatMonth renders a month as YYYY-MM.
func FormatMonth(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(MonthLayout)
}

// ParseMonth parses YYYY-MM or a full date and returns the month start.
func ParseMonth(s string) (time.Time, error) {
	if t, err := time.Parse(MonthLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return MonthStart(t), nil
}
