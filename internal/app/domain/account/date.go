package account

import "time"

const dateLayout = "2006-01-02"

// Date is a calendar date in the ledger's configured location. The zero
// value means "never".
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) IsZero() bool { return d == "" }

// DayBefore reports whether d is exactly one calendar day before next.
func (d Date) DayBefore(next Date) bool {
	if d.IsZero() || next.IsZero() {
		return false
	}
	a, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return false
	}
	b, err := time.Parse(dateLayout, string(next))
	if err != nil {
		return false
	}
	return a.AddDate(0, 0, 1).Equal(b)
}

func (d Date) String() string {
	if d.IsZero() {
		return "never"
	}
	return string(d)
}
