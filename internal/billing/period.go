package billing

import (
	"fmt"
	"time"
)

// PeriodCutoffDay is the last day of a billing period; the next period starts
// the day after.
const PeriodCutoffDay = 20

// Period is a billing cycle running from the 21st of the previous month to the
// 20th of the labelled month, inclusive.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("billing month must be between 1 and 12, got %d", month)
	}
	if year < 2000 || year > 9999 {
		return Period{}, fmt.Errorf("billing year out of range: %d", year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Start is the first day of the period (previous month's 21st, 00:00 UTC).
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month-1, PeriodCutoffDay+1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the period (this month's 20th, 00:00 UTC).
func (p Period) End() time.Time {
	return time.Date(p.Year, p.Month, PeriodCutoffDay, 0, 0, 0, 0, time.UTC)
}

// EndExclusive is the instant right after the period.
func (p Period) EndExclusive() time.Time {
	return p.End().AddDate(0, 0, 1)
}

// Contains reports whether the calendar date of t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(p.Start()) && d.Before(p.EndExclusive())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// PeriodFor labels the period a date belongs to: the 21st onward rolls into
// the next month.
func PeriodFor(t time.Time) Period {
	d := DateOnly(t)
	if d.Day() > PeriodCutoffDay {
		d = time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	}
	return Period{Year: d.Year(), Month: d.Month()}
}

// LastClosedPeriod is the most recent period whose cutoff day has passed at
// now. On the cutoff day itself the current period is still open.
func LastClosedPeriod(now time.Time) Period {
	return PeriodFor(now).Previous()
}

func (p Period) Previous() Period {
	d := time.Date(p.Year, p.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: d.Year(), Month: d.Month()}
}

// DueDate is the payment deadline for an invoice issued at issueDate.
func DueDate(issueDate time.Time, dueDays int) time.Time {
	return DateOnly(issueDate).AddDate(0, 0, dueDays)
}

func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
