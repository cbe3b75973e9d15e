package values

import (
	"fmt"
	"time"
)

// Period is one calendar-day aggregation bucket in UTC.
type Period struct {
	start time.Time
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	utc := t.UTC()
	return Period{start: time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParsePeriod parses a period key in YYYY-MM-DD form.
func ParsePeriod(key string) (Period, error) {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period key %q: %w", key, err)
	}
	return PeriodOf(t), nil
}

// Start returns the inclusive start of the period.
func (p Period) Start() time.Time {
	return p.start
}

// End returns the exclusive end of the period.
func (p Period) End() time.Time {
	return p.start.AddDate(0, 0, 1)
}

// Key returns the stable identity of the period (YYYY-MM-DD).
func (p Period) Key() string {
	return p.start.Format("2006-01-02")
}

// AddDays returns the period n days after this one.
func (p Period) AddDays(n int) Period {
	return Period{start: p.start.AddDate(0, 0, n)}
}

// Before reports whether p starts before other.
func (p Period) Before(other Period) bool {
	return p.start.Before(other.start)
}

// Equal reports whether two periods identify the same bucket.
func (p Period) Equal(other Period) bool {
	return p.start.Equal(other.start)
}

// Window is a half-open [Start, End) span of whole periods.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window of the given number of day periods ending
// just before endExclusive.
func NewWindow(endExclusive time.Time, days int) Window {
	end := PeriodOf(endExclusive).Start()
	return Window{
		Start: end.AddDate(0, 0, -days),
		End:   end,
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	utc := t.UTC()
	return !utc.Before(w.Start) && utc.Before(w.End)
}

// Days returns the number of day periods spanned by the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}
