package task

import (
	"database/sql"
	"fmt"
	"time"
)

// Timing is an optional (start, end) pair. An invalid Start and End mean
// no timing at all; a valid Start with an invalid End is a deadline.
type Timing struct {
	Start sql.NullTime
	End   sql.NullTime
}

func Deadline(at time.Time) Timing {
	return Timing{Start: sql.NullTime{Time: at, Valid: true}}
}

func Span(start, end time.Time) Timing {
	return Timing{
		Start: sql.NullTime{Time: start, Valid: true},
		End:   sql.NullTime{Time: end, Valid: true},
	}
}

func (t Timing) IsZero() bool {
	return !t.Start.Valid && !t.End.Valid
}

// Category derives the task category from which bounds are present.
func (t Timing) Category() Category {
	switch {
	case t.Start.Valid && t.End.Valid:
		return CategoryEvent
	case t.Start.Valid || t.End.Valid:
		return CategoryDeadline
	default:
		return CategoryFloating
	}
}

func (t Timing) Equal(o Timing) bool {
	return sameTime(t.Start, o.Start) && sameTime(t.End, o.End)
}

func (t Timing) String() string {
	switch t.Category() {
	case CategoryEvent:
		return fmt.Sprintf("%s to %s", formatTime(t.Start.Time), formatTime(t.End.Time))
	case CategoryDeadline:
		if t.Start.Valid {
			return "by " + formatTime(t.Start.Time)
		}
		return "by " + formatTime(t.End.Time)
	default:
		return ""
	}
}

func sameTime(a, b sql.NullTime) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Time.Equal(b.Time)
}

// compareNull orders valid times before invalid ones.
func compareNull(a, b sql.NullTime) int {
	switch {
	case a.Valid && b.Valid:
		return a.Time.Compare(b.Time)
	case a.Valid:
		return -1
	case b.Valid:
		return 1
	default:
		return 0
	}
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// Date is a calendar day without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(v string) (Date, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", v, ErrValidation)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Clock is a time of day at minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func ParseClock(v string) (Clock, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", v, ErrValidation)
	}
	return ClockOf(t), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// At joins a date and a clock in loc.
func At(d Date, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}
