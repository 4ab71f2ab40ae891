package edit

import (
	"database/sql"
	"strings"

	"atf/internal/task"
)

// FieldSet is a bit set of editable task fields.
type FieldSet uint8

const (
	Title FieldSet = 1 << iota
	StartDate
	StartTime
	EndDate
	EndTime
	Interval
)

const timingFields = StartDate | StartTime | EndDate | EndTime

func (f FieldSet) Has(o FieldSet) bool {
	return f&o != 0
}

func (f FieldSet) Empty() bool {
	return f == 0
}

func (f FieldSet) String() string {
	names := []struct {
		bit  FieldSet
		name string
	}{
		{Title, "title"},
		{StartDate, "start date"},
		{StartTime, "start time"},
		{EndDate, "end date"},
		{EndTime, "end time"},
		{Interval, "interval"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Diff reports which fields differ between two versions of a task. Timing
// components are compared on the canonical timing and on every occurrence.
func Diff(a, b task.Task) FieldSet {
	var f FieldSet
	if a.Title != b.Title {
		f |= Title
	}
	if a.Recurring != b.Recurring || (a.Interval == nil) != (b.Interval == nil) ||
		(a.Interval != nil && !a.Interval.Equal(*b.Interval)) {
		f |= Interval
	}
	f |= diffTiming(a.Timing, b.Timing)
	n := min(len(a.Occurrences), len(b.Occurrences))
	for i := 0; i < n; i++ {
		f |= diffTiming(a.Occurrences[i], b.Occurrences[i])
	}
	if len(a.Occurrences) != len(b.Occurrences) {
		f |= Interval
	}
	return f
}

func diffTiming(a, b task.Timing) FieldSet {
	var f FieldSet
	d, c := diffMoment(a.Start, b.Start)
	if d {
		f |= StartDate
	}
	if c {
		f |= StartTime
	}
	d, c = diffMoment(a.End, b.End)
	if d {
		f |= EndDate
	}
	if c {
		f |= EndTime
	}
	return f
}

func diffMoment(a, b sql.NullTime) (date, clock bool) {
	if a.Valid != b.Valid {
		return true, true
	}
	if !a.Valid {
		return false, false
	}
	date = task.DateOf(a.Time) != task.DateOf(b.Time)
	clock = task.ClockOf(a.Time) != task.ClockOf(b.Time) || a.Time.Second() != b.Time.Second()
	return date, clock
}
