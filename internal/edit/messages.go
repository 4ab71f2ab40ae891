package edit

import (
	"database/sql"
	"fmt"

	"atf/internal/task"
)

func describe(before, after task.Task, focusBefore, focusAfter task.Timing, changed FieldSet, all bool) []string {
	if changed.Empty() {
		return []string{MessageNoChange}
	}
	var out []string
	if changed.Has(Title) {
		out = append(out, fmt.Sprintf("Title changed from %q to %q.", before.Title, after.Title))
	}
	label := "Start"
	if after.Category == task.CategoryDeadline {
		label = "Deadline"
	}
	out = append(out, describeBound(label, focusBefore.Start, focusAfter.Start, changed.Has(StartDate), changed.Has(StartTime), all)...)
	out = append(out, describeBound("End", focusBefore.End, focusAfter.End, changed.Has(EndDate), changed.Has(EndTime), all)...)
	if changed.Has(Interval) {
		switch {
		case after.Interval == nil || !after.Recurring:
			out = append(out, "Recurrence removed.")
		default:
			out = append(out, fmt.Sprintf("Recurrence set to %s (%d occurrences).", after.Interval, len(after.Occurrences)))
		}
	}
	return out
}

func describeBound(label string, from, to sql.NullTime, date, clock, all bool) []string {
	if !date && !clock {
		return nil
	}
	suffix := "."
	if all {
		suffix = " for all occurrences."
	}
	if !to.Valid {
		return []string{fmt.Sprintf("%s removed%s", label, suffix)}
	}
	var what, oldVal, newVal string
	switch {
	case date && clock:
		what = label
		newVal = to.Time.Format("2006-01-02 15:04")
		if from.Valid {
			oldVal = from.Time.Format("2006-01-02 15:04")
		}
	case date:
		what = label + " date"
		newVal = task.DateOf(to.Time).String()
		if from.Valid {
			oldVal = task.DateOf(from.Time).String()
		}
	default:
		what = label + " time"
		newVal = task.ClockOf(to.Time).String()
		if from.Valid {
			oldVal = task.ClockOf(from.Time).String()
		}
	}
	if !from.Valid || all {
		return []string{fmt.Sprintf("%s set to %s%s", what, newVal, suffix)}
	}
	return []string{fmt.Sprintf("%s changed from %s to %s%s", what, oldVal, newVal, suffix)}
}
