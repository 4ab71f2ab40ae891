// Package recurrence generates and advances the occurrence timelines of
// recurring tasks.
package recurrence

import (
	"fmt"
	"slices"
	"time"

	"atf/internal/task"
)

// IDSource hands out ids for tasks split off a series. Implementations
// must never return an id that is in use.
type IDSource interface {
	NextSplitID() int
}

// Advance moves a timing forward by one step of the interval. An absent end
// (deadline) stays absent.
func Advance(iv task.Interval, tm task.Timing) task.Timing {
	next := tm
	if tm.Start.Valid {
		next.Start.Time = step(iv, tm.Start.Time)
	}
	if tm.End.Valid {
		next.End.Time = step(iv, tm.End.Time)
	}
	return next
}

func step(iv task.Interval, t time.Time) time.Time {
	switch iv.Frequency {
	case task.Hourly:
		return t.Add(time.Duration(iv.Step) * time.Hour)
	case task.Daily:
		return t.AddDate(0, 0, iv.Step)
	case task.Weekly:
		return t.AddDate(0, 0, 7*iv.Step)
	case task.Monthly:
		return addMonths(t, iv.Step)
	case task.Yearly:
		return addMonths(t, 12*iv.Step)
	}
	return t
}

// addMonths clamps the day of month instead of overflowing into the next
// month, so Jan 31 + 1 month is the last day of February.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// GenerateTimeline expands an interval from its first occurrence. A count
// terminator yields exactly Count entries; an until terminator keeps every
// entry whose start is strictly before Until, stopping one past
// task.MaxOccurrences.
func GenerateTimeline(iv task.Interval, first task.Timing) []task.Timing {
	if iv.Step < 1 || !first.Start.Valid {
		return nil
	}
	var out []task.Timing
	cur := first
	switch {
	case iv.Until.Valid:
		for cur.Start.Time.Before(iv.Until.Time) && len(out) <= task.MaxOccurrences {
			out = append(out, cur)
			cur = Advance(iv, cur)
		}
	case iv.Count > 0:
		out = make([]task.Timing, 0, iv.Count)
		for i := 0; i < iv.Count; i++ {
			out = append(out, cur)
			cur = Advance(iv, cur)
		}
	}
	return out
}

// Schedule turns t into a series anchored on its current timing.
func Schedule(t *task.Task, iv task.Interval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	anchor := t.Timing
	if t.Recurring && len(t.Occurrences) > 0 {
		anchor = t.Occurrences[0]
	}
	if !anchor.Start.Valid {
		return fmt.Errorf("a recurring task needs a date: %w", task.ErrValidation)
	}
	occ := GenerateTimeline(iv, anchor)
	if len(occ) == 0 {
		return fmt.Errorf("%s produces no occurrences: %w", iv, task.ErrValidation)
	}
	if len(occ) > task.MaxOccurrences {
		return fmt.Errorf("%s produces more than %d occurrences: %w", iv, task.MaxOccurrences, task.ErrValidation)
	}
	t.Recurring = true
	t.Interval = &iv
	t.Occurrences = occ
	t.Sync()
	return nil
}

// Pop drops the current occurrence. The next one becomes the task's timing;
// when none is left the series is completed.
func Pop(t *task.Task) (task.Timing, bool) {
	if len(t.Occurrences) == 0 {
		return task.Timing{}, false
	}
	head := t.Occurrences[0]
	t.Occurrences = slices.Delete(slices.Clone(t.Occurrences), 0, 1)
	if len(t.Occurrences) == 0 {
		t.Status = task.StatusCompleted
		return head, true
	}
	t.Timing = t.Occurrences[0]
	t.Derive()
	return head, true
}

// Tick advances a series past every occurrence that has already elapsed at
// now. Missed deadline occurrences are returned as standalone overdue tasks,
// except for the last one, which completes the series instead.
func Tick(t *task.Task, now time.Time, ids IDSource) []task.Task {
	if !t.Active() {
		return nil
	}
	var split []task.Task
	for t.Active() {
		head := t.Occurrences[0]
		at, ok := task.OccurrenceBoundary(head)
		if !ok || !at.Before(now) {
			break
		}
		deadline := t.Category == task.CategoryDeadline
		remaining := len(t.Occurrences)
		Pop(t)
		if deadline && remaining > 1 {
			split = append(split, Split(*t, head, task.StatusOverdue, ids.NextSplitID()))
		}
	}
	return split
}

// Split builds a standalone, non-recurring copy of one occurrence.
func Split(series task.Task, tm task.Timing, status task.Status, id int) task.Task {
	t := task.Task{
		ID:     id,
		Title:  series.Title,
		Status: status,
		Timing: tm,
	}
	t.Derive()
	return t
}
