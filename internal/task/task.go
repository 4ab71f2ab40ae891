// Package task holds the task model and the ordered in-memory task list.
package task

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("task not found")
)

type Category string

const (
	CategoryFloating Category = "floating"
	CategoryDeadline Category = "deadline"
	CategoryEvent    Category = "event"
)

type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// Task is one entry of the task list. For recurring tasks Occurrences is
// the source of truth and Timing mirrors Occurrences[0].
type Task struct {
	ID          int
	Title       string
	Category    Category
	Status      Status
	Timing      Timing
	Recurring   bool
	Interval    *Interval
	Occurrences []Timing
}

func (t Task) Clone() Task {
	c := t
	if t.Interval != nil {
		iv := *t.Interval
		c.Interval = &iv
	}
	if t.Occurrences != nil {
		c.Occurrences = slices.Clone(t.Occurrences)
	}
	return c
}

func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Category != o.Category ||
		t.Status != o.Status || t.Recurring != o.Recurring || !t.Timing.Equal(o.Timing) {
		return false
	}
	if (t.Interval == nil) != (o.Interval == nil) {
		return false
	}
	if t.Interval != nil && !t.Interval.Equal(*o.Interval) {
		return false
	}
	return slices.EqualFunc(t.Occurrences, o.Occurrences, Timing.Equal)
}

// Derive recomputes the category from the current timing.
func (t *Task) Derive() {
	t.Category = t.Timing.Category()
}

// Sync restores the recurring-task invariants: occurrences sorted by start,
// canonical timing mirroring the first one, category derived.
func (t *Task) Sync() {
	if t.Recurring && len(t.Occurrences) > 0 {
		SortOccurrences(t.Occurrences)
		t.Timing = t.Occurrences[0]
	}
	t.Derive()
}

// Active reports whether a recurring task still has occurrences ahead.
func (t Task) Active() bool {
	return t.Recurring && len(t.Occurrences) > 0 && t.Status != StatusCompleted
}

// Boundary is the instant after which the current timing counts as missed:
// the end of an event or the due time of a deadline.
func (t Task) Boundary() (time.Time, bool) {
	return boundary(t.Timing)
}

func boundary(tm Timing) (time.Time, bool) {
	switch tm.Category() {
	case CategoryEvent:
		return tm.End.Time, true
	case CategoryDeadline:
		if tm.Start.Valid {
			return tm.Start.Time, true
		}
		return tm.End.Time, true
	}
	return time.Time{}, false
}

// OccurrenceBoundary is Boundary for a single occurrence of a series.
func OccurrenceBoundary(tm Timing) (time.Time, bool) {
	return boundary(tm)
}

func SortOccurrences(occ []Timing) {
	slices.SortStableFunc(occ, func(a, b Timing) int {
		if c := compareNull(a.Start, b.Start); c != 0 {
			return c
		}
		return compareNull(a.End, b.End)
	})
}
