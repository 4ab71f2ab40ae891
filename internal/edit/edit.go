// Package edit applies field-level edits to tasks, either to one occurrence
// of a recurring task or to the whole series.
package edit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"atf/internal/recurrence"
	"atf/internal/task"
)

// Changes holds the requested new values. Nil means "leave as is".
type Changes struct {
	Title     *string
	StartDate *task.Date
	StartTime *task.Clock
	EndDate   *task.Date
	EndTime   *task.Clock
	Interval  *task.Interval
}

func (c Changes) Empty() bool {
	return c.Title == nil && c.StartDate == nil && c.StartTime == nil &&
		c.EndDate == nil && c.EndTime == nil && c.Interval == nil
}

func (c Changes) touchesTiming() bool {
	return c.StartDate != nil || c.StartTime != nil || c.EndDate != nil || c.EndTime != nil
}

// Scope selects which occurrences of a recurring task an edit writes to.
// The zero Scope targets the upcoming (first) occurrence.
type Scope struct {
	all        bool
	occurrence int
}

func WholeSeries() Scope {
	return Scope{all: true}
}

// Occurrence targets the k-th (1-based) occurrence only.
func Occurrence(k int) Scope {
	return Scope{occurrence: k}
}

func (s Scope) All() bool {
	return s.all
}

// Index is the 1-based occurrence the scope targets, or 0 for the whole
// series.
func (s Scope) Index() int {
	if s.all {
		return 0
	}
	if s.occurrence < 1 {
		return 1
	}
	return s.occurrence
}

func (s Scope) String() string {
	if s.all {
		return "all occurrences"
	}
	return fmt.Sprintf("occurrence %d", s.Index())
}

type Result struct {
	Changed  FieldSet
	Messages []string
}

const MessageNoChange = "No changes made"

var (
	defaultStart = task.Clock{Hour: 0, Minute: 0}
	defaultEnd   = task.Clock{Hour: 23, Minute: 59}
)

// Editor applies edits. Location is used for dates set on a task that had
// no timing before.
type Editor struct {
	Location *time.Location
	Logger   *slog.Logger
}

func (e Editor) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

// Apply edits t in place. Fields equal to their current value are skipped,
// so Result.Changed lists exactly what an undo has to restore. On error t is
// left untouched.
func (e Editor) Apply(t *task.Task, ch Changes, scope Scope) (Result, error) {
	if ch.Title != nil && strings.TrimSpace(*ch.Title) == "" {
		return Result{}, fmt.Errorf("title cannot be empty: %w", task.ErrValidation)
	}
	if ch.Interval != nil {
		if err := ch.Interval.Validate(); err != nil {
			return Result{}, err
		}
	}
	series := t.Recurring && len(t.Occurrences) > 0
	if series && !scope.all && scope.Index() > len(t.Occurrences) {
		return Result{}, fmt.Errorf("occurrence %d out of range 1-%d: %w", scope.Index(), len(t.Occurrences), task.ErrValidation)
	}

	before := t.Clone()
	work := t.Clone()
	if ch.Title != nil {
		work.Title = *ch.Title
	}

	focusBefore, focusAfter := work.Timing, work.Timing
	if ch.touchesTiming() {
		var err error
		switch {
		case series && scope.all:
			for i := range work.Occurrences {
				if work.Occurrences[i], err = e.applyTiming(work.Occurrences[i], ch); err != nil {
					return Result{}, err
				}
			}
			focusBefore, focusAfter = before.Occurrences[0], work.Occurrences[0]
		case series:
			k := scope.Index() - 1
			focusBefore = work.Occurrences[k]
			if work.Occurrences[k], err = e.applyTiming(work.Occurrences[k], ch); err != nil {
				return Result{}, err
			}
			focusAfter = work.Occurrences[k]
		default:
			if work.Timing, err = e.applyTiming(work.Timing, ch); err != nil {
				return Result{}, err
			}
			focusAfter = work.Timing
		}
	}
	work.Sync()

	if ch.Interval != nil && (!work.Recurring || work.Interval == nil || !work.Interval.Equal(*ch.Interval)) {
		if err := recurrence.Schedule(&work, *ch.Interval); err != nil {
			return Result{}, err
		}
		if work.Status != task.StatusIncomplete {
			work.Status = task.StatusIncomplete
		}
	}

	res := Result{Changed: Diff(before, work)}
	res.Messages = describe(before, work, focusBefore, focusAfter, res.Changed, series && scope.all)
	if e.Logger != nil {
		e.Logger.Debug("edit applied", "task_id", t.ID, "scope", scope.String(), "changed", res.Changed.String())
	}
	*t = work
	return res, nil
}

// Restore copies the given fields back from prior, a snapshot of the same
// task. Timing fields restore the canonical timing together with every
// occurrence, which undoes whole-series broadcasts exactly.
func (e Editor) Restore(t *task.Task, prior task.Task, fields FieldSet, scope Scope) (Result, error) {
	if t.ID != prior.ID {
		return Result{}, fmt.Errorf("restore task %d from snapshot of %d: %w", t.ID, prior.ID, task.ErrValidation)
	}
	before := t.Clone()
	work := t.Clone()
	if fields.Has(Title) {
		work.Title = prior.Title
	}
	if fields.Has(timingFields | Interval) {
		src := prior.Clone()
		work.Timing = src.Timing
		work.Occurrences = src.Occurrences
		work.Recurring = src.Recurring
	}
	if fields.Has(Interval) {
		work.Interval = prior.Clone().Interval
		work.Status = prior.Status
	}
	work.Derive()

	series := before.Recurring && len(before.Occurrences) > 0
	focusBefore, focusAfter := firstDifference(before, work)
	res := Result{Changed: Diff(before, work)}
	res.Messages = describe(before, work, focusBefore, focusAfter, res.Changed, series && scope.all)
	*t = work
	return res, nil
}

// firstDifference picks the timing a message should talk about: the first
// occurrence that differs, or the canonical timing.
func firstDifference(a, b task.Task) (task.Timing, task.Timing) {
	if len(a.Occurrences) == len(b.Occurrences) {
		for i := range a.Occurrences {
			if !a.Occurrences[i].Equal(b.Occurrences[i]) {
				return a.Occurrences[i], b.Occurrences[i]
			}
		}
	}
	return a.Timing, b.Timing
}

func (e Editor) applyTiming(tm task.Timing, ch Changes) (task.Timing, error) {
	var err error
	if tm.Start, err = e.setMoment(tm.Start, ch.StartDate, ch.StartTime, defaultStart, tm.End); err != nil {
		return tm, err
	}
	if tm.End, err = e.setMoment(tm.End, ch.EndDate, ch.EndTime, defaultEnd, tm.Start); err != nil {
		return tm, err
	}
	if !tm.Start.Valid && tm.End.Valid {
		return tm, fmt.Errorf("an end needs a start: %w", task.ErrValidation)
	}
	return tm, nil
}

// setMoment replaces the date and/or clock of one bound, keeping whichever
// component is not being edited.
func (e Editor) setMoment(cur sql.NullTime, d *task.Date, c *task.Clock, defClock task.Clock, other sql.NullTime) (sql.NullTime, error) {
	if d == nil && c == nil {
		return cur, nil
	}
	var (
		date  task.Date
		clock = defClock
		loc   = e.location()
	)
	switch {
	case cur.Valid:
		date, clock, loc = task.DateOf(cur.Time), task.ClockOf(cur.Time), cur.Time.Location()
	case other.Valid:
		date, loc = task.DateOf(other.Time), other.Time.Location()
	case d == nil:
		return cur, fmt.Errorf("set a date before setting a time: %w", task.ErrValidation)
	}
	if d != nil {
		date = *d
	}
	if c != nil {
		clock = *c
	}
	return sql.NullTime{Time: task.At(date, clock, loc), Valid: true}, nil
}
