package command

import (
	"fmt"
	"slices"
	"strings"

	"atf/internal/recurrence"
	"atf/internal/task"
)

func (e *Engine) dispatch(w *state, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case Add:
		if !c.Series.IsZero() {
			return e.addOccurrence(w, c)
		}
		return e.add(w, c)
	case Delete:
		if c.All {
			return e.deleteAll(w)
		}
		if c.Occurrence > 0 {
			return e.deleteOccurrence(w, c)
		}
		return e.delete(w, c)
	case Edit:
		return e.edit(w, c)
	case MarkComplete:
		return e.markComplete(w, c)
	case MarkIncomplete:
		return e.markIncomplete(w, c)
	case batch:
		return e.runBatch(w, c)
	}
	return Result{}, fmt.Errorf("unsupported command %T: %w", cmd, task.ErrValidation)
}

func (e *Engine) add(w *state, c Add) (Result, error) {
	if c.Position < 0 || c.Position > w.list.Len()+1 {
		return Result{}, fmt.Errorf("position %d outside [1, %d]: %w", c.Position, w.list.Len()+1, task.ErrValidation)
	}
	t := c.Task.Clone()
	if c.restore {
		if w.list.IndexOf(t.ID) >= 0 {
			return Result{}, fmt.Errorf("id %d already in use: %w", t.ID, task.ErrValidation)
		}
	} else {
		if strings.TrimSpace(t.Title) == "" {
			return Result{}, fmt.Errorf("title cannot be empty: %w", task.ErrValidation)
		}
		if t.Timing.End.Valid && !t.Timing.Start.Valid {
			return Result{}, fmt.Errorf("an end needs a start: %w", task.ErrValidation)
		}
		t.Status = task.StatusIncomplete
		t.Occurrences = nil
		t.Recurring = false
		if t.Interval != nil {
			iv := *t.Interval
			t.Interval = nil
			if err := recurrence.Schedule(&t, iv); err != nil {
				return Result{}, err
			}
		}
		t.Derive()
		t.ID = w.nextID
		w.nextID++
		w.lastAdded = t.ID
	}
	w.list.Insert(t, c.Position-1)

	msg := fmt.Sprintf("Added %q.", t.Title)
	if t.Recurring {
		msg = fmt.Sprintf("Added %q with %d occurrences.", t.Title, len(t.Occurrences))
	}
	return Result{
		TaskID:   t.ID,
		Messages: []string{msg},
		Inverse:  Delete{Target: ByID(t.ID)},
	}, nil
}

func (e *Engine) addOccurrence(w *state, c Add) (Result, error) {
	s, err := w.find(c.Series)
	if err != nil {
		return Result{}, err
	}
	if !s.Recurring {
		return Result{}, fmt.Errorf("%q is not recurring: %w", s.Title, task.ErrValidation)
	}
	if !c.Occurrence.Start.Valid {
		return Result{}, fmt.Errorf("an occurrence needs a start: %w", task.ErrValidation)
	}
	if c.Occurrence.Category() != s.Category && len(s.Occurrences) > 0 {
		return Result{}, fmt.Errorf("a %s occurrence does not fit a %s series: %w", c.Occurrence.Category(), s.Category, task.ErrValidation)
	}

	if c.restore {
		pos := min(max(c.occIndex-1, 0), len(s.Occurrences))
		s.Occurrences = slices.Insert(slices.Clone(s.Occurrences), pos, c.Occurrence)
		s.Status = c.status
	} else {
		s.Occurrences = append(slices.Clone(s.Occurrences), c.Occurrence)
		if s.Status == task.StatusCompleted {
			s.Status = task.StatusIncomplete
		}
	}
	s.Sync()
	k := slices.IndexFunc(s.Occurrences, c.Occurrence.Equal) + 1
	if err := w.list.Replace(s); err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:   s.ID,
		Messages: []string{fmt.Sprintf("Added occurrence %s to %q.", c.Occurrence, s.Title)},
		Inverse:  Delete{Target: ByID(s.ID), Occurrence: k},
	}, nil
}

func (e *Engine) delete(w *state, c Delete) (Result, error) {
	target := c.Target
	if target.IsZero() {
		if w.lastAdded == 0 || w.list.IndexOf(w.lastAdded) < 0 {
			return Result{}, fmt.Errorf("nothing added to delete: %w", task.ErrNotFound)
		}
		target = ByID(w.lastAdded)
	}
	id, err := w.resolve(target)
	if err != nil {
		return Result{}, err
	}
	removed, pos, err := w.list.RemoveByID(id)
	if err != nil {
		return Result{}, err
	}
	if w.lastAdded == id {
		w.lastAdded = 0
	}
	return Result{
		TaskID:   id,
		Messages: []string{fmt.Sprintf("Deleted %q.", removed.Title)},
		Inverse:  Add{Task: removed, Position: pos + 1, restore: true},
	}, nil
}

func (e *Engine) deleteAll(w *state) (Result, error) {
	tasks := w.list.Tasks()
	if len(tasks) == 0 {
		return Result{}, fmt.Errorf("nothing to delete: %w", task.ErrValidation)
	}
	restore := make([]Command, len(tasks))
	for i, t := range tasks {
		restore[i] = Add{Task: t, Position: i + 1, restore: true}
	}
	w.list = task.NewList(nil)
	w.lastAdded = 0
	return Result{
		Messages: []string{fmt.Sprintf("Deleted all %d tasks.", len(tasks))},
		Inverse:  batch{kind: KindAdd, steps: restore},
	}, nil
}

// runBatch applies each step to the same working state. The inverse runs
// the step inverses in reverse order.
func (e *Engine) runBatch(w *state, b batch) (Result, error) {
	var res Result
	inverses := make([]Command, 0, len(b.steps))
	for _, step := range b.steps {
		r, err := e.dispatch(w, step)
		if err != nil {
			return Result{}, err
		}
		res.Messages = append(res.Messages, r.Messages...)
		if r.TaskID != 0 {
			res.TaskID = r.TaskID
		}
		if r.Inverse != nil {
			inverses = append(inverses, r.Inverse)
		}
	}
	if len(inverses) > 0 {
		slices.Reverse(inverses)
		res.Inverse = batch{kind: inverses[0].Kind(), steps: inverses}
	}
	return res, nil
}

func (e *Engine) deleteOccurrence(w *state, c Delete) (Result, error) {
	s, err := w.find(c.Target)
	if err != nil {
		return Result{}, err
	}
	if !s.Recurring || len(s.Occurrences) == 0 {
		return Result{}, fmt.Errorf("%q has no occurrences: %w", s.Title, task.ErrValidation)
	}
	if c.Occurrence > len(s.Occurrences) {
		return Result{}, fmt.Errorf("occurrence %d outside [1, %d]: %w", c.Occurrence, len(s.Occurrences), task.ErrValidation)
	}
	prev := s.Status
	removed := s.Occurrences[c.Occurrence-1]
	s.Occurrences = slices.Delete(slices.Clone(s.Occurrences), c.Occurrence-1, c.Occurrence)
	if len(s.Occurrences) == 0 {
		s.Status = task.StatusCompleted
	} else {
		s.Sync()
	}
	if err := w.list.Replace(s); err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:   s.ID,
		Messages: []string{fmt.Sprintf("Deleted occurrence %d (%s) of %q.", c.Occurrence, removed, s.Title)},
		Inverse: Add{
			Series:     ByID(s.ID),
			Occurrence: removed,
			restore:    true,
			occIndex:   c.Occurrence,
			status:     prev,
		},
	}, nil
}

func (e *Engine) edit(w *state, c Edit) (Result, error) {
	t, err := w.find(c.Target)
	if err != nil {
		return Result{}, err
	}
	before := t.Clone()
	var res Result
	if c.prior != nil {
		r, err := e.editor.Restore(&t, elapsedTrimmed(*c.prior, c, len(t.Occurrences)), c.fields, c.Scope)
		if err != nil {
			return Result{}, err
		}
		res = Result{Messages: r.Messages, Inverse: Edit{Target: ByID(t.ID), Scope: c.Scope, prior: &before, fields: c.fields}}
	} else {
		r, err := e.editor.Apply(&t, c.Changes, c.Scope)
		if err != nil {
			return Result{}, err
		}
		res = Result{Messages: r.Messages}
		if !r.Changed.Empty() {
			res.Inverse = Edit{Target: ByID(t.ID), Scope: c.Scope, prior: &before, fields: r.Changed}
		}
	}
	if err := w.list.Replace(t); err != nil {
		return Result{}, err
	}
	res.TaskID = t.ID
	return res, nil
}

func (e *Engine) markComplete(w *state, c MarkComplete) (Result, error) {
	t, err := w.find(c.Target)
	if err != nil {
		return Result{}, err
	}
	if t.Status == task.StatusCompleted {
		return Result{}, fmt.Errorf("%q is already completed: %w", t.Title, task.ErrValidation)
	}
	inv := MarkIncomplete{Target: ByID(t.ID), prev: t.Status}

	if t.Recurring && t.Category == task.CategoryDeadline && t.Active() {
		remaining := len(t.Occurrences)
		head, _ := recurrence.Pop(&t)
		inv.reopen = &head
		msg := fmt.Sprintf("Completed %q due %s.", t.Title, head)
		if remaining > 1 {
			sid := c.splitID
			if sid == 0 {
				sid = w.NextSplitID()
			}
			if w.list.IndexOf(sid) >= 0 {
				return Result{}, fmt.Errorf("id %d already in use: %w", sid, task.ErrValidation)
			}
			w.list.Insert(recurrence.Split(t, head, task.StatusCompleted, sid), -1)
			inv.splitID = sid
			msg += fmt.Sprintf(" Next: %s.", t.Timing)
		}
		if err := w.list.Replace(t); err != nil {
			return Result{}, err
		}
		return Result{TaskID: t.ID, Messages: []string{msg}, Inverse: inv}, nil
	}

	t.Status = task.StatusCompleted
	if err := w.list.Replace(t); err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:   t.ID,
		Messages: []string{fmt.Sprintf("Marked %q as completed.", t.Title)},
		Inverse:  inv,
	}, nil
}

func (e *Engine) markIncomplete(w *state, c MarkIncomplete) (Result, error) {
	t, err := w.find(c.Target)
	if err != nil {
		return Result{}, err
	}
	if c.reopen != nil {
		if c.splitID != 0 {
			if _, _, err := w.list.RemoveByID(c.splitID); err != nil {
				return Result{}, err
			}
		}
		t.Occurrences = slices.Insert(slices.Clone(t.Occurrences), 0, *c.reopen)
		t.Status = c.prev
		t.Sync()
		if err := w.list.Replace(t); err != nil {
			return Result{}, err
		}
		return Result{
			TaskID:   t.ID,
			Messages: []string{fmt.Sprintf("Reopened %q due %s.", t.Title, *c.reopen)},
			Inverse:  MarkComplete{Target: ByID(t.ID), splitID: c.splitID},
		}, nil
	}

	if t.Status != task.StatusCompleted {
		return Result{}, fmt.Errorf("%q is not completed: %w", t.Title, task.ErrValidation)
	}
	if t.Recurring && len(t.Occurrences) == 0 {
		return Result{}, fmt.Errorf("%q has no occurrences left: %w", t.Title, task.ErrValidation)
	}
	t.Status = task.StatusIncomplete
	if c.prev != "" {
		t.Status = c.prev
	}
	if err := w.list.Replace(t); err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:   t.ID,
		Messages: []string{fmt.Sprintf("Marked %q as incomplete.", t.Title)},
		Inverse:  MarkComplete{Target: ByID(t.ID)},
	}, nil
}

// elapsedTrimmed drops the head occurrences of prior that were ticked away
// after the edit ran, so an undo never brings back an occurrence that has
// already been split off or completed.
func elapsedTrimmed(prior task.Task, c Edit, current int) task.Task {
	popped := c.postLen - current
	if !c.hasPost || !prior.Recurring || popped <= 0 {
		return prior
	}
	p := prior.Clone()
	p.Occurrences = p.Occurrences[min(popped, len(p.Occurrences)):]
	if len(p.Occurrences) == 0 {
		p.Status = task.StatusCompleted
		return p
	}
	p.Timing = p.Occurrences[0]
	p.Derive()
	return p
}
