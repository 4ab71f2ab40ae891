package task

import (
	"fmt"
	"slices"
	"strings"
)

// List is the ordered task collection. Positions are 0-based here; the
// 1-based positions users see are translated by the command engine.
type List struct {
	tasks []Task
}

func NewList(tasks []Task) *List {
	l := &List{tasks: make([]Task, 0, len(tasks))}
	for _, t := range tasks {
		l.tasks = append(l.tasks, t.Clone())
	}
	return l
}

func (l *List) Len() int {
	return len(l.tasks)
}

// Tasks returns a deep copy of the list in its current order.
func (l *List) Tasks() []Task {
	out := make([]Task, len(l.tasks))
	for i, t := range l.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (l *List) Clone() *List {
	return NewList(l.tasks)
}

// Insert places t at pos, clamped to [0, Len()].
func (l *List) Insert(t Task, pos int) {
	if pos < 0 || pos > len(l.tasks) {
		pos = len(l.tasks)
	}
	l.tasks = slices.Insert(l.tasks, pos, t.Clone())
}

func (l *List) IndexOf(id int) int {
	return slices.IndexFunc(l.tasks, func(t Task) bool { return t.ID == id })
}

// FindByID returns a copy of the task with the given id.
func (l *List) FindByID(id int) (Task, error) {
	i := l.IndexOf(id)
	if i < 0 {
		return Task{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return l.tasks[i].Clone(), nil
}

// RemoveByID deletes the task and returns it with its former position.
func (l *List) RemoveByID(id int) (Task, int, error) {
	i := l.IndexOf(id)
	if i < 0 {
		return Task{}, -1, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	removed := l.tasks[i]
	l.tasks = slices.Delete(l.tasks, i, i+1)
	return removed, i, nil
}

// Replace overwrites the task with the same id.
func (l *List) Replace(t Task) error {
	i := l.IndexOf(t.ID)
	if i < 0 {
		return fmt.Errorf("id %d: %w", t.ID, ErrNotFound)
	}
	l.tasks[i] = t.Clone()
	return nil
}

// Each calls fn with a pointer to every task, in order.
func (l *List) Each(fn func(t *Task)) {
	for i := range l.tasks {
		fn(&l.tasks[i])
	}
}

// IDs returns the task ids in list order.
func (l *List) IDs() []int {
	ids := make([]int, len(l.tasks))
	for i, t := range l.tasks {
		ids[i] = t.ID
	}
	return ids
}

// Sort orders by status (completed last), start, end, then title. The sort
// is stable so ties keep their insertion order.
func (l *List) Sort() {
	slices.SortStableFunc(l.tasks, compareTasks)
}

func compareTasks(a, b Task) int {
	ac, bc := a.Status == StatusCompleted, b.Status == StatusCompleted
	if ac != bc {
		if ac {
			return 1
		}
		return -1
	}
	if c := compareNull(a.Timing.Start, b.Timing.Start); c != 0 {
		return c
	}
	if c := compareNull(a.Timing.End, b.Timing.End); c != 0 {
		return c
	}
	return strings.Compare(a.Title, b.Title)
}
