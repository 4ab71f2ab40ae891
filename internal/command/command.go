// Package command executes reversible task-list mutations and keeps the
// undo and redo histories.
package command

import (
	"fmt"
	"strings"

	"atf/internal/edit"
	"atf/internal/task"
)

type Kind string

const (
	KindAdd            Kind = "add"
	KindDelete         Kind = "delete"
	KindEdit           Kind = "edit"
	KindMarkComplete   Kind = "done"
	KindMarkIncomplete Kind = "undone"
)

// Command is one of Add, Delete, Edit, MarkComplete or MarkIncomplete.
type Command interface {
	Kind() Kind
	sealed()
}

type refKind uint8

const (
	refNone refKind = iota
	refIndex
	refID
)

// Ref names the task a command targets, either by its 1-based position in
// the list last shown to the user or by id.
type Ref struct {
	kind  refKind
	index int
	id    int
}

func AtIndex(i int) Ref {
	return Ref{kind: refIndex, index: i}
}

func ByID(id int) Ref {
	return Ref{kind: refID, id: id}
}

func (r Ref) IsZero() bool {
	return r.kind == refNone
}

func (r Ref) String() string {
	switch r.kind {
	case refIndex:
		return fmt.Sprintf("#%d", r.index)
	case refID:
		return fmt.Sprintf("id %d", r.id)
	default:
		return "none"
	}
}

// Add inserts a new task at Position (1-based, 0 appends), or, when Series
// is set, adds Occurrence to that recurring task.
type Add struct {
	Task       task.Task
	Position   int
	Series     Ref
	Occurrence task.Timing

	// set on inverses of Delete
	restore  bool
	occIndex int
	status   task.Status
}

// Delete removes a task, or only its Occurrence-th occurrence when
// Occurrence > 0. A zero Target deletes the task added last in this
// session. All removes every task.
type Delete struct {
	Target     Ref
	Occurrence int
	All        bool
}

type Edit struct {
	Target  Ref
	Scope   edit.Scope
	Changes edit.Changes

	// set on inverses: restore fields from prior instead of applying Changes
	prior  *task.Task
	fields edit.FieldSet
	// occurrences left on the target once the edit and its ticks settled;
	// anything missing at undo time has elapsed since
	postLen int
	hasPost bool
}

// batch runs its steps in order as one history entry. It only appears as an
// inverse: of a delete-all, or of a command whose ticks split off tasks.
type batch struct {
	kind  Kind
	steps []Command
}

type MarkComplete struct {
	Target Ref

	splitID int
}

type MarkIncomplete struct {
	Target Ref

	prev    task.Status
	reopen  *task.Timing
	splitID int
}

func (Add) Kind() Kind            { return KindAdd }
func (Delete) Kind() Kind         { return KindDelete }
func (Edit) Kind() Kind           { return KindEdit }
func (MarkComplete) Kind() Kind   { return KindMarkComplete }
func (MarkIncomplete) Kind() Kind { return KindMarkIncomplete }
func (b batch) Kind() Kind        { return b.kind }

func (Add) sealed()            {}
func (Delete) sealed()         {}
func (Edit) sealed()           {}
func (MarkComplete) sealed()   {}
func (MarkIncomplete) sealed() {}
func (batch) sealed()          {}

// Describe renders a command for logs and history listings.
func Describe(c Command) string {
	switch c := c.(type) {
	case Add:
		if !c.Series.IsZero() {
			return fmt.Sprintf("add occurrence %s to %s", c.Occurrence, c.Series)
		}
		return fmt.Sprintf("add %q", c.Task.Title)
	case Delete:
		if c.All {
			return "delete all"
		}
		if c.Target.IsZero() {
			return "delete last added"
		}
		if c.Occurrence > 0 {
			return fmt.Sprintf("delete %s/%d", c.Target, c.Occurrence)
		}
		return fmt.Sprintf("delete %s", c.Target)
	case Edit:
		if c.prior != nil {
			return fmt.Sprintf("restore %s of %s", c.fields, c.Target)
		}
		return fmt.Sprintf("edit %s (%s)", c.Target, c.Scope)
	case MarkComplete:
		return fmt.Sprintf("done %s", c.Target)
	case MarkIncomplete:
		return fmt.Sprintf("undone %s", c.Target)
	case batch:
		parts := make([]string, len(c.steps))
		for i, step := range c.steps {
			parts[i] = Describe(step)
		}
		return strings.Join(parts, "; ")
	}
	return "unknown"
}
