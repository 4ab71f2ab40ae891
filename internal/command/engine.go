package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"atf/internal/edit"
	"atf/internal/recurrence"
	"atf/internal/task"
)

// Repository persists the whole task list.
type Repository interface {
	Save(ctx context.Context, tasks []task.Task) error
	// Load returns an error wrapping task.ErrNotFound when nothing was saved yet.
	Load(ctx context.Context) ([]task.Task, error)
}

type Options struct {
	Now          func() time.Time
	Location     *time.Location
	HistoryLimit int
	Logger       *slog.Logger
}

type Result struct {
	TaskID   int
	Messages []string
	// Inverse is the command pushed onto the history, nil for no-ops.
	Inverse Command
}

// Engine owns the task list and both histories. It is not safe for
// concurrent use.
type Engine struct {
	repo   Repository
	now    func() time.Time
	editor edit.Editor
	logger *slog.Logger

	st   *state
	undo stack
	redo stack
}

func NewEngine(repo Repository, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		repo:   repo,
		now:    opts.Now,
		editor: edit.Editor{Location: opts.Location, Logger: opts.Logger},
		logger: opts.Logger,
		st:     newState(nil),
		undo:   stack{limit: opts.HistoryLimit},
		redo:   stack{limit: opts.HistoryLimit},
	}
}

type replay uint8

const (
	replayNone replay = iota
	replayUndo
	replayRedo
)

func (r replay) String() string {
	switch r {
	case replayUndo:
		return "undo"
	case replayRedo:
		return "redo"
	}
	return "none"
}

// Execute runs a new command. On a validation or lookup error nothing
// changes. A save failure is returned wrapped in ErrPersistence together
// with the result; the mutation itself is kept.
func (e *Engine) Execute(ctx context.Context, cmd Command) (Result, error) {
	return e.run(ctx, cmd, replayNone)
}

func (e *Engine) Undo(ctx context.Context) (Result, error) {
	cmd, ok := e.undo.peek()
	if !ok {
		return Result{Messages: []string{MessageNothingToUndo}}, ErrHistoryEmpty
	}
	return e.run(ctx, cmd, replayUndo)
}

func (e *Engine) Redo(ctx context.Context) (Result, error) {
	cmd, ok := e.redo.peek()
	if !ok {
		return Result{Messages: []string{MessageNothingToRedo}}, ErrHistoryEmpty
	}
	return e.run(ctx, cmd, replayRedo)
}

func (e *Engine) run(ctx context.Context, cmd Command, mode replay) (Result, error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("no command: %w", task.ErrValidation)
	}
	work := e.st.clone()
	e.settle(work)
	res, err := e.dispatch(work, cmd)
	if err != nil {
		e.logger.Debug("command rejected", "kind", cmd.Kind(), "target", Describe(cmd), "replay", mode.String(), "err", err)
		return Result{}, err
	}
	split := e.settle(work)
	if res.Inverse != nil {
		res.Inverse = stamp(work, res.Inverse)
		if len(split) > 0 {
			steps := make([]Command, 0, len(split)+1)
			for _, t := range split {
				steps = append(steps, Delete{Target: ByID(t.ID)})
			}
			res.Inverse = batch{kind: res.Inverse.Kind(), steps: append(steps, res.Inverse)}
		}
	}
	work.list.Sort()
	work.shown = work.list.IDs()
	e.st = work

	switch mode {
	case replayUndo:
		e.undo.pop()
	case replayRedo:
		e.redo.pop()
	}
	if res.Inverse != nil {
		switch mode {
		case replayNone:
			e.redo.clear()
			e.undo.push(res.Inverse)
		case replayUndo:
			e.redo.push(res.Inverse)
		case replayRedo:
			e.undo.push(res.Inverse)
		}
	}
	e.logger.Info("command executed", "kind", cmd.Kind(), "task_id", res.TaskID, "replay", mode.String())

	if err := e.repo.Save(ctx, e.st.list.Tasks()); err != nil {
		e.logger.Warn("save failed", "kind", cmd.Kind(), "err", err)
		return res, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return res, nil
}

// settle advances every series to now and refreshes the overdue status of
// one-off tasks. It returns the tasks split off missed occurrences.
func (e *Engine) settle(w *state) []task.Task {
	now := e.now()
	var split []task.Task
	w.list.Each(func(t *task.Task) {
		if t.Recurring {
			split = append(split, recurrence.Tick(t, now, w)...)
			// the head of an active series is never in the past after a tick
			if t.Active() && t.Status == task.StatusOverdue {
				t.Status = task.StatusIncomplete
			}
			return
		}
		if t.Status == task.StatusCompleted {
			return
		}
		if at, ok := t.Boundary(); ok && at.Before(now) {
			t.Status = task.StatusOverdue
		} else {
			t.Status = task.StatusIncomplete
		}
	})
	for _, s := range split {
		e.logger.Debug("occurrence split off", "task_id", s.ID, "title", s.Title)
		w.list.Insert(s, -1)
	}
	return split
}

// stamp records on edit inverses how many occurrences the target kept once
// the command and its ticks settled.
func stamp(w *state, inv Command) Command {
	switch c := inv.(type) {
	case Edit:
		if c.prior != nil && c.Target.kind == refID {
			if t, err := w.list.FindByID(c.Target.id); err == nil {
				c.postLen, c.hasPost = len(t.Occurrences), true
			}
		}
		return c
	case batch:
		steps := make([]Command, len(c.steps))
		for i, step := range c.steps {
			steps[i] = stamp(w, step)
		}
		c.steps = steps
		return c
	}
	return inv
}

// Load replaces the task list with the stored one and clears both
// histories.
func (e *Engine) Load(ctx context.Context) (Result, error) {
	tasks, err := e.repo.Load(ctx)
	switch {
	case errors.Is(err, task.ErrNotFound):
		tasks = nil
	case err != nil:
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.replace(tasks)
	e.logger.Info("task list loaded", "tasks", e.st.list.Len())
	return Result{Messages: []string{fmt.Sprintf("Loaded %d tasks.", e.st.list.Len())}}, nil
}

// Import replaces the task list with the one stored in src, clears both
// histories and saves the result to the engine's own repository. A src
// with nothing saved is an error and leaves the list untouched.
func (e *Engine) Import(ctx context.Context, src Repository) (Result, error) {
	tasks, err := src.Load(ctx)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.replace(tasks)
	e.logger.Info("task list imported", "tasks", e.st.list.Len())
	res := Result{Messages: []string{fmt.Sprintf("Loaded %d tasks.", e.st.list.Len())}}
	if err := e.repo.Save(ctx, e.st.list.Tasks()); err != nil {
		e.logger.Warn("save failed", "err", err)
		return res, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return res, nil
}

// Export writes the current task list to dst. Neither the list nor the
// histories change.
func (e *Engine) Export(ctx context.Context, dst Repository) (Result, error) {
	if err := dst.Save(ctx, e.st.list.Tasks()); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.logger.Info("task list exported", "tasks", e.st.list.Len())
	return Result{Messages: []string{fmt.Sprintf("Saved %d tasks.", e.st.list.Len())}}, nil
}

func (e *Engine) replace(tasks []task.Task) {
	st := newState(tasks)
	e.settle(st)
	st.list.Sort()
	st.shown = st.list.IDs()
	e.st = st
	e.undo.clear()
	e.redo.clear()
}

// Tasks returns a copy of the full list in display order.
func (e *Engine) Tasks() []task.Task {
	return e.st.list.Tasks()
}

// Shown returns the tasks that positional refs currently point at.
func (e *Engine) Shown() []task.Task {
	out := make([]task.Task, 0, len(e.st.shown))
	for _, id := range e.st.shown {
		if t, err := e.st.list.FindByID(id); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// Show replaces the shown snapshot, for example with a filtered view.
func (e *Engine) Show(ids []int) error {
	for _, id := range ids {
		if e.st.list.IndexOf(id) < 0 {
			return fmt.Errorf("show id %d: %w", id, task.ErrNotFound)
		}
	}
	e.st.shown = append([]int(nil), ids...)
	return nil
}

// History lists the pending undo and redo commands, most recent first.
func (e *Engine) History() (undo, redo []Command) {
	return e.undo.list(), e.redo.list()
}

func (e *Engine) CanUndo() bool {
	return e.undo.len() > 0
}

func (e *Engine) CanRedo() bool {
	return e.redo.len() > 0
}
