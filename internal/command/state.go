package command

import (
	"fmt"

	"atf/internal/task"
)

// state is everything a command may change. The engine runs each command
// on a clone and swaps it in only on success.
type state struct {
	list      *task.List
	shown     []int
	nextID    int
	nextSplit int
	lastAdded int
}

func newState(tasks []task.Task) *state {
	st := &state{list: task.NewList(tasks), nextID: 1, nextSplit: -1}
	for _, t := range tasks {
		if t.ID >= st.nextID {
			st.nextID = t.ID + 1
		}
		if t.ID <= st.nextSplit {
			st.nextSplit = t.ID - 1
		}
	}
	return st
}

func (s *state) clone() *state {
	c := *s
	c.list = s.list.Clone()
	c.shown = append([]int(nil), s.shown...)
	return &c
}

// NextSplitID hands out ids for split-off occurrences. They count down from
// below the smallest id ever loaded, so they never meet user task ids.
func (s *state) NextSplitID() int {
	id := s.nextSplit
	s.nextSplit--
	return id
}

func (s *state) resolve(r Ref) (int, error) {
	switch r.kind {
	case refIndex:
		if r.index < 1 || r.index > len(s.shown) {
			return 0, fmt.Errorf("index %d outside [1, %d]: %w", r.index, len(s.shown), task.ErrValidation)
		}
		return s.shown[r.index-1], nil
	case refID:
		return r.id, nil
	}
	return 0, fmt.Errorf("no task given: %w", task.ErrValidation)
}

func (s *state) find(r Ref) (task.Task, error) {
	id, err := s.resolve(r)
	if err != nil {
		return task.Task{}, err
	}
	return s.list.FindByID(id)
}
