package command

import "errors"

var (
	ErrHistoryEmpty = errors.New("history empty")
	ErrPersistence  = errors.New("persistence failed")
)

const (
	MessageNothingToUndo = "Nothing to undo"
	MessageNothingToRedo = "Nothing to redo"
)

// stack is a LIFO of inverse commands. A positive limit keeps only the most
// recent entries.
type stack struct {
	items []Command
	limit int
}

func (s *stack) push(c Command) {
	s.items = append(s.items, c)
	if s.limit > 0 && len(s.items) > s.limit {
		s.items = append(s.items[:0:0], s.items[len(s.items)-s.limit:]...)
	}
}

func (s *stack) peek() (Command, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	return s.items[len(s.items)-1], true
}

func (s *stack) pop() {
	if len(s.items) > 0 {
		s.items = s.items[:len(s.items)-1]
	}
}

func (s *stack) clear() {
	s.items = nil
}

func (s *stack) len() int {
	return len(s.items)
}

// list returns the entries, most recent first.
func (s *stack) list() []Command {
	out := make([]Command, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		out = append(out, s.items[i])
	}
	return out
}
