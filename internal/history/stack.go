// Package history keeps a bounded undo/redo history of immutable states.
package history

// DefaultDepth is the number of states kept when New is given no depth.
const DefaultDepth = 50

// Stack is an undo/redo history. The top of the undo side is the current
// state; the stack never drops below that one baseline entry. Stack is not
// safe for concurrent use.
type Stack[T any] struct {
	max  int
	undo []T
	redo []T
}

// New returns a stack holding baseline as its only entry.
func New[T any](baseline T, depth int) *Stack[T] {
	if depth < 1 {
		depth = DefaultDepth
	}
	return &Stack[T]{max: depth, undo: []T{baseline}}
}

// Push records state as current. Any redo history is discarded and the
// oldest entries are dropped once more than the depth are kept.
func (s *Stack[T]) Push(state T) {
	s.undo = append(s.undo, state)
	s.redo = s.redo[:0]
	if over := len(s.undo) - s.max; over > 0 {
		clear(s.undo[:over])
		s.undo = append(s.undo[:0], s.undo[over:]...)
	}
}

// Undo moves the current state to the redo side and returns the state before
// it. It reports false when only the baseline is left.
func (s *Stack[T]) Undo() (T, bool) {
	if len(s.undo) < 2 {
		var zero T
		return zero, false
	}
	top := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, top)
	return s.undo[len(s.undo)-1], true
}

// Redo reapplies the most recently undone state.
func (s *Stack[T]) Redo() (T, bool) {
	if len(s.redo) == 0 {
		var zero T
		return zero, false
	}
	top := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, top)
	return top, true
}

// Current returns the state on top of the undo side.
func (s *Stack[T]) Current() T { return s.undo[len(s.undo)-1] }

// Reset drops all history and starts over from baseline.
func (s *Stack[T]) Reset(baseline T) {
	s.undo = []T{baseline}
	s.redo = nil
}

func (s *Stack[T]) CanUndo() bool { return len(s.undo) > 1 }
func (s *Stack[T]) CanRedo() bool { return len(s.redo) > 0 }

// Len is the number of entries on the undo side, baseline included.
func (s *Stack[T]) Len() int { return len(s.undo) }

// Depth is the maximum number of undo entries kept.
func (s *Stack[T]) Depth() int { return s.max }
