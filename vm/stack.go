package vm

import (
	"fmt"

	"github.com/ledgervm/vm/core"
)

// Stack is the evaluation stack: a LIFO of VMObject shared by every
// frame of one execution. Arguments are pushed by the caller before
// invocation; the callee pops them. Popping past empty is a fault,
// never undefined behavior.
type Stack struct {
	items []*VMObject
}

// NewStack returns an empty evaluation stack.
func NewStack() *Stack {
	return &Stack{}
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int {
	return len(s.items)
}

// Push places v on top of the stack.
func (s *Stack) Push(v *VMObject) {
	s.items = append(s.items, v)
}

// Pop removes and returns the top value. Composite values come back
// as deep copies, so mutating a popped struct does not retroactively
// affect anything still on the stack.
func (s *Stack) Pop() (*VMObject, error) {
	if len(s.items) == 0 {
		return nil, core.ErrStackUnderflow
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	if top.Type() == TypeStruct || top.Type() == TypeObject {
		return top.Clone(), nil
	}
	return top, nil
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (*VMObject, error) {
	if len(s.items) == 0 {
		return nil, core.ErrStackUnderflow
	}
	return s.items[len(s.items)-1], nil
}

// Swap exchanges the two topmost values.
func (s *Stack) Swap() error {
	n := len(s.items)
	if n < 2 {
		return core.ErrStackUnderflow
	}
	s.items[n-1], s.items[n-2] = s.items[n-2], s.items[n-1]
	return nil
}

// Items returns the stack contents, bottom first. Used by hosts to
// read execution results after the engine halts.
func (s *Stack) Items() []*VMObject {
	out := make([]*VMObject, len(s.items))
	copy(out, s.items)
	return out
}

// popNumber pops the top value and coerces it to Number.
func (s *Stack) popNumber() (*VMObject, error) {
	v, err := s.Pop()
	if err != nil {
		return nil, err
	}
	if v.Type() != TypeNumber {
		return nil, fmt.Errorf("%w: expected %s, got %s", core.ErrTypeMismatch, TypeNumber, v.Type())
	}
	return v, nil
}

// popString pops the top value and coerces it to String.
func (s *Stack) popString() (string, error) {
	v, err := s.Pop()
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// popBool pops the top value and coerces it to Bool.
func (s *Stack) popBool() (bool, error) {
	v, err := s.Pop()
	if err != nil {
		return false, err
	}
	return v.AsBool()
}
