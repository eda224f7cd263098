// stack.go provides a linked list type stack. The bottom element is the first
// entry into the stack, while the top is the last entry to be added to the
// stack. Popping walks the list from the bottom, which is fine for the short
// work lists it serves.

package util

import "sync"

// StackElement holds data in the Stack linked list.
type StackElement[T any] struct {
	E    T                // Data held by stack entry.
	next *StackElement[T] // Pointer to next entry following this StackElement.
}

// Stack is a linked list stack. The zero value is an empty stack.
type Stack[T any] struct {
	size   int              // Number of entries in the stack.
	bottom *StackElement[T] // The first element to be added to the stack.
	top    *StackElement[T] // The last element to be added to the stack.
	mx     sync.Mutex       // For synchronising multiple worker threads to one stack.
}

// Push adds a new element to the top of the stack.
func (s *Stack[T]) Push(e T) {
	se := StackElement[T]{
		E:    e,
		next: nil,
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.size == 0 {
		s.bottom = &se
		s.top = &se
	} else {
		s.top.next = &se
		s.top = &se
	}
	s.size++
}

// Pop removes and returns the last inserted element on the stack.
// The boolean is false if the stack is empty.
func (s *Stack[T]) Pop() (T, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var zero T
	if s.size == 0 {
		return zero, false
	}
	if s.size == 1 {
		e := s.bottom
		s.bottom = nil
		s.top = nil
		s.size--
		return e.E, true
	}

	prev := s.bottom
	e1 := prev.next
	for ; e1.next != nil; e1 = e1.next {
		prev = prev.next
	}
	s.top = prev
	s.top.next = nil
	s.size--
	return e1.E, true
}

// Size returns the number of elements in the stack.
func (s *Stack[T]) Size() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.size
}
