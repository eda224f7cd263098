package hir

// StackSize returns the number of words occupied by the values of stack.
func StackSize(stack []*Instruction) int {
	n := 0
	for _, e1 := range stack {
		n += e1.typ.Size()
	}
	return n
}

// PhiSlots partitions a block boundary stack into its top value and the remaining values with their canonical spill
// slots. The slot of a value is its word offset from the bottom of the stack. Values are listed from the top down.
// Top is nil for an empty stack.
func PhiSlots(stack []*Instruction) (top *Instruction, values []*Instruction, slots []int) {
	if len(stack) == 0 {
		return nil, nil, nil
	}
	top = stack[len(stack)-1]
	off := StackSize(stack) - top.typ.Size()
	for i1 := len(stack) - 2; i1 >= 0; i1-- {
		off -= stack[i1].typ.Size()
		values = append(values, stack[i1])
		slots = append(slots, off)
	}
	return top, values, slots
}
