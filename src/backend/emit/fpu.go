package emit

import (
	"fmt"
	"strings"

	"c1gen/src/backend/regfile"
	"c1gen/src/util"
)

// fpuStack simulates the floating point register stack. Each allocated floating point register has a position on
// the stack, 1 being the bottom. The register with position count is on top.
type fpuStack struct {
	offset [regfile.NumFPURegs]int // Position per register, 0 if not on the stack.
	count  int                     // Stack depth.
}

// push places register rnr on top of the stack.
func (s *fpuStack) push(rnr int) {
	util.Assert(s.offset[rnr] == 0, "f%d is already on the fpu stack", rnr)
	util.Assert(s.count < regfile.NumFPURegs, "fpu stack overflow pushing f%d", rnr)
	s.count++
	s.offset[rnr] = s.count
}

// pop removes register rnr, which must be on top of the stack.
func (s *fpuStack) pop(rnr int) {
	util.Assert(s.isOnTop(rnr), "f%d is not on top of the fpu stack %s", rnr, s)
	s.offset[rnr] = 0
	s.count--
}

// contains returns true if register rnr is on the stack.
func (s *fpuStack) contains(rnr int) bool {
	return s.offset[rnr] != 0
}

// isOnTop returns true if register rnr is on top of the stack.
func (s *fpuStack) isOnTop(rnr int) bool {
	return s.count > 0 && s.offset[rnr] == s.count
}

// depthOf returns the distance of register rnr from the top of the stack, 0 for the top.
func (s *fpuStack) depthOf(rnr int) int {
	util.Assert(s.contains(rnr), "f%d is not on the fpu stack", rnr)
	return s.count - s.offset[rnr]
}

// regAt returns the register at distance depth from the top of the stack.
func (s *fpuStack) regAt(depth int) int {
	for i1, e1 := range s.offset {
		if e1 != 0 && e1 == s.count-depth {
			return i1
		}
	}
	util.Violationf("no register at fpu stack depth %d", depth)
	return -1
}

// exchange swaps the top of the stack with the register at distance depth.
func (s *fpuStack) exchange(depth int) {
	top, other := s.regAt(0), s.regAt(depth)
	s.offset[top], s.offset[other] = s.offset[other], s.offset[top]
}

// bringOnTop exchanges register rnr with the top of the stack and returns its previous depth. A depth of 0 means
// no exchange is needed.
func (s *fpuStack) bringOnTop(rnr int) int {
	d := s.depthOf(rnr)
	if d > 0 {
		s.exchange(d)
	}
	return d
}

// clear empties the stack.
func (s *fpuStack) clear() {
	s.offset = [regfile.NumFPURegs]int{}
	s.count = 0
}

// String lists the stack from the top down.
func (s *fpuStack) String() string {
	names := make([]string, 0, s.count)
	for d := 0; d < s.count; d++ {
		names = append(names, fmt.Sprintf("f%d", s.regAt(d)))
	}
	return "[" + strings.Join(names, " ") + "]"
}
