package regalloc

import (
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"
)

// spillElem is one word of the spill area.
type spillElem struct {
	owner    *hir.Instruction // Value held in the slot.
	refCount int              // Remaining uses, zero if the slot is free.
	isOop    bool             // The slot holds a reference.
}

func (s *spillElem) set(owner *hir.Instruction, rc int, isOop bool) {
	s.owner = owner
	s.refCount = rc
	s.isOop = isOop
}

func (s *spillElem) isFree() bool {
	return s.refCount == 0
}

func (s *spillElem) clear() {
	*s = spillElem{}
}

// extendSpillArea grows the spill area to n slots.
func (ra *RegAlloc) extendSpillArea(n int) {
	for len(ra.spill) < n {
		ra.spill = append(ra.spill, spillElem{})
	}
}

// LockSpill places owner at spill slot ix with rc remaining uses. Two word values occupy ix and ix+1.
func (ra *RegAlloc) LockSpill(owner *hir.Instruction, ix int, rc int) {
	typ := owner.Type()
	ra.extendSpillArea(ix + typ.Size())
	for i1 := 0; i1 < typ.Size(); i1++ {
		s := &ra.spill[ix+i1]
		util.Assert(s.isFree(), "spill slot %d has already been locked", ix+i1)
		s.set(owner, rc, typ.IsOop())
	}
}

// GetLockSpill places owner at the first free slot, or slot pair, and returns its index. The spill area grows if no
// slot is free.
func (ra *RegAlloc) GetLockSpill(owner *hir.Instruction, rc int) int {
	typ := owner.Type()
	for i1 := 0; i1 < len(ra.spill); i1++ {
		if !ra.spill[i1].isFree() {
			continue
		}
		if typ.IsDoubleWord() {
			ra.extendSpillArea(i1 + 2)
			if ra.spill[i1+1].isFree() {
				ra.spill[i1].set(owner, rc, false)
				ra.spill[i1+1].set(owner, rc, false)
				return i1
			}
		} else {
			ra.spill[i1].set(owner, rc, typ.IsOop())
			return i1
		}
	}
	ix := len(ra.spill)
	ra.LockSpill(owner, ix, rc)
	return ix
}

// FreeSpill consumes one use of the value spilled at ix.
func (ra *RegAlloc) FreeSpill(ix int, typ types.ValueType) {
	for i1 := 0; i1 < typ.Size(); i1++ {
		s := &ra.spill[ix+i1]
		util.Assert(s.refCount > 0, "cannot release free spill slot %d", ix+i1)
		s.refCount--
	}
}

// FreeCompleteSpill releases the slot at ix regardless of its remaining uses.
func (ra *RegAlloc) FreeCompleteSpill(ix int, typ types.ValueType) {
	for i1 := 0; i1 < typ.Size(); i1++ {
		ra.spill[ix+i1].refCount = 0
	}
}

// IsFreeSpill returns true if a value of type typ could be placed at ix.
func (ra *RegAlloc) IsFreeSpill(ix int, typ types.ValueType) bool {
	for i1 := 0; i1 < typ.Size(); i1++ {
		if ix+i1 < len(ra.spill) && !ra.spill[ix+i1].isFree() {
			return false
		}
	}
	return true
}

// SpillRefCount returns the remaining uses of the slot at ix.
func (ra *RegAlloc) SpillRefCount(ix int) int {
	if ix >= len(ra.spill) {
		return 0
	}
	return ra.spill[ix].refCount
}

// SpilledAt returns the value held in the slot at ix.
func (ra *RegAlloc) SpilledAt(ix int) *hir.Instruction {
	util.Assert(ix < len(ra.spill) && !ra.spill[ix].isFree(), "spill slot %d is released", ix)
	return ra.spill[ix].owner
}

// NoneSpilled returns true if every spill slot is free.
func (ra *RegAlloc) NoneSpilled() bool {
	for i1 := range ra.spill {
		if !ra.spill[i1].isFree() {
			return false
		}
	}
	return true
}

// OopsInSpill returns the occupied spill slots holding references, highest slot first.
func (ra *RegAlloc) OopsInSpill() []int {
	var res []int
	for i1 := len(ra.spill) - 1; i1 >= 0; i1-- {
		if !ra.spill[i1].isFree() && ra.spill[i1].isOop {
			res = append(res, i1)
		}
	}
	return res
}

// FreeSpillAfter returns the first slot at or above least that can hold a value of type typ.
func (ra *RegAlloc) FreeSpillAfter(least int, typ types.ValueType) int {
	if least >= len(ra.spill) {
		ra.extendSpillArea(least + 1)
		return least
	}
	for i1 := least; i1 < len(ra.spill); i1++ {
		if !ra.spill[i1].isFree() {
			continue
		}
		if !typ.IsDoubleWord() || i1+1 >= len(ra.spill) || ra.spill[i1+1].isFree() {
			return i1
		}
	}
	n := len(ra.spill)
	ra.extendSpillArea(n + 1)
	return n
}

// MoveSpill relocates the value at slot from to slot to and returns it. The caller updates the placement of the
// returned value.
func (ra *RegAlloc) MoveSpill(to, from int, typ types.ValueType) *hir.Instruction {
	owner := ra.spill[from].owner
	ra.extendSpillArea(to + typ.Size())
	for i1 := 0; i1 < typ.Size(); i1++ {
		s := ra.spill[from+i1]
		util.Assert(ra.spill[to+i1].isFree() || to+i1 == from, "spill slot %d is occupied", to+i1)
		ra.spill[from+i1].clear()
		ra.spill[to+i1] = s
	}
	return owner
}

// MaxSpills returns the size of the spill area.
func (ra *RegAlloc) MaxSpills() int {
	return len(ra.spill)
}
