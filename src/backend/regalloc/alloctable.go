package regalloc

import (
	"c1gen/src/backend/regfile"
	"c1gen/src/util"
)

// allocTable tracks the locked registers of one register bank as a bit mask.
type allocTable struct {
	n       int             // Number of registers in the bank.
	state   regfile.RegMask // Locked registers.
	orState regfile.RegMask // Every register ever handed out or locked.
	lockout regfile.RegMask // Registers that must not be handed out.
}

// newAllocTable returns a table for a bank of n registers.
func newAllocTable(n int) allocTable {
	return allocTable{n: n}
}

// all returns the mask of every register of the bank.
func (t *allocTable) all() regfile.RegMask {
	return regfile.RegMask(1<<t.n - 1)
}

func (t *allocTable) areAllFree() bool {
	return t.state.IsEmpty()
}

// unavailable returns the registers that cannot be handed out.
func (t *allocTable) unavailable() regfile.RegMask {
	return t.state | t.lockout
}

func (t *allocTable) hasOneFree() bool {
	return t.unavailable()&t.all() != t.all()
}

func (t *allocTable) hasTwoFree() bool {
	return (t.all() &^ t.unavailable()).Len() >= 2
}

func (t *allocTable) hasOneFreeMasked(mask regfile.RegMask) bool {
	return mask&t.all()&^t.unavailable() != 0
}

func (t *allocTable) isFree(rnr int) bool {
	return !t.state.Contains(rnr)
}

func (t *allocTable) didUse(rnr int) bool {
	return t.orState.Contains(rnr)
}

func (t *allocTable) setFree(rnr int) {
	util.Assert(!t.isFree(rnr), "register %d not locked", rnr)
	t.state = t.state.Remove(rnr)
}

func (t *allocTable) setLocked(rnr int) {
	util.Assert(t.isFree(rnr), "register %d already locked", rnr)
	util.Assert(!t.lockout.Contains(rnr), "register %d is locked out", rnr)
	t.state = t.state.Add(rnr)
	t.orState |= t.state
}

// getFree returns the lowest numbered register that is neither locked nor locked out.
func (t *allocTable) getFree() int {
	return t.getFreeMasked(t.all())
}

// getFreeMasked returns the lowest numbered register of mask that is neither locked nor locked out.
func (t *allocTable) getFreeMasked(mask regfile.RegMask) int {
	util.Assert(t.hasOneFreeMasked(mask), "no free register in %s", mask)
	for rnr := 0; rnr < t.n; rnr++ {
		if mask.Contains(rnr) && !t.unavailable().Contains(rnr) {
			t.orState = t.orState.Add(rnr)
			return rnr
		}
	}
	return -1
}

// used returns the registers ever handed out.
func (t *allocTable) used() regfile.RegMask {
	return t.orState & t.all()
}

// unused returns the registers never handed out.
func (t *allocTable) unused() regfile.RegMask {
	return t.all() &^ t.orState
}
