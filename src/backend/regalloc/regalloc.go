// Package regalloc implements the register and spill ledger of one method compilation. The ledger records which
// instruction owns each register and spill slot, and how many uses of it remain. It never emits code.
package regalloc

import (
	"fmt"

	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// bank holds the per register state of one register class.
type bank struct {
	refCount  []int              // Remaining uses per register.
	spillLock []int              // Spill lock counter per register.
	owner     []*hir.Instruction // Instruction whose value the register holds.
	table     allocTable         // Locked, used and locked out registers.
}

// RegAlloc is the register and spill ledger.
type RegAlloc struct {
	cpu           bank        // General purpose registers.
	fpu           bank        // Floating point registers.
	spill         []spillElem // Spill area, one element per word.
	lockingLocked bool        // Locking an already locked register adds to its count.
	is32bit       bool        // Floating point arithmetic runs in single precision.
}

// ---------------------
// ----- functions -----
// ---------------------

func newBank(n int) bank {
	return bank{
		refCount:  make([]int, n),
		spillLock: make([]int, n),
		owner:     make([]*hir.Instruction, n),
		table:     newAllocTable(n),
	}
}

// NewRegAlloc returns an empty ledger.
func NewRegAlloc() *RegAlloc {
	return &RegAlloc{
		cpu: newBank(regfile.NumCPURegs),
		fpu: newBank(regfile.NumFPURegs),
	}
}

// bankOf returns the bank and the register numbers of reg.
func (ra *RegAlloc) bankOf(reg regfile.RInfo) (*bank, []int) {
	switch {
	case reg.IsFloatKind():
		return &ra.fpu, []int{reg.Fpu()}
	case reg.IsWord() || reg.IsLong():
		return &ra.cpu, reg.CPU()
	default:
		util.Violationf("illegal register %s", reg)
		return nil, nil
	}
}

// SetLockingLocked allows Lock on registers that are already locked, adding to their use count.
func (ra *RegAlloc) SetLockingLocked(on bool) {
	ra.lockingLocked = on
}

// Set32bit records whether floating point arithmetic runs in single precision.
func (ra *RegAlloc) Set32bit(on bool) {
	ra.is32bit = on
}

// Is32bit returns true if floating point arithmetic runs in single precision.
func (ra *RegAlloc) Is32bit() bool {
	return ra.is32bit
}

// ----- Allocation -----

// GetFree returns the lowest numbered free register able to hold a value of type typ, without locking it.
func (ra *RegAlloc) GetFree(typ types.ValueType) regfile.RInfo {
	switch regfile.KindOf(typ) {
	case regfile.Word:
		return regfile.WordReg(ra.cpu.table.getFree())
	case regfile.Long:
		lo := ra.cpu.table.getFree()
		ra.cpu.table.setLocked(lo)
		defer ra.cpu.table.setFree(lo)
		return regfile.LongReg(lo, ra.cpu.table.getFree())
	case regfile.Float:
		return regfile.FloatReg(ra.fpu.table.getFree())
	case regfile.Double:
		return regfile.DoubleReg(ra.fpu.table.getFree())
	default:
		util.Violationf("no register kind for type %s", typ)
		return regfile.NoReg
	}
}

// GetFreeMasked returns the lowest numbered free word register of mask, without locking it.
func (ra *RegAlloc) GetFreeMasked(mask regfile.RegMask) regfile.RInfo {
	return regfile.WordReg(ra.cpu.table.getFreeMasked(mask))
}

// GetLock returns a free register for a value of type typ and locks it for owner. The use count is the owner's
// use count, at least 1.
func (ra *RegAlloc) GetLock(owner *hir.Instruction, typ types.ValueType) regfile.RInfo {
	reg := ra.GetFree(typ)
	rc := 1
	if owner != nil && owner.UseCount() > 0 {
		rc = owner.UseCount()
	}
	ra.Lock(reg, owner, rc)
	return reg
}

// HasFree returns true if a register for a value of type typ is available.
func (ra *RegAlloc) HasFree(typ types.ValueType) bool {
	switch regfile.KindOf(typ) {
	case regfile.Word:
		return ra.cpu.table.hasOneFree()
	case regfile.Long:
		return ra.cpu.table.hasTwoFree()
	case regfile.Float, regfile.Double:
		return ra.fpu.table.hasOneFree()
	default:
		return false
	}
}

// HasFreeMasked returns true if some word register of mask is available.
func (ra *RegAlloc) HasFreeMasked(mask regfile.RegMask) bool {
	return ra.cpu.table.hasOneFreeMasked(mask)
}

// ----- Ownership -----

// Lock locks reg for owner with rc uses. A count of zero is treated as one.
func (ra *RegAlloc) Lock(reg regfile.RInfo, owner *hir.Instruction, rc int) {
	if rc <= 0 {
		rc = 1
	}
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		if ra.lockingLocked && !b.table.isFree(rnr) {
			util.Assert(b.owner[rnr] == owner, "register %s is owned by %s", reg, ownerName(b.owner[rnr]))
			b.refCount[rnr] += rc
			continue
		}
		util.Assert(b.table.isFree(rnr), "register %s is not free", reg)
		b.table.setLocked(rnr)
		b.refCount[rnr] = rc
		b.owner[rnr] = owner
	}
}

// Free consumes one use of reg. The register is released when no use remains.
func (ra *RegAlloc) Free(reg regfile.RInfo) {
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		util.Assert(b.refCount[rnr] > 0, "register %s is not locked", reg)
		b.refCount[rnr]--
		if b.refCount[rnr] == 0 {
			b.table.setFree(rnr)
			b.owner[rnr] = nil
		}
	}
}

// SetReg hands the locked register reg to owner with rc remaining uses.
func (ra *RegAlloc) SetReg(reg regfile.RInfo, rc int, owner *hir.Instruction) {
	util.Assert(rc > 0, "register %s set with %d uses", reg, rc)
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		util.Assert(!b.table.isFree(rnr), "register %s must be locked", reg)
		b.refCount[rnr] = rc
		b.owner[rnr] = owner
	}
}

// IsFree returns true if reg is not locked. Locked out registers count as free.
func (ra *RegAlloc) IsFree(reg regfile.RInfo) bool {
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		if !b.table.isFree(rnr) {
			return false
		}
	}
	return true
}

// IsAvailable returns true if reg is neither locked nor locked out.
func (ra *RegAlloc) IsAvailable(reg regfile.RInfo) bool {
	if !ra.IsFree(reg) {
		return false
	}
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		if b.table.lockout.Contains(rnr) {
			return false
		}
	}
	return true
}

// RefCount returns the remaining uses of reg. For register pairs it is the count of the low half.
func (ra *RegAlloc) RefCount(reg regfile.RInfo) int {
	b, rnrs := ra.bankOf(reg)
	return b.refCount[rnrs[0]]
}

// Owner returns the instruction held by reg. For register pairs the owner of the low half wins.
func (ra *RegAlloc) Owner(reg regfile.RInfo) *hir.Instruction {
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		if b.owner[rnr] != nil {
			return b.owner[rnr]
		}
	}
	return nil
}

// ----- Eviction -----

// SpillCandidateMasked returns the register of mask to evict: locked, not spill locked, with an owner for which
// inReg holds, and with the lowest bci. Ties keep the lower register number. The result is NoReg if no register
// qualifies.
func (ra *RegAlloc) SpillCandidateMasked(mask regfile.RegMask, inReg func(*hir.Instruction) bool) regfile.RInfo {
	best := -1
	for rnr := 0; rnr < regfile.NumCPURegs; rnr++ {
		if !mask.Contains(rnr) || !ra.cpu.qualifies(rnr, inReg) {
			continue
		}
		if best < 0 || ra.cpu.owner[best].Bci() > ra.cpu.owner[rnr].Bci() {
			best = rnr
		}
	}
	if best < 0 {
		return regfile.NoReg
	}
	return regfile.WordReg(best)
}

// SpillCandidate returns the owner to evict to make room for a value of type typ, with the same ordering as
// SpillCandidateMasked. The result is nil if no owner qualifies.
func (ra *RegAlloc) SpillCandidate(typ types.ValueType, inReg func(*hir.Instruction) bool) *hir.Instruction {
	b := &ra.cpu
	if typ.IsFloatKind() {
		b = &ra.fpu
	}
	var best *hir.Instruction
	for rnr := range b.owner {
		if !b.qualifies(rnr, inReg) {
			continue
		}
		if best == nil || best.Bci() > b.owner[rnr].Bci() {
			best = b.owner[rnr]
		}
	}
	return best
}

// qualifies returns true if register rnr may be evicted.
func (b *bank) qualifies(rnr int, inReg func(*hir.Instruction) bool) bool {
	return !b.table.isFree(rnr) && b.spillLock[rnr] == 0 && b.owner[rnr] != nil &&
		(inReg == nil || inReg(b.owner[rnr]))
}

// ----- Lockout and spill locks -----

// SetLockout excludes the word registers of mask from allocation.
func (ra *RegAlloc) SetLockout(mask regfile.RegMask) {
	ra.cpu.table.lockout = mask
}

// Lockout returns the word registers excluded from allocation.
func (ra *RegAlloc) Lockout() regfile.RegMask {
	return ra.cpu.table.lockout
}

// IncrSpillLock protects reg from eviction.
func (ra *RegAlloc) IncrSpillLock(reg regfile.RInfo) {
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		b.spillLock[rnr]++
	}
}

// DecrSpillLock removes one protection of reg.
func (ra *RegAlloc) DecrSpillLock(reg regfile.RInfo) {
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		util.Assert(b.spillLock[rnr] > 0, "register %s is not spill locked", reg)
		b.spillLock[rnr]--
	}
}

// IsSpillLocked returns true if reg is protected from eviction.
func (ra *RegAlloc) IsSpillLocked(reg regfile.RInfo) bool {
	b, rnrs := ra.bankOf(reg)
	for _, rnr := range rnrs {
		if b.spillLock[rnr] > 0 {
			return true
		}
	}
	return false
}

// ClearSpillLocks removes every spill lock.
func (ra *RegAlloc) ClearSpillLocks() {
	for _, b := range []*bank{&ra.cpu, &ra.fpu} {
		for i1 := range b.spillLock {
			b.spillLock[i1] = 0
		}
	}
}

// ----- Checks and introspection -----

// DidUse returns true if the word register reg was ever handed out.
func (ra *RegAlloc) DidUse(reg regfile.RInfo) bool {
	for _, rnr := range reg.CPU() {
		if ra.cpu.table.didUse(rnr) {
			return true
		}
	}
	return false
}

// Used returns the word registers ever handed out.
func (ra *RegAlloc) Used() regfile.RegMask {
	return ra.cpu.table.used()
}

// Unused returns the word registers never handed out.
func (ra *RegAlloc) Unused() regfile.RegMask {
	return ra.cpu.table.unused()
}

// AllRegsFree returns true if no register is locked.
func (ra *RegAlloc) AllRegsFree() bool {
	return ra.cpu.table.areAllFree() && ra.fpu.table.areAllFree()
}

// AllFree returns true if no register and no spill slot is in use.
func (ra *RegAlloc) AllFree() bool {
	return ra.AllRegsFree() && ra.NoneSpilled()
}

// AllSpillLocksFree returns true if no register is spill locked.
func (ra *RegAlloc) AllSpillLocksFree() bool {
	for _, b := range []*bank{&ra.cpu, &ra.fpu} {
		for _, e1 := range b.spillLock {
			if e1 != 0 {
				return false
			}
		}
	}
	return true
}

// OopsInRegisters returns the word registers holding object references.
func (ra *RegAlloc) OopsInRegisters() []regfile.RInfo {
	var res []regfile.RInfo
	for rnr, e1 := range ra.cpu.owner {
		if !ra.cpu.table.isFree(rnr) && e1 != nil && e1.Type().IsOop() {
			res = append(res, regfile.WordReg(rnr))
		}
	}
	return res
}

// Check verifies the consistency of the ledger. Locked registers have uses, free registers have no owner, and
// every owner satisfies inReg when it is not nil.
func (ra *RegAlloc) Check(inReg func(*hir.Instruction) bool) error {
	for _, b := range []*bank{&ra.cpu, &ra.fpu} {
		for rnr := range b.owner {
			locked := !b.table.isFree(rnr)
			switch {
			case locked && b.refCount[rnr] <= 0:
				return fmt.Errorf("register %d locked with %d uses", rnr, b.refCount[rnr])
			case !locked && (b.refCount[rnr] != 0 || b.owner[rnr] != nil):
				return fmt.Errorf("free register %d has owner %s", rnr, ownerName(b.owner[rnr]))
			case locked && b.owner[rnr] != nil && inReg != nil && !inReg(b.owner[rnr]):
				return fmt.Errorf("register %d owner %s is not in a register", rnr, ownerName(b.owner[rnr]))
			}
		}
	}
	for i1, e1 := range ra.spill {
		if e1.refCount < 0 {
			return fmt.Errorf("spill slot %d has %d uses", i1, e1.refCount)
		}
	}
	return nil
}

// String lists the locked registers and occupied spill slots.
func (ra *RegAlloc) String() string {
	s := "regs:"
	for rnr, e1 := range ra.cpu.owner {
		if !ra.cpu.table.isFree(rnr) {
			s += fmt.Sprintf(" %s=%s/%d", regfile.WordReg(rnr), ownerName(e1), ra.cpu.refCount[rnr])
		}
	}
	for rnr, e1 := range ra.fpu.owner {
		if !ra.fpu.table.isFree(rnr) {
			s += fmt.Sprintf(" f%d=%s/%d", rnr, ownerName(e1), ra.fpu.refCount[rnr])
		}
	}
	s += " spill:"
	for i1, e1 := range ra.spill {
		if !e1.isFree() {
			s += fmt.Sprintf(" %d=%s/%d", i1, ownerName(e1.owner), e1.refCount)
		}
	}
	return s
}

// ownerName returns the name of owner, or "-" for hidden registers.
func ownerName(owner *hir.Instruction) string {
	if owner == nil {
		return "-"
	}
	return owner.Name()
}
