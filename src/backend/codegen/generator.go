package codegen

import (
	"c1gen/src/backend/emit"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regalloc"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"

	mapset "github.com/deckarep/golang-set/v2"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Generator places the values of instruction trees and emits their code. A root is generated once by the block
// driver and its placement is kept in the memo table for its users. Every other instruction is generated from its
// single user, and its register placement stays evictable until that user consumes it. A Generator serves one pass
// over one method.
type Generator struct {
	ctx     *Context
	ra      *regalloc.RegAlloc
	em      *emit.Emitter
	memo    map[*hir.Instruction]*items.Item // Placements of generated roots.
	live    map[*hir.Instruction]*items.Item // Placements of non-roots not yet consumed by their user.
	visited mapset.Set[*hir.Instruction]     // Non-roots already generated.
	result  *items.Item                      // Placement of the instruction being generated.
	hint    *items.Item                      // Placement its user asks for.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewGenerator returns a Generator for the pass described by ctx.
func NewGenerator(ctx *Context) *Generator {
	return &Generator{
		ctx:     ctx,
		ra:      ctx.RA,
		em:      ctx.Em,
		memo:    make(map[*hir.Instruction]*items.Item),
		live:    make(map[*hir.Instruction]*items.Item),
		visited: mapset.NewThreadUnsafeSet[*hir.Instruction](),
		result:  items.NoHint(),
		hint:    items.NoHint(),
	}
}

// Placement returns the placement of root x, nil if x has not been generated.
func (g *Generator) Placement(x *hir.Instruction) *items.Item {
	return g.memo[x]
}

// inReg reports whether x is held in a register of its own that may be spilled.
func (g *Generator) inReg(x *hir.Instruction) bool {
	return g.placed(x) != nil
}

// placed returns the register item of x, nil if x is not in a register of its own. A non-root is placed from when
// its user receives it until the user releases its register.
func (g *Generator) placed(x *hir.Instruction) *items.Item {
	it := g.memo[x]
	if !x.IsRoot() {
		it = g.live[x]
	}
	if it == nil || !it.IsRegister() || it.IsCached() {
		return nil
	}
	if !x.IsRoot() && g.ra.Owner(it.RInfo()) != x {
		return nil
	}
	return it
}

// walk generates the value of it.Value() into it. Roots are looked up, other instructions are generated on the spot
// with hint as the preferred placement.
func (g *Generator) walk(it, hint *items.Item) {
	x := it.Value()
	if x.IsRoot() {
		m := g.memo[x]
		util.Assert(m != nil, "root %s has not been generated", x.Name())
		util.Assert(m.HasResult(), "root %s has no uses left", x.Name())
		it.SetFromItem(m)
		return
	}
	util.Assert(!g.visited.Contains(x), "%s is generated twice", x.Name())
	util.Assert(x.UseCount() > 0, "leaf %s must have a use", x.Name())
	g.visited.Add(x)

	result, parentHint := g.result, g.hint
	g.result, g.hint = it, hint
	g.dispatch(x)
	g.result, g.hint = result, parentHint
	if it.IsRegister() && !it.IsCached() {
		g.live[x] = it
	}
}

// operand returns the generated placement of x using hint.
func (g *Generator) operand(x *hir.Instruction, hint *items.Item) *items.Item {
	it := items.New(x)
	g.walk(it, hint)
	return it
}

// destroyed returns the generated placement of x whose register is overwritten by its user.
func (g *Generator) destroyed(x *hir.Instruction, hint *items.Item) *items.Item {
	it := items.New(x)
	it.SetDestroysRegister(true)
	g.walk(it, hint)
	return it
}

// floatOperand returns the generated placement of x, destroyed if x is a floating point value.
func (g *Generator) floatOperand(x *hir.Instruction, hint *items.Item) *items.Item {
	it := items.New(x)
	it.HandleFloatKind()
	g.walk(it, hint)
	return it
}

// dispatch generates x into g.result.
func (g *Generator) dispatch(x *hir.Instruction) {
	switch op := x.Op().(type) {
	case *hir.Constant:
		g.result.SetConstant()
	case *hir.LoadLocal:
		g.doLoadLocal(x, op)
	case *hir.Phi:
		util.Violationf("phi %s has no placement", x.Name())
	case *hir.ArithmeticOp:
		g.doArithmetic(x, op)
	case *hir.ShiftOp:
		g.doShift(x, op)
	case *hir.LogicOp:
		g.doLogic(x, op)
	case *hir.NegateOp:
		g.doNegate(x, op)
	case *hir.CompareOp:
		g.doCompare(x, op)
	case *hir.Convert:
		g.doConvert(x, op)
	case *hir.IfOp:
		g.doIfOp(x, op)
	case *hir.ArrayLength:
		g.doArrayLength(x, op)
	case *hir.LoadIndexed:
		g.doLoadIndexed(x, op)
	case *hir.LoadField:
		g.doLoadField(x, op)
	case *hir.Intrinsic:
		g.doIntrinsic(x, op)
	case *hir.StoreLocal:
		g.doStoreLocal(x, op)
	case *hir.StoreIndexed:
		g.doStoreIndexed(x, op)
	case *hir.StoreField:
		g.doStoreField(x, op)
	case *hir.NullCheck:
		g.doNullCheck(x, op)
	case *hir.Invoke:
		g.doInvoke(x, op)
	case *hir.NewInstance:
		g.doNewInstance(x, op)
	case *hir.NewTypeArray:
		g.doNewTypeArray(x, op)
	case *hir.NewObjectArray:
		g.doNewObjectArray(x, op)
	case *hir.NewMultiArray:
		g.doNewMultiArray(x, op)
	case *hir.CheckCast:
		g.doCheckCast(x, op)
	case *hir.InstanceOf:
		g.doInstanceOf(x, op)
	case *hir.MonitorEnter:
		g.doMonitor(x, op.Obj, op.MonitorNo, emit.OpMonitorEnter)
	case *hir.MonitorExit:
		g.doMonitor(x, op.Obj, op.MonitorNo, emit.OpMonitorExit)
	case *hir.LoopEnter:
		g.doLoopEnter(x)
	case *hir.LoopExit:
		g.doLoopExit(x)
	case *hir.Goto:
		g.doGoto(x, op)
	case *hir.If:
		g.doIf(x, op)
	case *hir.TableSwitch:
		g.doTableSwitch(x, op)
	case *hir.LookupSwitch:
		g.doLookupSwitch(x, op)
	case *hir.Return:
		g.doReturn(x, op)
	case *hir.Throw:
		g.doThrow(x, op)
	case *hir.Jsr:
		g.doJsr(x, op)
	case *hir.JsrContinuation:
		g.doJsrContinuation(x)
	case *hir.Ret:
		g.doRet(x, op)
	default:
		util.Violationf("no code generation for %s", x)
	}
}

// ---------------------------
// ----- Result handling -----
// ---------------------------

// setResult places the result of the current instruction in reg.
func (g *Generator) setResult(reg regfile.RInfo) {
	g.result.SetRInfo(reg, false)
}

// setNoResult marks the current instruction x as producing nothing.
func (g *Generator) setNoResult(x *hir.Instruction) {
	util.Assert(x.UseCount() == 0, "%s has uses but no result", x.Name())
	g.result.SetNoResult()
}

// regItem returns the placement of x in reg.
func regItem(x *hir.Instruction, reg regfile.RInfo) *items.Item {
	it := items.New(x)
	it.SetRInfo(reg, false)
	return it
}

// subHint returns a copy of hint for an operand, requesting single precision rounding if round32 is set.
func subHint(hint *items.Item, round32 bool) *items.Item {
	h := hint.Clone()
	if round32 {
		h.SetRound32(true)
	}
	return h
}

// is32bitMode returns true if the current block runs floating point arithmetic in single precision.
func (g *Generator) is32bitMode() bool {
	bi := g.ctx.current()
	return bi != nil && bi.Is32bitPrecision()
}

// mustRound returns true if the floating point result of x must be stored to memory to drop excess precision.
func (g *Generator) mustRound(x *hir.Instruction, hint *items.Item) bool {
	if g.ctx.Method.IsStrict() {
		return true
	}
	if x.Type() == types.Float && (x.IsRoot() || x.UseCount() > 1 || (hint.IsRound32() && !g.ra.Is32bit())) {
		return !g.is32bitMode()
	}
	return false
}

// cachedLocal returns the register caching local index in the current block, NoReg if it is not cached.
func (g *Generator) cachedLocal(index int) regfile.RInfo {
	if bi := g.ctx.current(); bi != nil {
		return bi.CacheReg(index)
	}
	return regfile.NoReg
}

// oopRegs returns the cached registers of the current block holding references.
func (g *Generator) oopRegs() []regfile.RInfo {
	if bi := g.ctx.current(); bi != nil {
		return bi.OopRegisters()
	}
	return nil
}

// isBackward returns true if a branch from the current block to dst is backward.
func (g *Generator) isBackward(dst *hir.Block) bool {
	return g.ctx.Block.IsAfter(dst)
}

// itemMayBeNull returns false only for the receiver of an instance method that never overwrites it.
func (g *Generator) itemMayBeNull(it *items.Item) bool {
	return g.ctx.Method.IsStatic() || g.ctx.scan.HasStore0 || it.Value().LocalIndex() != 0
}

// ------------------
// ----- Spills -----
// ------------------

// spillItem evicts the register of it to a new spill slot. The slot takes over every remaining use.
func (g *Generator) spillItem(it *items.Item) {
	util.Assert(it.IsRegister(), "can only spill register items, got %s", it)
	util.Assert(!it.IsCached(), "cannot spill cached item %s", it)
	reg := it.RInfo()
	rc := g.ra.RefCount(reg)
	ix := g.ra.GetLockSpill(it.Value(), rc)
	for i1 := 0; i1 < rc; i1++ {
		g.ra.Free(reg)
	}
	g.em.Spill(ix, it)
	it.SetSpillIx(ix)
	if t := g.ctx.tracer(); t != nil {
		t.Spilled(g.ctx.Block, it.Value(), ix)
	}
}

// spillValue evicts x from its register. The item its user holds, or the root placement, takes the spill slot.
func (g *Generator) spillValue(x *hir.Instruction) {
	it := g.placed(x)
	util.Assert(it != nil, "%s is not in a register", x.Name())
	util.Assert(!g.ra.IsSpillLocked(it.RInfo()), "cannot spill the spill locked %s", it)
	g.spillItem(it)
	delete(g.live, x)
}

// spillReg evicts the owner of reg.
func (g *Generator) spillReg(reg regfile.RInfo) {
	owner := g.ra.Owner(reg)
	util.Assert(owner != nil && g.inReg(owner), "register %s holds no spillable value", reg)
	g.spillValue(owner)
}

// spillOne evicts values until a register for type typ is free.
func (g *Generator) spillOne(typ types.ValueType) {
	for !g.ra.HasFree(typ) {
		x := g.ra.SpillCandidate(typ, g.inReg)
		util.Assert(x != nil, "no spillable value to free a %s register", typ)
		g.spillValue(x)
	}
}

// spillAll evicts every value held in a register. Calls and slow cases preserve no register.
func (g *Generator) spillAll() {
	for _, typ := range []types.ValueType{types.Int, types.Double} {
		for x := g.ra.SpillCandidate(typ, g.inReg); x != nil; x = g.ra.SpillCandidate(typ, g.inReg) {
			g.spillValue(x)
		}
	}
}

// checkForSpill evicts it if its register partially overlaps reg.
func (g *Generator) checkForSpill(it *items.Item, reg regfile.RInfo) {
	if it.IsRegister() && it.RInfo() != reg {
		g.evict(it, reg)
	}
}

// evict spills the operand it if its register overlaps reg. A root operand spills its root placement.
func (g *Generator) evict(it *items.Item, reg regfile.RInfo) {
	if !it.IsRegister() || it.IsCached() || !it.RInfo().Overlaps(reg) {
		return
	}
	if x := it.Value(); x.IsRoot() && g.memo[x] != nil && g.memo[x] != it {
		g.spillValue(x)
		it.SetFromItem(g.memo[x])
		return
	}
	g.spillItem(it)
}

// ---------------------
// ----- Registers -----
// ---------------------

// getFreeReg returns a free register for type typ without locking it, evicting if none is free.
func (g *Generator) getFreeReg(typ types.ValueType) regfile.RInfo {
	g.spillOne(typ)
	return g.ra.GetFree(typ)
}

// lockReg locks a free register for x with all its uses.
func (g *Generator) lockReg(x *hir.Instruction) regfile.RInfo {
	g.spillOne(x.Type())
	return g.ra.GetLock(x, x.Type())
}

// lockRegHint locks the register of hint for x if it is available, any free register otherwise.
func (g *Generator) lockRegHint(x *hir.Instruction, hint *items.Item) regfile.RInfo {
	if g.usableHint(hint, x.Type()) {
		reg := hint.RInfo()
		g.ra.Lock(reg, x, x.UseCount())
		return reg
	}
	return g.lockReg(x)
}

// usableHint returns true if hint names an available register able to hold a value of type typ.
func (g *Generator) usableHint(hint *items.Item, typ types.ValueType) bool {
	return hint.HasResult() && hint.IsRegister() && !hint.IsCached() &&
		hint.RInfo().Kind() == regfile.KindOf(typ) && g.ra.IsAvailable(hint.RInfo())
}

// lockFreeReg locks a free register of type typ for owner with one use.
func (g *Generator) lockFreeReg(owner *hir.Instruction, typ types.ValueType) regfile.RInfo {
	reg := g.getFreeReg(typ)
	g.ra.Lock(reg, owner, 1)
	return reg
}

// lockFreeRegMasked locks a free word register of mask for owner with one use.
func (g *Generator) lockFreeRegMasked(owner *hir.Instruction, mask regfile.RegMask) regfile.RInfo {
	for !g.ra.HasFreeMasked(mask) {
		reg := g.ra.SpillCandidateMasked(mask, g.inReg)
		util.Assert(reg.IsValid(), "no spillable value in %s", mask)
		g.spillReg(reg)
	}
	reg := g.ra.GetFreeMasked(mask)
	g.ra.Lock(reg, owner, 1)
	return reg
}

// lockResultReg locks the fixed result register of the type of x, evicting its occupants.
func (g *Generator) lockResultReg(x *hir.Instruction) regfile.RInfo {
	reg := regfile.ResultReg(x.Type())
	g.lockSpillReg(reg, x, x.UseCount())
	return reg
}

// lockSpillReg locks reg for x with rc uses, evicting its occupants first.
func (g *Generator) lockSpillReg(reg regfile.RInfo, x *hir.Instruction, rc int) {
	for !g.ra.IsFree(reg) {
		g.spillReg(reg)
	}
	g.ra.Lock(reg, x, rc)
}

// hideReg reserves reg for the current instruction. Occupants are evicted if spill is set.
func (g *Generator) hideReg(reg regfile.RInfo, spill bool) regfile.RInfo {
	if spill {
		for !g.ra.IsFree(reg) {
			g.spillReg(reg)
		}
	}
	util.Assert(g.ra.IsFree(reg), "cannot hide locked register %s", reg)
	g.ra.Lock(reg, nil, 1)
	g.ra.IncrSpillLock(reg)
	return reg
}

// hideRegOf reserves any free register of type typ.
func (g *Generator) hideRegOf(typ types.ValueType) regfile.RInfo {
	reg := g.getFreeReg(typ)
	g.ra.Lock(reg, nil, 1)
	g.ra.IncrSpillLock(reg)
	return reg
}

// showReg releases a register reserved by hideReg.
func (g *Generator) showReg(reg regfile.RInfo) {
	g.ra.DecrSpillLock(reg)
	g.ra.Free(reg)
	util.Assert(g.ra.IsFree(reg), "hidden register %s is still locked", reg)
}

// ----------------------------
// ----- Releasing items -----
// ----------------------------

// freeSpill consumes one use of the spilled item it.
func (g *Generator) freeSpill(it *items.Item) {
	g.ra.FreeSpill(it.SpillIx(), it.Type())
}

// freeReg consumes one use of the register item it and lifts its spill lock. A root whose register is released has
// no placement left.
func (g *Generator) freeReg(it *items.Item) {
	reg := it.RInfo()
	g.ra.DecrSpillLock(reg)
	if !it.IsCached() {
		g.ra.Free(reg)
	}
	if x := it.Value(); x != nil && x.IsRoot() {
		if m := g.memo[x]; m != nil && m.IsRegister() && !m.IsCached() && g.ra.IsFree(m.RInfo()) {
			m.SetNoResult()
		}
	}
}

// freeItem consumes one use of it, wherever it lives.
func (g *Generator) freeItem(it *items.Item) {
	switch {
	case it.IsSpilled():
		g.freeSpill(it)
	case it.IsRegister():
		g.freeReg(it)
	}
}

// releaseItem drops a root placement that has no user left to consume it.
func (g *Generator) releaseItem(it *items.Item) {
	switch {
	case it.IsRegister():
		if it.Type().IsFloatKind() {
			g.em.RemoveFpuResult(it.RInfo())
		}
		if !it.IsCached() {
			g.ra.Free(it.RInfo())
		}
	case it.IsSpilled():
		g.freeSpill(it)
	}
}

// -----------------------------
// ----- Operand discipline -----
// -----------------------------

// update refreshes it from the placement of its root, which may have been spilled since it was walked.
func (g *Generator) update(it *items.Item) {
	x := it.Value()
	if !x.IsRoot() {
		return
	}
	if m := g.memo[x]; m != nil && m != it && m.HasResult() {
		it.SetFromItem(m)
	}
}

// setMayNotSpill protects the register of it from eviction until it is freed.
func (g *Generator) setMayNotSpill(it *items.Item) {
	if it.IsRegister() {
		g.ra.IncrSpillLock(it.RInfo())
	}
}

// mustCopyRegister returns true if the user overwrites a register that is shared or caches a local.
func (g *Generator) mustCopyRegister(it *items.Item) bool {
	return it.DestroysRegister() && (it.IsCached() || g.ra.RefCount(it.RInfo()) > 1)
}

// moveToReg moves it into reg, releasing its old placement.
func (g *Generator) moveToReg(it *items.Item, reg regfile.RInfo, cached bool) {
	g.em.ItemToReg(regItem(it.Value(), reg), it)
	g.freeItem(it)
	it.SetRInfo(reg, cached)
	g.setMayNotSpill(it)
}

// copyFloat gives a shared floating point register item a register of its own.
func (g *Generator) copyFloat(it *items.Item) {
	reg := g.lockFreeReg(it.Value(), it.Type())
	g.em.CopyFpuItem(regItem(it.Value(), reg), it)
	g.freeReg(it)
	it.SetRInfo(reg, false)
	g.setMayNotSpill(it)
}

// checkFloatRegister copies a floating point register item if other users still need the register.
func (g *Generator) checkFloatRegister(it *items.Item) {
	if it.Type().IsFloatKind() && g.ra.RefCount(it.RInfo()) > 1 {
		g.copyFloat(it)
	}
}

// fpuFanoutHandled copies a shared floating point register item and reports whether it did.
func (g *Generator) fpuFanoutHandled(it *items.Item) bool {
	if it.IsRegister() && it.Type().IsFloatKind() && g.ra.RefCount(it.RInfo()) > 1 {
		g.copyFloat(it)
		return true
	}
	return false
}

// loadItem places it in a register the user may use.
func (g *Generator) loadItem(it *items.Item) {
	g.update(it)
	g.setMayNotSpill(it)
	if it.IsRegister() && !g.mustCopyRegister(it) {
		g.checkFloatRegister(it)
		return
	}
	if g.fpuFanoutHandled(it) {
		return
	}
	g.moveToReg(it, g.lockFreeReg(it.Value(), it.Type()), false)
}

// loadItemHint places it in a register, preferably the one of hint.
func (g *Generator) loadItemHint(it, hint *items.Item) {
	g.update(it)
	g.setMayNotSpill(it)
	if it.IsRegister() && !g.mustCopyRegister(it) {
		g.checkFloatRegister(it)
		return
	}
	if g.fpuFanoutHandled(it) {
		return
	}
	var reg regfile.RInfo
	if g.usableHint(hint, it.Type()) {
		reg = hint.RInfo()
		g.ra.Lock(reg, it.Value(), 1)
	} else {
		reg = g.lockFreeReg(it.Value(), it.Type())
	}
	g.moveToReg(it, reg, false)
}

// loadItemForce places it in reg.
func (g *Generator) loadItemForce(it *items.Item, reg regfile.RInfo) {
	g.checkForSpill(it, reg)
	g.update(it)
	if it.IsRegister() && it.RInfo() == reg && !g.mustCopyRegister(it) {
		g.setMayNotSpill(it)
		return
	}
	// Evicting the occupants of reg may spill the value of it itself.
	g.lockSpillReg(reg, it.Value(), 1)
	g.update(it)
	g.setMayNotSpill(it)
	g.moveToReg(it, reg, false)
}

// loadByteItem places it in a register with an addressable low byte.
func (g *Generator) loadByteItem(it *items.Item) {
	g.update(it)
	g.setMayNotSpill(it)
	if it.IsRegister() && regfile.ByteRegs.ContainsReg(it.RInfo()) && !g.mustCopyRegister(it) {
		return
	}
	util.Assert(!it.Type().IsFloatKind(), "cannot load %s into a byte register", it)
	g.moveToReg(it, g.lockFreeRegMasked(it.Value(), regfile.ByteRegs), false)
}

// dontLoadItem leaves it where it is, copying a floating point register the user would destroy.
func (g *Generator) dontLoadItem(it *items.Item) {
	g.update(it)
	g.setMayNotSpill(it)
	if it.IsRegister() && it.DestroysRegister() {
		g.checkFloatRegister(it)
	}
}
