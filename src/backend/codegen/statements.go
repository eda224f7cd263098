package codegen

import (
	"c1gen/src/backend/emit"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// keyRange is a run of consecutive lookup switch keys branching to the same block.
type keyRange struct {
	lo, hi int
	sux    *hir.Block
}

// ---------------------
// ----- Constants -----
// ---------------------

// Scratch registers reserved by allocation slow cases.
const (
	newInstanceTemps    = 4
	newTypeArrayTemps   = 3
	newObjectArrayTemps = 3
)

// ---------------------
// ----- Functions -----
// ---------------------

// ----- Stores -----

func (g *Generator) doStoreLocal(x *hir.Instruction, op *hir.StoreLocal) {
	g.setNoResult(x)
	if g.isShortStore(op) {
		g.doShortStore(x, op)
		return
	}
	value := g.floatOperand(op.Value, items.NewHint(op.Value.Type()))
	if !value.IsConstant() {
		g.loadItem(value)
		g.freeReg(value)
	}
	if reg := g.cachedLocal(op.Index); reg.IsValid() {
		g.em.ItemToReg(regItem(op.Value, reg), value)
		return
	}
	g.em.ItemToLocal(op.Index, value)
}

// isShortStore returns true for i = i + y and i = i - y on a cached int local, computed in place.
func (g *Generator) isShortStore(op *hir.StoreLocal) bool {
	v := op.Value
	a, ok := v.Op().(*hir.ArithmeticOp)
	if !ok || v.IsRoot() || v.Type() != types.Int || (a.Op != types.Add && a.Op != types.Sub) {
		return false
	}
	if _, ok := a.X.Op().(*hir.LoadLocal); !ok || a.X.LocalIndex() != op.Index {
		return false
	}
	return g.cachedLocal(op.Index).IsValid()
}

// doShortStore updates the cache register of the stored local directly.
func (g *Generator) doShortStore(x *hir.Instruction, op *hir.StoreLocal) {
	v := op.Value
	a := v.Op().(*hir.ArithmeticOp)
	g.visited.Add(v)

	right := g.operand(a.Y, items.NoHint())
	left := g.destroyed(a.X, items.NoHint())
	g.dontLoadItem(right)
	g.dontLoadItem(left)
	g.freeItem(right)
	g.freeItem(left)

	dst := items.NewRegHint(types.Int, g.cachedLocal(op.Index), true)
	if right.IsConstant() {
		code := emit.OpInc
		if a.Op == types.Sub {
			code = emit.OpDec
		}
		g.em.Emit(&emit.Instr{Code: code, Result: dst, Aux: right.IntConstant(), Bci: x.Bci()})
		return
	}
	g.em.Emit(&emit.Instr{
		Code:   emit.ArithmeticCode(a.Op),
		Result: dst,
		Args:   []*items.Item{dst, right},
		Bci:    x.Bci(),
	})
}

func (g *Generator) doStoreIndexed(x *hir.Instruction, op *hir.StoreIndexed) {
	objStore := op.Elem.IsOop()
	array := items.New(op.Array)
	array.SetDestroysRegister(objStore)
	g.walk(array, items.NoHint())
	index := g.operand(op.Index, items.NoHint())
	value := g.floatOperand(op.Value, items.NoHint())

	g.loadItem(array)
	if !index.IsConstant() {
		g.loadItem(index)
	}
	mustLoad := !value.IsConstant() || objStore || op.Elem == types.Short || op.Elem == types.Char
	switch {
	case !mustLoad:
	case op.Elem == types.Byte || op.Elem == types.Boolean:
		g.loadByteItem(value)
	default:
		g.loadItem(value)
	}
	var oops []regfile.RInfo
	if objStore {
		oops = g.ra.OopsInRegisters()
	}

	tmp1 := g.hideRegOf(types.Object)
	tmp2 := g.hideRegOf(types.Object)
	g.freeItem(index)
	g.freeItem(value)
	g.freeReg(array)
	g.showReg(tmp1)
	g.showReg(tmp2)
	g.setNoResult(x)

	g.explicitNullCheck(x, array)
	g.emitRangeCheck(x, array, index)
	if objStore && !value.IsConstant() {
		g.em.Emit(&emit.Instr{
			Code:    emit.OpArrayStoreCheck,
			Args:    []*items.Item{array, value},
			Temps:   []regfile.RInfo{tmp1, tmp2},
			OopRegs: oops,
			Bci:     x.Bci(),
		})
	}
	g.em.Emit(&emit.Instr{
		Code: emit.OpStoreIndexed,
		Args: []*items.Item{array, index, value},
		Aux:  arrayBaseOffset,
		Elem: op.Elem,
		Bci:  x.Bci(),
	})
}

func (g *Generator) doStoreField(x *hir.Instruction, op *hir.StoreField) {
	obj := items.New(op.Obj)
	obj.SetDestroysRegister(op.Value.Type() == types.Object)
	g.walk(obj, items.NoHint())
	value := g.floatOperand(op.Value, items.NoHint())

	g.loadItem(obj)
	var temps []regfile.RInfo
	switch {
	case op.Loaded && value.IsStack() && value.Type().IsFloatKind():
		// Memory to memory copy through integer registers.
		typ := types.Int
		if value.Type() == types.Double {
			typ = types.Long
		}
		temps = append(temps, g.getFreeReg(typ))
	case !value.IsConstant() || !op.Loaded:
		g.loadItem(value)
	default:
		g.dontLoadItem(value)
	}
	oops := g.patchOops(op.Loaded)
	g.freeItem(value)
	g.freeReg(obj)
	g.setNoResult(x)

	if !op.Static {
		g.explicitNullCheck(x, obj)
	}
	g.em.Emit(&emit.Instr{
		Code:    emit.OpStoreField,
		Args:    []*items.Item{obj, value},
		Temps:   temps,
		Aux:     int64(op.Offset),
		Elem:    op.Field,
		OopRegs: oops,
		Bci:     x.Bci(),
	})
}

func (g *Generator) doNullCheck(x *hir.Instruction, op *hir.NullCheck) {
	obj := g.operand(op.Obj, items.NoHint())
	g.loadItem(obj)
	g.freeItem(obj)
	g.setNoResult(x)
	if g.itemMayBeNull(obj) {
		g.em.Emit(&emit.Instr{Code: emit.OpNullCheck, Args: []*items.Item{obj}, Bci: x.Bci()})
	}
}

// ----- Calls and allocation -----

// pushArgument pushes a call argument onto the machine stack.
func (g *Generator) pushArgument(it *items.Item) {
	if it.Type() == types.Long {
		g.loadItem(it)
	} else {
		g.dontLoadItem(it)
	}
	g.freeItem(it)
	g.em.PushItem(it)
}

// doInvoke generates a call. Arguments are pushed left to right, the receiver first, and the receiver is passed in
// ecx as well. No register survives the call.
func (g *Generator) doInvoke(x *hir.Instruction, op *hir.Invoke) {
	var recv *items.Item
	if op.Receiver != nil {
		hint := items.NewRegHint(types.Object, regfile.Recv, false)
		recv = g.destroyed(op.Receiver, hint)
		args := make([]*items.Item, len(op.Args))
		for i1, e1 := range op.Args {
			args[i1] = items.New(e1)
			args[i1].HandleFloatKind()
			g.walk(args[i1], items.NoHint())
		}

		g.loadItemHint(recv, hint)
		g.freeReg(recv)
		g.explicitNullCheck(x, recv)
		g.em.PushItem(recv)
		reg := g.hideReg(recv.RInfo(), false)
		for _, e1 := range args {
			g.pushArgument(e1)
		}
		g.showReg(reg)
	} else {
		for _, e1 := range op.Args {
			g.pushArgument(g.floatOperand(e1, items.NoHint()))
		}
	}

	g.ra.SetLockingLocked(true)
	g.spillAll()
	g.ra.SetLockingLocked(false)
	util.Assert(g.ra.AllRegsFree(), "registers live across call to %s: %s", op.Target, g.ra)

	if recv != nil {
		if recv.RInfo() != regfile.Recv {
			g.em.ItemToReg(regItem(op.Receiver, regfile.Recv), recv)
			recv.SetRInfo(regfile.Recv, false)
		}
		// A call to a method that may be overridden faults on a null receiver by itself.
		needsCheck := op.Code == types.InvokeSpecial || !op.Loaded || op.Final
		if g.ctx.Opt.ImplicitNullChecks && needsCheck && g.itemMayBeNull(recv) {
			g.em.Emit(&emit.Instr{Code: emit.OpNullCheck, Args: []*items.Item{recv}, Bci: x.Bci()})
		}
	}

	var res *items.Item
	if x.Type() == types.Void {
		g.setNoResult(x)
	} else {
		g.setResult(g.lockResultReg(x))
		res = g.result
	}
	g.em.Emit(&emit.Instr{
		Code:   emit.OpCall,
		Result: res,
		Name:   op.Target,
		Aux:    int64(op.Code),
		Words:  op.ArgSize(),
		Bci:    x.Bci(),
	})
	if x.Type().IsFloatKind() {
		g.em.SetFpuResult(g.result.RInfo())
	}
}

// hideTemps reserves n scratch registers for a slow case and releases them again. The registers are free after the
// call but must not be handed out while the instruction is generated.
func (g *Generator) hideTemps(n int) []regfile.RInfo {
	temps := make([]regfile.RInfo, n)
	for i1 := range temps {
		temps[i1] = g.hideRegOf(types.Object)
	}
	for _, e1 := range temps {
		g.showReg(e1)
	}
	return temps
}

// lockAllocation locks the result register of an allocation, which is the only live register.
func (g *Generator) lockAllocation(x *hir.Instruction) {
	util.Assert(g.ra.AllRegsFree(), "registers live across allocation %s: %s", x.Name(), g.ra)
	reg := regfile.ResultReg(x.Type())
	g.ra.Lock(reg, x, x.UseCount())
	g.setResult(reg)
}

func (g *Generator) doNewInstance(x *hir.Instruction, op *hir.NewInstance) {
	g.spillAll()
	g.lockAllocation(x)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpNewInstance,
		Result: g.result,
		Temps:  g.hideTemps(newInstanceTemps),
		Name:   op.Klass,
		Bci:    x.Bci(),
	})
}

func (g *Generator) doNewTypeArray(x *hir.Instruction, op *hir.NewTypeArray) {
	g.spillAll()
	length := g.operand(op.Length, items.NoHint())
	g.loadItem(length)
	g.freeReg(length)
	g.lockAllocation(x)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpNewTypeArray,
		Result: g.result,
		Args:   []*items.Item{length},
		Temps:  g.hideTemps(newTypeArrayTemps),
		Elem:   op.Elem,
		Bci:    x.Bci(),
	})
}

func (g *Generator) doNewObjectArray(x *hir.Instruction, op *hir.NewObjectArray) {
	g.spillAll()
	length := g.operand(op.Length, items.NoHint())
	g.loadItem(length)
	g.freeReg(length)
	g.lockAllocation(x)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpNewObjectArray,
		Result: g.result,
		Args:   []*items.Item{length},
		Temps:  g.hideTemps(newObjectArrayTemps),
		Name:   op.Klass,
		Bci:    x.Bci(),
	})
}

// doNewMultiArray pushes the dimensions, the innermost first, and allocates through the runtime, which pops them.
func (g *Generator) doNewMultiArray(x *hir.Instruction, op *hir.NewMultiArray) {
	g.spillAll()
	for i1 := len(op.Dims) - 1; i1 >= 0; i1-- {
		size := g.operand(op.Dims[i1], items.NoHint())
		g.loadItem(size)
		g.freeReg(size)
		g.em.PushItem(size)
	}
	g.lockAllocation(x)
	tmp := g.getFreeReg(types.Int)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpNewMultiArray,
		Result: g.result,
		Temps:  []regfile.RInfo{tmp},
		Name:   op.Klass,
		Aux:    int64(len(op.Dims)),
		Words:  len(op.Dims),
		Bci:    x.Bci(),
	})
}

func (g *Generator) doCheckCast(x *hir.Instruction, op *hir.CheckCast) {
	g.spillAll()
	obj := g.destroyed(op.Obj, items.NoHint())
	g.loadItem(obj)
	g.setResult(g.lockReg(x))
	tmp := g.getFreeReg(types.Object)
	g.freeReg(obj)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpCheckCast,
		Result: g.result,
		Args:   []*items.Item{obj},
		Temps:  []regfile.RInfo{tmp},
		Name:   op.Klass,
		Bci:    x.Bci(),
	})
}

func (g *Generator) doInstanceOf(x *hir.Instruction, op *hir.InstanceOf) {
	g.spillAll()
	obj := g.destroyed(op.Obj, items.NoHint())
	g.setResult(g.lockReg(x))
	g.loadItem(obj)
	tmp := g.getFreeReg(types.Object)
	g.freeReg(obj)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpInstanceOf,
		Result: g.result,
		Args:   []*items.Item{obj},
		Temps:  []regfile.RInfo{tmp},
		Name:   op.Klass,
		Bci:    x.Bci(),
	})
}

// doMonitor locks or unlocks the monitor of obj in monitor slot monitorNo.
func (g *Generator) doMonitor(x, obj *hir.Instruction, monitorNo int, code emit.Opcode) {
	g.spillAll()
	g.lockSpillReg(regfile.SyncTmp, nil, 1)
	it := g.operand(obj, items.NoHint())
	g.loadItem(it)
	lock := g.getFreeReg(types.Int)
	g.freeReg(it)
	g.ra.Free(regfile.SyncTmp)
	util.Assert(g.ra.AllRegsFree(), "registers live across monitor operation: %s", g.ra)
	g.setNoResult(x)

	if code == emit.OpMonitorEnter {
		g.explicitNullCheck(x, it)
	}
	g.em.Emit(&emit.Instr{
		Code:  code,
		Args:  []*items.Item{it},
		Temps: []regfile.RInfo{lock, regfile.SyncTmp},
		Aux:   int64(monitorNo),
		Bci:   x.Bci(),
	})
}

// ----- Loops -----

// cachedType returns the type of local index cached by bi.
func cachedType(bi *items.BlockItem, index int) types.ValueType {
	if bi.IsOop(index) {
		return types.Object
	}
	return types.Int
}

// doLoopEnter loads the cached locals of the loop into their registers and switches the precision of the FPU.
func (g *Generator) doLoopEnter(x *hir.Instruction) {
	g.setNoResult(x)
	bi := g.ctx.current()
	emitted := false
	if bi != nil && bi.Is32bitPrecision() {
		g.em.Emit(&emit.Instr{Code: emit.OpSetPrecision32, Bci: x.Bci()})
		emitted = true
	}
	if bi != nil {
		for i1 := bi.Len() - 1; i1 >= 0; i1-- {
			if reg := bi.CacheReg(i1); reg.IsValid() {
				g.em.LocalToReg(cachedType(bi, i1), i1, reg)
				emitted = true
			}
		}
	}
	if !emitted {
		g.em.Emit(&emit.Instr{Code: emit.OpNop, Bci: x.Bci()})
	}
}

// doLoopExit writes the cached locals of the loop back to their frame slots.
func (g *Generator) doLoopExit(x *hir.Instruction) {
	g.setNoResult(x)
	bi := g.ctx.current()
	emitted := false
	if bi != nil && bi.Is32bitPrecision() {
		g.em.Emit(&emit.Instr{Code: emit.OpRestorePrecision, Bci: x.Bci()})
		emitted = true
	}
	if bi != nil {
		for i1 := bi.Len() - 1; i1 >= 0; i1-- {
			if reg := bi.CacheReg(i1); reg.IsValid() {
				g.em.RegToLocal(cachedType(bi, i1), reg, i1)
				emitted = true
			}
		}
	}
	if !emitted {
		g.em.Emit(&emit.Instr{Code: emit.OpNop, Bci: x.Bci()})
	}
}

// ----- Block ends -----

// jump emits an unconditional jump to sux.
func (g *Generator) jump(x *hir.Instruction, sux *hir.Block) {
	backward := g.isBackward(sux)
	in := &emit.Instr{Code: emit.OpJump, Targets: []*hir.Block{sux}, Backward: backward, Bci: x.Bci()}
	if backward {
		in.OopRegs = g.oopRegs()
	}
	g.em.Emit(in)
}

// gotoDefault jumps to sux unless it is laid out right after the current block.
func (g *Generator) gotoDefault(x *hir.Instruction, sux *hir.Block) {
	if sux.Index() != g.ctx.Block.Index()+1 {
		g.jump(x, sux)
	}
}

func (g *Generator) doGoto(x *hir.Instruction, op *hir.Goto) {
	g.setNoResult(x)
	g.moveToPhi(op.State)
	if g.isBackward(op.Sux) && op.Sux == g.ctx.Block {
		// Room for patching the safepoint of a self loop.
		g.em.Emit(&emit.Instr{Code: emit.OpNop, Bci: x.Bci()})
	}
	g.gotoDefault(x, op.Sux)
}

func (g *Generator) doIf(x *hir.Instruction, op *hir.If) {
	tag := op.X.Type()
	cond := op.Cond
	left, right := g.compareOperands(tag, op.X, op.Y)
	if tag == types.Long && (cond == types.Gt || cond == types.Le) {
		cond = cond.Mirror()
		left, right = right, left
		left.SetDestroysRegister(true)
		right.SetDestroysRegister(false)
	}

	g.loadItem(left)
	if tag == types.Long || tag.IsFloatKind() {
		g.loadItem(right)
	} else {
		g.dontLoadItem(right)
	}
	g.freeReg(left)
	g.freeItem(right)
	g.setNoResult(x)

	g.em.Emit(&emit.Instr{Code: emit.OpCmp, Args: []*items.Item{left, right}, Cond: cond, Bci: x.Bci()})
	g.moveToPhi(op.State)
	branch := &emit.Instr{
		Code:     emit.OpBranch,
		Cond:     cond,
		Targets:  []*hir.Block{op.TSux},
		Backward: g.isBackward(op.TSux),
		Bci:      x.Bci(),
	}
	if branch.Backward {
		branch.OopRegs = g.oopRegs()
	}
	g.em.Emit(branch)
	g.gotoDefault(x, op.FSux)
}

// switchTag loads the tag of a switch and moves the entry stack of the successors into place. The tag survives the
// phi moves on the machine stack.
func (g *Generator) switchTag(x, tagX *hir.Instruction, state []*hir.Instruction) *items.Item {
	tag := g.operand(tagX, items.NoHint())
	g.loadItem(tag)
	g.freeReg(tag)
	g.setNoResult(x)
	if len(state) == 0 {
		return tag
	}
	g.em.PushItem(tag)
	g.moveToPhi(state)
	reg := g.hideReg(regfile.NoRet, false)
	tag.SetRInfo(reg, false)
	g.em.PopItem(tag)
	g.showReg(reg)
	return tag
}

// switchBranch emits in, a conditional branch to sux.
func (g *Generator) switchBranch(in *emit.Instr, sux *hir.Block) {
	in.Targets = []*hir.Block{sux}
	if in.Backward = g.isBackward(sux); in.Backward {
		in.OopRegs = g.oopRegs()
	}
	g.em.Emit(in)
}

func (g *Generator) doTableSwitch(x *hir.Instruction, op *hir.TableSwitch) {
	tag := g.switchTag(x, op.Tag, op.State)
	for i1, e1 := range op.Sux {
		g.switchBranch(&emit.Instr{
			Code: emit.OpSwitchCase,
			Args: []*items.Item{tag},
			Aux:  int64(op.LoKey + i1),
			Bci:  x.Bci(),
		}, e1)
	}
	g.jump(x, op.Default)
}

// keyRanges merges consecutive keys with the same successor.
func keyRanges(op *hir.LookupSwitch) []keyRange {
	var res []keyRange
	for i1, e1 := range op.Keys {
		if n := len(res); n > 0 && res[n-1].sux == op.Sux[i1] && res[n-1].hi+1 == e1 {
			res[n-1].hi = e1
			continue
		}
		res = append(res, keyRange{lo: e1, hi: e1, sux: op.Sux[i1]})
	}
	return res
}

func (g *Generator) doLookupSwitch(x *hir.Instruction, op *hir.LookupSwitch) {
	tag := g.switchTag(x, op.Tag, op.State)
	for _, e1 := range keyRanges(op) {
		in := &emit.Instr{Code: emit.OpSwitchRange, Args: []*items.Item{tag}, Aux: int64(e1.lo), Aux2: int64(e1.hi), Bci: x.Bci()}
		if e1.lo == e1.hi {
			in.Code = emit.OpSwitchCase
		}
		g.switchBranch(in, e1.sux)
	}
	g.jump(x, op.Default)
}

// receiverItem returns the placement of the receiver, its cache register if it is cached.
func (g *Generator) receiverItem() *items.Item {
	if reg := g.cachedLocal(0); reg.IsValid() {
		return items.NewRegHint(types.Object, reg, true)
	}
	it := items.NewHint(types.Object)
	it.SetStack(0)
	return it
}

// monitorExitOnReturn releases the monitor of a synchronized method, held in monitor slot 0.
func (g *Generator) monitorExitOnReturn(x *hir.Instruction) {
	g.em.Emit(&emit.Instr{
		Code:  emit.OpMonitorExit,
		Args:  []*items.Item{g.receiverItem()},
		Temps: []regfile.RInfo{regfile.SyncTmp},
		Bci:   x.Bci(),
	})
}

func (g *Generator) doReturn(x *hir.Instruction, op *hir.Return) {
	g.setNoResult(x)
	m := g.ctx.Method
	if op.Value == nil {
		if m.IsSynchronized() {
			g.monitorExitOnReturn(x)
		}
		g.em.Emit(&emit.Instr{Code: emit.OpReturn, Bci: x.Bci()})
		return
	}

	typ := op.Value.Type()
	reg := regfile.ResultReg(typ)
	hint := items.NewRegHint(typ, reg, false)
	hint.SetRound32(typ == types.Float)
	res := g.floatOperand(op.Value, hint)

	isLocal0 := !m.IsStatic() && op.Value.LocalIndex() == 0
	cachedRecv := isLocal0 && res.IsRegister() && res.IsCached()
	if cachedRecv {
		g.loadItem(res)
		g.freeItem(res)
	}
	if m.IsSynchronized() {
		// The monitor exit clobbers eax.
		if res.IsRegister() && !cachedRecv {
			g.evict(res, res.RInfo())
		}
		g.lockSpillReg(regfile.SyncTmp, nil, 1)
		g.ra.Free(regfile.SyncTmp)
		g.monitorExitOnReturn(x)
	}

	if cachedRecv {
		g.em.LocalToReg(types.Object, 0, reg)
		res = regItem(op.Value, reg)
	} else {
		g.loadItemForce(res, reg)
		g.freeReg(res)
	}
	g.em.Emit(&emit.Instr{Code: emit.OpReturn, Args: []*items.Item{res}, Bci: x.Bci()})
	util.Assert(g.em.IsFpuStackEmpty(), "floating point stack not empty at return: %d", g.em.FpuDepth())
}

// discard consumes an operand nobody reads.
func (g *Generator) discard(it *items.Item) {
	g.dontLoadItem(it)
	if it.IsRegister() && it.Type().IsFloatKind() {
		g.em.RemoveFpuResult(it.RInfo())
	}
	g.freeItem(it)
}

func (g *Generator) doThrow(x *hir.Instruction, op *hir.Throw) {
	for _, e1 := range op.State {
		if e1.IsRoot() {
			if m := g.memo[e1]; m != nil && m.HasResult() {
				it := items.New(e1)
				it.SetFromItem(m)
				g.discard(it)
			}
			continue
		}
		g.discard(g.operand(e1, items.NoHint()))
	}

	exc := g.operand(op.Exception, items.NoHint())
	g.loadItem(exc)
	g.freeReg(exc)
	g.setNoResult(x)
	g.explicitNullCheck(x, exc)
	g.em.Emit(&emit.Instr{Code: emit.OpThrow, Args: []*items.Item{exc}, Bci: x.Bci()})
	util.Assert(g.ra.AllFree(), "values live at throw: %s", g.ra)
	util.Assert(g.em.IsFpuStackEmpty(), "floating point stack not empty at throw: %d", g.em.FpuDepth())
}

func (g *Generator) doJsr(x *hir.Instruction, op *hir.Jsr) {
	g.setNoResult(x)
	g.moveToPhi(op.State)
	g.em.Emit(&emit.Instr{Code: emit.OpJsr, Targets: []*hir.Block{op.Sub}, Aux: int64(op.Sub.Bci()), Bci: x.Bci()})
}

// doJsrContinuation records the source position of a subroutine return point.
func (g *Generator) doJsrContinuation(x *hir.Instruction) {
	g.setNoResult(x)
	g.em.Emit(&emit.Instr{Code: emit.OpNop, Bci: x.Bci()})
}

func (g *Generator) doRet(x *hir.Instruction, op *hir.Ret) {
	g.setNoResult(x)
	in := &emit.Instr{Code: emit.OpRet, Aux: int64(op.Index), Bci: x.Bci()}
	if reg := g.cachedLocal(op.Index); reg.IsValid() {
		in.Temps = []regfile.RInfo{reg}
	}
	g.em.Emit(in)
}
