package codegen

import (
	"c1gen/src/backend/emit"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Word offsets into heap objects.
const (
	arrayLengthOffset = 2 // Length field of arrays, after the header.
	arrayBaseOffset   = 3 // First element of arrays.
)

// ---------------------
// ----- Functions -----
// ---------------------

// doLoadLocal places a local in its cache register or leaves it in its frame slot.
func (g *Generator) doLoadLocal(x *hir.Instruction, op *hir.LoadLocal) {
	if reg := g.cachedLocal(op.Index); reg.IsValid() {
		g.result.SetRInfo(reg, true)
		return
	}
	g.result.SetStack(op.Index)
}

func (g *Generator) doArithmetic(x *hir.Instruction, op *hir.ArithmeticOp) {
	switch x.Type() {
	case types.Int:
		if op.Op == types.Div || op.Op == types.Rem {
			g.doIntDivide(x, op)
		} else {
			g.doIntArithmetic(x, op)
		}
	case types.Long:
		switch op.Op {
		case types.Div:
			g.doLongRuntime(x, op, "ldiv", true)
		case types.Rem:
			g.doLongRuntime(x, op, "lrem", true)
		case types.Mul:
			g.doLongRuntime(x, op, "lmul", false)
		default:
			g.doLongArithmetic(x, op)
		}
	default:
		g.doFloatArithmetic(x, op)
	}
}

// doIntDivide generates idiv. The dividend goes to eax, edx is clobbered, and the quotient or remainder is taken
// from eax or edx.
func (g *Generator) doIntDivide(x *hir.Instruction, op *hir.ArithmeticOp) {
	right := g.destroyed(op.Y, items.NoHint())
	left := g.destroyed(op.X, items.NewRegHint(types.Int, regfile.DivIn, false))

	if left.IsRegister() && left.RInfo() == regfile.DivIn && g.ra.RefCount(regfile.DivIn) == 1 && !left.IsCached() {
		g.dontLoadItem(left)
	} else {
		g.loadItemForce(left, regfile.DivIn)
	}
	g.evict(right, regfile.RemOut)
	tmp := g.hideReg(regfile.RemOut, true)
	g.loadItem(right)
	g.freeItem(left)
	g.freeItem(right)
	g.showReg(tmp)

	out, clobbered := regfile.DivOut, regfile.RemOut
	if op.Op == types.Rem {
		out, clobbered = regfile.RemOut, regfile.DivOut
	}
	g.lockSpillReg(out, x, x.UseCount())
	g.setResult(out)

	if !g.ctx.Opt.ImplicitDiv0Checks && !op.Y.IsNonZeroConstant() {
		g.em.Emit(&emit.Instr{Code: emit.OpDivZeroCheck, Args: []*items.Item{right}, Bci: x.Bci()})
	}
	g.em.Emit(&emit.Instr{
		Code:   emit.ArithmeticCode(op.Op),
		Result: g.result,
		Args:   []*items.Item{left, right},
		Temps:  []regfile.RInfo{clobbered},
		Bci:    x.Bci(),
	})
}

// swapCommutative orders the operands of a commutative operation so that a register the user may destroy comes
// first.
func swapCommutative(op types.ArithmeticOperation, left, right *items.Item) (*items.Item, *items.Item) {
	if op.IsCommutative() && (left.IsStack() || left.IsCached()) && right.IsRegister() && !right.IsCached() {
		return right, left
	}
	return left, right
}

func (g *Generator) doIntArithmetic(x *hir.Instruction, op *hir.ArithmeticOp) {
	left := g.operand(op.X, g.hint)
	right := g.operand(op.Y, items.NoHint())
	left, right = swapCommutative(op.Op, left, right)
	left.SetDestroysRegister(true)

	g.loadItemHint(left, g.hint)
	if op.Op == types.Mul {
		g.loadItem(right)
	} else {
		g.dontLoadItem(right)
	}
	g.freeReg(left)
	g.freeItem(right)
	g.setResult(g.lockRegHint(x, g.hint))
	g.emitBinary(x, emit.ArithmeticCode(op.Op), left, right)
}

func (g *Generator) doLongArithmetic(x *hir.Instruction, op *hir.ArithmeticOp) {
	left := g.destroyed(op.X, g.hint)
	right := g.operand(op.Y, items.NoHint())
	g.loadItemHint(left, g.hint)
	g.loadItem(right)
	g.freeReg(left)
	g.freeReg(right)
	g.setResult(g.lockRegHint(x, g.hint))
	g.emitBinary(x, emit.ArithmeticCode(op.Op), left, right)
}

// doLongRuntime calls the runtime routine name with both operands on the machine stack. The result is returned in
// edx:eax.
func (g *Generator) doLongRuntime(x *hir.Instruction, op *hir.ArithmeticOp, name string, zeroCheck bool) {
	left := g.operand(op.X, items.NoHint())
	right := g.destroyed(op.Y, items.NoHint())
	g.loadItem(left)
	g.freeReg(left)
	g.em.PushItem(left)
	g.loadItem(right)
	g.freeReg(right)
	g.em.PushItem(right)

	if zeroCheck && !g.ctx.Opt.ImplicitDiv0Checks && !op.Y.IsNonZeroConstant() {
		g.em.Emit(&emit.Instr{Code: emit.OpDivZeroCheck, Args: []*items.Item{right}, Bci: x.Bci()})
	}
	g.setResult(g.lockResultReg(x))
	g.em.Emit(&emit.Instr{
		Code:   emit.OpRuntimeCall,
		Result: g.result,
		Name:   name,
		Words:  left.Type().Size() + right.Type().Size(),
		Bci:    x.Bci(),
	})
}

func (g *Generator) doFloatArithmetic(x *hir.Instruction, op *hir.ArithmeticOp) {
	round := x.Type() == types.Float
	leftHint := subHint(g.hint, round)
	left := g.destroyed(op.X, leftHint)
	right := g.destroyed(op.Y, subHint(items.NoHint(), round))
	left, right = swapCommutative(op.Op, left, right)

	g.loadItemHint(left, leftHint)
	if right.IsConstant() || op.Op == types.Rem {
		g.loadItem(right)
	} else {
		g.dontLoadItem(right)
	}
	g.freeReg(left)
	g.freeItem(right)
	g.setResult(g.lockRegHint(x, g.hint))
	g.emitBinary(x, emit.ArithmeticCode(op.Op), left, right)
	if g.mustRound(x, g.hint) {
		g.spillItem(g.result)
	}
}

// doArrayCopy generates arraycopy. Its slow case calls the runtime, so no value may stay in a register across it.
// Constant positions stay immediates.
func (g *Generator) doArrayCopy(x *hir.Instruction, op *hir.Intrinsic) {
	g.spillAll()
	args := make([]*items.Item, len(op.Args))
	for i1, e1 := range op.Args {
		args[i1] = g.operand(e1, items.NoHint())
	}
	for i1, e1 := range args {
		if (i1 == 1 || i1 == 3) && e1.IsConstant() {
			g.dontLoadItem(e1)
		} else {
			g.loadItem(e1)
		}
	}
	tmp := g.getFreeReg(types.Int)
	for _, e1 := range args {
		g.freeItem(e1)
	}
	g.setNoResult(x)
	g.em.Emit(&emit.Instr{
		Code:  emit.OpArrayCopy,
		Args:  args,
		Temps: []regfile.RInfo{tmp},
		Bci:   x.Bci(),
	})
}

// emitBinary emits the two operand instruction code computing x.
func (g *Generator) emitBinary(x *hir.Instruction, code emit.Opcode, left, right *items.Item) {
	g.em.Emit(&emit.Instr{Code: code, Result: g.result, Args: []*items.Item{left, right}, Bci: x.Bci()})
}

// doShift generates a shift. A variable count is wanted in ecx.
func (g *Generator) doShift(x *hir.Instruction, op *hir.ShiftOp) {
	value := g.destroyed(op.X, g.hint)
	countHint := items.NewRegHint(types.Int, regfile.ShiftCount, false)
	count := g.operand(op.Y, countHint)

	if !count.IsConstant() || x.Type() == types.Long {
		g.loadItemHint(count, countHint)
	} else {
		g.dontLoadItem(count)
	}
	g.loadItemHint(value, g.hint)

	var temps []regfile.RInfo
	if x.Type() == types.Int && count.IsRegister() && count.RInfo() != regfile.ShiftCount {
		temps = append(temps, g.getFreeReg(types.Int))
	}
	g.freeItem(count)
	g.freeReg(value)
	g.setResult(g.lockRegHint(x, value))
	g.em.Emit(&emit.Instr{
		Code:   emit.ShiftCode(op.Op),
		Result: g.result,
		Args:   []*items.Item{value, count},
		Temps:  temps,
		Bci:    x.Bci(),
	})
}

func (g *Generator) doLogic(x *hir.Instruction, op *hir.LogicOp) {
	left := g.destroyed(op.X, g.hint)
	right := g.operand(op.Y, items.NoHint())
	g.loadItemHint(left, g.hint)
	if right.IsConstant() {
		g.dontLoadItem(right)
	} else {
		g.loadItem(right)
	}
	g.freeReg(left)
	g.freeItem(right)
	g.setResult(g.lockRegHint(x, g.hint))
	g.emitBinary(x, emit.LogicCode(op.Op), left, right)
}

func (g *Generator) doNegate(x *hir.Instruction, op *hir.NegateOp) {
	hint := subHint(g.hint, x.Type() == types.Float)
	value := g.destroyed(op.X, hint)
	g.loadItemHint(value, hint)
	g.freeReg(value)
	g.setResult(g.lockRegHint(x, g.hint))
	g.em.Emit(&emit.Instr{Code: emit.OpNeg, Result: g.result, Args: []*items.Item{value}, Bci: x.Bci()})
	if g.mustRound(x, g.hint) {
		g.spillItem(g.result)
	}
}

// compareOperands walks the operands of a comparison of values of type typ and loads them. Floating point operands
// are popped by the comparison, the left one of long comparisons is overwritten.
func (g *Generator) compareOperands(typ types.ValueType, x, y *hir.Instruction) (*items.Item, *items.Item) {
	round := typ == types.Float
	left := g.operand(x, subHint(items.NoHint(), round))
	right := g.operand(y, subHint(items.NoHint(), round))
	switch {
	case typ.IsFloatKind():
		left.SetDestroysRegister(true)
		right.SetDestroysRegister(true)
	case typ == types.Long:
		left.SetDestroysRegister(true)
	}
	return left, right
}

// doCompare generates the three way comparisons lcmp, fcmpl, fcmpg, dcmpl and dcmpg.
func (g *Generator) doCompare(x *hir.Instruction, op *hir.CompareOp) {
	left, right := g.compareOperands(op.X.Type(), op.X, op.Y)
	g.loadItem(left)
	g.loadItem(right)
	g.freeReg(left)
	g.freeReg(right)
	g.setResult(g.lockRegHint(x, g.hint))
	g.em.Emit(&emit.Instr{
		Code:   emit.OpCompare,
		Result: g.result,
		Args:   []*items.Item{left, right},
		Name:   op.Op.String(),
		Bci:    x.Bci(),
	})
}

func (g *Generator) doConvert(x *hir.Instruction, op *hir.Convert) {
	switch op.Op {
	case types.F2I, types.D2I:
		value := g.operand(op.Value, subHint(items.NoHint(), op.Value.Type() == types.Float))
		value.SetDestroysRegister(true)
		g.loadItem(value)
		g.freeReg(value)
		g.setResult(g.lockResultReg(x))
		g.emitConvert(x, op, value)
	case types.L2F, types.L2D, types.F2L, types.D2L:
		g.doConvertRuntime(x, op)
	default:
		hint := subHint(items.NoHint(), op.Value.Type() == types.Float)
		value := g.floatOperand(op.Value, hint)
		switch {
		case op.Op == types.I2B:
			g.loadByteItem(value)
		case value.IsConstant(), op.Op != types.I2F && op.Op != types.I2D:
			g.loadItem(value)
		default:
			g.dontLoadItem(value)
		}
		g.freeItem(value)
		g.setResult(g.lockReg(x))
		g.emitConvert(x, op, value)
		if op.Op == types.D2F || g.mustRound(x, g.hint) {
			g.spillItem(g.result)
		}
	}
}

// doConvertRuntime converts between long and floating point values by a runtime call taking its operand on the
// machine stack.
func (g *Generator) doConvertRuntime(x *hir.Instruction, op *hir.Convert) {
	value := g.floatOperand(op.Value, items.NoHint())
	g.loadItem(value)
	g.freeReg(value)
	g.setResult(g.lockResultReg(x))
	g.em.PushItem(value)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpRuntimeCall,
		Result: g.result,
		Name:   op.Op.String(),
		Words:  value.Type().Size(),
		Bci:    x.Bci(),
	})
	if x.Type().IsFloatKind() {
		g.em.SetFpuResult(g.result.RInfo())
	}
	if op.Op == types.L2F || op.Op == types.L2D {
		g.spillItem(g.result)
	}
}

func (g *Generator) emitConvert(x *hir.Instruction, op *hir.Convert, value *items.Item) {
	g.em.Emit(&emit.Instr{
		Code:   emit.OpConvert,
		Result: g.result,
		Args:   []*items.Item{value},
		Name:   op.Op.String(),
		Bci:    x.Bci(),
	})
}

// doIfOp generates a conditional select: a comparison followed by a conditional move into the result.
func (g *Generator) doIfOp(x *hir.Instruction, op *hir.IfOp) {
	left, right := g.compareOperands(op.X.Type(), op.X, op.Y)
	g.loadItem(left)
	g.loadItem(right)
	g.freeReg(left)
	g.freeReg(right)
	g.em.Emit(&emit.Instr{Code: emit.OpCmp, Args: []*items.Item{left, right}, Cond: op.Cond, Bci: x.Bci()})

	tval := g.operand(op.TVal, selectHint(op.TVal, g.hint))
	fval := g.operand(op.FVal, selectHint(op.FVal, g.hint))
	g.dontLoadItem(tval)
	g.dontLoadItem(fval)
	if x.Type() == types.Long {
		g.setResult(g.lockReg(x))
		g.freeItem(tval)
		g.freeItem(fval)
	} else {
		g.freeItem(tval)
		g.freeItem(fval)
		g.setResult(g.lockRegHint(x, g.hint))
	}
	g.em.Emit(&emit.Instr{
		Code:   emit.OpSelect,
		Result: g.result,
		Args:   []*items.Item{tval, fval},
		Cond:   op.Cond,
		Bci:    x.Bci(),
	})
}

// selectHint passes the hint of a select on to the chosen values that are cheap to place anywhere.
func selectHint(v *hir.Instruction, hint *items.Item) *items.Item {
	switch v.Op().(type) {
	case *hir.LoadLocal, *hir.Constant:
		return hint
	}
	return items.NoHint()
}

// explicitNullCheck emits a null check of obj unless the memory access faults on null.
func (g *Generator) explicitNullCheck(x *hir.Instruction, obj *items.Item) {
	if !g.ctx.Opt.ImplicitNullChecks && g.itemMayBeNull(obj) {
		g.em.Emit(&emit.Instr{Code: emit.OpNullCheck, Args: []*items.Item{obj}, Bci: x.Bci()})
	}
}

func (g *Generator) doArrayLength(x *hir.Instruction, op *hir.ArrayLength) {
	array := g.operand(op.Array, items.NoHint())
	g.loadItem(array)
	g.freeReg(array)
	g.setResult(g.lockRegHint(x, g.hint))
	g.explicitNullCheck(x, array)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpArrayLength,
		Result: g.result,
		Args:   []*items.Item{array},
		Aux:    arrayLengthOffset,
		Bci:    x.Bci(),
	})
}

// emitRangeCheck compares index against the length of array.
func (g *Generator) emitRangeCheck(x *hir.Instruction, array, index *items.Item) {
	if g.ctx.Opt.RangeChecks {
		g.em.Emit(&emit.Instr{Code: emit.OpRangeCheck, Args: []*items.Item{array, index}, Aux: arrayLengthOffset, Bci: x.Bci()})
	}
}

func (g *Generator) doLoadIndexed(x *hir.Instruction, op *hir.LoadIndexed) {
	array := g.operand(op.Array, items.NoHint())
	index := g.operand(op.Index, items.NoHint())
	g.loadItem(array)
	if !index.IsConstant() {
		g.loadItem(index)
		g.freeReg(index)
	}
	// A long result takes two registers, array must survive until both are locked.
	if x.Type() != types.Long {
		g.freeReg(array)
	}
	g.setResult(g.lockRegHint(x, g.hint))
	if x.Type() == types.Long {
		g.freeReg(array)
	}

	g.explicitNullCheck(x, array)
	g.emitRangeCheck(x, array, index)
	g.em.Emit(&emit.Instr{
		Code:   emit.OpLoadIndexed,
		Result: g.result,
		Args:   []*items.Item{array, index},
		Aux:    arrayBaseOffset,
		Elem:   op.Elem,
		Bci:    x.Bci(),
	})
}

// patchOops returns the registers holding references while an unresolved field access is patched.
func (g *Generator) patchOops(loaded bool) []regfile.RInfo {
	if loaded {
		return nil
	}
	return g.ra.OopsInRegisters()
}

func (g *Generator) doLoadField(x *hir.Instruction, op *hir.LoadField) {
	obj := g.operand(op.Obj, items.NoHint())
	g.loadItem(obj)
	oops := g.patchOops(op.Loaded)
	g.freeReg(obj)
	g.setResult(g.lockRegHint(x, g.hint))
	if !op.Static {
		g.explicitNullCheck(x, obj)
	}
	g.em.Emit(&emit.Instr{
		Code:    emit.OpLoadField,
		Result:  g.result,
		Args:    []*items.Item{obj},
		Aux:     int64(op.Offset),
		Elem:    op.Field,
		OopRegs: oops,
		Bci:     x.Bci(),
	})
}

func (g *Generator) doIntrinsic(x *hir.Instruction, op *hir.Intrinsic) {
	if op.ID == types.ArrayCopy {
		g.doArrayCopy(x, op)
		return
	}
	hint := subHint(g.hint, x.Type() == types.Float)
	arg := g.destroyed(op.Args[0], hint)
	g.loadItemHint(arg, hint)
	g.freeReg(arg)
	g.setResult(g.lockRegHint(x, g.hint))
	g.em.Emit(&emit.Instr{
		Code:   emit.OpIntrinsic,
		Result: g.result,
		Args:   []*items.Item{arg},
		Name:   op.ID.String(),
		Bci:    x.Bci(),
	})
	if g.mustRound(x, g.hint) {
		g.spillItem(g.result)
	}
}
