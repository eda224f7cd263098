package hir

import (
	"fmt"
	"strings"

	"c1gen/src/ir/hir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Block defines a basic block. A basic block is a sequence of instructions terminated by a block end.
type Block struct {
	m        *Method        // Parent method that owns the basic block.
	id       int            // Unique identifier of basic block.
	bci      int            // Position of the first instruction in the source instruction stream.
	index    int            // Position of the block in the layout order.
	phis     []*Instruction // Entry stack, bottom first.
	instrs   []*Instruction // Instructions in evaluation order, the block end last.
	end      *Instruction   // Terminating instruction.
	preds    []*Block       // Predecessor blocks.
	handlers []*Block       // Exception handlers covering the block.
	handler  bool           // True if the block is an exception handler entry.
}

// ---------------------
// ----- Constants -----
// ---------------------

// labelBlockPrefix defines the textual representation of a basic block label.
const labelBlockPrefix = "B"

// Prefixes of generated instruction names.
const (
	labelValuePrefix = "v"
	labelPhiPrefix   = "phi"
	labelStmtPrefix  = "s"
)

// ---------------------
// ----- functions -----
// ---------------------

// Id returns the uniquely assigned identifier of Block b.
func (b *Block) Id() int {
	return b.id
}

// Name returns the label name of Block b.
func (b *Block) Name() string {
	return fmt.Sprintf("%s%d", labelBlockPrefix, b.id)
}

// Bci returns the position of the first instruction of b in the source instruction stream.
func (b *Block) Bci() int {
	return b.bci
}

// Index returns the layout position of Block b.
func (b *Block) Index() int {
	return b.index
}

// Method returns the method that owns Block b.
func (b *Block) Method() *Method {
	return b.m
}

// Phis returns the entry stack of Block b, bottom first.
func (b *Block) Phis() []*Instruction {
	return b.phis
}

// StackSize returns the number of words on the entry stack of Block b.
func (b *Block) StackSize() int {
	return StackSize(b.phis)
}

// Instructions returns the instructions of b in evaluation order, including the block end.
func (b *Block) Instructions() []*Instruction {
	return b.instrs
}

// End returns the terminating instruction of Block b, or nil if b is not terminated.
func (b *Block) End() *Instruction {
	return b.end
}

// EndOp returns the terminating operation of Block b, or nil if b is not terminated.
func (b *Block) EndOp() BlockEnd {
	if b.end == nil {
		return nil
	}
	return b.end.op.(BlockEnd)
}

// Successors returns the successor blocks of b.
func (b *Block) Successors() []*Block {
	if b.end == nil {
		return nil
	}
	return b.EndOp().Successors()
}

// Predecessors returns the predecessor blocks of b. Computed when the method is sealed.
func (b *Block) Predecessors() []*Block {
	return b.preds
}

// Handlers returns the exception handler entries covering b.
func (b *Block) Handlers() []*Block {
	return b.handlers
}

// AddHandler registers h as an exception handler covering b.
func (b *Block) AddHandler(h *Block) {
	h.handler = true
	b.handlers = append(b.handlers, h)
	b.m.hasHandlers = true
}

// IsExceptionEntry returns true if b is the entry of an exception handler.
func (b *Block) IsExceptionEntry() bool {
	return b.handler
}

// SetExceptionEntry marks b as the entry of an exception handler.
func (b *Block) SetExceptionEntry() {
	b.handler = true
	b.m.hasHandlers = true
}

// IsAfter returns true if dst does not follow b in the layout order, that is a branch from b to dst is backward.
func (b *Block) IsAfter(dst *Block) bool {
	return dst.index <= b.index
}

// String returns the textual representation of all instructions in Block b.
func (b *Block) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s:", b.Name()))
	if b.handler {
		sb.WriteString(" ; handler")
	}
	sb.WriteRune('\n')
	for _, e1 := range b.phis {
		sb.WriteString(fmt.Sprintf("\t%s %s = phi %d ; uses=%d\n", e1.typ, e1.name, e1.op.(*Phi).Index, e1.uses))
	}
	for _, e1 := range b.instrs {
		sb.WriteRune('\t')
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	if b.end == nil {
		sb.WriteString(fmt.Sprintf("// Error: basic block %s is not terminated.\n", b.Name()))
	}
	return sb.String()
}

// add links instruction x into Block b and counts the uses of its operands.
func (b *Block) add(typ types.ValueType, op Op, pinned bool) *Instruction {
	if b.end != nil {
		panic(fmt.Sprintf("method %s, block %s: cannot add instructions after the block end", b.m.name, b.Name()))
	}
	x := &Instruction{
		id:     b.m.getId(),
		bci:    b.m.nextBci(),
		typ:    typ,
		pinned: pinned,
		op:     op,
		block:  b,
	}
	if typ == types.Void {
		x.name = fmt.Sprintf("%s%d", labelStmtPrefix, x.id)
	} else {
		x.name = fmt.Sprintf("%s%d", labelValuePrefix, x.id)
	}
	for _, e1 := range op.Operands() {
		if e1 == nil {
			panic(fmt.Sprintf("method %s, block %s: nil operand to %s", b.m.name, b.Name(), opName(op)))
		}
		if e1.block != b {
			panic(fmt.Sprintf("method %s, block %s: operand %s is defined in block %s, use a phi instead",
				b.m.name, b.Name(), e1.name, e1.block.Name()))
		}
		e1.uses++
		e1.users = append(e1.users, x)
	}
	b.instrs = append(b.instrs, x)
	if _, ok := op.(BlockEnd); ok {
		b.end = x
	}
	return x
}

// expect panics if x does not have type typ.
func (b *Block) expect(x *Instruction, typ types.ValueType, ctx string) {
	if x == nil {
		panic(fmt.Sprintf("method %s, block %s: missing operand for %s", b.m.name, b.Name(), ctx))
	}
	if x.typ != typ {
		panic(fmt.Sprintf("method %s, block %s: operand %s of %s has type %s, expected %s",
			b.m.name, b.Name(), x.name, ctx, x.typ, typ))
	}
}

// -------------------------
// ----- Entry stack -------
// -------------------------

// CreatePhi pushes a value of type typ onto the entry stack of Block b.
func (b *Block) CreatePhi(typ types.ValueType) *Instruction {
	if typ == types.Void {
		panic(fmt.Sprintf("method %s, block %s: phi cannot be void", b.m.name, b.Name()))
	}
	if len(b.instrs) > 0 {
		panic(fmt.Sprintf("method %s, block %s: phis must be created before instructions", b.m.name, b.Name()))
	}
	x := &Instruction{
		id:     b.m.getId(),
		bci:    b.bci,
		typ:    typ,
		pinned: true,
		op:     &Phi{Index: len(b.phis)},
		block:  b,
	}
	x.name = fmt.Sprintf("%s%d", labelPhiPrefix, x.id)
	b.phis = append(b.phis, x)
	return x
}

// -----------------------------
// ----- Value instructions -----
// -----------------------------

// CreateConstantInt creates an integer constant.
func (b *Block) CreateConstantInt(v int32) *Instruction {
	return b.add(types.Int, &Constant{Int: int64(v)}, false)
}

// CreateConstantLong creates a long constant.
func (b *Block) CreateConstantLong(v int64) *Instruction {
	return b.add(types.Long, &Constant{Int: v}, false)
}

// CreateConstantFloat creates a single precision constant.
func (b *Block) CreateConstantFloat(v float32) *Instruction {
	return b.add(types.Float, &Constant{Float: float64(v)}, false)
}

// CreateConstantDouble creates a double precision constant.
func (b *Block) CreateConstantDouble(v float64) *Instruction {
	return b.add(types.Double, &Constant{Float: v}, false)
}

// CreateConstantNull creates the null reference.
func (b *Block) CreateConstantNull() *Instruction {
	return b.add(types.Object, &Constant{}, false)
}

// CreateLoadLocal reads local variable index of type typ.
func (b *Block) CreateLoadLocal(typ types.ValueType, index int) *Instruction {
	if index < 0 || index+typ.Size() > b.m.maxLocals {
		panic(fmt.Sprintf("method %s, block %s: local %d out of range", b.m.name, b.Name(), index))
	}
	return b.add(typ, &LoadLocal{Index: index}, false)
}

// CreateArithmetic creates x op y. Both operands must have the same type.
func (b *Block) CreateArithmetic(op types.ArithmeticOperation, x, y *Instruction) *Instruction {
	b.expect(x, y.Type(), op.String())
	if x.typ == types.Object || x.typ == types.Address || x.typ == types.Void {
		panic(fmt.Sprintf("method %s, block %s: cannot apply %s to %s", b.m.name, b.Name(), op, x.typ))
	}
	return b.add(x.typ, &ArithmeticOp{Op: op, X: x, Y: y}, false)
}

// CreateAdd creates x + y.
func (b *Block) CreateAdd(x, y *Instruction) *Instruction {
	return b.CreateArithmetic(types.Add, x, y)
}

// CreateSub creates x - y.
func (b *Block) CreateSub(x, y *Instruction) *Instruction {
	return b.CreateArithmetic(types.Sub, x, y)
}

// CreateMul creates x * y.
func (b *Block) CreateMul(x, y *Instruction) *Instruction {
	return b.CreateArithmetic(types.Mul, x, y)
}

// CreateDiv creates x / y.
func (b *Block) CreateDiv(x, y *Instruction) *Instruction {
	return b.CreateArithmetic(types.Div, x, y)
}

// CreateRem creates x % y.
func (b *Block) CreateRem(x, y *Instruction) *Instruction {
	return b.CreateArithmetic(types.Rem, x, y)
}

// CreateShift creates x op y. The shift count y is an int.
func (b *Block) CreateShift(op types.ShiftOperation, x, y *Instruction) *Instruction {
	b.expect(y, types.Int, op.String())
	if x.typ != types.Int && x.typ != types.Long {
		panic(fmt.Sprintf("method %s, block %s: cannot shift %s", b.m.name, b.Name(), x.typ))
	}
	return b.add(x.typ, &ShiftOp{Op: op, X: x, Y: y}, false)
}

// CreateLogic creates the bitwise x op y.
func (b *Block) CreateLogic(op types.LogicOperation, x, y *Instruction) *Instruction {
	b.expect(x, y.Type(), op.String())
	if x.typ != types.Int && x.typ != types.Long {
		panic(fmt.Sprintf("method %s, block %s: cannot apply %s to %s", b.m.name, b.Name(), op, x.typ))
	}
	return b.add(x.typ, &LogicOp{Op: op, X: x, Y: y}, false)
}

// CreateNegate creates -x.
func (b *Block) CreateNegate(x *Instruction) *Instruction {
	if x.typ == types.Object || x.typ == types.Address {
		panic(fmt.Sprintf("method %s, block %s: cannot negate %s", b.m.name, b.Name(), x.typ))
	}
	return b.add(x.typ, &NegateOp{X: x}, false)
}

// CreateCompare creates a three way comparison of x and y.
func (b *Block) CreateCompare(op types.CompareOperation, x, y *Instruction) *Instruction {
	var want types.ValueType
	switch op {
	case types.LCmp:
		want = types.Long
	case types.FCmpL, types.FCmpG:
		want = types.Float
	default:
		want = types.Double
	}
	b.expect(x, want, op.String())
	b.expect(y, want, op.String())
	return b.add(types.Int, &CompareOp{Op: op, X: x, Y: y}, false)
}

// CreateConvert converts v according to op.
func (b *Block) CreateConvert(op types.ConvertOperation, v *Instruction) *Instruction {
	b.expect(v, op.From(), op.String())
	return b.add(op.To(), &Convert{Op: op, Value: v}, false)
}

// CreateIfOp creates (x cond y) ? tval : fval.
func (b *Block) CreateIfOp(x *Instruction, cond types.Condition, y, tval, fval *Instruction) *Instruction {
	b.expect(y, x.Type(), "ifop")
	b.expect(fval, tval.Type(), "ifop")
	if x.typ != types.Int && x.typ != types.Object {
		panic(fmt.Sprintf("method %s, block %s: ifop compares %s, use a compare first", b.m.name, b.Name(), x.typ))
	}
	if tval.typ.IsFloatKind() {
		panic(fmt.Sprintf("method %s, block %s: ifop cannot select %s values", b.m.name, b.Name(), tval.typ))
	}
	return b.add(tval.typ, &IfOp{X: x, Cond: cond, Y: y, TVal: tval, FVal: fval}, false)
}

// CreateArrayLength reads the length of array a.
func (b *Block) CreateArrayLength(a *Instruction) *Instruction {
	b.expect(a, types.Object, "array_length")
	return b.add(types.Int, &ArrayLength{Array: a}, false)
}

// CreateLoadIndexed reads a[i].
func (b *Block) CreateLoadIndexed(a, i *Instruction, elem types.BasicType) *Instruction {
	b.expect(a, types.Object, "load_indexed")
	b.expect(i, types.Int, "load_indexed")
	return b.add(elem.ValueType(), &LoadIndexed{Array: a, Index: i, Elem: elem}, false)
}

// CreateLoadField reads the field at offset words from obj.
func (b *Block) CreateLoadField(obj *Instruction, offset int, field types.BasicType, static, loaded bool) *Instruction {
	b.expect(obj, types.Object, "load_field")
	return b.add(field.ValueType(), &LoadField{Obj: obj, Offset: offset, Field: field, Static: static, Loaded: loaded}, false)
}

// arrayCopyArgs are the operand types of arraycopy: source, source position, destination, destination position and
// length.
var arrayCopyArgs = [...]types.ValueType{types.Object, types.Int, types.Object, types.Int, types.Int}

// CreateIntrinsic creates an inlined call of a math intrinsic on doubles, or an arraycopy statement.
func (b *Block) CreateIntrinsic(id types.IntrinsicID, args ...*Instruction) *Instruction {
	if id == types.ArrayCopy {
		if len(args) != len(arrayCopyArgs) {
			panic(fmt.Sprintf("method %s, block %s: %s takes %d arguments, got %d", b.m.name, b.Name(), id, len(arrayCopyArgs), len(args)))
		}
		for i1, e1 := range args {
			b.expect(e1, arrayCopyArgs[i1], id.String())
		}
		return b.add(types.Void, &Intrinsic{ID: id, Args: args}, true)
	}
	if len(args) != 1 {
		panic(fmt.Sprintf("method %s, block %s: %s takes one argument, got %d", b.m.name, b.Name(), id, len(args)))
	}
	b.expect(args[0], types.Double, id.String())
	return b.add(types.Double, &Intrinsic{ID: id, Args: args}, false)
}

// ---------------------------------
// ----- Statement instructions -----
// ---------------------------------

// CreateStoreLocal writes value v to local variable index.
func (b *Block) CreateStoreLocal(index int, v *Instruction) *Instruction {
	if index < 0 || index+v.Type().Size() > b.m.maxLocals {
		panic(fmt.Sprintf("method %s, block %s: local %d out of range", b.m.name, b.Name(), index))
	}
	return b.add(types.Void, &StoreLocal{Index: index, Value: v}, true)
}

// CreateStoreIndexed writes a[i] = v.
func (b *Block) CreateStoreIndexed(a, i, v *Instruction, elem types.BasicType) *Instruction {
	b.expect(a, types.Object, "store_indexed")
	b.expect(i, types.Int, "store_indexed")
	b.expect(v, elem.ValueType(), "store_indexed")
	return b.add(types.Void, &StoreIndexed{Array: a, Index: i, Value: v, Elem: elem}, true)
}

// CreateStoreField writes v to the field at offset words from obj.
func (b *Block) CreateStoreField(obj, v *Instruction, offset int, field types.BasicType, static, loaded bool) *Instruction {
	b.expect(obj, types.Object, "store_field")
	b.expect(v, field.ValueType(), "store_field")
	return b.add(types.Void, &StoreField{Obj: obj, Value: v, Offset: offset, Field: field, Static: static, Loaded: loaded}, true)
}

// CreateNullCheck traps if obj is null.
func (b *Block) CreateNullCheck(obj *Instruction) *Instruction {
	b.expect(obj, types.Object, "null_check")
	return b.add(types.Void, &NullCheck{Obj: obj}, true)
}

// CreateInvoke calls target with result type typ. The receiver must be nil for static calls.
func (b *Block) CreateInvoke(code types.InvokeCode, typ types.ValueType, target string, recv *Instruction, args ...*Instruction) *Instruction {
	if (code == types.InvokeStatic) != (recv == nil) {
		panic(fmt.Sprintf("method %s, block %s: %s with receiver %v", b.m.name, b.Name(), code, recv != nil))
	}
	if recv != nil {
		b.expect(recv, types.Object, code.String())
	}
	return b.add(typ, &Invoke{Code: code, Receiver: recv, Args: args, Target: target, Loaded: true}, true)
}

// CreateNewInstance allocates an instance of klass.
func (b *Block) CreateNewInstance(klass string) *Instruction {
	return b.add(types.Object, &NewInstance{Klass: klass}, true)
}

// CreateNewTypeArray allocates a primitive array of length elements. Arrays of references are created by
// CreateNewObjectArray.
func (b *Block) CreateNewTypeArray(length *Instruction, elem types.BasicType) *Instruction {
	b.expect(length, types.Int, "newarray")
	if elem.IsOop() {
		panic(fmt.Sprintf("method %s, block %s: newarray of objects", b.m.name, b.Name()))
	}
	return b.add(types.Object, &NewTypeArray{Length: length, Elem: elem}, true)
}

// CreateNewObjectArray allocates an array of length references to instances of klass.
func (b *Block) CreateNewObjectArray(length *Instruction, klass string) *Instruction {
	b.expect(length, types.Int, "anewarray")
	return b.add(types.Object, &NewObjectArray{Length: length, Klass: klass}, true)
}

// CreateNewMultiArray allocates an array of class klass with the given dimensions, outermost first.
func (b *Block) CreateNewMultiArray(klass string, dims ...*Instruction) *Instruction {
	if len(dims) == 0 {
		panic(fmt.Sprintf("method %s, block %s: multianewarray without dimensions", b.m.name, b.Name()))
	}
	for _, e1 := range dims {
		b.expect(e1, types.Int, "multianewarray")
	}
	return b.add(types.Object, &NewMultiArray{Dims: dims, Klass: klass}, true)
}

// CreateCheckCast checks that obj is an instance of klass.
func (b *Block) CreateCheckCast(obj *Instruction, klass string) *Instruction {
	b.expect(obj, types.Object, "checkcast")
	return b.add(types.Object, &CheckCast{Obj: obj, Klass: klass}, true)
}

// CreateInstanceOf tests whether obj is an instance of klass.
func (b *Block) CreateInstanceOf(obj *Instruction, klass string) *Instruction {
	b.expect(obj, types.Object, "instanceof")
	return b.add(types.Int, &InstanceOf{Obj: obj, Klass: klass}, true)
}

// CreateMonitorEnter locks obj.
func (b *Block) CreateMonitorEnter(obj *Instruction, monitorNo int) *Instruction {
	b.expect(obj, types.Object, "monitorenter")
	return b.add(types.Void, &MonitorEnter{Obj: obj, MonitorNo: monitorNo}, true)
}

// CreateMonitorExit unlocks obj.
func (b *Block) CreateMonitorExit(obj *Instruction, monitorNo int) *Instruction {
	b.expect(obj, types.Object, "monitorexit")
	return b.add(types.Void, &MonitorExit{Obj: obj, MonitorNo: monitorNo}, true)
}

// CreateLoopEnter marks the entry edge of loop id.
func (b *Block) CreateLoopEnter(id int) *Instruction {
	return b.add(types.Void, &LoopEnter{LoopID: id}, true)
}

// CreateLoopExit marks an exit edge of loop id.
func (b *Block) CreateLoopExit(id int) *Instruction {
	return b.add(types.Void, &LoopExit{LoopID: id}, true)
}

// -------------------------
// ----- Block ends --------
// -------------------------

// CreateGoto creates an unconditional jump, effectively terminating Block b.
func (b *Block) CreateGoto(sux *Block, state ...*Instruction) *Instruction {
	return b.add(types.Void, &Goto{Sux: sux, State: state}, true)
}

// CreateBranch creates a conditional branch to tsux if x cond y holds and to fsux otherwise.
func (b *Block) CreateBranch(x *Instruction, cond types.Condition, y *Instruction, tsux, fsux *Block, state ...*Instruction) *Instruction {
	b.expect(y, x.Type(), "if")
	return b.add(types.Void, &If{X: x, Cond: cond, Y: y, TSux: tsux, FSux: fsux, State: state}, true)
}

// CreateTableSwitch jumps to sux[tag-loKey] or def.
func (b *Block) CreateTableSwitch(tag *Instruction, loKey int, sux []*Block, def *Block, state ...*Instruction) *Instruction {
	b.expect(tag, types.Int, "tableswitch")
	return b.add(types.Void, &TableSwitch{Tag: tag, LoKey: loKey, Sux: sux, Default: def, State: state}, true)
}

// CreateLookupSwitch jumps to sux[i] where keys[i] equals tag, or def.
func (b *Block) CreateLookupSwitch(tag *Instruction, keys []int, sux []*Block, def *Block, state ...*Instruction) *Instruction {
	b.expect(tag, types.Int, "lookupswitch")
	if len(keys) != len(sux) {
		panic(fmt.Sprintf("method %s, block %s: %d keys for %d successors", b.m.name, b.Name(), len(keys), len(sux)))
	}
	for i1 := 1; i1 < len(keys); i1++ {
		if keys[i1-1] >= keys[i1] {
			panic(fmt.Sprintf("method %s, block %s: lookupswitch keys are not sorted", b.m.name, b.Name()))
		}
	}
	return b.add(types.Void, &LookupSwitch{Tag: tag, Keys: keys, Sux: sux, Default: def, State: state}, true)
}

// CreateReturn creates a return instruction, effectively terminating Block b. Pass nil for void methods.
func (b *Block) CreateReturn(v *Instruction) *Instruction {
	return b.add(types.Void, &Return{Value: v}, true)
}

// CreateThrow raises exc.
func (b *Block) CreateThrow(exc *Instruction, state ...*Instruction) *Instruction {
	b.expect(exc, types.Object, "throw")
	return b.add(types.Void, &Throw{Exception: exc, State: state}, true)
}

// CreateJsrContinuation marks the point a subroutine called by the end of the previous block returns to.
func (b *Block) CreateJsrContinuation() *Instruction {
	return b.add(types.Void, &JsrContinuation{}, true)
}

// CreateJsr calls the subroutine starting at sub.
func (b *Block) CreateJsr(sub *Block, state ...*Instruction) *Instruction {
	return b.add(types.Void, &Jsr{Sub: sub, State: state}, true)
}

// CreateRet returns from a subroutine through the address in local index.
func (b *Block) CreateRet(index int) *Instruction {
	return b.add(types.Void, &Ret{Index: index}, true)
}
