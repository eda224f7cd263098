package emit

import (
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Emitter forwards instructions to an Encoder while simulating the floating point register stack and the stack
// pointer offset. Every floating point register operand is consumed by the instruction using it, and every floating
// point register result is pushed, except for calls whose results are announced by SetFpuResult.
type Emitter struct {
	enc   Encoder  // Receiver of the instruction stream.
	fpu   fpuStack // Simulated floating point register stack.
	esp   int      // Words pushed onto the machine stack.
	count int      // Number of encoder calls.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewEmitter returns an Emitter writing to enc.
func NewEmitter(enc Encoder) *Emitter {
	util.Assert(enc != nil, "emitter without encoder")
	return &Emitter{enc: enc}
}

// Count returns the number of encoder calls made so far.
func (e *Emitter) Count() int {
	return e.count
}

// EspOffset returns the number of words currently pushed onto the machine stack.
func (e *Emitter) EspOffset() int {
	return e.esp
}

// FpuDepth returns the depth of the floating point register stack.
func (e *Emitter) FpuDepth() int {
	return e.fpu.count
}

// IsFpuStackEmpty returns true if no floating point register is on the stack.
func (e *Emitter) IsFpuStackEmpty() bool {
	return e.fpu.count == 0
}

// ClearFpuStack forgets the floating point register stack. Used at block boundaries.
func (e *Emitter) ClearFpuStack() {
	e.fpu.clear()
}

// ----- Floating point stack -----

// SetFpuResult pushes the floating point result register of a call.
func (e *Emitter) SetFpuResult(reg regfile.RInfo) {
	e.fpu.push(reg.Fpu())
}

// RemoveFpuResult pops and discards the floating point register reg.
func (e *Emitter) RemoveFpuResult(reg regfile.RInfo) {
	e.onTop(reg.Fpu())
	e.fpu.pop(reg.Fpu())
	e.emit(&Instr{Code: OpFpop})
}

// Fpop discards the top of the floating point register stack without tracking a register.
func (e *Emitter) Fpop() {
	e.emit(&Instr{Code: OpFpop})
}

// CopyFpuItem pushes a copy of src into the floating point register of dst. Src stays on the stack.
func (e *Emitter) CopyFpuItem(dst, src *items.Item) {
	if src.IsRegister() {
		e.fpu.depthOf(src.RInfo().Fpu())
	}
	e.fpu.push(dst.RInfo().Fpu())
	e.move(dst, src)
}

// onTop brings register rnr on top of the stack.
func (e *Emitter) onTop(rnr int) {
	if d := e.fpu.bringOnTop(rnr); d > 0 {
		e.emit(&Instr{Code: OpFxch, Aux: int64(d)})
	}
}

// twoOnTop brings register tos0 on top of the stack and register tos1 just below it.
func (e *Emitter) twoOnTop(tos0, tos1 int) {
	if e.fpu.depthOf(tos1) != 1 {
		e.onTop(tos1)
		e.fpu.exchange(1)
		e.emit(&Instr{Code: OpFxch, Aux: 1})
	}
	e.onTop(tos0)
}

// consume brings the floating point register operands of an instruction on top of the stack, the last one on top,
// and pops them.
func (e *Emitter) consume(args []*items.Item) {
	var regs []int
	for _, e1 := range args {
		if e1 != nil && e1.IsRegister() && e1.RInfo().IsFloatKind() {
			regs = append(regs, e1.RInfo().Fpu())
		}
	}
	switch len(regs) {
	case 0:
		return
	case 1:
		e.onTop(regs[0])
	case 2:
		if regs[0] == regs[1] {
			util.Violationf("floating point register f%d used twice by one instruction", regs[0])
		}
		e.twoOnTop(regs[1], regs[0])
	default:
		util.Violationf("%d floating point register operands", len(regs))
	}
	for i1 := len(regs) - 1; i1 >= 0; i1-- {
		e.fpu.pop(regs[i1])
	}
}

// produce pushes a floating point register result.
func (e *Emitter) produce(res *items.Item) {
	if res != nil && res.IsRegister() && res.RInfo().IsFloatKind() {
		e.fpu.push(res.RInfo().Fpu())
	}
}

// ----- Frame and labels -----

// MethodEntry emits the method prolog reserving frame spill slots.
func (e *Emitter) MethodEntry(frame int) {
	e.emit(&Instr{Code: OpMethodEntry, Aux: int64(frame)})
}

// Label binds the label of block b.
func (e *Emitter) Label(b *hir.Block, align bool) {
	e.count++
	e.enc.Label(b, align)
}

// HandlerEntry emits the entry of an exception handler. The exception object arrives in the result register.
func (e *Emitter) HandlerEntry() {
	e.emit(&Instr{Code: OpHandlerEntry})
}

// RestoreCachedReceiver reloads the receiver from local 0 into reg.
func (e *Emitter) RestoreCachedReceiver(reg regfile.RInfo) {
	e.LocalToReg(types.Object, 0, reg)
}

// ----- Moves -----

// ItemToReg loads src into the register of dst.
func (e *Emitter) ItemToReg(dst, src *items.Item) {
	if src.IsRegister() && src.RInfo() == dst.RInfo() {
		return
	}
	if dst.RInfo().IsFloatKind() {
		if src.IsRegister() {
			e.onTop(src.RInfo().Fpu())
			e.fpu.pop(src.RInfo().Fpu())
		}
		e.fpu.push(dst.RInfo().Fpu())
	}
	e.move(dst, src)
}

// ItemToLocal stores src into local variable index.
func (e *Emitter) ItemToLocal(index int, src *items.Item) {
	dst := items.NewHint(src.Type())
	dst.SetStack(index)
	e.consume([]*items.Item{src})
	e.move(dst, src)
}

// LocalToReg loads local variable index of type typ into reg.
func (e *Emitter) LocalToReg(typ types.ValueType, index int, reg regfile.RInfo) {
	src := items.NewHint(typ)
	src.SetStack(index)
	e.ItemToReg(items.NewRegHint(typ, reg, false), src)
}

// RegToLocal stores reg holding a value of type typ into local variable index.
func (e *Emitter) RegToLocal(typ types.ValueType, reg regfile.RInfo, index int) {
	e.ItemToLocal(index, items.NewRegHint(typ, reg, false))
}

// Spill stores the register item src to spill slot slot.
func (e *Emitter) Spill(slot int, src *items.Item) {
	util.Assert(src.IsRegister(), "spilling %s which is not in a register", src)
	e.consume([]*items.Item{src})
	e.count++
	e.enc.Spill(slot, src.Clone())
}

// MoveSpill moves the value of type typ at spill slot from to slot to through register tmp.
func (e *Emitter) MoveSpill(to, from int, typ types.ValueType, tmp regfile.RInfo) {
	src := items.NewHint(typ)
	src.SetSpillIx(from)
	reg := items.NewRegHint(typ, tmp, false)
	e.ItemToReg(reg, src)
	e.Spill(to, reg)
}

// move forwards a move to the encoder.
func (e *Emitter) move(dst, src *items.Item) {
	e.count++
	e.enc.Move(dst.Clone(), src.Clone())
}

// ----- Machine stack -----

// PushItem pushes src onto the machine stack.
func (e *Emitter) PushItem(src *items.Item) {
	e.consume([]*items.Item{src})
	e.esp += src.Type().Size()
	e.count++
	e.enc.Push(src.Clone())
}

// PushReg pushes the word register reg.
func (e *Emitter) PushReg(reg regfile.RInfo) {
	e.PushItem(items.NewRegHint(types.Int, reg, false))
}

// PopReg pops the top of the machine stack into the word register reg.
func (e *Emitter) PopReg(reg regfile.RInfo) {
	e.PopItem(items.NewRegHint(types.Int, reg, false))
}

// PopItem pops the top of the machine stack into the register of dst.
func (e *Emitter) PopItem(dst *items.Item) {
	e.esp -= dst.Type().Size()
	util.Assert(e.esp >= 0, "machine stack underflow popping %s", dst)
	e.produce(dst)
	e.count++
	e.enc.Pop(dst.Clone())
}

// ----- Instructions -----

// Emit forwards in to the encoder after consuming its floating point operands and pushing its floating point
// result. Calls release in.Words stack words.
func (e *Emitter) Emit(in *Instr) {
	e.consume(in.Args)
	if !in.Code.IsCall() {
		e.produce(in.Result)
	}
	if in.Words > 0 {
		e.esp -= in.Words
		util.Assert(e.esp >= 0, "machine stack underflow after %s", in.Code)
	}
	e.emit(in)
}

// emit hands a copy of in to the encoder.
func (e *Emitter) emit(in *Instr) {
	c := *in
	if in.Result != nil {
		c.Result = in.Result.Clone()
	}
	if len(in.Args) > 0 {
		c.Args = make([]*items.Item, len(in.Args))
		for i1, e1 := range in.Args {
			if e1 != nil {
				c.Args[i1] = e1.Clone()
			}
		}
	}
	e.count++
	e.enc.Emit(&c)
}
