package emit

import (
	"testing"

	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// violates returns true if f panics with a Violation.
func violates(f func()) (res bool) {
	defer func() {
		if r := recover(); r != nil {
			_, res = r.(*util.Violation)
		}
	}()
	f()
	return false
}

// inReg returns a placement of x in reg.
func inReg(x *hir.Instruction, reg regfile.RInfo) *items.Item {
	it := items.New(x)
	it.SetRInfo(reg, false)
	return it
}

func TestFpuStack(t *testing.T) {
	s := fpuStack{}
	s.push(0)
	s.push(1)
	s.push(2)
	assert.Equal(t, s.String(), "[f2 f1 f0]")
	assert.Equal(t, s.bringOnTop(0), 2)
	assert.Equal(t, s.String(), "[f0 f1 f2]")
	assert.Equal(t, s.bringOnTop(0), 0)
	assert.Check(t, violates(func() { s.pop(1) }))
	s.pop(0)
	assert.Equal(t, s.count, 2)
	assert.Check(t, violates(func() { s.push(1) }))
}

func TestEmitConsumesFloatOperands(t *testing.T) {
	b := hir.NewMethod("t", 1).CreateBlock(0)
	x := b.CreateConstantDouble(1)
	y := b.CreateConstantDouble(2)
	sum := b.CreateAdd(x, y)

	rec := &Recorder{}
	e := NewEmitter(rec)
	e.SetFpuResult(regfile.DoubleReg(1))
	e.SetFpuResult(regfile.DoubleReg(0))
	e.Emit(&Instr{
		Code:   OpAdd,
		Result: inReg(sum, regfile.DoubleReg(0)),
		Args:   []*items.Item{inReg(x, regfile.DoubleReg(0)), inReg(y, regfile.DoubleReg(1))},
	})
	assert.DeepEqual(t, rec.Lines(), []string{"fxch $1", "add f0, f0, f1"})
	assert.Equal(t, e.FpuDepth(), 1)

	e.RemoveFpuResult(regfile.DoubleReg(0))
	assert.Check(t, e.IsFpuStackEmpty())
	assert.Equal(t, e.Count(), 3)
}

func TestEmitSpillAndReload(t *testing.T) {
	b := hir.NewMethod("t", 1).CreateBlock(0)
	x := b.CreateConstantFloat(1.5)

	rec := &Recorder{}
	e := NewEmitter(rec)
	c := items.New(x)
	c.SetConstant()
	r := inReg(x, regfile.FloatReg(2))
	e.ItemToReg(r, c)
	assert.Equal(t, e.FpuDepth(), 1)
	e.Spill(4, r)
	assert.Check(t, e.IsFpuStackEmpty())

	s := items.New(x)
	s.SetSpillIx(4)
	e.ItemToReg(inReg(x, regfile.FloatReg(0)), s)
	e.ItemToLocal(0, inReg(x, regfile.FloatReg(0)))
	assert.Check(t, e.IsFpuStackEmpty())
	assert.DeepEqual(t, rec.Lines(), []string{
		"mov f2, #1.5000",
		"spill [spill+4], f2",
		"mov f0, [spill+4]",
		"mov [local+0], f0",
	})
}

func TestEspTracking(t *testing.T) {
	b := hir.NewMethod("t", 1).CreateBlock(0)
	l := b.CreateConstantLong(7)

	rec := &Recorder{}
	e := NewEmitter(rec)
	e.PushReg(regfile.EAX)
	c := items.New(l)
	c.SetConstant()
	e.PushItem(c)
	assert.Equal(t, e.EspOffset(), 3)
	e.Emit(&Instr{Code: OpRuntimeCall, Name: "lmul", Words: 2})
	assert.Equal(t, e.EspOffset(), 1)
	e.PopReg(regfile.EAX)
	assert.Equal(t, e.EspOffset(), 0)
	assert.Check(t, violates(func() { e.PopReg(regfile.EDX) }))
	assert.Check(t, is.Len(rec.Instrs(OpRuntimeCall), 1))
}

func TestMoveSpill(t *testing.T) {
	rec := &Recorder{}
	e := NewEmitter(rec)
	e.MoveSpill(5, 1, types.Int, regfile.ESI)
	assert.DeepEqual(t, rec.Lines(), []string{"mov esi, [spill+1]", "spill [spill+5], esi"})
}

func TestListing(t *testing.T) {
	m := hir.NewMethod("f", 1)
	b := m.CreateBlock(0)
	x := b.CreateConstantInt(3)
	b.CreateReturn(x)

	w := util.NewBufferWriter()
	l := NewListing(w)
	e := NewEmitter(l)
	e.Label(b, true)
	c := items.New(x)
	c.SetConstant()
	e.ItemToReg(inReg(x, regfile.EAX), c)
	e.Emit(&Instr{Code: OpReturn, Args: []*items.Item{inReg(x, regfile.EAX)}})
	assert.Equal(t, w.String(), "\t.align\t16\n\nB0:\n\tmov\teax, #3\n\tret\teax\n")
}

func TestFormatImmediates(t *testing.T) {
	b := hir.NewMethod("t", 0).CreateBlock(0)
	constant := func(x *hir.Instruction) string {
		it := items.New(x)
		it.SetConstant()
		return FormatItem(it)
	}
	assert.Check(t, is.Equal(constant(b.CreateConstantInt(-7)), "#-7"))
	assert.Check(t, is.Equal(constant(b.CreateConstantInt(1<<16)), "#65536"))
	assert.Check(t, is.Equal(constant(b.CreateConstantInt(0x7fff0000)), "#0x7fff0000"))
	assert.Check(t, is.Equal(constant(b.CreateConstantInt(-1<<20)), "#0xfff00000"))
	assert.Check(t, is.Equal(constant(b.CreateConstantLong(-1<<20)), "#0xfffffffffff00000"))
	assert.Check(t, is.Equal(constant(b.CreateConstantLong(12)), "#12"))
}
