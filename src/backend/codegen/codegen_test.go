package codegen

import (
	"slices"
	"testing"

	"c1gen/src/backend/emit"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

// recordingTracer keeps the events of a pass.
type recordingTracer struct {
	assigned map[*hir.Instruction]regfile.RInfo
	spilled  []*hir.Instruction
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{assigned: make(map[*hir.Instruction]regfile.RInfo)}
}

func (t *recordingTracer) Assigned(b *hir.Block, x *hir.Instruction, reg regfile.RInfo) {
	t.assigned[x] = reg
}

func (t *recordingTracer) Spilled(b *hir.Block, x *hir.Instruction, slot int) {
	t.spilled = append(t.spilled, x)
}

func (t *recordingTracer) SpillMoved(b *hir.Block, x *hir.Instruction, from, to int) {}

func (t *recordingTracer) Cached(b *hir.Block, bi *items.BlockItem) {}

// generate seals m and generates it into a Recorder with tracer.
func generate(t assert.TestingT, m *hir.Method, opt util.Options, tracer Tracer) (*emit.Recorder, *Context) {
	assert.NilError(t, m.Seal())
	rec := &emit.Recorder{}
	ctx := NewContext(m, opt, rec, nil)
	ctx.Tracer = tracer
	NewCodeGenerator(ctx).Generate()
	assert.Check(t, ctx.RA.AllFree())
	assert.Check(t, ctx.Em.IsFpuStackEmpty())
	assert.Check(t, is.Equal(ctx.Em.EspOffset(), 0))
	return rec, ctx
}

// divMethod returns int m(int a, int b) computing a / b, or a / c for a constant c if c is not zero.
func divMethod(c int32) *hir.Method {
	m := hir.NewMethod("Div.div", 2).SetStatic(true)
	b := m.CreateBlock(0)
	y := b.CreateLoadLocal(types.Int, 1)
	if c != 0 {
		y = b.CreateConstantInt(c)
	}
	b.CreateReturn(b.CreateDiv(b.CreateLoadLocal(types.Int, 0), y))
	return m
}

func TestDivZeroCheck(t *testing.T) {
	tests := []struct {
		name     string
		divisor  int32
		implicit bool
		checks   int
	}{
		{name: "variable explicit", divisor: 0, implicit: false, checks: 1},
		{name: "variable implicit", divisor: 0, implicit: true, checks: 0},
		{name: "constant explicit", divisor: 3, implicit: false, checks: 0},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			opt := util.DefaultOptions()
			opt.ImplicitDiv0Checks = e1.implicit
			rec, _ := generate(t, divMethod(e1.divisor), opt, nil)
			assert.Check(t, is.Len(rec.Instrs(emit.OpDivZeroCheck), e1.checks))

			div := rec.Instrs(emit.OpDiv)
			assert.Assert(t, is.Len(div, 1))
			assert.Check(t, is.Equal(div[0].Result.RInfo(), regfile.DivOut))
			assert.Check(t, is.Equal(div[0].Args[0].RInfo(), regfile.DivIn))
			assert.Check(t, div[0].Args[1].IsRegister() && div[0].Args[1].RInfo() != regfile.RemOut)
		})
	}
}

// fanoutMethod returns a method computing x = a + b once and storing x * i to local 2 for every use i of n. With no
// uses x is pinned so that it is still evaluated.
func fanoutMethod(n int) (*hir.Method, *hir.Instruction) {
	m := hir.NewMethod("Fanout.run", 3).SetStatic(true)
	b := m.CreateBlock(0)
	x := b.CreateAdd(b.CreateLoadLocal(types.Int, 0), b.CreateLoadLocal(types.Int, 1))
	if n == 0 {
		x.Pin()
	}
	for i1 := 0; i1 < n; i1++ {
		b.CreateStoreLocal(2, b.CreateMul(x, b.CreateConstantInt(int32(i1+2))))
	}
	b.CreateReturn(nil)
	return m, x
}

// TestSharedRegisterIsCopied checks that a register holding a value with uses left is copied before an operation
// overwrites it, and that the last use consumes the register itself. A value with no uses releases its register
// right away.
func TestSharedRegisterIsCopied(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "uses")
		m, x := fanoutMethod(n)
		tr := newRecordingTracer()
		rec, _ := generate(rt, m, util.DefaultOptions(), tr)

		assert.Check(rt, is.Len(rec.Instrs(emit.OpMul), n))
		reg, ok := tr.assigned[x]
		if n == 1 {
			assert.Check(rt, !ok)
			return
		}
		assert.Assert(rt, ok)
		copies := 0
		for _, e1 := range rec.Calls {
			if e1.Kind == emit.CallMove && e1.Src.IsRegister() && e1.Src.RInfo() == reg && e1.Dst.IsRegister() {
				copies++
			}
		}
		assert.Check(rt, is.Equal(copies, max(n-1, 0)))
	})
}

// TestUnusedRootIsReleased checks that a root without uses leaves the ledger clean for the next root.
func TestUnusedRootIsReleased(t *testing.T) {
	m, x := fanoutMethod(0)
	assert.NilError(t, m.Seal())
	rec := &emit.Recorder{}
	ctx := NewContext(m, util.DefaultOptions(), rec, nil)
	cg := NewCodeGenerator(ctx)
	ctx.Block = m.Entry()
	cg.gen.doRoot(x)

	assert.Check(t, ctx.RA.AllFree(), "%s", ctx.RA)
	assert.Check(t, !cg.gen.Placement(x).HasResult())
	assert.Check(t, is.Len(rec.Instrs(emit.OpAdd), 1))
}

// pressureMethod returns a method defining seven values with two uses each before using any of them. Six
// registers cannot hold them all. If mid is not nil the value it builds is stored between the first and the second
// use of each.
func pressureMethod(mid func(b *hir.Block) *hir.Instruction) (*hir.Method, []*hir.Instruction) {
	const n = 7
	m := hir.NewMethod("Pressure.run", n+1).SetStatic(true)
	b := m.CreateBlock(0)
	xs := make([]*hir.Instruction, n)
	for i1 := range xs {
		xs[i1] = b.CreateAdd(b.CreateLoadLocal(types.Int, i1), b.CreateConstantInt(1))
	}
	for i1 := 0; i1 < 2; i1++ {
		if i1 == 1 && mid != nil {
			b.CreateStoreLocal(n, mid(b))
		}
		for _, e1 := range xs {
			b.CreateStoreLocal(n, e1)
		}
	}
	b.CreateReturn(nil)
	return m, xs
}

func TestSpillUnderPressure(t *testing.T) {
	m, xs := pressureMethod(nil)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tr := newRecordingTracer()

	rec, ctx := generate(t, m, util.DefaultOptions(), &teeTracer{tr, NewLogTracer(logger, m)})
	assert.Check(t, len(tr.spilled) > 0)
	assert.Check(t, ctx.RA.MaxSpills() > 0)
	assert.Check(t, is.Len(tr.assigned, len(xs)))
	assert.Check(t, is.Len(callsOf(rec, emit.CallSpill), len(tr.spilled)))

	spills := 0
	for _, e1 := range hook.AllEntries() {
		if e1.Message == "spilled" {
			spills++
			assert.Check(t, is.Equal(e1.Data["method"], "Pressure.run"))
		}
	}
	assert.Check(t, is.Equal(spills, len(tr.spilled)))
}

// teeTracer forwards events to two tracers.
type teeTracer [2]Tracer

func (t *teeTracer) Assigned(b *hir.Block, x *hir.Instruction, reg regfile.RInfo) {
	t[0].Assigned(b, x, reg)
	t[1].Assigned(b, x, reg)
}

func (t *teeTracer) Spilled(b *hir.Block, x *hir.Instruction, slot int) {
	t[0].Spilled(b, x, slot)
	t[1].Spilled(b, x, slot)
}

func (t *teeTracer) SpillMoved(b *hir.Block, x *hir.Instruction, from, to int) {
	t[0].SpillMoved(b, x, from, to)
	t[1].SpillMoved(b, x, from, to)
}

func (t *teeTracer) Cached(b *hir.Block, bi *items.BlockItem) {
	t[0].Cached(b, bi)
	t[1].Cached(b, bi)
}

// callsOf returns the recorded calls of kind k.
func callsOf(rec *emit.Recorder, k emit.CallKind) []emit.Call {
	var res []emit.Call
	for _, e1 := range rec.Calls {
		if e1.Kind == k {
			res = append(res, e1)
		}
	}
	return res
}

// floatMethod returns double m(double d0, ..., double d4) computing sqrt(d0*d1 + (d2-d3)/d4).
func floatMethod(strict bool) *hir.Method {
	m := hir.NewMethod("Float.run", 10).SetStatic(true).SetStrict(strict)
	b := m.CreateBlock(0)
	d := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Double, 2*i) }
	mul := b.CreateMul(d(0), d(1))
	sub := b.CreateSub(d(2), d(3))
	sum := b.CreateAdd(mul, b.CreateDiv(sub, d(4)))
	b.CreateReturn(b.CreateIntrinsic(types.Sqrt, sum))
	return m
}

func TestFloatStackBalanced(t *testing.T) {
	rec, _ := generate(t, floatMethod(false), util.DefaultOptions(), nil)
	assert.Check(t, is.Len(callsOf(rec, emit.CallSpill), 0))
	ret := rec.Instrs(emit.OpReturn)
	assert.Assert(t, is.Len(ret, 1))
	assert.Check(t, is.Equal(ret[0].Args[0].RInfo(), regfile.RetD0))
}

// TestStrictRoundsThroughMemory checks that every floating point result of a strict method is stored to memory.
func TestStrictRoundsThroughMemory(t *testing.T) {
	rec, ctx := generate(t, floatMethod(true), util.DefaultOptions(), nil)
	assert.Check(t, is.Len(callsOf(rec, emit.CallSpill), 5))
	assert.Check(t, ctx.RA.MaxSpills() >= 2)
}

func TestGenerateTwiceViolates(t *testing.T) {
	m, _ := fanoutMethod(2)
	assert.NilError(t, m.Seal())
	ctx := NewDryRun(m, util.DefaultOptions(), nil)
	cg := NewCodeGenerator(ctx)
	cg.Generate()

	var err error
	func() {
		defer util.RecoverViolation(&err)
		cg.Generate()
	}()
	assert.Check(t, util.IsViolation(err))
}

func TestDryRunReportsNothing(t *testing.T) {
	m, _ := pressureMethod(nil)
	assert.NilError(t, m.Seal())
	tr := newRecordingTracer()
	ctx := NewDryRun(m, util.DefaultOptions(), nil)
	ctx.Tracer = tr
	cg := NewCodeGenerator(ctx)
	cg.Generate()
	assert.Check(t, cg.MaxSpills() > 0)
	assert.Check(t, is.Len(tr.assigned, 0))
	assert.Check(t, is.Len(tr.spilled, 0))
}

// TestFixedRegisterEvictsOperand checks that an operation claiming a fixed register spills an operand of its user
// that is still in flight there.
func TestFixedRegisterEvictsOperand(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *hir.Block) (ret, sum *hir.Instruction)
		spills bool
	}{
		{
			name: "quotient",
			build: func(b *hir.Block) (*hir.Instruction, *hir.Instruction) {
				l := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Int, i) }
				sum := b.CreateAdd(l(0), l(1))
				return b.CreateAdd(sum, b.CreateDiv(l(2), l(3))), sum
			},
			spills: true,
		},
		{
			name: "remainder",
			build: func(b *hir.Block) (*hir.Instruction, *hir.Instruction) {
				x, y := b.CreateLoadLocal(types.Int, 0), b.CreateLoadLocal(types.Int, 1)
				sum := b.CreateAdd(x, y)
				return b.CreateAdd(sum, b.CreateRem(x, y)), sum
			},
		},
		{
			name: "double to int",
			build: func(b *hir.Block) (*hir.Instruction, *hir.Instruction) {
				sum := b.CreateAdd(b.CreateLoadLocal(types.Int, 0), b.CreateLoadLocal(types.Int, 1))
				d := b.CreateConvert(types.D2I, b.CreateLoadLocal(types.Double, 2))
				return b.CreateAdd(sum, d), sum
			},
			spills: true,
		},
		{
			name: "long product",
			build: func(b *hir.Block) (*hir.Instruction, *hir.Instruction) {
				l := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Long, i) }
				sum := b.CreateAdd(l(0), l(2))
				return b.CreateAdd(sum, b.CreateMul(l(0), l(2))), sum
			},
			spills: true,
		},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			for _, implicit := range []bool{true, false} {
				m := hir.NewMethod("Evict.run", 4).SetStatic(true)
				b := m.CreateBlock(0)
				ret, sum := e1.build(b)
				b.CreateReturn(ret)

				opt := util.DefaultOptions()
				opt.ImplicitDiv0Checks = implicit
				tr := newRecordingTracer()
				var err error
				func() {
					defer util.RecoverViolation(&err)
					generate(t, m, opt, tr)
				}()
				assert.NilError(t, err)
				if e1.spills {
					assert.Check(t, slices.Contains(tr.spilled, sum), "spilled %v", tr.spilled)
				}
			}
		})
	}
}

// TestFixedRegistersUnderPressure generates operations with fixed registers while more values are live than
// registers exist.
func TestFixedRegistersUnderPressure(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *hir.Block) *hir.Instruction
	}{
		{
			name: "nested division",
			build: func(b *hir.Block) *hir.Instruction {
				l := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Int, i) }
				q := b.CreateDiv(b.CreateAdd(l(0), l(1)), b.CreateRem(l(2), l(3)))
				return b.CreateRem(b.CreateMul(l(4), l(5)), q)
			},
		},
		{
			name: "shift by a quotient",
			build: func(b *hir.Block) *hir.Instruction {
				l := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Int, i) }
				return b.CreateShift(types.Shl, b.CreateAdd(l(0), l(1)), b.CreateDiv(l(2), l(3)))
			},
		},
		{
			name: "conversions",
			build: func(b *hir.Block) *hir.Instruction {
				l := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Int, i) }
				d := b.CreateConvert(types.D2I, b.CreateConvert(types.I2D, l(2)))
				c := b.CreateConvert(types.I2B, b.CreateAdd(l(0), d))
				return b.CreateDiv(c, b.CreateConvert(types.L2I, b.CreateConvert(types.D2L, b.CreateConvert(types.I2D, l(3)))))
			},
		},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			m, _ := pressureMethod(e1.build)
			var err error
			func() {
				defer util.RecoverViolation(&err)
				generate(t, m, util.DefaultOptions(), nil)
			}()
			assert.NilError(t, err)
		})
	}
}

// allocMethod returns static Object m(Object src, int n) copying n elements of src into a new array and storing an
// n by 4 grid to local 0. A root computed from n is live across the copy.
func allocMethod() (m *hir.Method, live, cont *hir.Instruction) {
	m = hir.NewMethod("Alloc.copy", 2).SetStatic(true)
	b := m.CreateBlock(0)
	live = b.CreateAdd(b.CreateLoadLocal(types.Int, 1), b.CreateConstantInt(1))
	live.Pin()
	arr := b.CreateNewObjectArray(b.CreateLoadLocal(types.Int, 1), "java/lang/Object")
	b.CreateIntrinsic(types.ArrayCopy,
		b.CreateLoadLocal(types.Object, 0), b.CreateConstantInt(0),
		arr, b.CreateConstantInt(2),
		b.CreateLoadLocal(types.Int, 1))
	cont = b.CreateJsrContinuation()
	b.CreateStoreLocal(0, b.CreateNewMultiArray("[[I", live, b.CreateConstantInt(4)))
	b.CreateReturn(arr)
	return m, live, cont
}

func TestAllocationsAndArrayCopy(t *testing.T) {
	m, live, cont := allocMethod()
	tr := newRecordingTracer()
	rec, _ := generate(t, m, util.DefaultOptions(), tr)

	assert.Check(t, slices.Contains(tr.spilled, live))

	arr := rec.Instrs(emit.OpNewObjectArray)
	assert.Assert(t, is.Len(arr, 1))
	assert.Check(t, is.Equal(arr[0].Result.RInfo(), regfile.ResultReg(types.Object)))
	assert.Check(t, is.Len(arr[0].Temps, newObjectArrayTemps))
	assert.Check(t, is.Equal(arr[0].Name, "java/lang/Object"))

	cp := rec.Instrs(emit.OpArrayCopy)
	assert.Assert(t, is.Len(cp, 1))
	assert.Assert(t, is.Len(cp[0].Args, 5))
	assert.Check(t, is.Len(cp[0].Temps, 1))
	for i1, e1 := range cp[0].Args {
		if i1 == 1 || i1 == 3 {
			assert.Check(t, e1.IsConstant(), "argument %d", i1)
			continue
		}
		assert.Check(t, e1.IsRegister(), "argument %d", i1)
		assert.Check(t, e1.RInfo() != cp[0].Temps[0], "argument %d", i1)
	}

	grid := rec.Instrs(emit.OpNewMultiArray)
	assert.Assert(t, is.Len(grid, 1))
	assert.Check(t, is.Equal(grid[0].Words, 2))
	assert.Check(t, is.Equal(grid[0].Aux, int64(2)))
	assert.Check(t, is.Equal(grid[0].Name, "[[I"))
	assert.Check(t, len(callsOf(rec, emit.CallPush)) >= 2)

	nops := 0
	for _, e1 := range rec.Instrs(emit.OpNop) {
		if e1.Bci == cont.Bci() {
			nops++
		}
	}
	assert.Check(t, is.Equal(nops, 1))
}
