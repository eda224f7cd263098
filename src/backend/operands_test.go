package backend

import (
	"fmt"
	"math"
	"testing"

	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

// shape builds an int expression over fresh loads of the locals of a method and evaluates it.
type shape struct {
	name  string
	build func(b *hir.Block, l func(i int) *hir.Instruction) *hir.Instruction
	eval  func(v []int64) int64
}

var shapes = []shape{
	{
		name: "quotient",
		build: func(b *hir.Block, l func(int) *hir.Instruction) *hir.Instruction {
			return b.CreateAdd(b.CreateAdd(l(0), l(1)), b.CreateDiv(l(2), l(3)))
		},
		eval: func(v []int64) int64 { return word(v[0] + v[1] + v[2]/v[3]) },
	},
	{
		name: "remainder",
		build: func(b *hir.Block, l func(int) *hir.Instruction) *hir.Instruction {
			return b.CreateSub(b.CreateMul(l(0), l(1)), b.CreateRem(l(2), l(3)))
		},
		eval: func(v []int64) int64 { return word(v[0]*v[1] - v[2]%v[3]) },
	},
	{
		name: "divisor in flight",
		build: func(b *hir.Block, l func(int) *hir.Instruction) *hir.Instruction {
			return b.CreateDiv(l(2), b.CreateAdd(l(0), l(3)))
		},
		eval: func(v []int64) int64 { return word(v[2] / (v[0] + v[3])) },
	},
	{
		name: "shift",
		build: func(b *hir.Block, l func(int) *hir.Instruction) *hir.Instruction {
			return b.CreateAdd(b.CreateAdd(l(0), l(1)), b.CreateShift(types.Shl, l(2), l(5)))
		},
		eval: func(v []int64) int64 { return word(v[0] + v[1] + word(v[2]<<(v[5]&31))) },
	},
	{
		name: "byte",
		build: func(b *hir.Block, l func(int) *hir.Instruction) *hir.Instruction {
			return b.CreateAdd(b.CreateAdd(l(0), l(1)), b.CreateConvert(types.I2B, b.CreateMul(l(2), l(3))))
		},
		eval: func(v []int64) int64 { return word(v[0] + v[1] + int64(int8(v[2]*v[3]))) },
	},
	{
		name: "nested",
		build: func(b *hir.Block, l func(int) *hir.Instruction) *hir.Instruction {
			q := b.CreateDiv(b.CreateAdd(l(2), l(4)), b.CreateSub(l(0), l(1)))
			return b.CreateShift(types.Shr, q, b.CreateRem(l(4), l(5)))
		},
		eval: func(v []int64) int64 { return word(v[2]+v[4]) / word(v[0]-v[1]) >> ((v[4] % v[5]) & 31) },
	},
}

// shapeLocals are the arguments the shapes are run with. No divisor of a shape is zero.
var shapeLocals = []int64{7, -3, 1000, 9, 1000, 6, 2, 5}

// shapeMethod returns a method returning the value of s, with pressure values held live around it if n > 0. Each
// pressure value has two uses.
func shapeMethod(s shape, n int) (*hir.Method, int64) {
	m := hir.NewMethod("Shape.run", len(shapeLocals)).SetStatic(true)
	b := m.CreateBlock(0)
	l := func(i int) *hir.Instruction { return b.CreateLoadLocal(types.Int, i) }

	xs := make([]*hir.Instruction, n)
	var sum int64
	for i1 := range xs {
		xs[i1] = b.CreateAdd(l(i1%len(shapeLocals)), b.CreateConstantInt(1))
		sum += 2 * (shapeLocals[i1%len(shapeLocals)] + 1)
	}
	r := s.build(b, l)
	for i1 := 0; i1 < 2 && n > 0; i1++ {
		for _, e1 := range xs {
			r = b.CreateAdd(r, e1)
		}
	}
	b.CreateReturn(r)
	return m, word(s.eval(shapeLocals) + sum)
}

// TestFixedRegisterOperands checks expressions whose operands are still being computed when a division, a shift or a
// byte conversion claims a fixed register.
func TestFixedRegisterOperands(t *testing.T) {
	for _, e1 := range shapes {
		for _, n := range []int{0, 7} {
			m, want := shapeMethod(e1, n)
			for name, f := range optionSets {
				rec, _ := record(t, m, options(f))
				got := newMachine(t, rec, append([]int64(nil), shapeLocals...), nil).run()
				assert.Check(t, is.Equal(got, want), "%s with %d live values, %s", e1.name, n, name)
			}
		}
	}
}

// sharedMethod returns a method adding x * (i+2) to its first argument for every use i of n, where x = a + b is
// computed once. With no uses x is evaluated and dropped.
func sharedMethod(n int) (*hir.Method, func(a, b int64) int64) {
	m := hir.NewMethod("Shared.run", 2).SetStatic(true)
	b := m.CreateBlock(0)
	x := b.CreateAdd(b.CreateLoadLocal(types.Int, 0), b.CreateLoadLocal(types.Int, 1))
	if n == 0 {
		x.Pin()
	}
	r := b.CreateLoadLocal(types.Int, 0)
	for i1 := 0; i1 < n; i1++ {
		r = b.CreateAdd(r, b.CreateMul(x, b.CreateConstantInt(int32(i1+2))))
	}
	b.CreateReturn(r)
	return m, func(a0, a1 int64) int64 {
		r := a0
		for i1 := 0; i1 < n; i1++ {
			r = word(r + word(word(a0+a1)*int64(i1+2)))
		}
		return r
	}
}

// TestSharedValueSurvivesCopies checks that every use of a shared register sees the value it was computed with.
func TestSharedValueSurvivesCopies(t *testing.T) {
	for n := 0; n <= 8; n++ {
		m, eval := sharedMethod(n)
		rec, _ := record(t, m, util.DefaultOptions())
		for _, e1 := range [][2]int64{{3, 4}, {-5, 2}, {math.MaxInt32, 1}} {
			got := newMachine(t, rec, []int64{e1[0], e1[1]}, nil).run()
			assert.Check(t, is.Equal(got, eval(e1[0], e1[1])), "n=%d args=%v", n, e1)
		}
	}
}

// node is a value of a random expression and what it evaluates to.
type node struct {
	x *hir.Instruction
	v int64
}

var randomOps = []types.ArithmeticOperation{types.Add, types.Sub, types.Mul, types.Div, types.Rem}

// apply evaluates l op r, or reports false if the division faults.
func apply(op types.ArithmeticOperation, l, r int64) (int64, bool) {
	switch op {
	case types.Add:
		return word(l + r), true
	case types.Sub:
		return word(l - r), true
	case types.Mul:
		return word(l * r), true
	}
	if r == 0 || (l == math.MinInt32 && r == -1) {
		return 0, false
	}
	if op == types.Div {
		return word(l / r), true
	}
	return word(l % r), true
}

// randomMethod draws a method computing a random int expression over args. Subexpressions may be used more than
// once, which makes them roots. A division that would fault becomes an addition.
func randomMethod(rt *rapid.T, args []int64) (*hir.Method, int64) {
	m := hir.NewMethod("Random.eval", len(args)).SetStatic(true)
	b := m.CreateBlock(0)
	var done []node

	leaf := func() node {
		if rapid.IntRange(0, 3).Draw(rt, "constant") == 0 {
			c := rapid.Int32Range(-9, 9).Draw(rt, "value")
			return node{b.CreateConstantInt(c), int64(c)}
		}
		i := rapid.IntRange(0, len(args)-1).Draw(rt, "local")
		return node{b.CreateLoadLocal(types.Int, i), args[i]}
	}
	combine := func(l, r node) node {
		op := rapid.SampledFrom(randomOps).Draw(rt, "op")
		v, ok := apply(op, l.v, r.v)
		if !ok {
			op, v = types.Add, word(l.v+r.v)
		}
		n := node{b.CreateArithmetic(op, l.x, r.x), v}
		done = append(done, n)
		return n
	}
	operand := func() node {
		switch k := rapid.IntRange(0, 5).Draw(rt, "operand"); {
		case k == 0 && len(done) > 0:
			return done[rapid.IntRange(0, len(done)-1).Draw(rt, "reuse")]
		case k <= 2:
			return combine(leaf(), leaf())
		}
		return leaf()
	}

	cur := operand()
	for i1 := rapid.IntRange(1, 10).Draw(rt, "steps"); i1 > 0; i1-- {
		other := operand()
		if rapid.Bool().Draw(rt, "left") {
			cur = combine(cur, other)
		} else {
			cur = combine(other, cur)
		}
	}
	b.CreateReturn(cur.x)
	return m, cur.v
}

func TestRandomExpressions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		args := make([]int64, 4)
		for i1 := range args {
			args[i1] = int64(rapid.Int32().Draw(rt, fmt.Sprintf("arg%d", i1)))
		}
		m, want := randomMethod(rt, args)
		for name, f := range optionSets {
			rec, _ := record(rt, m, options(f))
			got := newMachine(rt, rec, append([]int64(nil), args...), nil).run()
			assert.Check(rt, is.Equal(got, want), name)
		}
	})
}
