// Tests the method description loader on the bundled descriptions under resources/methods and on small malformed
// documents, checking that every error names the place it was found.

package frontend

import (
	"os"
	"path/filepath"
	"testing"

	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// methodsPath is the relative path from this package to the bundled method descriptions.
const methodsPath = "../../resources/methods"

func TestLoadArraySum(t *testing.T) {
	m, err := LoadFile(filepath.Join(methodsPath, "array_sum.toml"))
	assert.NilError(t, err)

	assert.Equal(t, m.Name(), "ArraySum.sum")
	assert.Check(t, m.IsStatic())
	assert.Check(t, m.IsSealed())
	assert.Equal(t, m.MaxLocals(), 3)
	assert.Check(t, is.Len(m.Blocks(), 6))

	loops := m.Loops()
	assert.Assert(t, is.Len(loops, 1))
	assert.Check(t, is.Len(loops[0].Blocks(), 4))
	assert.Check(t, loops[0].IsInnermost(m))

	header := m.Blocks()[2]
	assert.Check(t, m.IsBackwardTarget(header))
	assert.Check(t, !m.IsBackwardTarget(m.Blocks()[1]))

	br, ok := header.EndOp().(*hir.If)
	assert.Assert(t, ok)
	assert.Equal(t, br.Cond, types.Ge)
	assert.Equal(t, br.TSux, m.Blocks()[4])
	assert.Equal(t, br.FSux, m.Blocks()[3])
}

func TestLoadSwitchPhis(t *testing.T) {
	m, err := LoadFile(filepath.Join(methodsPath, "select.toml"))
	assert.NilError(t, err)

	join := m.Blocks()[4]
	assert.Assert(t, is.Len(join.Phis(), 1))
	assert.Equal(t, join.Phis()[0].Type(), types.Int)

	sw, ok := m.Entry().EndOp().(*hir.LookupSwitch)
	assert.Assert(t, ok)
	assert.DeepEqual(t, sw.Keys, []int{1, 2, 3, 10})
	assert.Equal(t, sw.Default, m.Blocks()[3])
}

func TestLoadInvoke(t *testing.T) {
	m, err := LoadFile(filepath.Join(methodsPath, "geomean.toml"))
	assert.NilError(t, err)
	assert.Check(t, m.IsSynchronized())
	assert.Check(t, !m.IsStatic())

	var call *hir.Invoke
	for _, e1 := range m.Entry().Instructions() {
		if op, ok := e1.Op().(*hir.Invoke); ok {
			call = op
		}
	}
	assert.Assert(t, call != nil)
	assert.Equal(t, call.Code, types.InvokeVirtual)
	assert.Equal(t, call.Target, "Vec.touch")
	assert.Check(t, call.Receiver != nil)
	assert.Check(t, call.Loaded)
}

func TestLoadAllocations(t *testing.T) {
	m, err := LoadFile(filepath.Join(methodsPath, "grid.toml"))
	assert.NilError(t, err)

	var (
		arr  *hir.NewObjectArray
		grid *hir.NewMultiArray
		cp   *hir.Intrinsic
	)
	for _, e1 := range m.Entry().Instructions() {
		switch op := e1.Op().(type) {
		case *hir.NewObjectArray:
			arr = op
		case *hir.NewMultiArray:
			grid = op
		case *hir.Intrinsic:
			cp = op
		}
	}
	assert.Assert(t, arr != nil && grid != nil && cp != nil)
	assert.Equal(t, arr.Klass, "java/lang/Object")
	assert.Equal(t, grid.Klass, "[[I")
	assert.Check(t, is.Len(grid.Dims, 2))
	assert.Equal(t, cp.ID, types.ArrayCopy)
	assert.Check(t, is.Len(cp.Args, 5))
}

// TestLoadBundled loads every bundled description.
func TestLoadBundled(t *testing.T) {
	files, err := os.ReadDir(methodsPath)
	assert.NilError(t, err)
	assert.Assert(t, len(files) > 0)
	for _, e1 := range files {
		t.Run(e1.Name(), func(t *testing.T) {
			_, err := LoadFile(filepath.Join(methodsPath, e1.Name()))
			assert.NilError(t, err)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  string
	}{
		{
			name: "syntax",
			src:  "name = ",
			err:  "parsing method description",
		},
		{
			name: "no blocks",
			src:  `name = "m"`,
			err:  "method m: no blocks",
		},
		{
			name: "unknown op",
			src: `name = "m"
[[block]]
id = 0
  [[block.instr]]
  name = "v"
  op = "frobnicate"`,
			err: "method m, block 0: instruction v: unexpected op \"frobnicate\"",
		},
		{
			name: "forward reference",
			src: `name = "m"
[[block]]
id = 0
  [[block.instr]]
  op = "return"
  args = ["later"]`,
			err: "unknown value \"later\"",
		},
		{
			name: "unknown block",
			src: `name = "m"
[[block]]
id = 0
  [[block.instr]]
  op = "goto"
  targets = [7]`,
			err: "unknown block 7",
		},
		{
			name: "type mismatch",
			src: `name = "m"
static = true
max_locals = 3
[[block]]
id = 0
  [[block.instr]]
  name = "a"
  op = "load_local"
  type = "int"
  index = 0
  [[block.instr]]
  name = "b"
  op = "load_local"
  type = "long"
  index = 1
  [[block.instr]]
  name = "c"
  op = "add"
  args = ["a", "b"]`,
			err: "instruction c",
		},
		{
			name: "arraycopy arity",
			src: `name = "m"
static = true
max_locals = 1
[[block]]
id = 0
  [[block.instr]]
  name = "a"
  op = "load_local"
  type = "object"
  index = 0
  [[block.instr]]
  op = "intrinsic"
  intrinsic = "arraycopy"
  args = ["a"]`,
			err: "arraycopy takes 5 arguments, got 1",
		},
		{
			name: "multianewarray without dimensions",
			src: `name = "m"
[[block]]
id = 0
  [[block.instr]]
  name = "g"
  op = "multianewarray"
  target = "[[I"`,
			err: "multianewarray takes at least one dimension",
		},
		{
			name: "unterminated",
			src: `name = "m"
[[block]]
id = 0
  [[block.instr]]
  op = "const"
  type = "int"`,
			err: "not terminated",
		},
		{
			name: "stack shape",
			src: `name = "m"
[[block]]
id = 0
  [[block.instr]]
  op = "goto"
  targets = [1]
[[block]]
id = 1
  [[block.phi]]
  name = "p"
  type = "int"
  [[block.instr]]
  op = "return"
  args = ["p"]`,
			err: "leaves 0 values",
		},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			_, err := Parse([]byte(e1.src))
			assert.Check(t, is.ErrorContains(err, e1.err))
		})
	}
}
