package regalloc

import (
	"testing"

	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"

	gocmp "github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

// values returns n distinct int values with ascending bci.
func values(n int) []*hir.Instruction {
	b := hir.NewMethod("t", 0).CreateBlock(0)
	res := make([]*hir.Instruction, n)
	for i1 := range res {
		res[i1] = b.CreateConstantInt(int32(i1))
	}
	return res
}

// typed returns one value of each value type.
func typed() map[types.ValueType]*hir.Instruction {
	b := hir.NewMethod("t", 0).CreateBlock(0)
	return map[types.ValueType]*hir.Instruction{
		types.Int:    b.CreateConstantInt(1),
		types.Long:   b.CreateConstantLong(1),
		types.Float:  b.CreateConstantFloat(1),
		types.Double: b.CreateConstantDouble(1),
		types.Object: b.CreateConstantNull(),
	}
}

func violates(f func()) (res bool) {
	defer func() {
		if r := recover(); r != nil {
			_, res = r.(*util.Violation)
		}
	}()
	f()
	return false
}

func TestGetFreeLowestFirst(t *testing.T) {
	ra := NewRegAlloc()
	xs := values(2)

	assert.Equal(t, ra.GetFree(types.Int), regfile.ESI)
	assert.Equal(t, ra.GetFree(types.Long), regfile.LongReg(regfile.RnrESI, regfile.RnrEDI))

	ra.Lock(regfile.ESI, xs[0], 1)
	assert.Equal(t, ra.GetFree(types.Int), regfile.EDI)
	assert.Equal(t, ra.GetLock(xs[1], types.Int), regfile.EDI)
	assert.Equal(t, ra.RefCount(regfile.EDI), 1)
	assert.Equal(t, ra.GetFree(types.Float), regfile.FloatReg(0))
	assert.Equal(t, ra.GetFreeMasked(regfile.ByteRegs), regfile.EBX)
}

func TestLockout(t *testing.T) {
	ra := NewRegAlloc()
	xs := values(1)
	ra.SetLockout(regfile.MaskOf(regfile.ESI, regfile.EBX))

	assert.Equal(t, ra.GetFree(types.Int), regfile.EDI)
	assert.Equal(t, ra.GetFreeMasked(regfile.ByteRegs), regfile.EAX)
	assert.Check(t, ra.IsFree(regfile.ESI))
	assert.Check(t, !ra.IsAvailable(regfile.ESI))
	assert.Check(t, violates(func() { ra.Lock(regfile.ESI, xs[0], 1) }))
	assert.Check(t, !ra.DidUse(regfile.ESI))
}

func TestRefCountRelease(t *testing.T) {
	ra := NewRegAlloc()
	xs := values(1)

	ra.Lock(regfile.EAX, xs[0], 3)
	for i1 := 2; i1 >= 0; i1-- {
		ra.Free(regfile.EAX)
		assert.Equal(t, ra.RefCount(regfile.EAX), i1)
	}
	assert.Check(t, ra.IsFree(regfile.EAX))
	assert.Check(t, is.Nil(ra.Owner(regfile.EAX)))
	assert.Check(t, violates(func() { ra.Free(regfile.EAX) }))
	assert.Check(t, ra.DidUse(regfile.EAX))
	assert.Equal(t, ra.Unused(), regfile.AllMask.Remove(regfile.RnrEAX))
}

func TestLockZeroCountsAsOne(t *testing.T) {
	ra := NewRegAlloc()
	xs := values(1)
	ra.Lock(regfile.EDX, xs[0], 0)
	assert.Equal(t, ra.RefCount(regfile.EDX), 1)
}

func TestLongPair(t *testing.T) {
	ra := NewRegAlloc()
	v := typed()[types.Long]
	reg := ra.GetLock(v, types.Long)
	assert.Equal(t, reg, regfile.LongReg(regfile.RnrESI, regfile.RnrEDI))
	assert.Check(t, !ra.IsFree(regfile.ESI))
	assert.Check(t, !ra.IsFree(regfile.EDI))
	assert.Equal(t, ra.Owner(regfile.EDI), v)
	ra.Free(reg)
	assert.Check(t, ra.AllRegsFree())
}

func TestSpillCandidateLowestBci(t *testing.T) {
	ra := NewRegAlloc()
	xs := values(3)

	ra.Lock(regfile.EAX, xs[2], 1)
	ra.Lock(regfile.EBX, xs[1], 1)
	ra.Lock(regfile.EDX, xs[1], 1)
	ra.Lock(regfile.ECX, xs[0], 1)
	ra.IncrSpillLock(regfile.ECX)

	assert.Equal(t, ra.SpillCandidate(types.Int, nil), xs[1])
	assert.Equal(t, ra.SpillCandidateMasked(regfile.AllMask, nil), regfile.EBX)
	assert.Equal(t, ra.SpillCandidateMasked(regfile.MaskOf(regfile.EAX, regfile.ECX), nil), regfile.EAX)
	assert.Equal(t, ra.SpillCandidateMasked(regfile.MaskOf(regfile.ECX), nil), regfile.NoReg)

	notX1 := func(x *hir.Instruction) bool { return x != xs[1] }
	assert.Equal(t, ra.SpillCandidate(types.Int, notX1), xs[2])

	ra.DecrSpillLock(regfile.ECX)
	assert.Check(t, ra.AllSpillLocksFree())
	assert.Equal(t, ra.SpillCandidate(types.Int, nil), xs[0])
	assert.Check(t, is.Nil(ra.SpillCandidate(types.Double, nil)))
}

func TestGetLockSpill(t *testing.T) {
	ra := NewRegAlloc()
	vs := typed()

	assert.Equal(t, ra.GetLockSpill(vs[types.Int], 1), 0)
	assert.Equal(t, ra.GetLockSpill(vs[types.Double], 2), 1)
	assert.Equal(t, ra.MaxSpills(), 3)
	assert.Equal(t, ra.SpilledAt(2), vs[types.Double])

	ra.FreeSpill(0, types.Int)
	// A two word value does not fit in slot 0.
	assert.Equal(t, ra.GetLockSpill(vs[types.Long], 1), 3)
	assert.Equal(t, ra.GetLockSpill(vs[types.Object], 1), 0)
	assert.DeepEqual(t, ra.OopsInSpill(), []int{0})

	ra.FreeCompleteSpill(1, types.Double)
	assert.Check(t, ra.IsFreeSpill(1, types.Double))
	assert.Check(t, !ra.IsFreeSpill(3, types.Int))
	assert.Check(t, ra.IsFreeSpill(9, types.Long))
}

func TestMoveSpill(t *testing.T) {
	ra := NewRegAlloc()
	vs := typed()

	ra.LockSpill(vs[types.Int], 0, 2)
	ra.LockSpill(vs[types.Long], 1, 1)
	to := ra.FreeSpillAfter(2, types.Int)
	assert.Equal(t, to, 3)

	moved := ra.MoveSpill(to, 0, types.Int)
	assert.Equal(t, moved, vs[types.Int])
	assert.Check(t, ra.IsFreeSpill(0, types.Int))
	assert.Equal(t, ra.SpillRefCount(3), 2)
	assert.Equal(t, ra.FreeSpillAfter(7, types.Long), 7)
	assert.Equal(t, ra.MaxSpills(), 8)
	assert.Check(t, violates(func() { ra.LockSpill(vs[types.Object], 1, 1) }))
}

func TestOopsInRegisters(t *testing.T) {
	ra := NewRegAlloc()
	vs := typed()
	ra.Lock(regfile.EDI, vs[types.Object], 1)
	ra.Lock(regfile.EAX, vs[types.Int], 1)
	assert.DeepEqual(t, ra.OopsInRegisters(), []regfile.RInfo{regfile.EDI}, gocmp.AllowUnexported(regfile.RInfo{}))
	assert.NilError(t, ra.Check(nil))
}

// TestNoDoubleOwnership runs random lock, free and spill sequences against a model of the ledger.
func TestNoDoubleOwnership(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ra := NewRegAlloc()
		xs := values(16)
		regs := make(map[int]int)               // allocation number -> remaining uses
		slots := make(map[int]*hir.Instruction) // spill slot -> owner

		steps := rapid.IntRange(1, 64).Draw(t, "steps")
		for i1 := 0; i1 < steps; i1++ {
			x := xs[rapid.IntRange(0, len(xs)-1).Draw(t, "value")]
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				if !ra.HasFree(types.Int) {
					continue
				}
				reg := ra.GetFree(types.Int)
				if _, ok := regs[reg.Reg()]; ok {
					t.Fatalf("register %s handed out twice", reg)
				}
				rc := rapid.IntRange(1, 3).Draw(t, "rc")
				ra.Lock(reg, x, rc)
				regs[reg.Reg()] = rc
			case 1:
				for rnr := 0; rnr < regfile.NumCPURegs; rnr++ {
					if rc, ok := regs[rnr]; ok {
						ra.Free(regfile.WordReg(rnr))
						if rc == 1 {
							delete(regs, rnr)
						} else {
							regs[rnr] = rc - 1
						}
						break
					}
				}
			case 2:
				ix := ra.GetLockSpill(x, 1)
				if _, ok := slots[ix]; ok {
					t.Fatalf("spill slot %d handed out twice", ix)
				}
				slots[ix] = x
			case 3:
				for ix := 0; ix < ra.MaxSpills(); ix++ {
					if _, ok := slots[ix]; ok {
						ra.FreeSpill(ix, types.Int)
						delete(slots, ix)
						break
					}
				}
			}
			if err := ra.Check(nil); err != nil {
				t.Fatalf("ledger inconsistent: %v", err)
			}
			for rnr, rc := range regs {
				if got := ra.RefCount(regfile.WordReg(rnr)); got != rc {
					t.Fatalf("register %d has %d uses, want %d", rnr, got, rc)
				}
			}
			for ix, x := range slots {
				if ra.SpilledAt(ix) != x {
					t.Fatalf("spill slot %d lost its owner", ix)
				}
			}
		}
		if len(regs) == 0 && len(slots) == 0 && !ra.AllFree() {
			t.Fatalf("ledger not free: %s", ra)
		}
	})
}
