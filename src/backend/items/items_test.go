package items

import (
	"testing"

	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"

	gocmp "github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

func TestPlacements(t *testing.T) {
	b := hir.NewMethod("t", 1).CreateBlock(0)
	x := b.CreateConstantDouble(2.5)
	it := New(x)

	assert.Check(t, !it.HasResult())
	it.SetRInfo(regfile.DoubleReg(1), false)
	assert.Check(t, it.IsRegister())
	assert.Equal(t, it.RInfo(), regfile.DoubleReg(1))

	it.SetSpillIx(3)
	assert.Check(t, it.IsSpilled())
	assert.Check(t, it.IsStack())
	assert.Check(t, !it.IsRegister())
	assert.Check(t, !it.IsLocal())
	assert.Equal(t, it.String(), x.Name()+"@spill3")

	it.SetConstant()
	assert.Equal(t, it.FloatConstant(), 2.5)
	it.HandleFloatKind()
	assert.Check(t, it.DestroysRegister())
}

func TestSetFromItem(t *testing.T) {
	b := hir.NewMethod("t", 2).CreateBlock(0)
	x := b.CreateLoadLocal(types.Int, 1)
	root := New(x)
	root.SetRInfo(regfile.EBX, true)

	use := New(x)
	use.SetDestroysRegister(true)
	use.SetFromItem(root)
	assert.Check(t, use.Equal(root))
	assert.Check(t, use.IsCached())
	assert.Check(t, use.DestroysRegister())

	h := NoHint()
	assert.Check(t, !h.HasResult())
	assert.Equal(t, h.Type(), types.Void)
	h = NewRegHint(types.Int, regfile.EAX, false)
	assert.Equal(t, h.RInfo(), regfile.EAX)
	assert.Check(t, h.Value() == nil)
}

func TestBlockItem(t *testing.T) {
	bi := NewBlockItem(regfile.MaskOf(regfile.ESI, regfile.EDI), true)
	bi.CacheLocal(2, regfile.ESI, false)
	bi.CacheLocal(0, regfile.EDI, true)

	assert.Equal(t, bi.CacheReg(2), regfile.ESI)
	assert.Equal(t, bi.CacheReg(1), regfile.NoReg)
	assert.Equal(t, bi.CacheReg(7), regfile.NoReg)
	assert.Check(t, bi.IsOop(0))
	assert.Check(t, !bi.IsOop(2))
	assert.DeepEqual(t, bi.Registers(), []regfile.RInfo{regfile.EDI, regfile.ESI}, gocmp.AllowUnexported(regfile.RInfo{}))
	assert.DeepEqual(t, bi.OopRegisters(), []regfile.RInfo{regfile.EDI}, gocmp.AllowUnexported(regfile.RInfo{}))
	assert.Equal(t, bi.String(), "[L0->edi, L2->esi] lockout={esi, edi} fp32")

	recv := NewReceiverItem()
	assert.Check(t, recv.IsReceiver())
	assert.Equal(t, recv.CacheReg(0), regfile.ECX)
	assert.Equal(t, recv.Lockout(), regfile.MaskOf(regfile.ECX))
}
