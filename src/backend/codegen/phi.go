package codegen

import (
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/util"
)

// The stack at a block boundary is passed in canonical places: the top value in the result register of its type and
// every other value in the spill slot at its word offset from the bottom of the stack.

// blockProlog installs the cached locals of b and rebuilds the placements of its phis.
func (g *Generator) blockProlog(b *hir.Block) {
	util.Assert(g.ra.AllRegsFree(), "registers live on entry of %s: %s", b.Name(), g.ra)
	util.Assert(g.em.IsFpuStackEmpty(), "floating point stack not empty on entry of %s", b.Name())

	bi := g.ctx.BlockItem(b)
	if bi != nil {
		g.ra.SetLockout(bi.Lockout())
		g.ra.Set32bit(bi.Is32bitPrecision())
	} else {
		g.ra.SetLockout(regfile.EmptyMask)
		g.ra.Set32bit(false)
	}

	top, values, slots := hir.PhiSlots(b.Phis())
	for i1, phi := range values {
		it := items.New(phi)
		if phi.UseCount() > 0 {
			g.ra.LockSpill(phi, slots[i1], phi.UseCount())
			it.SetSpillIx(slots[i1])
		} else {
			// The frame still needs the slot.
			g.ra.LockSpill(phi, slots[i1], 1)
			g.ra.FreeSpill(slots[i1], phi.Type())
			it.SetNoResult()
		}
		g.memo[phi] = it
	}
	if top == nil {
		return
	}
	it := items.New(top)
	reg := regfile.ResultReg(top.Type())
	switch {
	case top.UseCount() > 0:
		g.ra.Lock(reg, top, top.UseCount())
		it.SetRInfo(reg, false)
		if reg.IsFloatKind() {
			g.em.SetFpuResult(reg)
		}
	case reg.IsFloatKind():
		g.em.Fpop()
		it.SetNoResult()
	default:
		it.SetNoResult()
	}
	g.memo[top] = it
}

// moveToPhi moves the values of stack to their canonical places at the end of the current block.
func (g *Generator) moveToPhi(stack []*hir.Instruction) {
	top, values, slots := hir.PhiSlots(stack)
	size := hir.StackSize(stack)
	for i1, x := range values {
		ix := slots[i1]
		if m := g.memo[x]; m != nil && m.IsSpilled() && m.SpillIx() == ix {
			g.ra.FreeSpill(ix, x.Type())
			continue
		}
		if !g.ra.IsFreeSpill(ix, x.Type()) {
			g.moveSpillTo(ix, size, x)
		}
		it := g.floatOperand(x, items.NoHint())
		g.loadItem(it)
		g.freeReg(it)
		util.Assert(g.ra.IsFreeSpill(ix, x.Type()), "spill slot %d of %s is occupied", ix, x.Name())
		g.em.Spill(ix, it)
	}

	if top != nil {
		reg := regfile.ResultReg(top.Type())
		hint := items.NewRegHint(top.Type(), reg, false)
		it := g.floatOperand(top, hint)
		g.loadItemHint(it, hint)
		g.freeReg(it)
		g.em.ItemToReg(regItem(top, reg), it)
		g.em.ClearFpuStack()
	}
	util.Assert(g.ra.AllRegsFree(), "registers live after moving the stack: %s", g.ra)
}

// moveSpillTo relocates the values occupying the slots wanted by x past the stack, which holds least words.
func (g *Generator) moveSpillTo(ix, least int, x *hir.Instruction) {
	for i1 := 0; i1 < x.Type().Size(); i1++ {
		if g.ra.SpillRefCount(ix+i1) == 0 {
			continue
		}
		v := g.ra.SpilledAt(ix + i1)
		m := g.memo[v]
		util.Assert(m != nil && m.IsSpilled(), "spill slot %d holds %s without placement", ix+i1, v.Name())

		from := m.SpillIx()
		to := g.ra.FreeSpillAfter(least, v.Type())
		tmp := g.hideRegOf(v.Type())
		g.em.MoveSpill(to, from, v.Type(), tmp)
		g.ra.MoveSpill(to, from, v.Type())
		g.showReg(tmp)
		m.SetSpillIx(to)
		if t := g.ctx.tracer(); t != nil {
			t.SpillMoved(g.ctx.Block, v, from, to)
		}
	}
}

// handlerEntry starts an exception handler. A cached receiver does not survive the unwinding.
func (g *Generator) handlerEntry() {
	g.em.HandlerEntry()
	if bi := g.ctx.current(); bi != nil && bi.IsReceiver() {
		g.em.RestoreCachedReceiver(regfile.Recv)
	}
}
