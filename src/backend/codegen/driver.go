package codegen

import (
	"c1gen/src/backend/items"
	"c1gen/src/ir/hir"
	"c1gen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// CodeGenerator drives a Generator over the blocks of a method in layout order.
type CodeGenerator struct {
	ctx *Context
	gen *Generator
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewCodeGenerator returns a CodeGenerator for the pass described by ctx.
func NewCodeGenerator(ctx *Context) *CodeGenerator {
	return &CodeGenerator{ctx: ctx, gen: NewGenerator(ctx)}
}

// Generator returns the generator of the pass.
func (c *CodeGenerator) Generator() *Generator {
	return c.gen
}

// MaxSpills returns the number of spill slots needed by the blocks generated so far.
func (c *CodeGenerator) MaxSpills() int {
	return c.ctx.RA.MaxSpills()
}

// Generate generates blocks, or every block of the method if none are given. Invariant violations panic with a
// *util.Violation.
func (c *CodeGenerator) Generate(blocks ...*hir.Block) {
	if len(blocks) == 0 {
		blocks = c.ctx.Method.Blocks()
	}
	for _, b := range blocks {
		c.doBlock(b)
	}
}

// doBlock generates the roots of b between its prolog and the checks of its end.
func (c *CodeGenerator) doBlock(b *hir.Block) {
	ctx, g := c.ctx, c.gen
	ctx.Block = b
	ctx.Em.Label(b, ctx.Method.IsBackwardTarget(b))
	if b.IsExceptionEntry() {
		g.handlerEntry()
	}
	g.blockProlog(b)
	for _, x := range b.Instructions() {
		if x.IsRoot() {
			g.doRoot(x)
		}
	}

	util.Assert(ctx.RA.AllFree(), "values live at the end of %s: %s", b.Name(), ctx.RA)
	util.Assert(ctx.RA.AllSpillLocksFree(), "spill locks left at the end of %s", b.Name())
	util.Assert(ctx.Em.EspOffset() == 0, "machine stack unbalanced at the end of %s: %d", b.Name(), ctx.Em.EspOffset())
	util.Assert(ctx.Em.IsFpuStackEmpty(), "floating point stack not empty at the end of %s", b.Name())
}

// doRoot generates root x and records its placement.
func (g *Generator) doRoot(x *hir.Instruction) {
	util.Assert(g.ra.AllSpillLocksFree(), "spill locks left before %s", x.Name())
	util.Assert(g.em.EspOffset() == 0, "machine stack unbalanced before %s", x.Name())
	clear(g.live)
	if err := g.ra.Check(g.inReg); err != nil {
		util.Violationf("before %s: %v", x.Name(), err)
	}
	if _, ok := x.Op().(*hir.Phi); ok {
		return
	}

	g.result, g.hint = items.New(x), items.NoHint()
	g.dispatch(x)
	g.finishRoot(x)
	g.result = items.NoHint()
}

// finishRoot settles the placement of root x for its users. Locals are loaded since a later store may overwrite
// them, and so are cached locals unless the load may be read from the cache register.
func (g *Generator) finishRoot(x *hir.Instruction) {
	it := g.result
	switch {
	case !it.HasResult(), it.IsConstant(), it.IsSpilled():
	case it.IsLocal(), it.IsCached() && !isCacheableLoad(x):
		reg := g.lockReg(x)
		g.em.ItemToReg(regItem(x, reg), it)
		it.SetRInfo(reg, false)
	case it.IsCached():
	case it.IsRegister():
		g.ra.SetReg(it.RInfo(), max(x.UseCount(), 1), x)
	}
	if t := g.ctx.tracer(); t != nil && it.IsRegister() {
		t.Assigned(g.ctx.Block, x, it.RInfo())
	}
	g.memo[x] = it

	if x.UseCount() == 0 && it.HasResult() {
		g.releaseItem(it)
		it.SetNoResult()
	}
}

// isCacheableLoad returns true if x loads a local whose cache register still holds the loaded value at every use.
func isCacheableLoad(x *hir.Instruction) bool {
	op, ok := x.Op().(*hir.LoadLocal)
	return ok && !op.PinnedByStore
}
