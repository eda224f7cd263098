// Package codegen generates the instruction stream of one method from its instruction trees. The Generator walks
// the tree of each root, choosing placements for operands and results, while the CodeGenerator drives it block by
// block and resolves the entry stacks of successor blocks.
package codegen

import (
	"c1gen/src/backend/emit"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regalloc"
	"c1gen/src/ir/hir"
	"c1gen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Context holds the state shared by the generator and the block driver during one pass over a method.
type Context struct {
	Method     *hir.Method                     // Method being compiled.
	RA         *regalloc.RegAlloc              // Register and spill ledger of the pass.
	Em         *emit.Emitter                   // Instruction sink. Dry runs write to emit.Discard.
	Block      *hir.Block                      // Block being generated.
	BlockItems map[*hir.Block]*items.BlockItem // Cached locals per block, nil entries cache nothing.
	Opt        util.Options                    // Compiler options.
	Tracer     Tracer                          // Debug hooks, may be nil.
	DryRun     bool                            // Nothing is emitted, only the ledger is exercised.
	scan       *hir.ScanResult                 // Summary of the whole method.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewContext returns the context of a pass over m emitting to enc. The BlockItems map is shared with the caller.
func NewContext(m *hir.Method, opt util.Options, enc emit.Encoder, blockItems map[*hir.Block]*items.BlockItem) *Context {
	if blockItems == nil {
		blockItems = make(map[*hir.Block]*items.BlockItem)
	}
	return &Context{
		Method:     m,
		RA:         regalloc.NewRegAlloc(),
		Em:         emit.NewEmitter(enc),
		BlockItems: blockItems,
		Opt:        opt,
		scan:       hir.ScanBlocks(m.Blocks()...),
	}
}

// NewDryRun returns the context of a pass over m that emits nothing.
func NewDryRun(m *hir.Method, opt util.Options, blockItems map[*hir.Block]*items.BlockItem) *Context {
	ctx := NewContext(m, opt, emit.Discard{}, blockItems)
	ctx.DryRun = true
	return ctx
}

// BlockItem returns the cached locals of block b, nil if b caches nothing.
func (c *Context) BlockItem(b *hir.Block) *items.BlockItem {
	if b == nil {
		return nil
	}
	return c.BlockItems[b]
}

// current returns the cached locals of the block being generated.
func (c *Context) current() *items.BlockItem {
	return c.BlockItem(c.Block)
}

// tracer returns the tracer to report to, nil during dry runs.
func (c *Context) tracer() Tracer {
	if c.DryRun {
		return nil
	}
	return c.Tracer
}
