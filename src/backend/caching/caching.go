// Package caching decides which locals live in registers across whole blocks. Loops cache their most used locals
// in the registers a dry run of the loop left untouched, and methods without loops may cache the receiver in ecx.
package caching

import (
	"c1gen/src/backend/codegen"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regalloc"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/util"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// LocalCaching fills the BlockItems of one method.
type LocalCaching struct {
	m          *hir.Method
	opt        util.Options
	blockItems map[*hir.Block]*items.BlockItem // Shared with the real pass.
	log        *logrus.Entry                   // Decisions are logged if TraceLoops is set.
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a LocalCaching for m recording its decisions in blockItems.
func New(m *hir.Method, opt util.Options, blockItems map[*hir.Block]*items.BlockItem) *LocalCaching {
	return &LocalCaching{
		m:          m,
		opt:        opt,
		blockItems: blockItems,
		log:        logrus.WithField("method", m.Name()),
	}
}

// trace logs a caching decision.
func (lc *LocalCaching) trace(format string, args ...interface{}) {
	if lc.opt.TraceLoops {
		lc.log.Debugf(format, args...)
	}
}

// dryRun generates blocks into nothing and returns the ledger of the run.
func (lc *LocalCaching) dryRun(blocks ...*hir.Block) *regalloc.RegAlloc {
	ctx := codegen.NewDryRun(lc.m, lc.opt, nil)
	codegen.NewCodeGenerator(ctx).Generate(blocks...)
	return ctx.RA
}

// setItem attaches bi to b, removing the item of b if bi is nil.
func (lc *LocalCaching) setItem(b *hir.Block, bi *items.BlockItem) {
	if bi == nil {
		delete(lc.blockItems, b)
		return
	}
	lc.blockItems[b] = bi
}

// ----- Loops -----

// CacheLoopLocals caches the most used locals of every innermost loop free of calls and slow cases. Methods with
// exception handlers cache nothing.
func (lc *LocalCaching) CacheLoopLocals() {
	if lc.m.HasHandlers() {
		lc.trace("method has exception handlers, no caching of locals")
		return
	}
	for _, l := range lc.m.Loops() {
		if !l.IsInnermost(lc.m) {
			continue
		}
		scan := hir.ScanBlocks(l.Blocks()...)
		if !scan.CanCacheLocals() {
			lc.trace("loop %d has calls or slow cases, no caching of locals", l.Id())
			continue
		}

		free, spilled := lc.collectFreeRegisters(l)
		bi := items.NewBlockItem(free, scan.HasFloats && !scan.HasDoubles)
		if !spilled {
			regs := free.Regs()
			locals := scan.MostUsedLocals()
			for i1 := 0; i1 < len(locals) && i1 < len(regs); i1++ {
				bi.CacheLocal(locals[i1].Index, regs[i1], locals[i1].IsOop)
			}
		}
		lc.trace("loop %d caches %s", l.Id(), bi)

		for _, e1 := range l.Blocks() {
			util.Assert(lc.blockItems[e1] == nil, "block %s of loop %d already caches locals", e1.Name(), l.Id())
			lc.blockItems[e1] = bi
		}
	}
}

// collectFreeRegisters returns the word registers a dry run of loop l never touched, and whether the run spilled.
func (lc *LocalCaching) collectFreeRegisters(l *hir.Loop) (regfile.RegMask, bool) {
	ra := lc.dryRun(l.Blocks()...)
	spilled := ra.MaxSpills() != 0
	if spilled {
		lc.trace("loop %d has spills, no caching of locals", l.Id())
	}
	return ra.Unused(), spilled
}

// ----- Receiver -----

// CacheReceiver caches the receiver in ecx. If the whole method dry run described by ra never used ecx every block
// caches it, otherwise the blocks are selected one by one if SelectiveReceiverCaching is set.
func (lc *LocalCaching) CacheReceiver(ra *regalloc.RegAlloc) {
	if lc.m.IsStatic() {
		return
	}
	scan := hir.ScanBlocks(lc.m.Blocks()...)
	if scan.HasJsr {
		lc.trace("method has subroutines, receiver not cached")
		return
	}
	bi := items.NewReceiverItem()
	if !ra.DidUse(regfile.Recv) && scan.CanCacheReceiver() {
		for _, e1 := range lc.m.Blocks() {
			lc.blockItems[e1] = bi
		}
		lc.trace("receiver cached in %s in every block", regfile.Recv)
		return
	}
	if lc.opt.SelectiveReceiverCaching {
		lc.selectiveCaching(bi)
	}
}

// canCacheReceiverIn returns true if block b leaves ecx alone when generated on its own.
func (lc *LocalCaching) canCacheReceiverIn(b *hir.Block) bool {
	if !hir.ScanBlocks(b).CanCacheReceiver() {
		return false
	}
	return !lc.dryRun(b).DidUse(regfile.Recv)
}

// selectiveCaching propagates the receiver item from the entry block along the control flow. A block that cannot
// keep the receiver in ecx drops the item, and so do its successors that were already visited with it.
func (lc *LocalCaching) selectiveCaching(bi *items.BlockItem) {
	marked := mapset.NewThreadUnsafeSet[*hir.Block]()
	work := util.Stack[*hir.Block]{}
	start := lc.m.Entry()
	work.Push(start)
	lc.setItem(start, bi)

	for work.Size() > 0 {
		b, _ := work.Pop()
		if marked.Contains(b) {
			continue
		}
		marked.Add(b)
		item := lc.blockItems[b]
		if item != nil && !lc.canCacheReceiverIn(b) {
			item = nil
		}
		lc.setItem(b, item)
		lc.trace("block %s caches receiver: %t", b.Name(), item != nil)

		handlers := b.Handlers()
		for i1 := len(handlers) - 1; i1 >= 0; i1-- {
			if h := handlers[i1]; !marked.Contains(h) {
				lc.setItem(h, nil)
				work.Push(h)
			}
		}
		sux := b.Successors()
		for i1 := len(sux) - 1; i1 >= 0; i1-- {
			s := sux[i1]
			switch {
			case !marked.Contains(s):
				lc.setItem(s, item)
				work.Push(s)
			case lc.blockItems[s] != nil && item == nil:
				lc.setItem(s, nil)
				marked.Remove(s)
				work.Push(s)
			}
		}
	}
}
