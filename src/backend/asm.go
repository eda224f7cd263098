// Package backend compiles methods to x86-32 instruction streams. Each method goes through a dry run sizing its
// spill area, the local caching decisions and the real pass writing to an encoder.
package backend

import (
	"context"
	"sync"

	"c1gen/src/backend/caching"
	"c1gen/src/backend/codegen"
	"c1gen/src/backend/emit"
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/frontend"
	"c1gen/src/ir/hir"
	"c1gen/src/util"

	"github.com/containerd/log"
	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Result describes one compiled method.
type Result struct {
	Frame        int                             // Spill slots reserved by the method entry.
	Instructions int                             // Encoder calls of the real pass.
	Spills       int                             // Values evicted to spill slots by the real pass.
	CachedRegs   regfile.RegMask                 // Registers caching locals in at least one block.
	BlockItems   map[*hir.Block]*items.BlockItem // Caching decisions per block.
}

// methodEncoder is an Encoder that frames the stream of every method, like emit.Listing.
type methodEncoder interface {
	emit.Encoder
	Begin(m *hir.Method, frame int)
	End()
}

// spillCounter counts spills of the real pass and forwards every event to an optional tracer.
type spillCounter struct {
	next codegen.Tracer
	n    int
}

// ---------------------
// ----- Functions -----
// ---------------------

func (s *spillCounter) Assigned(b *hir.Block, x *hir.Instruction, reg regfile.RInfo) {
	if s.next != nil {
		s.next.Assigned(b, x, reg)
	}
}

func (s *spillCounter) Spilled(b *hir.Block, x *hir.Instruction, slot int) {
	s.n++
	if s.next != nil {
		s.next.Spilled(b, x, slot)
	}
}

func (s *spillCounter) SpillMoved(b *hir.Block, x *hir.Instruction, from, to int) {
	if s.next != nil {
		s.next.SpillMoved(b, x, from, to)
	}
}

func (s *spillCounter) Cached(b *hir.Block, bi *items.BlockItem) {
	if s.next != nil {
		s.next.Cached(b, bi)
	}
}

// Compile generates the code of m into enc. Invariant violations abandon the method and are returned as errors
// wrapping a *util.Violation; the caller may fall back to another execution path.
func Compile(ctx context.Context, opt util.Options, m *hir.Method, enc emit.Encoder) (res Result, err error) {
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := m.Seal(); err != nil {
		return res, errors.Wrapf(err, "compiling %s", m.Name())
	}
	defer func() {
		if err != nil {
			err = errors.Wrapf(err, "compiling %s", m.Name())
		}
	}()
	defer util.RecoverViolation(&err)

	// Whole method dry run without caching.
	dry := codegen.NewDryRun(m, opt, nil)
	codegen.NewCodeGenerator(dry).Generate()

	res.BlockItems = make(map[*hir.Block]*items.BlockItem)
	lc := caching.New(m, opt, res.BlockItems)
	if opt.CacheReceiver && !m.IsStatic() && len(m.Loops()) == 0 {
		lc.CacheReceiver(dry.RA)
	}
	if opt.CacheLocalsInLoops {
		lc.CacheLoopLocals()
	}

	// Size the frame with the caching decisions in place.
	res.Frame = dry.RA.MaxSpills()
	if len(res.BlockItems) > 0 {
		sized := codegen.NewDryRun(m, opt, res.BlockItems)
		codegen.NewCodeGenerator(sized).Generate()
		res.Frame = max(res.Frame, sized.RA.MaxSpills())
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	counter := &spillCounter{}
	if opt.TraceRegAlloc {
		counter.next = codegen.NewLogTracer(log.G(ctx).Logger, m)
	}
	for _, e1 := range m.Blocks() {
		if bi := res.BlockItems[e1]; bi != nil {
			res.CachedRegs |= regfile.MaskOf(bi.Registers()...)
			counter.Cached(e1, bi)
		}
	}

	// Real pass.
	if me, ok := enc.(methodEncoder); ok {
		me.Begin(m, res.Frame)
		defer me.End()
	}
	pass := codegen.NewContext(m, opt, enc, res.BlockItems)
	pass.Tracer = counter
	pass.Em.MethodEntry(res.Frame)
	if bi := res.BlockItems[m.Entry()]; bi != nil && bi.IsReceiver() {
		pass.Em.RestoreCachedReceiver(regfile.Recv)
	}
	cg := codegen.NewCodeGenerator(pass)
	cg.Generate()
	util.Assert(cg.MaxSpills() <= res.Frame, "real pass needs %d spill slots, frame has %d", cg.MaxSpills(), res.Frame)

	res.Instructions = pass.Em.Count()
	res.Spills = counter.n
	return res, nil
}

// GenerateAssembler compiles the method descriptions named by opt.Src for the architecture defined by opt, writing
// the listings through the output writer started by util.ListenWrite. Methods failing to compile do not stop the
// others; their errors are returned together once all workers are done.
func GenerateAssembler(ctx context.Context, opt util.Options) (*util.Statistics, error) {
	switch opt.TargetArch {
	case util.X86_32:
	default:
		return nil, errors.Errorf("unsupported output architecture: %d", opt.TargetArch)
	}

	methods := make([]*hir.Method, 0, len(opt.Src))
	for _, e1 := range opt.Src {
		m, err := frontend.LoadFile(e1)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	st := util.NewStatistics()
	if len(methods) == 0 {
		return st, nil
	}

	l := len(methods)
	t := min(max(opt.Threads, 1), l)
	n := l / t   // Jobs per worker go routine.
	res := l % t // Residual jobs.

	start := 0
	end := n

	pe := util.NewPerror(l)
	wg := sync.WaitGroup{}
	wg.Add(t)
	for i1 := 0; i1 < t; i1++ {
		if i1 < res {
			// Worker should do one extra residual job.
			end++
		}
		go func(jobs []*hir.Method) {
			defer wg.Done()
			out := util.NewWriter()
			defer out.Close()
			for _, e1 := range jobs {
				ms, buf, err := compileMethod(ctx, opt, e1)
				if err != nil {
					pe.Append(err)
					continue
				}
				out.Write("%s", buf)
				out.Flush()
				st.Add(ms)
			}
		}(methods[start:end])
		start = end
		end += n
	}
	wg.Wait()
	pe.Stop()
	return st, pe.Err()
}

// compileMethod compiles m into a listing of its own, so that a failing method leaves no partial output.
func compileMethod(ctx context.Context, opt util.Options, m *hir.Method) (util.MethodStats, string, error) {
	logger := log.G(ctx).WithField("method", m.Name())
	w := util.NewBufferWriter()
	r, err := Compile(ctx, opt, m, emit.NewListing(w))
	if err != nil {
		logger.WithError(err).WithField("violation", util.IsViolation(err)).Debug("compilation abandoned")
		return util.MethodStats{}, "", err
	}
	logger.WithField("frame", r.Frame).Debug("compiled")
	return util.MethodStats{
		Name:         m.Name(),
		Frame:        r.Frame,
		Spills:       r.Spills,
		Instructions: r.Instructions,
		CachedRegs:   r.CachedRegs.Len(),
	}, w.String(), nil
}
