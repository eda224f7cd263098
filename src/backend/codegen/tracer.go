package codegen

import (
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"

	"github.com/sirupsen/logrus"
)

// Tracer receives register allocation events of a code generating pass. Dry runs report nothing.
type Tracer interface {
	Assigned(b *hir.Block, x *hir.Instruction, reg regfile.RInfo) // Root x was placed in reg.
	Spilled(b *hir.Block, x *hir.Instruction, slot int)           // Value x was evicted to slot.
	SpillMoved(b *hir.Block, x *hir.Instruction, from, to int)    // Value x was relocated between spill slots.
	Cached(b *hir.Block, bi *items.BlockItem)                     // Block b caches the locals of bi.
}

// LogTracer writes tracer events to a logrus entry at debug level.
type LogTracer struct {
	Entry *logrus.Entry
}

// NewLogTracer returns a LogTracer for method m logging through l.
func NewLogTracer(l *logrus.Logger, m *hir.Method) *LogTracer {
	return &LogTracer{Entry: l.WithField("method", m.Name())}
}

func (t *LogTracer) Assigned(b *hir.Block, x *hir.Instruction, reg regfile.RInfo) {
	t.Entry.WithFields(logrus.Fields{
		"block": b.Name(),
		"instr": x.Name(),
		"reg":   reg.String(),
	}).Debug("assigned")
}

func (t *LogTracer) Spilled(b *hir.Block, x *hir.Instruction, slot int) {
	t.Entry.WithFields(logrus.Fields{
		"block": b.Name(),
		"instr": x.Name(),
		"slot":  slot,
	}).Debug("spilled")
}

func (t *LogTracer) SpillMoved(b *hir.Block, x *hir.Instruction, from, to int) {
	t.Entry.WithFields(logrus.Fields{
		"block": b.Name(),
		"instr": x.Name(),
		"from":  from,
		"slot":  to,
	}).Debug("spill moved")
}

func (t *LogTracer) Cached(b *hir.Block, bi *items.BlockItem) {
	t.Entry.WithFields(logrus.Fields{
		"block": b.Name(),
		"reg":   bi.Lockout().String(),
	}).Debugf("cached %s", bi)
}
