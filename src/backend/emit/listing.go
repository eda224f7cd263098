package emit

import (
	"c1gen/src/backend/items"
	"c1gen/src/ir/hir"
	"c1gen/src/util"
)

// Listing is an Encoder writing an assembler like text listing through a util.Writer. Nothing is encoded.
type Listing struct {
	w      *util.Writer
	method string // Name of the method being listed.
}

// loopAlignment is the alignment of backward branch targets in bytes.
const loopAlignment = 16

// NewListing returns a Listing writing to w.
func NewListing(w *util.Writer) *Listing {
	return &Listing{w: w}
}

// Begin writes the header of method m.
func (l *Listing) Begin(m *hir.Method, frame int) {
	l.method = m.Name()
	l.w.Write("\n; method %s, %d spill slots\n", m.Name(), frame)
	l.w.Write("%s:\n", util.Symbol(m.Name()))
}

// label returns the label of block b in the current method.
func (l *Listing) label(b *hir.Block) string {
	return util.NewLabel(l.method, b.Name())
}

// End flushes the listing of the current method.
func (l *Listing) End() {
	l.w.Flush()
}

func (l *Listing) Label(b *hir.Block, align bool) {
	if align {
		l.w.Write("\t.align\t%d\n", loopAlignment)
	}
	l.w.Label(l.label(b))
}

func (l *Listing) Move(dst, src *items.Item) {
	op := "mov"
	switch {
	case dst.IsRegister() && dst.RInfo().IsFloatKind():
		op = "fld"
	case src.IsRegister() && src.RInfo().IsFloatKind():
		op = "fstp"
	}
	l.w.Ins2(op, FormatItem(dst), FormatItem(src))
}

func (l *Listing) Spill(slot int, src *items.Item) {
	op := "mov"
	if src.RInfo().IsFloatKind() {
		op = "fstp"
	}
	dst := items.NewHint(src.Type())
	dst.SetSpillIx(slot)
	l.w.Ins2(op, FormatItem(dst), FormatItem(src))
}

func (l *Listing) Push(src *items.Item) {
	l.w.Ins1("push", FormatItem(src))
}

func (l *Listing) Pop(dst *items.Item) {
	l.w.Ins1("pop", FormatItem(dst))
}

func (l *Listing) Emit(in *Instr) {
	l.w.Ins(Mnemonic(in), operands(in, l.label)...)
}
