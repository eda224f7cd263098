package emit

import (
	"fmt"

	"c1gen/src/backend/items"
	"c1gen/src/ir/hir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// CallKind identifies the Encoder method of a recorded call.
type CallKind uint8

// Call is one recorded Encoder call. Only the fields of its kind are set.
type Call struct {
	Kind  CallKind
	Block *hir.Block  // Label.
	Align bool        // Label.
	Dst   *items.Item // Move, Pop.
	Src   *items.Item // Move, Spill, Push.
	Slot  int         // Spill.
	Instr *Instr      // Emit.
}

// Recorder is an Encoder keeping every call in order.
type Recorder struct {
	Calls []Call
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	CallLabel CallKind = iota
	CallMove
	CallSpill
	CallPush
	CallPop
	CallEmit
)

// ---------------------
// ----- Functions -----
// ---------------------

func (r *Recorder) Label(b *hir.Block, align bool) {
	r.Calls = append(r.Calls, Call{Kind: CallLabel, Block: b, Align: align})
}

func (r *Recorder) Move(dst, src *items.Item) {
	r.Calls = append(r.Calls, Call{Kind: CallMove, Dst: dst, Src: src})
}

func (r *Recorder) Spill(slot int, src *items.Item) {
	r.Calls = append(r.Calls, Call{Kind: CallSpill, Slot: slot, Src: src})
}

func (r *Recorder) Push(src *items.Item) {
	r.Calls = append(r.Calls, Call{Kind: CallPush, Src: src})
}

func (r *Recorder) Pop(dst *items.Item) {
	r.Calls = append(r.Calls, Call{Kind: CallPop, Dst: dst})
}

func (r *Recorder) Emit(in *Instr) {
	r.Calls = append(r.Calls, Call{Kind: CallEmit, Instr: in})
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.Calls = r.Calls[:0]
}

// Instrs returns the recorded instructions with opcode code.
func (r *Recorder) Instrs(code Opcode) []*Instr {
	var res []*Instr
	for _, e1 := range r.Calls {
		if e1.Kind == CallEmit && e1.Instr.Code == code {
			res = append(res, e1.Instr)
		}
	}
	return res
}

// Lines returns the text of every recorded call, one per line, for comparison in tests.
func (r *Recorder) Lines() []string {
	res := make([]string, 0, len(r.Calls))
	for _, e1 := range r.Calls {
		res = append(res, e1.String())
	}
	return res
}

// String returns the text of a recorded call.
func (c Call) String() string {
	switch c.Kind {
	case CallLabel:
		if c.Align {
			return c.Block.Name() + ": align"
		}
		return c.Block.Name() + ":"
	case CallMove:
		return fmt.Sprintf("mov %s, %s", FormatItem(c.Dst), FormatItem(c.Src))
	case CallSpill:
		return fmt.Sprintf("spill [spill+%d], %s", c.Slot, FormatItem(c.Src))
	case CallPush:
		return "push " + FormatItem(c.Src)
	case CallPop:
		return "pop " + FormatItem(c.Dst)
	default:
		return FormatInstr(c.Instr)
	}
}
