// Package items defines placements of values during code generation. An Item says where the value of an
// instruction currently lives: in a register, in a spill slot, in a local variable slot, or nowhere as a constant.
// Hint items carry only a type and a preferred register and are handed down the instruction tree.
package items

import (
	"fmt"

	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Mode defines where an Item lives.
type Mode uint8

// Item is the placement of one value.
type Item struct {
	mode     Mode             // Placement kind.
	reg      regfile.RInfo    // Register of register placements.
	local    int              // Local variable slot of stack placements.
	spillIx  int              // Spill slot, NotSpilled unless the value was evicted.
	value    *hir.Instruction // Instruction whose value is placed, nil for hints.
	typ      types.ValueType  // Type of hints.
	destroys bool             // The consuming operation overwrites the register.
	round32  bool             // Request single precision rounding of the result.
	cached   bool             // The register caches a local variable and is not owned by the value.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	NoMode    Mode = iota // NoMode marks items without a result.
	RegMode               // RegMode marks register and spilled placements.
	StackMode             // StackMode marks placements in a local variable slot.
	ConstMode             // ConstMode marks constants used as immediates.
)

// NotSpilled is the spill index of values that were never evicted.
const NotSpilled = -1

// -------------------
// ----- Globals -----
// -------------------

// modeNames provides string literals for Mode constants.
var modeNames = [...]string{
	"none",
	"reg",
	"stack",
	"const",
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns an empty placement of value.
func New(value *hir.Instruction) *Item {
	util.Assert(value != nil, "item of nil instruction")
	return &Item{value: value, spillIx: NotSpilled}
}

// NewHint returns a hint for a value of type typ without a preferred register.
func NewHint(typ types.ValueType) *Item {
	return &Item{typ: typ, spillIx: NotSpilled}
}

// NewRegHint returns a hint asking for the result in reg.
func NewRegHint(typ types.ValueType, reg regfile.RInfo, cached bool) *Item {
	util.Assert(reg.IsValid(), "hint with invalid register")
	h := NewHint(typ)
	h.SetRInfo(reg, cached)
	return h
}

// NoHint returns the hint that asks for nothing.
func NoHint() *Item {
	return NewHint(types.Void)
}

// String provides a print friendly string representation of the Mode.
func (m Mode) String() string {
	return modeNames[m]
}

// SetRInfo places the item in register reg.
func (it *Item) SetRInfo(reg regfile.RInfo, cached bool) {
	it.mode = RegMode
	it.reg = reg
	it.spillIx = NotSpilled
	it.cached = cached
}

// RInfo returns the register of a register placement.
func (it *Item) RInfo() regfile.RInfo {
	util.Assert(it.IsRegister(), "item %s is not a register", it)
	return it.reg
}

// IsRegister returns true if the item is in a register and not spilled.
func (it *Item) IsRegister() bool {
	return it.mode == RegMode && it.spillIx == NotSpilled
}

// SetSpillIx places the item in spill slot ix.
func (it *Item) SetSpillIx(ix int) {
	it.mode = RegMode
	it.spillIx = ix
	it.cached = false
}

// SpillIx returns the spill slot of the item, NotSpilled if it is not spilled.
func (it *Item) SpillIx() int {
	return it.spillIx
}

// IsSpilled returns true if the item was evicted to a spill slot.
func (it *Item) IsSpilled() bool {
	return it.spillIx != NotSpilled
}

// SetStack places the item in local variable slot index.
func (it *Item) SetStack(index int) {
	it.mode = StackMode
	it.local = index
	it.spillIx = NotSpilled
}

// Stack returns the local variable slot of a stack placement.
func (it *Item) Stack() int {
	util.Assert(it.mode == StackMode, "item %s is not a local", it)
	return it.local
}

// IsStack returns true if the item is in memory, either a local variable slot or a spill slot.
func (it *Item) IsStack() bool {
	return it.mode == StackMode || it.spillIx != NotSpilled
}

// IsLocal returns true if the item is in a local variable slot.
func (it *Item) IsLocal() bool {
	return it.mode == StackMode && it.spillIx == NotSpilled
}

// SetConstant places the item as an immediate.
func (it *Item) SetConstant() {
	it.mode = ConstMode
	it.spillIx = NotSpilled
}

// IsConstant returns true if the item is an immediate.
func (it *Item) IsConstant() bool {
	return it.mode == ConstMode
}

// SetNoResult clears the placement.
func (it *Item) SetNoResult() {
	it.mode = NoMode
}

// HasResult returns true if the item has a placement. For hints it is true if a register is requested.
func (it *Item) HasResult() bool {
	return it.mode != NoMode
}

// Mode returns the placement kind.
func (it *Item) Mode() Mode {
	return it.mode
}

// SetRound32 requests single precision rounding.
func (it *Item) SetRound32(v bool) {
	it.round32 = v
}

// IsRound32 returns true if single precision rounding is requested.
func (it *Item) IsRound32() bool {
	return it.round32
}

// IsCached returns true if the register caches a local variable.
func (it *Item) IsCached() bool {
	return it.cached
}

// Type returns the type of the placed value, or of the hint.
func (it *Item) Type() types.ValueType {
	if it.value != nil {
		return it.value.Type()
	}
	return it.typ
}

// Value returns the placed instruction, nil for hints.
func (it *Item) Value() *hir.Instruction {
	return it.value
}

// SetDestroysRegister marks the register as overwritten by the consuming operation.
func (it *Item) SetDestroysRegister(v bool) {
	it.destroys = v
}

// DestroysRegister returns true if the consuming operation overwrites the register.
func (it *Item) DestroysRegister() bool {
	return it.destroys
}

// HandleFloatKind marks floating point items as destroyed. Floating point operations pop their operands.
func (it *Item) HandleFloatKind() {
	if it.Type().IsFloatKind() {
		it.destroys = true
	}
}

// IntConstant returns the value of an int, long or null constant.
func (it *Item) IntConstant() int64 {
	util.Assert(it.IsConstant(), "item %s is not a constant", it)
	return it.value.Op().(*hir.Constant).Int
}

// FloatConstant returns the value of a float or double constant.
func (it *Item) FloatConstant() float64 {
	util.Assert(it.IsConstant(), "item %s is not a constant", it)
	return it.value.Op().(*hir.Constant).Float
}

// SetFromItem copies the placement of o. The destroys flag is kept.
func (it *Item) SetFromItem(o *Item) {
	it.mode = o.mode
	it.reg = o.reg
	it.local = o.local
	it.spillIx = o.spillIx
	it.round32 = o.round32
	it.cached = o.cached
	it.value = o.value
	if o.value == nil {
		it.typ = o.typ
	}
}

// Clone returns a copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	return &c
}

// Equal returns true if it and o describe the same placement of the same value.
func (it *Item) Equal(o *Item) bool {
	return it.mode == o.mode && it.reg == o.reg && it.local == o.local && it.spillIx == o.spillIx &&
		it.value == o.value && it.round32 == o.round32 && it.cached == o.cached && it.Type() == o.Type()
}

// String provides a print friendly string representation of the Item.
func (it *Item) String() string {
	name := "hint"
	if it.value != nil {
		name = it.value.Name()
	}
	switch {
	case it.IsSpilled():
		return fmt.Sprintf("%s@spill%d", name, it.spillIx)
	case it.mode == RegMode && it.cached:
		return fmt.Sprintf("%s@%s(cached)", name, it.reg)
	case it.mode == RegMode:
		return fmt.Sprintf("%s@%s", name, it.reg)
	case it.mode == StackMode:
		return fmt.Sprintf("%s@local%d", name, it.local)
	case it.mode == ConstMode:
		return fmt.Sprintf("%s@const", name)
	default:
		return fmt.Sprintf("%s@none", name)
	}
}
