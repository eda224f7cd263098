// Package regfile defines register identifiers, register masks and the register file of the x86-32 target.
// Registers are index based handles: a word register is an allocation number, a long register is a pair of
// allocation numbers and a float or double register is a position in the floating point register file.
package regfile

import (
	"fmt"
	"math/bits"
	"strings"

	"c1gen/src/ir/hir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind defines the register class of an RInfo.
type Kind uint8

// RInfo identifies a word register, a register pair, or a floating point register. The zero value is no register.
type RInfo struct {
	kind Kind  // Register class.
	lo   uint8 // Allocation number of word and float registers, low half of register pairs.
	hi   uint8 // High half of register pairs.
}

// RegMask is a set of word registers, indexed by allocation number.
type RegMask uint8

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Illegal Kind = iota // Illegal is the kind of NoReg.
	Word                // Word is a single general purpose register.
	Long                // Long is a pair of general purpose registers.
	Float               // Float is a single precision floating point register.
	Double              // Double is a double precision floating point register.
)

// Register file dimensions.
const (
	NumCPURegs = 6 // Number of allocatable general purpose registers.
	NumFPURegs = 6 // Number of floating point registers.
)

// Allocation numbers of the general purpose registers. Lower numbers are handed out first.
const (
	RnrESI = iota
	RnrEDI
	RnrEBX
	RnrEAX
	RnrEDX
	RnrECX
)

// EmptyMask is the empty register set.
const EmptyMask RegMask = 0

// AllMask holds every allocatable register.
const AllMask RegMask = 1<<NumCPURegs - 1

// -------------------
// ----- Globals -----
// -------------------

// NoReg is the invalid register.
var NoReg = RInfo{}

// Word registers.
var (
	ESI = WordReg(RnrESI)
	EDI = WordReg(RnrEDI)
	EBX = WordReg(RnrEBX)
	EAX = WordReg(RnrEAX)
	EDX = WordReg(RnrEDX)
	ECX = WordReg(RnrECX)
)

// Fixed register roles of the target.
var (
	DivIn      = EAX                       // Dividend of integer division.
	DivOut     = EAX                       // Quotient of integer division.
	RemOut     = EDX                       // Remainder of integer division.
	ShiftCount = ECX                       // Variable shift count.
	Ret1       = EAX                       // Word results.
	Ret2       = LongReg(RnrEAX, RnrEDX)   // Long results.
	RetF0      = FloatReg(0)               // Float results.
	RetD0      = DoubleReg(0)              // Double results.
	NoRet      = ESI                       // Never holds a result, used as a scratch register around phi moves.
	Recv       = ECX                       // Receiver of calls.
	SyncTmp    = EAX                       // Temporary of monitor operations.
	ByteRegs   = MaskOf(EAX, ECX, EDX, EBX) // Registers with an addressable low byte.
)

// cpuNames holds the assembler names of the general purpose registers by allocation number.
var cpuNames = [...]string{
	"esi",
	"edi",
	"ebx",
	"eax",
	"edx",
	"ecx",
}

// kindNames provides string literals for Kind constants.
var kindNames = [...]string{
	"illegal",
	"word",
	"long",
	"float",
	"double",
}

// ---------------------
// ----- Functions -----
// ---------------------

// WordReg returns the word register with allocation number rnr.
func WordReg(rnr int) RInfo {
	return RInfo{kind: Word, lo: uint8(rnr)}
}

// LongReg returns the register pair lo:hi.
func LongReg(lo, hi int) RInfo {
	return RInfo{kind: Long, lo: uint8(lo), hi: uint8(hi)}
}

// FloatReg returns the single precision floating point register n.
func FloatReg(n int) RInfo {
	return RInfo{kind: Float, lo: uint8(n)}
}

// DoubleReg returns the double precision floating point register n.
func DoubleReg(n int) RInfo {
	return RInfo{kind: Double, lo: uint8(n)}
}

// ResultReg returns the fixed register holding results of type typ.
func ResultReg(typ types.ValueType) RInfo {
	switch typ {
	case types.Int, types.Object, types.Address:
		return Ret1
	case types.Long:
		return Ret2
	case types.Float:
		return RetF0
	case types.Double:
		return RetD0
	default:
		return NoReg
	}
}

// KindOf returns the register kind holding values of type typ.
func KindOf(typ types.ValueType) Kind {
	switch typ {
	case types.Int, types.Object, types.Address:
		return Word
	case types.Long:
		return Long
	case types.Float:
		return Float
	case types.Double:
		return Double
	default:
		return Illegal
	}
}

// String provides a print friendly string representation of the Kind.
func (k Kind) String() string {
	return kindNames[k]
}

// Kind returns the register class of r.
func (r RInfo) Kind() Kind {
	return r.kind
}

// IsValid returns true if r identifies a register.
func (r RInfo) IsValid() bool {
	return r.kind != Illegal
}

// IsWord returns true if r is a word register.
func (r RInfo) IsWord() bool {
	return r.kind == Word
}

// IsLong returns true if r is a register pair.
func (r RInfo) IsLong() bool {
	return r.kind == Long
}

// IsFloatKind returns true if r is a floating point register.
func (r RInfo) IsFloatKind() bool {
	return r.kind == Float || r.kind == Double
}

// Reg returns the allocation number of a word register.
func (r RInfo) Reg() int {
	if r.kind != Word {
		panic(fmt.Sprintf("%s is not a word register", r))
	}
	return int(r.lo)
}

// Lo returns the allocation number of the low half of a register pair.
func (r RInfo) Lo() int {
	if r.kind != Long {
		panic(fmt.Sprintf("%s is not a register pair", r))
	}
	return int(r.lo)
}

// Hi returns the allocation number of the high half of a register pair.
func (r RInfo) Hi() int {
	if r.kind != Long {
		panic(fmt.Sprintf("%s is not a register pair", r))
	}
	return int(r.hi)
}

// Fpu returns the floating point register number of r.
func (r RInfo) Fpu() int {
	if !r.IsFloatKind() {
		panic(fmt.Sprintf("%s is not a floating point register", r))
	}
	return int(r.lo)
}

// CPU returns the allocation numbers of the general purpose registers covered by r.
func (r RInfo) CPU() []int {
	switch r.kind {
	case Word:
		return []int{int(r.lo)}
	case Long:
		return []int{int(r.lo), int(r.hi)}
	default:
		return nil
	}
}

// Overlaps returns true if r and o share a general purpose register. Floating point registers never overlap.
func (r RInfo) Overlaps(o RInfo) bool {
	for _, e1 := range r.CPU() {
		for _, e2 := range o.CPU() {
			if e1 == e2 {
				return true
			}
		}
	}
	return false
}

// String returns the assembler name of r.
func (r RInfo) String() string {
	switch r.kind {
	case Word:
		return cpuNames[r.lo]
	case Long:
		return cpuNames[r.lo] + ":" + cpuNames[r.hi]
	case Float, Double:
		return fmt.Sprintf("f%d", r.lo)
	default:
		return "noreg"
	}
}

// MaskOf returns the set of word registers regs.
func MaskOf(regs ...RInfo) RegMask {
	m := EmptyMask
	for _, e1 := range regs {
		for _, e2 := range e1.CPU() {
			m = m.Add(e2)
		}
	}
	return m
}

// Add returns m with register rnr added.
func (m RegMask) Add(rnr int) RegMask {
	return m | 1<<rnr
}

// Remove returns m with register rnr removed.
func (m RegMask) Remove(rnr int) RegMask {
	return m &^ (1 << rnr)
}

// Contains returns true if register rnr is in m.
func (m RegMask) Contains(rnr int) bool {
	return m&(1<<rnr) != 0
}

// ContainsReg returns true if every general purpose register of r is in m.
func (m RegMask) ContainsReg(r RInfo) bool {
	cpu := r.CPU()
	for _, e1 := range cpu {
		if !m.Contains(e1) {
			return false
		}
	}
	return len(cpu) > 0
}

// IsEmpty returns true if m holds no register.
func (m RegMask) IsEmpty() bool {
	return m == EmptyMask
}

// Len returns the number of registers in m.
func (m RegMask) Len() int {
	return bits.OnesCount8(uint8(m))
}

// First returns the register with the lowest allocation number in m.
func (m RegMask) First() RInfo {
	if m.IsEmpty() {
		panic("register mask is empty")
	}
	return WordReg(bits.TrailingZeros8(uint8(m)))
}

// Regs returns the registers of m in ascending allocation number.
func (m RegMask) Regs() []RInfo {
	res := make([]RInfo, 0, m.Len())
	for rnr := 0; rnr < NumCPURegs; rnr++ {
		if m.Contains(rnr) {
			res = append(res, WordReg(rnr))
		}
	}
	return res
}

// String returns the register names of m.
func (m RegMask) String() string {
	names := make([]string, 0, m.Len())
	for _, e1 := range m.Regs() {
		names = append(names, e1.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}
