// Package emit is the boundary between code generation and instruction encoding. The Emitter keeps track of the
// floating point register stack and the stack pointer offset while forwarding abstract machine instructions to an
// Encoder. Listing prints them, Recorder keeps them for inspection.
package emit

import (
	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Opcode defines the operation of an Instr.
type Opcode int

// Instr is one abstract machine instruction.
type Instr struct {
	Code     Opcode          // Operation.
	Result   *items.Item     // Result placement, nil for statements.
	Args     []*items.Item   // Operand placements.
	Temps    []regfile.RInfo // Scratch registers reserved for the instruction.
	Cond     types.Condition // Condition of branches and selects.
	Targets  []*hir.Block    // Jump targets.
	Aux      int64           // Immediate: offset, key, frame size or monitor slot.
	Aux2     int64           // Second immediate: upper key of switch ranges.
	Name     string          // Symbol: call target, runtime routine, class or operation name.
	Elem     types.BasicType // Element type of memory accesses.
	Backward bool            // The jump is a backward branch.
	OopRegs  []regfile.RInfo // Registers holding references across a backward branch.
	Words    int             // Stack words released by calls.
	Bci      int             // Source position for debug information.
}

// Encoder receives the instruction stream of a method.
type Encoder interface {
	// Label binds the label of block b. Backward branch targets are aligned.
	Label(b *hir.Block, align bool)
	// Move copies src to dst. Either may be a register, a local, or a spill slot; src may be a constant.
	Move(dst, src *items.Item)
	// Spill stores register item src to spill slot slot.
	Spill(slot int, src *items.Item)
	// Push pushes src onto the machine stack.
	Push(src *items.Item)
	// Pop pops the top of the machine stack into register item dst.
	Pop(dst *items.Item)
	// Emit encodes every other instruction.
	Emit(in *Instr)
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	OpNop Opcode = iota
	OpMethodEntry
	OpHandlerEntry
	OpFxch
	OpFpop
	OpFcopy
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpShl
	OpShr
	OpUshr
	OpAnd
	OpOr
	OpXor
	OpInc
	OpDec
	OpCmp
	OpCompare
	OpConvert
	OpIntrinsic
	OpArrayCopy
	OpArrayLength
	OpLoadIndexed
	OpStoreIndexed
	OpLoadField
	OpStoreField
	OpNullCheck
	OpDivZeroCheck
	OpRangeCheck
	OpArrayStoreCheck
	OpCall
	OpRuntimeCall
	OpNewInstance
	OpNewTypeArray
	OpNewObjectArray
	OpNewMultiArray
	OpCheckCast
	OpInstanceOf
	OpMonitorEnter
	OpMonitorExit
	OpSetPrecision32
	OpRestorePrecision
	OpJump
	OpBranch
	OpSelect
	OpSwitchCase
	OpSwitchRange
	OpReturn
	OpThrow
	OpJsr
	OpRet
)

// -------------------
// ----- Globals -----
// -------------------

// opNames provides mnemonics for Opcode constants.
var opNames = [...]string{
	"nop",
	"enter",
	"handler",
	"fxch",
	"fpop",
	"fld",
	"add",
	"sub",
	"mul",
	"div",
	"rem",
	"neg",
	"shl",
	"sar",
	"shr",
	"and",
	"or",
	"xor",
	"inc",
	"dec",
	"cmp",
	"cmp2int",
	"conv",
	"math",
	"arraycopy",
	"arraylength",
	"aload",
	"astore",
	"getfield",
	"putfield",
	"nullcheck",
	"div0check",
	"rangecheck",
	"storecheck",
	"call",
	"callrt",
	"new",
	"newarray",
	"anewarray",
	"multianewarray",
	"checkcast",
	"instanceof",
	"monitorenter",
	"monitorexit",
	"fprec32",
	"fprec64",
	"jmp",
	"jcc",
	"select",
	"case",
	"caserange",
	"ret",
	"throw",
	"jsr",
	"retsub",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String provides a print friendly string representation of the Opcode.
func (op Opcode) String() string {
	return opNames[op]
}

// IsCall returns true for instructions that transfer control to other code and return. Their floating point
// results are announced separately through SetFpuResult.
func (op Opcode) IsCall() bool {
	return op == OpCall || op == OpRuntimeCall
}

// ArithmeticCode returns the opcode of an arithmetic operation.
func ArithmeticCode(op types.ArithmeticOperation) Opcode {
	switch op {
	case types.Add:
		return OpAdd
	case types.Sub:
		return OpSub
	case types.Mul:
		return OpMul
	case types.Div:
		return OpDiv
	default:
		return OpRem
	}
}

// ShiftCode returns the opcode of a shift operation.
func ShiftCode(op types.ShiftOperation) Opcode {
	switch op {
	case types.Shl:
		return OpShl
	case types.Shr:
		return OpShr
	default:
		return OpUshr
	}
}

// LogicCode returns the opcode of a bitwise operation.
func LogicCode(op types.LogicOperation) Opcode {
	switch op {
	case types.And:
		return OpAnd
	case types.Or:
		return OpOr
	default:
		return OpXor
	}
}
