// Package hir provides the tree shaped intermediate representation consumed by the code generator.
// A method is a list of basic blocks in layout order. Each block holds a chain of instructions whose operands
// reference earlier instructions of the same block (or the block's phis). Use counts are maintained by the block
// constructors and are immutable once the method is sealed.
package hir

import (
	"fmt"
	"strings"

	"c1gen/src/ir/hir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Instruction is one node of the instruction tree. The operation specific part is held by Op.
type Instruction struct {
	id     int             // Unique identifier within the method.
	name   string          // Textual name of the value.
	bci    int             // Originating position in the source instruction stream.
	typ    types.ValueType // Static type of the value, Void for statements.
	uses   int             // Number of operand references to this instruction.
	pinned bool            // Pinned instructions are evaluated at their position in the block.
	op     Op              // Operation specific data.
	block  *Block          // Block holding the instruction.
	users  []*Instruction  // Instructions referencing this one, one entry per use.
}

// Op is the closed set of instruction kinds. Only types of this package implement it.
type Op interface {
	Operands() []*Instruction // Operands in evaluation order, including exit stack values.
	isOp()
}

// BlockEnd is implemented by the operations terminating a block.
type BlockEnd interface {
	Op
	Successors() []*Block       // Successor blocks, the default successor last.
	ExitState() []*Instruction // Values live across the edge, bottom of the stack first.
}

// sealed makes embedding types members of the Op set.
type sealed struct{}

func (sealed) isOp() {}

// Constant is a compile time constant. Object constants are null.
type Constant struct {
	sealed
	Int   int64   // Value of int, long and address constants.
	Float float64 // Value of float and double constants.
}

// LoadLocal reads a local variable.
type LoadLocal struct {
	sealed
	Index         int  // Local variable index.
	PinnedByStore bool // Set when a later store to the same local precedes the consumer.
}

// StoreLocal writes a local variable.
type StoreLocal struct {
	sealed
	Index int
	Value *Instruction
}

// Phi is a value live on block entry. Index is its position on the entry stack.
type Phi struct {
	sealed
	Index int
}

// ArithmeticOp computes X op Y.
type ArithmeticOp struct {
	sealed
	Op   types.ArithmeticOperation
	X, Y *Instruction
}

// ShiftOp computes X op Y where Y is the shift count.
type ShiftOp struct {
	sealed
	Op   types.ShiftOperation
	X, Y *Instruction
}

// LogicOp computes a bitwise X op Y.
type LogicOp struct {
	sealed
	Op   types.LogicOperation
	X, Y *Instruction
}

// NegateOp computes -X.
type NegateOp struct {
	sealed
	X *Instruction
}

// CompareOp computes a three way comparison of X and Y.
type CompareOp struct {
	sealed
	Op   types.CompareOperation
	X, Y *Instruction
}

// Convert converts Value between primitive types.
type Convert struct {
	sealed
	Op    types.ConvertOperation
	Value *Instruction
}

// IfOp selects TVal if X Cond Y holds, FVal otherwise.
type IfOp struct {
	sealed
	X          *Instruction
	Cond       types.Condition
	Y          *Instruction
	TVal, FVal *Instruction
}

// ArrayLength reads the length of Array.
type ArrayLength struct {
	sealed
	Array *Instruction
}

// LoadIndexed reads Array[Index].
type LoadIndexed struct {
	sealed
	Array, Index *Instruction
	Elem         types.BasicType
}

// StoreIndexed writes Array[Index] = Value.
type StoreIndexed struct {
	sealed
	Array, Index, Value *Instruction
	Elem                types.BasicType
}

// LoadField reads a field at Offset words from Obj.
type LoadField struct {
	sealed
	Obj    *Instruction
	Offset int
	Field  types.BasicType
	Static bool
	Loaded bool // False if the holder class is not yet loaded and the access needs patching.
}

// StoreField writes a field at Offset words from Obj.
type StoreField struct {
	sealed
	Obj, Value *Instruction
	Offset     int
	Field      types.BasicType
	Static     bool
	Loaded     bool
}

// NullCheck traps if Obj is null.
type NullCheck struct {
	sealed
	Obj *Instruction
}

// Intrinsic is an inlined math function.
type Intrinsic struct {
	sealed
	ID   types.IntrinsicID
	Args []*Instruction
}

// Invoke calls Target. Receiver is nil for static calls.
type Invoke struct {
	sealed
	Code     types.InvokeCode
	Receiver *Instruction
	Args     []*Instruction
	Target   string
	Loaded   bool // The target method is loaded.
	Final    bool // The target method cannot be overridden.
}

// NewInstance allocates an object of class Klass.
type NewInstance struct {
	sealed
	Klass string
}

// NewTypeArray allocates a primitive array.
type NewTypeArray struct {
	sealed
	Length *Instruction
	Elem   types.BasicType
}

// NewObjectArray allocates an array of Length references to instances of Klass.
type NewObjectArray struct {
	sealed
	Length *Instruction
	Klass  string
}

// NewMultiArray allocates an array of class Klass with one dimension per entry of Dims, outermost first.
type NewMultiArray struct {
	sealed
	Dims  []*Instruction
	Klass string
}

// CheckCast traps if Obj is not an instance of Klass and yields Obj.
type CheckCast struct {
	sealed
	Obj   *Instruction
	Klass string
}

// InstanceOf yields 1 if Obj is an instance of Klass.
type InstanceOf struct {
	sealed
	Obj   *Instruction
	Klass string
}

// MonitorEnter locks Obj.
type MonitorEnter struct {
	sealed
	Obj       *Instruction
	MonitorNo int
}

// MonitorExit unlocks Obj.
type MonitorExit struct {
	sealed
	Obj       *Instruction
	MonitorNo int
}

// LoopEnter marks the entry edge of a loop.
type LoopEnter struct {
	sealed
	LoopID int
}

// LoopExit marks an exit edge of a loop.
type LoopExit struct {
	sealed
	LoopID int
}

// Goto jumps to Sux.
type Goto struct {
	sealed
	Sux   *Block
	State []*Instruction
}

// If branches to TSux if X Cond Y holds, to FSux otherwise.
type If struct {
	sealed
	X          *Instruction
	Cond       types.Condition
	Y          *Instruction
	TSux, FSux *Block
	State      []*Instruction
}

// TableSwitch jumps to Sux[Tag-LoKey] or Default.
type TableSwitch struct {
	sealed
	Tag     *Instruction
	LoKey   int
	Sux     []*Block
	Default *Block
	State   []*Instruction
}

// LookupSwitch jumps to Sux[i] where Keys[i] == Tag, or Default. Keys are sorted.
type LookupSwitch struct {
	sealed
	Tag     *Instruction
	Keys    []int
	Sux     []*Block
	Default *Block
	State   []*Instruction
}

// Return leaves the method. Value is nil for void methods.
type Return struct {
	sealed
	Value *Instruction
}

// Throw raises Exception.
type Throw struct {
	sealed
	Exception *Instruction
	State     []*Instruction
}

// Jsr calls the local subroutine starting at Sub.
type Jsr struct {
	sealed
	Sub   *Block
	State []*Instruction
}

// JsrContinuation marks the point a local subroutine returns to.
type JsrContinuation struct {
	sealed
}

// Ret returns from a local subroutine through the address held in local Index.
type Ret struct {
	sealed
	Index int
}

// ---------------------
// ----- Functions -----
// ---------------------

// Id returns the unique identifier of Instruction x.
func (x *Instruction) Id() int {
	return x.id
}

// Name returns the textual name of Instruction x.
func (x *Instruction) Name() string {
	return x.name
}

// Bci returns the originating position of x. Spill decisions evict the lowest position first.
func (x *Instruction) Bci() int {
	return x.bci
}

// Type returns the static type of x.
func (x *Instruction) Type() types.ValueType {
	return x.typ
}

// UseCount returns the number of operand references to x.
func (x *Instruction) UseCount() int {
	return x.uses
}

// IsPinned returns true if x is evaluated at its own position.
func (x *Instruction) IsPinned() bool {
	return x.pinned
}

// IsRoot returns true if x is evaluated by the block driver rather than by its user.
func (x *Instruction) IsRoot() bool {
	return x.pinned || x.uses > 1
}

// Op returns the operation specific part of x.
func (x *Instruction) Op() Op {
	return x.op
}

// Block returns the block holding x.
func (x *Instruction) Block() *Block {
	return x.block
}

// Users returns the instructions referencing x, one entry per use.
func (x *Instruction) Users() []*Instruction {
	return x.users
}

// Pin forces x to be evaluated at its position in the block.
func (x *Instruction) Pin() *Instruction {
	x.pinned = true
	return x
}

// SetBci overrides the originating position of x.
func (x *Instruction) SetBci(bci int) *Instruction {
	x.bci = bci
	return x
}

// IsConstant returns true if x is a Constant.
func (x *Instruction) IsConstant() bool {
	_, ok := x.op.(*Constant)
	return ok
}

// IsNonZeroConstant returns true if x is an integer constant other than zero.
func (x *Instruction) IsNonZeroConstant() bool {
	c, ok := x.op.(*Constant)
	return ok && (x.typ == types.Int || x.typ == types.Long) && c.Int != 0
}

// LocalIndex returns the local index of a LoadLocal, or -1.
func (x *Instruction) LocalIndex() int {
	if l, ok := x.op.(*LoadLocal); ok {
		return l.Index
	}
	return -1
}

// String returns the textual representation of x.
func (x *Instruction) String() string {
	sb := strings.Builder{}
	if x.typ != types.Void {
		sb.WriteString(fmt.Sprintf("%s %s = ", x.typ, x.name))
	}
	sb.WriteString(opName(x.op))
	for i1, e1 := range x.op.Operands() {
		if i1 == 0 {
			sb.WriteRune(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.name)
	}
	if x.IsRoot() {
		sb.WriteString(fmt.Sprintf(" ; uses=%d root", x.uses))
	} else {
		sb.WriteString(fmt.Sprintf(" ; uses=%d", x.uses))
	}
	return sb.String()
}

// opName returns the mnemonic of an operation for printing.
func opName(op Op) string {
	switch o := op.(type) {
	case *Constant:
		return "const"
	case *LoadLocal:
		return fmt.Sprintf("load_local %d", o.Index)
	case *StoreLocal:
		return fmt.Sprintf("store_local %d", o.Index)
	case *Phi:
		return fmt.Sprintf("phi %d", o.Index)
	case *ArithmeticOp:
		return o.Op.String()
	case *ShiftOp:
		return o.Op.String()
	case *LogicOp:
		return o.Op.String()
	case *NegateOp:
		return "neg"
	case *CompareOp:
		return o.Op.String()
	case *Convert:
		return o.Op.String()
	case *IfOp:
		return "ifop " + o.Cond.String()
	case *ArrayLength:
		return "array_length"
	case *LoadIndexed:
		return "load_indexed " + o.Elem.String()
	case *StoreIndexed:
		return "store_indexed " + o.Elem.String()
	case *LoadField:
		return fmt.Sprintf("load_field +%d", o.Offset)
	case *StoreField:
		return fmt.Sprintf("store_field +%d", o.Offset)
	case *NullCheck:
		return "null_check"
	case *Intrinsic:
		return o.ID.String()
	case *Invoke:
		return o.Code.String() + " " + o.Target
	case *NewInstance:
		return "new " + o.Klass
	case *NewTypeArray:
		return "newarray " + o.Elem.String()
	case *NewObjectArray:
		return "anewarray " + o.Klass
	case *NewMultiArray:
		return fmt.Sprintf("multianewarray %s %d", o.Klass, len(o.Dims))
	case *CheckCast:
		return "checkcast " + o.Klass
	case *InstanceOf:
		return "instanceof " + o.Klass
	case *MonitorEnter:
		return "monitorenter"
	case *MonitorExit:
		return "monitorexit"
	case *LoopEnter:
		return "loop_enter"
	case *LoopExit:
		return "loop_exit"
	case *Goto:
		return "goto " + o.Sux.Name()
	case *If:
		return fmt.Sprintf("if %s then %s else %s", o.Cond, o.TSux.Name(), o.FSux.Name())
	case *TableSwitch:
		return "tableswitch"
	case *LookupSwitch:
		return "lookupswitch"
	case *Return:
		return "return"
	case *Throw:
		return "throw"
	case *Jsr:
		return "jsr " + o.Sub.Name()
	case *JsrContinuation:
		return "jsr_continuation"
	case *Ret:
		return fmt.Sprintf("ret %d", o.Index)
	default:
		return "?"
	}
}

// ----- Operands -----

func (op *Constant) Operands() []*Instruction { return nil }
func (op *LoadLocal) Operands() []*Instruction { return nil }
func (op *StoreLocal) Operands() []*Instruction { return []*Instruction{op.Value} }
func (op *Phi) Operands() []*Instruction { return nil }
func (op *ArithmeticOp) Operands() []*Instruction { return []*Instruction{op.X, op.Y} }
func (op *ShiftOp) Operands() []*Instruction { return []*Instruction{op.X, op.Y} }
func (op *LogicOp) Operands() []*Instruction { return []*Instruction{op.X, op.Y} }
func (op *NegateOp) Operands() []*Instruction { return []*Instruction{op.X} }
func (op *CompareOp) Operands() []*Instruction { return []*Instruction{op.X, op.Y} }
func (op *Convert) Operands() []*Instruction { return []*Instruction{op.Value} }
func (op *IfOp) Operands() []*Instruction { return []*Instruction{op.X, op.Y, op.TVal, op.FVal} }
func (op *ArrayLength) Operands() []*Instruction { return []*Instruction{op.Array} }
func (op *LoadIndexed) Operands() []*Instruction { return []*Instruction{op.Array, op.Index} }
func (op *StoreIndexed) Operands() []*Instruction { return []*Instruction{op.Array, op.Index, op.Value} }
func (op *LoadField) Operands() []*Instruction { return []*Instruction{op.Obj} }
func (op *StoreField) Operands() []*Instruction { return []*Instruction{op.Obj, op.Value} }
func (op *NullCheck) Operands() []*Instruction { return []*Instruction{op.Obj} }
func (op *Intrinsic) Operands() []*Instruction { return op.Args }
func (op *NewInstance) Operands() []*Instruction { return nil }
func (op *NewTypeArray) Operands() []*Instruction { return []*Instruction{op.Length} }
func (op *NewObjectArray) Operands() []*Instruction { return []*Instruction{op.Length} }
func (op *NewMultiArray) Operands() []*Instruction { return op.Dims }
func (op *CheckCast) Operands() []*Instruction { return []*Instruction{op.Obj} }
func (op *InstanceOf) Operands() []*Instruction { return []*Instruction{op.Obj} }
func (op *MonitorEnter) Operands() []*Instruction { return []*Instruction{op.Obj} }
func (op *MonitorExit) Operands() []*Instruction { return []*Instruction{op.Obj} }
func (op *LoopEnter) Operands() []*Instruction { return nil }
func (op *LoopExit) Operands() []*Instruction { return nil }
func (op *Return) Operands() []*Instruction { return optional(op.Value) }
func (op *Ret) Operands() []*Instruction { return nil }
func (op *JsrContinuation) Operands() []*Instruction { return nil }
func (op *Goto) Operands() []*Instruction { return op.State }
func (op *Jsr) Operands() []*Instruction { return op.State }

func (op *Invoke) Operands() []*Instruction {
	return append(optional(op.Receiver), op.Args...)
}

func (op *If) Operands() []*Instruction {
	return append([]*Instruction{op.X, op.Y}, op.State...)
}

func (op *TableSwitch) Operands() []*Instruction {
	return append([]*Instruction{op.Tag}, op.State...)
}

func (op *LookupSwitch) Operands() []*Instruction {
	return append([]*Instruction{op.Tag}, op.State...)
}

func (op *Throw) Operands() []*Instruction {
	return append([]*Instruction{op.Exception}, op.State...)
}

// optional returns a one element slice holding x, or nil.
func optional(x *Instruction) []*Instruction {
	if x == nil {
		return nil
	}
	return []*Instruction{x}
}

// ArgSize returns the number of argument words pushed for the call, receiver included.
func (op *Invoke) ArgSize() int {
	n := 0
	if op.Receiver != nil {
		n++
	}
	for _, e1 := range op.Args {
		n += e1.Type().Size()
	}
	return n
}

// ----- Block ends -----

func (op *Goto) Successors() []*Block { return []*Block{op.Sux} }
func (op *Goto) ExitState() []*Instruction { return op.State }
func (op *If) Successors() []*Block { return []*Block{op.TSux, op.FSux} }
func (op *If) ExitState() []*Instruction { return op.State }
func (op *Return) Successors() []*Block { return nil }
func (op *Return) ExitState() []*Instruction { return nil }
func (op *Throw) Successors() []*Block { return nil }
func (op *Throw) ExitState() []*Instruction { return op.State }
func (op *Jsr) Successors() []*Block { return []*Block{op.Sub} }
func (op *Jsr) ExitState() []*Instruction { return op.State }
func (op *Ret) Successors() []*Block { return nil }
func (op *Ret) ExitState() []*Instruction { return nil }

func (op *TableSwitch) Successors() []*Block {
	return append(append([]*Block{}, op.Sux...), op.Default)
}

func (op *TableSwitch) ExitState() []*Instruction { return op.State }

func (op *LookupSwitch) Successors() []*Block {
	return append(append([]*Block{}, op.Sux...), op.Default)
}

func (op *LookupSwitch) ExitState() []*Instruction { return op.State }
