// Package types defines HIR value types, operation codes and conditions.
package types

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ValueType defines the static type of an HIR value.
type ValueType uint8

// BasicType defines the element type of array and field accesses.
type BasicType uint8

// ArithmeticOperation defines a binary arithmetic operation.
type ArithmeticOperation uint8

// ShiftOperation defines a shift operation.
type ShiftOperation uint8

// LogicOperation defines a bitwise logic operation.
type LogicOperation uint8

// CompareOperation defines a three way comparison producing -1, 0 or 1.
type CompareOperation uint8

// ConvertOperation defines a primitive conversion.
type ConvertOperation uint8

// Condition defines the relational condition of a conditional branch.
type Condition uint8

// IntrinsicID identifies an inlined math intrinsic or the arraycopy statement.
type IntrinsicID uint8

// InvokeCode defines the kind of a method invocation.
type InvokeCode uint8

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Void    ValueType = iota // Void is the type of statements.
	Int                      // Int is a 32-bit integer.
	Long                     // Long is a 64-bit integer, held in a register pair.
	Float                    // Float is a single precision float.
	Double                   // Double is a double precision float.
	Object                   // Object is a reference.
	Address                  // Address is a return address of a subroutine.
)

const (
	Boolean BasicType = iota
	Byte
	Char
	Short
	IntElem
	LongElem
	FloatElem
	DoubleElem
	ObjectElem
)

const (
	Add ArithmeticOperation = iota // Add identifies a = b + c.
	Sub                            // Sub identifies a = b - c.
	Mul                            // Mul identifies a = b * c.
	Div                            // Div identifies a = b / c.
	Rem                            // Rem identifies a = b % c.
)

const (
	Shl  ShiftOperation = iota // Shl identifies a = b << c.
	Shr                        // Shr identifies a = b >> c (arithmetic).
	Ushr                       // Ushr identifies a = b >>> c (logical).
)

const (
	And LogicOperation = iota
	Or
	Xor
)

const (
	LCmp  CompareOperation = iota // LCmp compares two longs.
	FCmpL                         // FCmpL compares two floats, unordered gives -1.
	FCmpG                         // FCmpG compares two floats, unordered gives 1.
	DCmpL                         // DCmpL compares two doubles, unordered gives -1.
	DCmpG                         // DCmpG compares two doubles, unordered gives 1.
)

const (
	I2L ConvertOperation = iota
	I2F
	I2D
	L2I
	L2F
	L2D
	F2I
	F2L
	F2D
	D2I
	D2L
	D2F
	I2B
	I2C
	I2S
)

const (
	Eq Condition = iota // Eq defines ==.
	Ne                  // Ne defines !=.
	Lt                  // Lt defines <.
	Le                  // Le defines <=.
	Gt                  // Gt defines >.
	Ge                  // Ge defines >=.
)

const (
	Sin IntrinsicID = iota
	Cos
	Sqrt
	ArrayCopy
)

const (
	InvokeStatic InvokeCode = iota
	InvokeSpecial
	InvokeVirtual
	InvokeInterface
)

// -------------------
// ----- Globals -----
// -------------------

// vTyp provides string literals for ValueType constants.
var vTyp = [...]string{
	"void",
	"int",
	"long",
	"float",
	"double",
	"object",
	"address",
}

// bTyp provides string literals for BasicType constants.
var bTyp = [...]string{
	"boolean",
	"byte",
	"char",
	"short",
	"int",
	"long",
	"float",
	"double",
	"object",
}

// aTyp provides string literals for ArithmeticOperation constants.
var aTyp = [...]string{
	"add",
	"sub",
	"mul",
	"div",
	"rem",
}

// sTyp provides string literals for ShiftOperation constants.
var sTyp = [...]string{
	"shl",
	"shr",
	"ushr",
}

// lTyp provides string literals for LogicOperation constants.
var lTyp = [...]string{
	"and",
	"or",
	"xor",
}

// cmpTyp provides string literals for CompareOperation constants.
var cmpTyp = [...]string{
	"lcmp",
	"fcmpl",
	"fcmpg",
	"dcmpl",
	"dcmpg",
}

// cvTyp provides string literals for ConvertOperation constants.
var cvTyp = [...]string{
	"i2l",
	"i2f",
	"i2d",
	"l2i",
	"l2f",
	"l2d",
	"f2i",
	"f2l",
	"f2d",
	"d2i",
	"d2l",
	"d2f",
	"i2b",
	"i2c",
	"i2s",
}

// condTyp provides string literals for Condition constants.
var condTyp = [...]string{
	"eq",
	"ne",
	"lt",
	"le",
	"gt",
	"ge",
}

// mirror holds the condition obtained when swapping the operands of a comparison.
var mirror = [...]Condition{Eq, Ne, Gt, Ge, Lt, Le}

// negate holds the condition that is true exactly when the indexed condition is false.
var negate = [...]Condition{Ne, Eq, Ge, Gt, Le, Lt}

// intrTyp provides string literals for IntrinsicID constants.
var intrTyp = [...]string{
	"sin",
	"cos",
	"sqrt",
	"arraycopy",
}

// invTyp provides string literals for InvokeCode constants.
var invTyp = [...]string{
	"invokestatic",
	"invokespecial",
	"invokevirtual",
	"invokeinterface",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String provides a print friendly string representation of the ValueType.
func (t ValueType) String() string {
	return vTyp[t]
}

// Size returns the number of stack words or spill slots a value of type t occupies.
func (t ValueType) Size() int {
	switch t {
	case Void:
		return 0
	case Long, Double:
		return 2
	default:
		return 1
	}
}

// IsDoubleWord returns true if t occupies two words.
func (t ValueType) IsDoubleWord() bool {
	return t.Size() == 2
}

// IsFloatKind returns true if values of type t live on the floating point unit.
func (t ValueType) IsFloatKind() bool {
	return t == Float || t == Double
}

// IsOop returns true if values of type t are references the garbage collector must see.
func (t ValueType) IsOop() bool {
	return t == Object
}

// String provides a print friendly string representation of the BasicType.
func (t BasicType) String() string {
	return bTyp[t]
}

// IsOop returns true for reference elements.
func (t BasicType) IsOop() bool {
	return t == ObjectElem
}

// ValueType returns the type of a value loaded from an element of type t.
func (t BasicType) ValueType() ValueType {
	switch t {
	case LongElem:
		return Long
	case FloatElem:
		return Float
	case DoubleElem:
		return Double
	case ObjectElem:
		return Object
	default:
		return Int
	}
}

// String provides a print friendly string representation of the ArithmeticOperation.
func (op ArithmeticOperation) String() string {
	return aTyp[op]
}

// IsCommutative returns true if the operands of op may be swapped.
func (op ArithmeticOperation) IsCommutative() bool {
	return op == Add || op == Mul
}

// String provides a print friendly string representation of the ShiftOperation.
func (op ShiftOperation) String() string {
	return sTyp[op]
}

// String provides a print friendly string representation of the LogicOperation.
func (op LogicOperation) String() string {
	return lTyp[op]
}

// String provides a print friendly string representation of the CompareOperation.
func (op CompareOperation) String() string {
	return cmpTyp[op]
}

// String provides a print friendly string representation of the ConvertOperation.
func (op ConvertOperation) String() string {
	return cvTyp[op]
}

// From returns the operand type of the conversion.
func (op ConvertOperation) From() ValueType {
	switch op {
	case L2I, L2F, L2D:
		return Long
	case F2I, F2L, F2D:
		return Float
	case D2I, D2L, D2F:
		return Double
	default:
		return Int
	}
}

// To returns the result type of the conversion.
func (op ConvertOperation) To() ValueType {
	switch op {
	case I2L, F2L, D2L:
		return Long
	case I2F, L2F, D2F:
		return Float
	case I2D, L2D, F2D:
		return Double
	default:
		return Int
	}
}

// String provides a print friendly string representation of the Condition.
func (c Condition) String() string {
	return condTyp[c]
}

// Mirror returns the condition that holds after swapping the operands.
func (c Condition) Mirror() Condition {
	return mirror[c]
}

// Negate returns the inverse condition.
func (c Condition) Negate() Condition {
	return negate[c]
}

// Holds evaluates the condition on the result of a three way comparison.
func (c Condition) Holds(cmp int) bool {
	switch c {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// String provides a print friendly string representation of the IntrinsicID.
func (id IntrinsicID) String() string {
	return intrTyp[id]
}

// String provides a print friendly string representation of the InvokeCode.
func (c InvokeCode) String() string {
	return invTyp[c]
}

// ParseValueType returns the ValueType with name s.
func ParseValueType(s string) (ValueType, bool) {
	for i1, e1 := range vTyp {
		if e1 == s {
			return ValueType(i1), true
		}
	}
	return Void, false
}

// ParseBasicType returns the BasicType with name s.
func ParseBasicType(s string) (BasicType, bool) {
	for i1, e1 := range bTyp {
		if e1 == s {
			return BasicType(i1), true
		}
	}
	return IntElem, false
}

// ParseCondition returns the Condition with name s.
func ParseCondition(s string) (Condition, bool) {
	for i1, e1 := range condTyp {
		if e1 == s {
			return Condition(i1), true
		}
	}
	return Eq, false
}

// ParseIntrinsic returns the IntrinsicID with name s.
func ParseIntrinsic(s string) (IntrinsicID, bool) {
	for i1, e1 := range intrTyp {
		if e1 == s {
			return IntrinsicID(i1), true
		}
	}
	return Sin, false
}

// ParseInvokeCode returns the InvokeCode with name s.
func ParseInvokeCode(s string) (InvokeCode, bool) {
	for i1, e1 := range invTyp {
		if e1 == s {
			return InvokeCode(i1), true
		}
	}
	return InvokeStatic, false
}

// ParseConvert returns the ConvertOperation with name s.
func ParseConvert(s string) (ConvertOperation, bool) {
	for i1, e1 := range cvTyp {
		if e1 == s {
			return ConvertOperation(i1), true
		}
	}
	return I2L, false
}
