package frontend

import (
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"

	"github.com/pkg/errors"
)

// buildFunc creates the instruction described by in in the current block of bld.
type buildFunc func(bld *builder, in *instrDesc) (*hir.Instruction, error)

// ops maps op names of method descriptions to their builders.
var ops = map[string]buildFunc{
	"const":      buildConstant,
	"load_local": buildLoadLocal,
	"add":        arithmetic(types.Add),
	"sub":        arithmetic(types.Sub),
	"mul":        arithmetic(types.Mul),
	"div":        arithmetic(types.Div),
	"rem":        arithmetic(types.Rem),
	"shl":        shift(types.Shl),
	"shr":        shift(types.Shr),
	"ushr":       shift(types.Ushr),
	"and":        logic(types.And),
	"or":         logic(types.Or),
	"xor":        logic(types.Xor),
	"neg":        buildNegate,
	"lcmp":       compare(types.LCmp),
	"fcmpl":      compare(types.FCmpL),
	"fcmpg":      compare(types.FCmpG),
	"dcmpl":      compare(types.DCmpL),
	"dcmpg":      compare(types.DCmpG),
	"convert":    buildConvert,
	"ifop":       buildIfOp,

	"array_length":  buildArrayLength,
	"load_indexed":  buildLoadIndexed,
	"store_indexed": buildStoreIndexed,
	"load_field":    buildLoadField,
	"store_field":   buildStoreField,
	"store_local":   buildStoreLocal,
	"null_check":    buildNullCheck,
	"intrinsic":     buildIntrinsic,

	"invokestatic":    invoke(types.InvokeStatic),
	"invokespecial":   invoke(types.InvokeSpecial),
	"invokevirtual":   invoke(types.InvokeVirtual),
	"invokeinterface": invoke(types.InvokeInterface),
	"new":             buildNewInstance,
	"newarray":        buildNewTypeArray,
	"anewarray":       buildNewObjectArray,
	"multianewarray":  buildNewMultiArray,
	"checkcast":       buildCheckCast,
	"instanceof":      buildInstanceOf,
	"monitorenter":    buildMonitorEnter,
	"monitorexit":     buildMonitorExit,
	"loop_enter":      buildLoopEnter,
	"loop_exit":       buildLoopExit,

	"goto":             buildGoto,
	"if":               buildIf,
	"tableswitch":      buildTableSwitch,
	"lookupswitch":     buildLookupSwitch,
	"return":           buildReturn,
	"throw":            buildThrow,
	"jsr":              buildJsr,
	"jsr_continuation": buildJsrContinuation,
	"ret":              buildRet,
}

// ----- Helpers -----

// valueType returns the type named by in.
func valueType(in *instrDesc) (types.ValueType, error) {
	typ, ok := types.ParseValueType(in.Type)
	if !ok {
		return types.Void, errors.Errorf("unexpected type %q", in.Type)
	}
	return typ, nil
}

// elemType returns the element or field type named by in.
func elemType(in *instrDesc) (types.BasicType, error) {
	elem, ok := types.ParseBasicType(in.Elem)
	if !ok {
		return elem, errors.Errorf("unexpected element type %q", in.Elem)
	}
	return elem, nil
}

// condition returns the condition named by in.
func condition(in *instrDesc) (types.Condition, error) {
	cond, ok := types.ParseCondition(in.Cond)
	if !ok {
		return cond, errors.Errorf("unexpected condition %q", in.Cond)
	}
	return cond, nil
}

// loaded returns the loaded flag of in, true if absent.
func loaded(in *instrDesc) bool {
	return in.Loaded == nil || *in.Loaded
}

// ----- Values -----

func buildConstant(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	typ, err := valueType(in)
	if err != nil {
		return nil, err
	}
	switch typ {
	case types.Int:
		if in.Value != int64(int32(in.Value)) {
			return nil, errors.Errorf("int constant %d out of range", in.Value)
		}
		return bld.b.CreateConstantInt(int32(in.Value)), nil
	case types.Long:
		return bld.b.CreateConstantLong(in.Value), nil
	case types.Float:
		return bld.b.CreateConstantFloat(float32(in.FValue)), nil
	case types.Double:
		return bld.b.CreateConstantDouble(in.FValue), nil
	case types.Object:
		return bld.b.CreateConstantNull(), nil
	}
	return nil, errors.Errorf("no constants of type %s", typ)
}

func buildLoadLocal(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	typ, err := valueType(in)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateLoadLocal(typ, in.Index), nil
}

// binary returns a builder of two operand instructions created by f.
func binary(f func(b *hir.Block, x, y *hir.Instruction) *hir.Instruction) buildFunc {
	return func(bld *builder, in *instrDesc) (*hir.Instruction, error) {
		args, err := bld.args(in, 2)
		if err != nil {
			return nil, err
		}
		return f(bld.b, args[0], args[1]), nil
	}
}

func arithmetic(op types.ArithmeticOperation) buildFunc {
	return binary(func(b *hir.Block, x, y *hir.Instruction) *hir.Instruction { return b.CreateArithmetic(op, x, y) })
}

func shift(op types.ShiftOperation) buildFunc {
	return binary(func(b *hir.Block, x, y *hir.Instruction) *hir.Instruction { return b.CreateShift(op, x, y) })
}

func logic(op types.LogicOperation) buildFunc {
	return binary(func(b *hir.Block, x, y *hir.Instruction) *hir.Instruction { return b.CreateLogic(op, x, y) })
}

func compare(op types.CompareOperation) buildFunc {
	return binary(func(b *hir.Block, x, y *hir.Instruction) *hir.Instruction { return b.CreateCompare(op, x, y) })
}

func buildNegate(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateNegate(args[0]), nil
}

// buildConvert reads the conversion from the type field, for example "i2l".
func buildConvert(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	op, ok := types.ParseConvert(in.Type)
	if !ok {
		return nil, errors.Errorf("unexpected conversion %q", in.Type)
	}
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateConvert(op, args[0]), nil
}

func buildIfOp(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	cond, err := condition(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 4)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateIfOp(args[0], cond, args[1], args[2], args[3]), nil
}

// ----- Memory -----

func buildArrayLength(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateArrayLength(args[0]), nil
}

func buildLoadIndexed(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	elem, err := elemType(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 2)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateLoadIndexed(args[0], args[1], elem), nil
}

func buildStoreIndexed(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	elem, err := elemType(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 3)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateStoreIndexed(args[0], args[1], args[2], elem), nil
}

func buildLoadField(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	field, err := elemType(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateLoadField(args[0], in.Offset, field, in.Static, loaded(in)), nil
}

func buildStoreField(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	field, err := elemType(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 2)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateStoreField(args[0], args[1], in.Offset, field, in.Static, loaded(in)), nil
}

func buildStoreLocal(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateStoreLocal(in.Index, args[0]), nil
}

func buildNullCheck(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateNullCheck(args[0]), nil
}

func buildIntrinsic(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	id, ok := types.ParseIntrinsic(in.Intrinsic)
	if !ok {
		return nil, errors.Errorf("unexpected intrinsic %q", in.Intrinsic)
	}
	args, err := bld.valuesOf(in.Args)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateIntrinsic(id, args...), nil
}

// ----- Calls and objects -----

// invoke returns the builder of calls with code. The first operand of a non-static call is the receiver.
func invoke(code types.InvokeCode) buildFunc {
	return func(bld *builder, in *instrDesc) (*hir.Instruction, error) {
		typ, err := valueType(in)
		if err != nil {
			return nil, err
		}
		args, err := bld.valuesOf(in.Args)
		if err != nil {
			return nil, err
		}
		var recv *hir.Instruction
		if code != types.InvokeStatic {
			if len(args) == 0 {
				return nil, errors.Errorf("%s without receiver", code)
			}
			recv, args = args[0], args[1:]
		}
		x := bld.b.CreateInvoke(code, typ, in.Target, recv, args...)
		op := x.Op().(*hir.Invoke)
		op.Loaded = loaded(in)
		op.Final = in.Final
		return x, nil
	}
}

func buildNewInstance(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	return bld.b.CreateNewInstance(in.Target), nil
}

func buildNewTypeArray(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	elem, err := elemType(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateNewTypeArray(args[0], elem), nil
}

func buildNewObjectArray(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateNewObjectArray(args[0], in.Target), nil
}

func buildNewMultiArray(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	if len(in.Args) == 0 {
		return nil, errors.Errorf("%s takes at least one dimension", in.Op)
	}
	dims, err := bld.valuesOf(in.Args)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateNewMultiArray(in.Target, dims...), nil
}

func buildCheckCast(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateCheckCast(args[0], in.Target), nil
}

func buildInstanceOf(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateInstanceOf(args[0], in.Target), nil
}

func buildMonitorEnter(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateMonitorEnter(args[0], in.Monitor), nil
}

func buildMonitorExit(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateMonitorExit(args[0], in.Monitor), nil
}

// buildLoopEnter reads the loop id from the index field.
func buildLoopEnter(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	return bld.b.CreateLoopEnter(in.Index), nil
}

func buildLoopExit(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	return bld.b.CreateLoopExit(in.Index), nil
}

// ----- Block ends -----

func buildGoto(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	sux, err := bld.targets(in, 1)
	if err != nil {
		return nil, err
	}
	state, err := bld.valuesOf(in.State)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateGoto(sux[0], state...), nil
}

// buildIf branches to the first target if the condition holds and to the second otherwise.
func buildIf(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	cond, err := condition(in)
	if err != nil {
		return nil, err
	}
	args, err := bld.args(in, 2)
	if err != nil {
		return nil, err
	}
	sux, err := bld.targets(in, 2)
	if err != nil {
		return nil, err
	}
	state, err := bld.valuesOf(in.State)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateBranch(args[0], cond, args[1], sux[0], sux[1], state...), nil
}

func buildTableSwitch(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	sux, err := bld.targets(in, -1)
	if err != nil {
		return nil, err
	}
	def, err := bld.block(in.Default)
	if err != nil {
		return nil, err
	}
	state, err := bld.valuesOf(in.State)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateTableSwitch(args[0], in.LoKey, sux, def, state...), nil
}

func buildLookupSwitch(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	sux, err := bld.targets(in, len(in.Keys))
	if err != nil {
		return nil, err
	}
	def, err := bld.block(in.Default)
	if err != nil {
		return nil, err
	}
	state, err := bld.valuesOf(in.State)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateLookupSwitch(args[0], in.Keys, sux, def, state...), nil
}

// buildReturn returns the single operand, or nothing if there is none.
func buildReturn(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	if len(in.Args) == 0 {
		return bld.b.CreateReturn(nil), nil
	}
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateReturn(args[0]), nil
}

func buildThrow(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	args, err := bld.args(in, 1)
	if err != nil {
		return nil, err
	}
	state, err := bld.valuesOf(in.State)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateThrow(args[0], state...), nil
}

func buildJsr(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	sux, err := bld.targets(in, 1)
	if err != nil {
		return nil, err
	}
	state, err := bld.valuesOf(in.State)
	if err != nil {
		return nil, err
	}
	return bld.b.CreateJsr(sux[0], state...), nil
}

func buildJsrContinuation(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	return bld.b.CreateJsrContinuation(), nil
}

func buildRet(bld *builder, in *instrDesc) (*hir.Instruction, error) {
	return bld.b.CreateRet(in.Index), nil
}
