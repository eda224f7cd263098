package emit

import (
	"strings"

	"c1gen/src/backend/items"
	"c1gen/src/backend/regfile"
	"c1gen/src/backend/xtoa"
	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
)

// FormatItem returns the operand syntax of a placement.
func FormatItem(it *items.Item) string {
	if it == nil {
		return "-"
	}
	switch {
	case it.IsSpilled():
		return "[spill+" + xtoa.ItoA(int64(it.SpillIx())) + "]"
	case it.IsRegister():
		return it.RInfo().String()
	case it.IsLocal():
		return "[local+" + xtoa.ItoA(int64(it.Stack())) + "]"
	case it.IsConstant():
		switch it.Type() {
		case types.Float, types.Double:
			return "#" + xtoa.FtoA(it.FloatConstant())
		case types.Object:
			return "#null"
		default:
			return "#" + formatImmediate(it.Type(), it.IntConstant())
		}
	default:
		return "-"
	}
}

// largeImmediate bounds the magnitude of constants listed in decimal.
const largeImmediate = 1 << 16

// formatImmediate lists small constants in decimal and others as the bit pattern of their type.
func formatImmediate(typ types.ValueType, v int64) string {
	switch {
	case -largeImmediate <= v && v <= largeImmediate:
		return xtoa.ItoA(v)
	case typ == types.Long:
		return xtoa.HtoA(uint64(v))
	default:
		return xtoa.HtoA(uint64(uint32(v)))
	}
}

// Mnemonic returns the mnemonic of in, including its condition or element type.
func Mnemonic(in *Instr) string {
	switch in.Code {
	case OpBranch, OpSelect:
		return in.Code.String() + "." + in.Cond.String()
	case OpLoadIndexed, OpStoreIndexed, OpLoadField, OpStoreField:
		return in.Code.String() + "." + in.Elem.String()
	case OpCall, OpRuntimeCall, OpConvert, OpCompare, OpIntrinsic, OpNewInstance, OpNewObjectArray, OpNewMultiArray,
		OpCheckCast, OpInstanceOf:
		return in.Code.String() + " " + in.Name
	default:
		return in.Code.String()
	}
}

// Operands returns the operand syntax of in: result first, then arguments, temporaries, immediates and targets.
func Operands(in *Instr) []string {
	return operands(in, (*hir.Block).Name)
}

// operands returns the operand syntax of in, naming target blocks with label.
func operands(in *Instr, label func(*hir.Block) string) []string {
	var res []string
	if in.Result != nil {
		res = append(res, FormatItem(in.Result))
	}
	for _, e1 := range in.Args {
		res = append(res, FormatItem(e1))
	}
	for _, e1 := range in.Temps {
		res = append(res, "tmp:"+e1.String())
	}
	switch in.Code {
	case OpMethodEntry, OpFxch, OpSwitchCase, OpMonitorEnter, OpMonitorExit, OpInc, OpDec, OpJsr, OpRet,
		OpNewMultiArray:
		res = append(res, "$"+xtoa.ItoA(in.Aux))
	case OpLoadField, OpStoreField, OpArrayLength:
		res = append(res, "+"+xtoa.ItoA(in.Aux))
	case OpSwitchRange:
		res = append(res, "$"+xtoa.ItoA(in.Aux)+".."+xtoa.ItoA(in.Aux2))
	}
	for _, e1 := range in.Targets {
		res = append(res, label(e1))
	}
	if in.Backward {
		res = append(res, "backward")
	}
	if len(in.OopRegs) > 0 {
		res = append(res, "oops="+regfile.MaskOf(in.OopRegs...).String())
	}
	return res
}

// FormatInstr returns the one line text of in.
func FormatInstr(in *Instr) string {
	ops := Operands(in)
	if len(ops) == 0 {
		return Mnemonic(in)
	}
	return Mnemonic(in) + " " + strings.Join(ops, ", ")
}
