package hir

import (
	"sort"

	"c1gen/src/ir/hir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ScanResult summarises the instructions of a set of blocks. It decides whether locals or the receiver may be kept
// in registers across those blocks.
type ScanResult struct {
	HasFloats    bool // Some value is a float.
	HasDoubles   bool // Some value is a double.
	HasCalls     bool // Some instruction is a call or a subroutine jump.
	HasJsr       bool // Some instruction is a subroutine jump.
	HasSlowCases bool // Some instruction may enter the runtime through a slow case.
	HasClassInit bool // Some field access may trigger class initialisation.
	HasStore0    bool // Local 0 is written.

	access map[types.ValueType][]int // Access counts per local, per type.
}

// Local describes the accesses to one local variable.
type Local struct {
	Index int  // Local variable index.
	IsOop bool // True if the local only ever holds references.
	Count int  // Number of accesses.
}

// ---------------------
// ----- functions -----
// ---------------------

// ScanBlocks scans blocks and accumulates the result.
func ScanBlocks(blocks ...*Block) *ScanResult {
	s := &ScanResult{access: make(map[types.ValueType][]int)}
	for _, e1 := range blocks {
		s.scan(e1)
	}
	return s
}

// scan accumulates the instructions of b.
func (s *ScanResult) scan(b *Block) {
	for _, x := range b.instrs {
		typ := x.typ
		if st, ok := x.op.(*StoreLocal); ok {
			typ = st.Value.typ
		}
		switch typ {
		case types.Float:
			s.HasFloats = true
		case types.Double:
			s.HasDoubles = true
		}
		switch op := x.op.(type) {
		case *Invoke:
			s.HasCalls = true
		case *Jsr:
			s.HasJsr = true
			s.HasCalls = true
		case *MonitorEnter, *MonitorExit, *NewTypeArray, *NewObjectArray, *NewMultiArray, *NewInstance, *CheckCast,
			*InstanceOf:
			s.HasSlowCases = true
		case *Intrinsic:
			s.HasCalls = s.HasCalls || op.ID == types.ArrayCopy
		case *LoadField:
			s.HasClassInit = s.HasClassInit || !op.Loaded
		case *StoreField:
			s.HasClassInit = s.HasClassInit || !op.Loaded
		case *LoadLocal:
			s.accumulate(op.Index, typ, x.uses)
		case *StoreLocal:
			s.accumulate(op.Index, typ, 1)
			if op.Index == 0 {
				s.HasStore0 = true
			}
		case *StoreIndexed:
			s.HasSlowCases = s.HasSlowCases || op.Elem.IsOop()
		}
	}
}

// accumulate adds delta accesses of type typ to local index and, for two word values, to its upper half.
func (s *ScanResult) accumulate(index int, typ types.ValueType, delta int) {
	for i1 := 0; i1 < typ.Size(); i1++ {
		counts := s.access[typ]
		for len(counts) <= index+i1 {
			counts = append(counts, 0)
		}
		counts[index+i1] += delta
		s.access[typ] = counts
	}
}

// CountAt returns the number of accesses of type typ to local index.
func (s *ScanResult) CountAt(index int, typ types.ValueType) int {
	counts := s.access[typ]
	if index < len(counts) {
		return counts[index]
	}
	return 0
}

// IsOnly returns true if local index is accessed with no type other than typ.
func (s *ScanResult) IsOnly(index int, typ types.ValueType) bool {
	for t, counts := range s.access {
		if t != typ && index < len(counts) && counts[index] != 0 {
			return false
		}
	}
	return true
}

// CanCacheLocals returns true if locals may be kept in registers across the scanned blocks.
func (s *ScanResult) CanCacheLocals() bool {
	return !(s.HasCalls || s.HasClassInit || s.HasSlowCases)
}

// CanCacheReceiver returns true if the receiver may be kept in a register across the scanned blocks.
func (s *ScanResult) CanCacheReceiver() bool {
	return s.CanCacheLocals() && !s.HasStore0
}

// MostUsedLocals returns the locals accessed only as ints or only as references, most accessed first. Ties keep
// the lower index first.
func (s *ScanResult) MostUsedLocals() []Local {
	n := len(s.access[types.Int])
	if m := len(s.access[types.Object]); m > n {
		n = m
	}
	var res []Local
	for i1 := 0; i1 < n; i1++ {
		if c := s.CountAt(i1, types.Int); c > 0 && s.IsOnly(i1, types.Int) {
			res = append(res, Local{Index: i1, Count: c})
		} else if c := s.CountAt(i1, types.Object); c > 0 && s.IsOnly(i1, types.Object) {
			res = append(res, Local{Index: i1, IsOop: true, Count: c})
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Count > res[j].Count
	})
	return res
}
