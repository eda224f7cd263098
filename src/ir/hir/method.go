package hir

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Method represents one method compilation unit. Blocks are kept in layout order, which is the order of creation.
type Method struct {
	name         string             // Name of the method.
	static       bool               // Static methods have no receiver in local 0.
	strict       bool               // Strict methods round every floating point result.
	synchronized bool               // Synchronized methods release the receiver monitor on return.
	maxLocals    int                // Number of local variable words.
	blocks       []*Block           // Basic blocks in layout order.
	loops        []*Loop            // Loops of the method.
	hasHandlers  bool               // True if any block is covered by an exception handler.
	backward     mapset.Set[*Block] // Targets of backward branches.
	seq          int                // Sequence number for unique identifiers of all children.
	bci          int                // Next default source position.
	sealed       bool               // Sealed methods are immutable.
}

// Loop is a natural loop. The loop entry and exit blocks holding LoopEnter and LoopExit belong to the loop.
type Loop struct {
	id     int
	blocks []*Block
	set    mapset.Set[*Block]
}

// ---------------------
// ----- functions -----
// ---------------------

// NewMethod creates an empty method with maxLocals local variable words.
func NewMethod(name string, maxLocals int) *Method {
	return &Method{
		name:      name,
		maxLocals: maxLocals,
		backward:  mapset.NewThreadUnsafeSet[*Block](),
	}
}

// Name returns the name of Method m.
func (m *Method) Name() string {
	return m.name
}

// IsStatic returns true if m has no receiver.
func (m *Method) IsStatic() bool {
	return m.static
}

// IsStrict returns true if m requires strict floating point semantics.
func (m *Method) IsStrict() bool {
	return m.strict
}

// IsSynchronized returns true if m locks its receiver.
func (m *Method) IsSynchronized() bool {
	return m.synchronized
}

// SetStatic marks m as static.
func (m *Method) SetStatic(v bool) *Method {
	m.static = v
	return m
}

// SetStrict marks m as strict.
func (m *Method) SetStrict(v bool) *Method {
	m.strict = v
	return m
}

// SetSynchronized marks m as synchronized.
func (m *Method) SetSynchronized(v bool) *Method {
	m.synchronized = v
	return m
}

// MaxLocals returns the number of local variable words of m.
func (m *Method) MaxLocals() int {
	return m.maxLocals
}

// Blocks returns the basic blocks of Method m in layout order.
func (m *Method) Blocks() []*Block {
	return m.blocks
}

// Entry returns the first block of m.
func (m *Method) Entry() *Block {
	if len(m.blocks) == 0 {
		return nil
	}
	return m.blocks[0]
}

// Loops returns the loops of m.
func (m *Method) Loops() []*Loop {
	return m.loops
}

// HasHandlers returns true if m has exception handlers.
func (m *Method) HasHandlers() bool {
	return m.hasHandlers
}

// IsBackwardTarget returns true if some branch to b is backward. Valid once m is sealed.
func (m *Method) IsBackwardTarget(b *Block) bool {
	return m.backward.Contains(b)
}

// IsSealed returns true if m has been sealed.
func (m *Method) IsSealed() bool {
	return m.sealed
}

// CreateBlock creates a new Block for Method m, placed last in the layout order.
func (m *Method) CreateBlock(bci int) *Block {
	if m.sealed {
		panic(fmt.Sprintf("method %s: cannot add blocks to a sealed method", m.name))
	}
	b := &Block{
		m:      m,
		id:     len(m.blocks),
		bci:    bci,
		index:  len(m.blocks),
		instrs: make([]*Instruction, 0, 16),
	}
	m.blocks = append(m.blocks, b)
	if bci > m.bci {
		m.bci = bci
	}
	return b
}

// CreateLoop registers a loop consisting of blocks.
func (m *Method) CreateLoop(blocks ...*Block) *Loop {
	l := &Loop{
		id:     len(m.loops),
		blocks: blocks,
		set:    mapset.NewThreadUnsafeSet[*Block](blocks...),
	}
	m.loops = append(m.loops, l)
	return l
}

// String returns the textual representation of Method m.
func (m *Method) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("method %s(locals=%d)", m.name, m.maxLocals))
	if m.static {
		sb.WriteString(" static")
	}
	if m.strict {
		sb.WriteString(" strict")
	}
	if m.synchronized {
		sb.WriteString(" synchronized")
	}
	sb.WriteString(" {\n")
	for _, e1 := range m.blocks {
		sb.WriteString(e1.String())
	}
	sb.WriteRune('}')
	return sb.String()
}

// getId returns a unique identifier for any child of Method m.
func (m *Method) getId() int {
	id := m.seq
	m.seq++
	return id
}

// nextBci returns the default source position of the next instruction.
func (m *Method) nextBci() int {
	bci := m.bci
	m.bci++
	return bci
}

// Seal validates m, links predecessors, marks backward branch targets and pins loads that are overwritten by a
// store before their value is consumed. The instruction tree and its use counts are immutable afterwards.
func (m *Method) Seal() error {
	if m.sealed {
		return nil
	}
	if err := m.validate(); err != nil {
		return err
	}
	for _, e1 := range m.blocks {
		for _, e2 := range e1.Successors() {
			e2.preds = append(e2.preds, e1)
			if e1.IsAfter(e2) {
				m.backward.Add(e2)
			}
		}
	}
	for _, e1 := range m.blocks {
		pinStoredLocals(e1)
	}
	m.sealed = true
	return nil
}

// validate checks the structural invariants the code generator relies on.
func (m *Method) validate() error {
	if len(m.blocks) == 0 {
		return errors.Errorf("method %s: no blocks", m.name)
	}
	if len(m.blocks[0].phis) != 0 {
		return errors.Errorf("method %s: entry block %s has a non-empty entry stack", m.name, m.blocks[0].Name())
	}
	for _, e1 := range m.blocks {
		if e1.end == nil {
			return errors.Errorf("method %s: block %s is not terminated", m.name, e1.Name())
		}
		if e1.handler && len(e1.phis) != 0 {
			return errors.Errorf("method %s: handler %s has a non-empty entry stack", m.name, e1.Name())
		}
		for _, e2 := range e1.Successors() {
			if e2 == nil || e2.m != m {
				return errors.Errorf("method %s: block %s branches outside the method", m.name, e1.Name())
			}
			if err := matchState(e1, e2); err != nil {
				return err
			}
		}
		for _, e2 := range e1.instrs {
			if !e2.IsRoot() && e2.uses > 1 {
				return errors.Errorf("method %s: non-root %s has %d uses", m.name, e2.name, e2.uses)
			}
		}
	}
	for _, e1 := range m.loops {
		if len(e1.blocks) == 0 {
			return errors.Errorf("method %s: loop %d has no blocks", m.name, e1.id)
		}
		for _, e2 := range e1.blocks {
			if e2.m != m {
				return errors.Errorf("method %s: loop %d holds a foreign block", m.name, e1.id)
			}
		}
	}
	return nil
}

// matchState checks that the exit stack of b has the shape of the entry stack of sux.
func matchState(b, sux *Block) error {
	state := b.EndOp().ExitState()
	if len(state) != len(sux.phis) {
		return errors.Errorf("method %s: block %s leaves %d values for %s expecting %d",
			b.m.name, b.Name(), len(state), sux.Name(), len(sux.phis))
	}
	for i1, e1 := range state {
		if e1.typ != sux.phis[i1].typ {
			return errors.Errorf("method %s: block %s passes %s %s to %s %s",
				b.m.name, b.Name(), e1.typ, e1.name, sux.phis[i1].typ, sux.phis[i1].name)
		}
	}
	return nil
}

// pinStoredLocals pins every LoadLocal of b whose value is consumed after a store to the same local.
func pinStoredLocals(b *Block) {
	pos := make(map[*Instruction]int, len(b.instrs))
	for i1, e1 := range b.instrs {
		pos[e1] = i1
	}
	for i1, e1 := range b.instrs {
		load, ok := e1.op.(*LoadLocal)
		if !ok {
			continue
		}
		last := i1
		for _, e2 := range e1.users {
			if p := pos[consumingRoot(e2)]; p > last {
				last = p
			}
		}
		for _, e2 := range b.instrs[i1+1 : last] {
			if st, ok := e2.op.(*StoreLocal); ok && overlapsLocal(st.Index, st.Value.typ.Size(), load.Index, e1.typ.Size()) {
				load.PinnedByStore = true
				e1.pinned = true
				break
			}
		}
	}
}

// consumingRoot returns the root whose evaluation evaluates x.
func consumingRoot(x *Instruction) *Instruction {
	for !x.IsRoot() && len(x.users) == 1 {
		x = x.users[0]
	}
	return x
}

// overlapsLocal returns true if the local ranges [a, a+an) and [b, b+bn) intersect.
func overlapsLocal(a, an, b, bn int) bool {
	return a < b+bn && b < a+an
}

// Id returns the identifier of Loop l.
func (l *Loop) Id() int {
	return l.id
}

// Blocks returns the blocks of Loop l.
func (l *Loop) Blocks() []*Block {
	return l.blocks
}

// Set returns the blocks of Loop l as a set.
func (l *Loop) Set() mapset.Set[*Block] {
	return l.set
}

// Contains returns true if b belongs to Loop l.
func (l *Loop) Contains(b *Block) bool {
	return l.set.Contains(b)
}

// Start returns the loop entry block.
func (l *Loop) Start() *Block {
	return l.blocks[0]
}

// IsInnermost returns true if no other loop of m is nested within l.
func (l *Loop) IsInnermost(m *Method) bool {
	for _, e1 := range m.loops {
		if e1 != l && e1.set.IsProperSubset(l.set) {
			return false
		}
	}
	return true
}
