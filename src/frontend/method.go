// method.go loads method descriptions written in TOML into hir methods. A description lists the blocks of a method
// in layout order, each with its entry stack and its instructions in evaluation order. Instructions refer to their
// operands, and successor blocks refer to their entry stacks, by name.

package frontend

import (
	"fmt"
	"path/filepath"

	"c1gen/src/ir/hir"
	"c1gen/src/ir/hir/types"
	"c1gen/src/util"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// methodDesc is the top level table of a method description.
type methodDesc struct {
	Name         string      `toml:"name"`
	Static       bool        `toml:"static"`
	Strict       bool        `toml:"strict"`
	Synchronized bool        `toml:"synchronized"`
	MaxLocals    int         `toml:"max_locals"`
	Blocks       []blockDesc `toml:"block"`
	Loops        []loopDesc  `toml:"loop"`
}

// blockDesc describes one block.
type blockDesc struct {
	Id       int         `toml:"id"`       // Key used by branch targets.
	Bci      int         `toml:"bci"`      // Originating position.
	Handler  bool        `toml:"handler"`  // Exception entry.
	Handlers []int       `toml:"handlers"` // Handlers covering the block.
	Phis     []phiDesc   `toml:"phi"`      // Entry stack, bottom first.
	Instrs   []instrDesc `toml:"instr"`
}

// phiDesc describes one entry stack value.
type phiDesc struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// instrDesc describes one instruction. Only the fields of its op are read.
type instrDesc struct {
	Name      string   `toml:"name"`
	Op        string   `toml:"op"`
	Type      string   `toml:"type"`
	Args      []string `toml:"args"`
	Index     int      `toml:"index"`
	Value     int64    `toml:"value"`
	FValue    float64  `toml:"fvalue"`
	Cond      string   `toml:"cond"`
	Targets   []int    `toml:"targets"`
	Default   int      `toml:"default"`
	Keys      []int    `toml:"keys"`
	LoKey     int      `toml:"lo_key"`
	State     []string `toml:"state"`
	Elem      string   `toml:"elem"`
	Offset    int      `toml:"offset"`
	Static    bool     `toml:"static"`
	Loaded    *bool    `toml:"loaded"`
	Final     bool     `toml:"final"`
	Target    string   `toml:"target"`
	Intrinsic string   `toml:"intrinsic"`
	Monitor   int      `toml:"monitor"`
	Pin       bool     `toml:"pin"`
	Bci       *int     `toml:"bci"`
}

// loopDesc lists the blocks of one loop, innermost loops included in their outer loops.
type loopDesc struct {
	Blocks []int `toml:"blocks"`
}

// builder holds the name scopes while a method is built.
type builder struct {
	m      *hir.Method
	blocks map[int]*hir.Block // Blocks by description id.
	b      *hir.Block         // Block being built.
	values map[string]*hir.Instruction
}

// ---------------------
// ----- Functions -----
// ---------------------

// LoadFile loads the method description at path. An empty path or "-" reads stdin.
func LoadFile(path string) (*hir.Method, error) {
	src, err := util.ReadSource(path)
	if err != nil {
		return nil, err
	}
	name := "<stdin>"
	if len(path) > 0 && path != "-" {
		name = filepath.Base(path)
	}
	m, err := Parse(src)
	return m, errors.Wrapf(err, "%s", name)
}

// Parse builds and seals the method described by the TOML document src.
func Parse(src []byte) (*hir.Method, error) {
	tree, err := toml.LoadBytes(src)
	if err != nil {
		return nil, errors.Wrap(err, "parsing method description")
	}
	desc := methodDesc{}
	if err := tree.Unmarshal(&desc); err != nil {
		return nil, errors.Wrap(err, "decoding method description")
	}
	return desc.build()
}

// build creates the method of desc.
func (desc *methodDesc) build() (m *hir.Method, err error) {
	if len(desc.Name) == 0 {
		return nil, errors.New("method has no name")
	}
	if len(desc.Blocks) == 0 {
		return nil, errors.Errorf("method %s: no blocks", desc.Name)
	}
	defer recoverBuild(&err)

	bld := builder{
		m:      hir.NewMethod(desc.Name, desc.MaxLocals),
		blocks: make(map[int]*hir.Block, len(desc.Blocks)),
	}
	bld.m.SetStatic(desc.Static).SetStrict(desc.Strict).SetSynchronized(desc.Synchronized)

	// Blocks are created first so that branches may refer to later blocks.
	for _, e1 := range desc.Blocks {
		if _, ok := bld.blocks[e1.Id]; ok {
			return nil, errors.Errorf("method %s: duplicate block id %d", desc.Name, e1.Id)
		}
		b := bld.m.CreateBlock(e1.Bci)
		if e1.Handler {
			b.SetExceptionEntry()
		}
		bld.blocks[e1.Id] = b
	}
	for _, e1 := range desc.Blocks {
		b := bld.blocks[e1.Id]
		for _, e2 := range e1.Handlers {
			h, err := bld.block(e2)
			if err != nil {
				return nil, errors.Wrapf(err, "method %s, block %d", desc.Name, e1.Id)
			}
			b.AddHandler(h)
		}
		if err := bld.buildBlock(b, &e1); err != nil {
			return nil, errors.Wrapf(err, "method %s, block %d", desc.Name, e1.Id)
		}
	}
	for i1, e1 := range desc.Loops {
		blocks := make([]*hir.Block, 0, len(e1.Blocks))
		for _, e2 := range e1.Blocks {
			b, err := bld.block(e2)
			if err != nil {
				return nil, errors.Wrapf(err, "method %s, loop %d", desc.Name, i1)
			}
			blocks = append(blocks, b)
		}
		bld.m.CreateLoop(blocks...)
	}

	if err := bld.m.Seal(); err != nil {
		return nil, err
	}
	return bld.m, nil
}

// recoverBuild turns the panics raised by the hir builder on malformed input into *err.
func recoverBuild(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch e := r.(type) {
	case error:
		*err = errors.WithStack(e)
	case string:
		*err = errors.New(e)
	default:
		*err = errors.New(fmt.Sprint(r))
	}
}

// block returns the block with description id.
func (bld *builder) block(id int) (*hir.Block, error) {
	b, ok := bld.blocks[id]
	if !ok {
		return nil, errors.Errorf("unknown block %d", id)
	}
	return b, nil
}

// buildBlock creates the entry stack and the instructions of b.
func (bld *builder) buildBlock(b *hir.Block, desc *blockDesc) error {
	bld.b = b
	bld.values = make(map[string]*hir.Instruction, len(desc.Phis)+len(desc.Instrs))
	for _, e1 := range desc.Phis {
		typ, ok := types.ParseValueType(e1.Type)
		if !ok {
			return errors.Errorf("phi %s: unexpected type %q", e1.Name, e1.Type)
		}
		if err := bld.define(e1.Name, b.CreatePhi(typ)); err != nil {
			return err
		}
	}
	for i1 := range desc.Instrs {
		in := &desc.Instrs[i1]
		if err := bld.buildInstr(in); err != nil {
			if len(in.Name) > 0 {
				return errors.Wrapf(err, "instruction %s", in.Name)
			}
			return errors.Wrapf(err, "instruction %d (%s)", i1, in.Op)
		}
	}
	return nil
}

// buildInstr creates the instruction described by in.
func (bld *builder) buildInstr(in *instrDesc) (err error) {
	defer recoverBuild(&err)
	build, ok := ops[in.Op]
	if !ok {
		return errors.Errorf("unexpected op %q", in.Op)
	}
	x, err := build(bld, in)
	if err != nil {
		return err
	}
	if in.Pin {
		x.Pin()
	}
	if in.Bci != nil {
		x.SetBci(*in.Bci)
	}
	if len(in.Name) > 0 {
		return bld.define(in.Name, x)
	}
	return nil
}

// define binds name to x in the scope of the current block.
func (bld *builder) define(name string, x *hir.Instruction) error {
	if len(name) == 0 {
		return nil
	}
	if _, ok := bld.values[name]; ok {
		return errors.Errorf("%s is defined twice", name)
	}
	bld.values[name] = x
	return nil
}

// value returns the instruction named name. Only earlier instructions of the current block are visible.
func (bld *builder) value(name string) (*hir.Instruction, error) {
	x, ok := bld.values[name]
	if !ok {
		return nil, errors.Errorf("unknown value %q", name)
	}
	return x, nil
}

// valuesOf returns the instructions named names.
func (bld *builder) valuesOf(names []string) ([]*hir.Instruction, error) {
	res := make([]*hir.Instruction, len(names))
	for i1, e1 := range names {
		x, err := bld.value(e1)
		if err != nil {
			return nil, err
		}
		res[i1] = x
	}
	return res, nil
}

// args returns exactly n operands of in.
func (bld *builder) args(in *instrDesc, n int) ([]*hir.Instruction, error) {
	if len(in.Args) != n {
		return nil, errors.Errorf("%s takes %d operands, got %d", in.Op, n, len(in.Args))
	}
	return bld.valuesOf(in.Args)
}

// targets returns exactly n successor blocks of in, or any number if n is negative.
func (bld *builder) targets(in *instrDesc, n int) ([]*hir.Block, error) {
	if n >= 0 && len(in.Targets) != n {
		return nil, errors.Errorf("%s takes %d targets, got %d", in.Op, n, len(in.Targets))
	}
	res := make([]*hir.Block, len(in.Targets))
	for i1, e1 := range in.Targets {
		b, err := bld.block(e1)
		if err != nil {
			return nil, err
		}
		res[i1] = b
	}
	return res, nil
}
