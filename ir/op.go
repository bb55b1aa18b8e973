package ir

// Well-known operation names produced by the importer.
const (
	OpReturn     = "func.return"
	OpCall       = "func.call"
	OpTerminator = "torch.operator_terminator"
	OpOperator   = "torch.operator"
	OpNone       = "torch.constant.none"
)

// Value is an SSA value: a block argument or an operation result.
type Value struct {
	typ  Type
	name string // diagnostic name, usually the ONNX value name

	def    *Operation // nil for block arguments
	defIdx int        // result index within def
}

// Type returns the value's IR type.
func (v *Value) Type() Type { return v.typ }

// Name returns the diagnostic name the value was created with.
func (v *Value) Name() string { return v.name }

// SetName sets the value's diagnostic name.
func (v *Value) SetName(name string) { v.name = name }

// Def returns the defining operation, or nil for a block argument.
func (v *Value) Def() *Operation { return v.def }

// Operation is a generic IR operation: a name, operands, typed results,
// named attributes, and zero or more nested regions.
type Operation struct {
	Name     string
	Operands []*Value
	Results  []*Value
	Attrs    DictAttr
	Regions  []*Region

	// Callee is set for call operations.
	Callee *Func
}

// NewOperation creates an operation with one result value per result type.
func NewOperation(name string, resultTypes []Type, operands []*Value) *Operation {
	op := &Operation{Name: name, Operands: operands}
	op.Results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.Results[i] = &Value{typ: t, def: op, defIdx: i}
	}
	return op
}

// NewCall creates a call to fn, with one result per declared result type.
func NewCall(fn *Func, operands []*Value) *Operation {
	op := NewOperation(OpCall, fn.Results, operands)
	op.Callee = fn
	return op
}

// AddRegion appends an empty nested region.
func (op *Operation) AddRegion() *Region {
	r := &Region{}
	op.Regions = append(op.Regions, r)
	return r
}

// Region is a list of blocks nested inside an operation. The importer only
// ever produces single-block regions.
type Region struct {
	Blocks []*Block
}

// AddBlock appends an empty block to the region.
func (r *Region) AddBlock() *Block {
	b := &Block{}
	r.Blocks = append(r.Blocks, b)
	return b
}

// Block holds arguments and an ordered operation list.
type Block struct {
	Args []*Value
	Ops  []*Operation
}

// AddArg appends a block argument of the given type.
func (b *Block) AddArg(t Type, name string) *Value {
	v := &Value{typ: t, name: name}
	b.Args = append(b.Args, v)
	return v
}

// Append adds an operation at the end of the block.
func (b *Block) Append(op *Operation) {
	b.Ops = append(b.Ops, op)
}

// Func is a function: a signature, an entry block, and function-level
// attributes. Private functions are scaffolding that downstream inlining is
// expected to discard.
type Func struct {
	Name    string
	Private bool
	Params  []Type
	Results []Type
	Entry   *Block
	Attrs   DictAttr
}

// Module is the top-level container of functions.
type Module struct {
	ctx   *Context
	Funcs []*Func
}

// NewModule creates an empty module bound to ctx.
func NewModule(ctx *Context) *Module {
	return &Module{ctx: ctx}
}

// Context returns the interning context the module was created with.
func (m *Module) Context() *Context { return m.ctx }

// NewFunc creates a function with an entry block whose arguments mirror the
// parameter types, and appends it to the module.
func (m *Module) NewFunc(name string, params, results []Type, private bool) *Func {
	fn := &Func{
		Name:    name,
		Private: private,
		Params:  params,
		Results: results,
		Entry:   &Block{},
	}
	for _, t := range params {
		fn.Entry.AddArg(t, "")
	}
	m.Funcs = append(m.Funcs, fn)
	return fn
}

// FindFunc returns the named function, or nil.
func (m *Module) FindFunc(name string) *Func {
	for _, fn := range m.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
