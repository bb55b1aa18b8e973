package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/ir"
	"github.com/loom-ml/loom/onnx"
	"github.com/loom-ml/loom/schema"
)

func addModel() *onnx.ModelProto {
	return &onnx.ModelProto{
		IRVersion:       8,
		ProducerName:    "pytorch",
		ProducerVersion: "2.1",
		OpsetImport:     []onnx.OperatorSetID{{Domain: "", Version: 17}},
		Graph: &onnx.GraphProto{
			Name: "main",
			Inputs: []onnx.ValueInfoProto{
				valueInfo("x", onnx.TensorProtoFloat, []int64{2}),
				valueInfo("c", onnx.TensorProtoFloat, []int64{2}),
			},
			Outputs: []onnx.ValueInfoProto{
				valueInfo("y", onnx.TensorProtoFloat, []int64{2}),
			},
			Initializers: []onnx.TensorProto{{
				Name:      "c",
				DataType:  onnx.TensorProtoFloat,
				Dims:      []int64{2},
				FloatData: []float32{1, 2},
			}},
			Nodes: []onnx.NodeProto{
				{OpType: "Add", Inputs: []string{"x", "c"}, Outputs: []string{"y"}},
			},
		},
	}
}

func TestImportAddWithInitializer(t *testing.T) {
	module, err := Import(addModel(), nil)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	fn := module.FindFunc("main")
	require.NotNil(t, fn)
	assert.False(t, fn.Private)

	// The initialized input is elided from the signature.
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "x", fn.Entry.Args[0].Name())
	assert.Equal(t, "!torch.vtensor<[2],f32>", fn.Params[0].String())

	ops := fn.Entry.Ops
	require.Len(t, ops, 4)

	// Initializer literal first.
	assert.Equal(t, ir.OpOperator, ops[0].Name)
	assert.Equal(t, `"onnx.Constant"`, ops[0].Attrs.Get("name").String())
	assert.NotNil(t, ops[0].Attrs.Get("torch.onnx.value"))
	assert.Equal(t, "c", ops[0].Results[0].Name())

	// Shared none placeholder.
	assert.Equal(t, ir.OpNone, ops[1].Name)

	// The node itself.
	assert.Equal(t, ir.OpOperator, ops[2].Name)
	assert.Equal(t, `"onnx.Add"`, ops[2].Attrs.Get("name").String())
	require.Len(t, ops[2].Operands, 2)
	assert.Same(t, fn.Entry.Args[0], ops[2].Operands[0])
	assert.Same(t, ops[0].Results[0], ops[2].Operands[1])

	// Declared output feeds the return.
	assert.Equal(t, ir.OpReturn, ops[3].Name)
	require.Len(t, ops[3].Operands, 1)
	assert.Same(t, ops[2].Results[0], ops[3].Operands[0])
	assert.Equal(t, "y", ops[3].Operands[0].Name())
}

func TestImportMetadataAttrs(t *testing.T) {
	model := addModel()
	model.OpsetImport = append(model.OpsetImport, onnx.OperatorSetID{Domain: "com.example", Version: 3})

	module, err := Import(model, nil)
	require.NoError(t, err)
	fn := module.FindFunc("main")
	require.NotNil(t, fn)

	opset, ok := fn.Attrs.Get("torch.onnx_meta.opset_version").(*ir.IntAttr)
	require.True(t, ok)
	assert.Equal(t, int64(17), opset.Value)

	irVersion, ok := fn.Attrs.Get("torch.onnx_meta.ir_version").(*ir.IntAttr)
	require.True(t, ok)
	assert.Equal(t, int64(8), irVersion.Value)

	producer, ok := fn.Attrs.Get("torch.onnx_meta.producer_name").(*ir.StringAttr)
	require.True(t, ok)
	assert.Equal(t, "pytorch", producer.Value)

	versions, ok := fn.Attrs.Get("torch.onnx_meta.opset_versions").(*ir.DictAttr)
	require.True(t, ok)
	custom, ok := versions.Get("com.example").(*ir.IntAttr)
	require.True(t, ok)
	assert.Equal(t, int64(3), custom.Value)
}

func TestImportStrictReconciliation(t *testing.T) {
	config := DefaultConfig()
	config.ElideInitializedInputs = false

	_, err := Import(addModel(), config)
	assert.ErrorIs(t, err, ErrReconciliation)
}

func TestImportOutputOrder(t *testing.T) {
	model := addModel()
	g := model.Graph
	g.Outputs = []onnx.ValueInfoProto{
		valueInfo("second", onnx.TensorProtoFloat, []int64{2}),
		valueInfo("first", onnx.TensorProtoFloat, []int64{2}),
	}
	g.Nodes = []onnx.NodeProto{
		{OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"first"}},
		{OpType: "Neg", Inputs: []string{"x"}, Outputs: []string{"second"}},
	}
	g.Initializers = nil
	g.Inputs = g.Inputs[:1]

	module, err := Import(model, nil)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	fn := module.FindFunc("main")
	ret := fn.Entry.Ops[len(fn.Entry.Ops)-1]
	require.Equal(t, ir.OpReturn, ret.Name)
	require.Len(t, ret.Operands, 2)
	// Return order follows output declaration order, not production order.
	assert.Equal(t, "second", ret.Operands[0].Name())
	assert.Equal(t, "first", ret.Operands[1].Name())
}

func TestImportNonTopological(t *testing.T) {
	model := addModel()
	model.Graph.Nodes = []onnx.NodeProto{
		{OpType: "Relu", Inputs: []string{"hidden"}, Outputs: []string{"y"}},
		{OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"hidden"}},
	}

	_, err := Import(model, nil)
	assert.ErrorIs(t, err, ErrNonTopological)
}

func TestImportMissingOutput(t *testing.T) {
	model := addModel()
	model.Graph.Nodes = nil

	_, err := Import(model, nil)
	assert.ErrorIs(t, err, ErrNonTopological)
}

func TestImportConstantNode(t *testing.T) {
	model := addModel()
	g := model.Graph
	g.Inputs = g.Inputs[:1]
	g.Initializers = nil
	g.Nodes = []onnx.NodeProto{
		{
			OpType:  "Constant",
			Outputs: []string{"c"},
			Attributes: []onnx.AttributeProto{{
				Name: "value",
				Type: onnx.AttributeProtoTensor,
				T: &onnx.TensorProto{
					DataType:  onnx.TensorProtoFloat,
					Dims:      []int64{2},
					FloatData: []float32{3, 4},
				},
			}},
		},
		{OpType: "Add", Inputs: []string{"x", "c"}, Outputs: []string{"y"}},
	}

	module, err := Import(model, nil)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	fn := module.FindFunc("main")
	ops := fn.Entry.Ops
	require.Len(t, ops, 4)

	// The Constant node materializes as a literal, not a generic operator.
	assert.Equal(t, `"onnx.Constant"`, ops[1].Attrs.Get("name").String())
	dense, ok := ops[1].Attrs.Get("torch.onnx.value").(*ir.DenseAttr)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, dense.Values)
	assert.Same(t, ops[1].Results[0], ops[2].Operands[1])
}

func TestImportCustomDomainNode(t *testing.T) {
	model := addModel()
	model.OpsetImport = append(model.OpsetImport, onnx.OperatorSetID{Domain: "com.example", Version: 1})
	model.Graph.Nodes[0] = onnx.NodeProto{
		OpType: "FancyAdd", Domain: "com.example",
		Inputs: []string{"x", "c"}, Outputs: []string{"y"},
	}

	module, err := Import(model, nil)
	require.NoError(t, err)

	fn := module.FindFunc("main")
	op := fn.Entry.Ops[2]
	assert.Equal(t, `"onnx.FancyAdd"`, op.Attrs.Get("name").String())
	assert.Equal(t, `"com.example"`, op.Attrs.Get("torch.onnx_meta.domain").String())
}

func TestImportNodeAttributes(t *testing.T) {
	model := addModel()
	model.Graph.Nodes[0].Attributes = []onnx.AttributeProto{
		{Name: "axis", Type: onnx.AttributeProtoInt, I: 1},
		{Name: "scales", Type: onnx.AttributeProtoFloats, Floats: []float32{0.5, 2}},
	}

	module, err := Import(model, nil)
	require.NoError(t, err)

	op := module.FindFunc("main").Entry.Ops[2]
	axis, ok := op.Attrs.Get("torch.onnx.axis").(*ir.IntAttr)
	require.True(t, ok)
	assert.Equal(t, int64(1), axis.Value)
	assert.NotNil(t, op.Attrs.Get("torch.onnx.scales"))
}

func TestImportSubgraphRegions(t *testing.T) {
	branch := func(name string) *onnx.GraphProto {
		return &onnx.GraphProto{
			Name: name,
			Nodes: []onnx.NodeProto{
				{OpType: "Identity", Inputs: []string{"x"}, Outputs: []string{name + "_out"}},
			},
			Outputs: []onnx.ValueInfoProto{
				valueInfo(name+"_out", onnx.TensorProtoFloat, []int64{2}),
			},
		}
	}

	model := addModel()
	g := model.Graph
	g.Initializers = nil
	g.Inputs = []onnx.ValueInfoProto{
		valueInfo("cond", onnx.TensorProtoBool, nil),
		valueInfo("x", onnx.TensorProtoFloat, []int64{2}),
	}
	g.Nodes = []onnx.NodeProto{{
		OpType:  "If",
		Inputs:  []string{"cond"},
		Outputs: []string{"y"},
		Attributes: []onnx.AttributeProto{
			{Name: "then_branch", Type: onnx.AttributeProtoGraph, G: branch("then")},
			{Name: "else_branch", Type: onnx.AttributeProtoGraph, G: branch("else")},
		},
	}}

	module, err := Import(model, nil)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	op := module.FindFunc("main").Entry.Ops[1]
	assert.Equal(t, `"onnx.If"`, op.Attrs.Get("name").String())
	// The graph attribute itself is skipped; the subgraphs import as regions,
	// in sorted attribute-name order.
	assert.Nil(t, op.Attrs.Get("torch.onnx.then_branch"))
	require.Len(t, op.Regions, 2)

	for i, want := range []string{"else_out", "then_out"} {
		require.Len(t, op.Regions[i].Blocks, 1)
		block := op.Regions[i].Blocks[0]
		require.Len(t, block.Ops, 2)
		term := block.Ops[1]
		assert.Equal(t, ir.OpTerminator, term.Name)
		require.Len(t, term.Operands, 1)
		assert.Equal(t, want, term.Operands[0].Name())
		// The branch body closes over the enclosing function's argument.
		identity := block.Ops[0]
		assert.Same(t, module.FindFunc("main").Entry.Args[1], identity.Operands[0])
	}
}

// countingInference wraps an Inference to observe how often the oracle runs.
type countingInference struct {
	inner schema.Inference
	calls int
}

func (ci *countingInference) InferShapes(m *onnx.ModelProto, opts schema.InferenceOptions) (*onnx.ModelProto, error) {
	ci.calls++
	return ci.inner.InferShapes(m, opts)
}

func doubleRegistry() *schema.Registry {
	r := schema.NewRegistry()

	mul := schema.NewSchema("Mul", "", 13)
	mul.Infer = schema.InferSameAsInput()
	r.Register(mul)

	double := schema.NewSchema("Double", "", 13)
	double.AddFunction(13, &onnx.FunctionProto{
		Name:    "Double",
		Inputs:  []string{"x"},
		Outputs: []string{"y"},
		Nodes: []onnx.NodeProto{
			{OpType: "Mul", Inputs: []string{"x", "x"}, Outputs: []string{"y"}},
		},
		OpsetImport: []onnx.OperatorSetID{{Domain: "", Version: 13}},
	})
	r.Register(double)
	return r
}

func doubleModel() *onnx.ModelProto {
	return &onnx.ModelProto{
		IRVersion:   8,
		OpsetImport: []onnx.OperatorSetID{{Domain: "", Version: 13}},
		Graph: &onnx.GraphProto{
			Name: "main",
			Inputs: []onnx.ValueInfoProto{
				valueInfo("x", onnx.TensorProtoFloat, []int64{2}),
			},
			Outputs: []onnx.ValueInfoProto{
				valueInfo("b", onnx.TensorProtoFloat, []int64{2}),
			},
			ValueInfo: []onnx.ValueInfoProto{
				valueInfo("a", onnx.TensorProtoFloat, []int64{2}),
			},
			Nodes: []onnx.NodeProto{
				{OpType: "Double", Inputs: []string{"x"}, Outputs: []string{"a"}},
				{OpType: "Double", Inputs: []string{"a"}, Outputs: []string{"b"}},
			},
		},
	}
}

func TestSpecializerExpandsAndMemoizes(t *testing.T) {
	r := doubleRegistry()
	counting := &countingInference{inner: &schema.BasicInference{Registry: r}}
	config := &Config{
		ElideInitializedInputs:      true,
		FunctionExpansionAllowlists: map[string]OpSet{"": {"Double": {}}},
		Registry:                    r,
		Inference:                   counting,
		Warnf:                       t.Logf,
	}

	module, err := Import(doubleModel(), config)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	// One specialized private function despite two call sites.
	require.Len(t, module.Funcs, 2)
	specialized := module.Funcs[1]
	assert.True(t, specialized.Private)
	assert.Equal(t, 1, counting.calls)

	main := module.FindFunc("main")
	ops := main.Entry.Ops
	require.Len(t, ops, 4) // none, call, call, return
	assert.Equal(t, ir.OpCall, ops[1].Name)
	assert.Equal(t, ir.OpCall, ops[2].Name)
	assert.Same(t, ops[1].Callee, ops[2].Callee)
	assert.Same(t, specialized, ops[1].Callee)

	// The specialized body carries the template's operator.
	bodyOp := specialized.Entry.Ops[1]
	assert.Equal(t, `"onnx.Mul"`, bodyOp.Attrs.Get("name").String())
}

func TestSpecializerAllowlist(t *testing.T) {
	r := doubleRegistry()

	// Not on the allowlist: imported as a generic operator.
	config := &Config{
		FunctionExpansionAllowlists: map[string]OpSet{"": {"SomethingElse": {}}},
		Registry:                    r,
		Warnf:                       t.Logf,
	}
	module, err := Import(doubleModel(), config)
	require.NoError(t, err)
	require.Len(t, module.Funcs, 1)
	assert.Equal(t, `"onnx.Double"`, module.Funcs[0].Entry.Ops[1].Attrs.Get("name").String())

	// Nil allowlist disables allowlisting: everything expands.
	config = &Config{Registry: r, Warnf: t.Logf}
	module, err = Import(doubleModel(), config)
	require.NoError(t, err)
	assert.Len(t, module.Funcs, 2)

	// Denylist always wins.
	config = &Config{
		FunctionExpansionDenylists: map[string]OpSet{"": {"Double": {}}},
		Registry:                   r,
		Warnf:                      t.Logf,
	}
	module, err = Import(doubleModel(), config)
	require.NoError(t, err)
	assert.Len(t, module.Funcs, 1)
}

func scaleRegistry(withDefault bool) *schema.Registry {
	r := schema.NewRegistry()

	identity := schema.NewSchema("Identity", "", 13)
	identity.Infer = schema.InferSameAsInput()
	r.Register(identity)

	scale := schema.NewSchema("Scale", "", 13)
	def := schema.AttributeDef{Name: "alpha", Type: onnx.AttributeProtoFloat}
	if withDefault {
		def.Default = &onnx.AttributeProto{
			Name: "alpha", Type: onnx.AttributeProtoFloat, F: 2,
		}
	}
	scale.AddAttribute(def)
	scale.AddFunction(13, &onnx.FunctionProto{
		Name:    "Scale",
		Inputs:  []string{"x"},
		Outputs: []string{"y"},
		Nodes: []onnx.NodeProto{{
			OpType:  "Identity",
			Inputs:  []string{"x"},
			Outputs: []string{"y"},
			Attributes: []onnx.AttributeProto{{
				Name:        "factor",
				RefAttrName: "alpha",
				Type:        onnx.AttributeProtoFloat,
			}},
		}},
		OpsetImport: []onnx.OperatorSetID{{Domain: "", Version: 13}},
	})
	r.Register(scale)
	return r
}

func scaleModel(attrs []onnx.AttributeProto) *onnx.ModelProto {
	return &onnx.ModelProto{
		IRVersion:   8,
		OpsetImport: []onnx.OperatorSetID{{Domain: "", Version: 13}},
		Graph: &onnx.GraphProto{
			Name: "main",
			Inputs: []onnx.ValueInfoProto{
				valueInfo("x", onnx.TensorProtoFloat, []int64{2}),
			},
			Outputs: []onnx.ValueInfoProto{
				valueInfo("y", onnx.TensorProtoFloat, []int64{2}),
			},
			Nodes: []onnx.NodeProto{{
				OpType: "Scale", Inputs: []string{"x"}, Outputs: []string{"y"},
				Attributes: attrs,
			}},
		},
	}
}

func specializedBodyAttr(t *testing.T, module *ir.Module, name string) ir.Attr {
	t.Helper()
	require.Len(t, module.Funcs, 2)
	return module.Funcs[1].Entry.Ops[1].Attrs.Get(name)
}

func TestSpecializerBindsCallerAttribute(t *testing.T) {
	config := &Config{Registry: scaleRegistry(true), Warnf: t.Logf}
	module, err := Import(scaleModel([]onnx.AttributeProto{
		{Name: "alpha", Type: onnx.AttributeProtoFloat, F: 5},
	}), config)
	require.NoError(t, err)

	factor, ok := specializedBodyAttr(t, module, "torch.onnx.factor").(*ir.FloatAttr)
	require.True(t, ok)
	assert.Equal(t, float64(5), factor.Value)
}

func TestSpecializerBindsSchemaDefault(t *testing.T) {
	config := &Config{Registry: scaleRegistry(true), Warnf: t.Logf}
	module, err := Import(scaleModel(nil), config)
	require.NoError(t, err)

	factor, ok := specializedBodyAttr(t, module, "torch.onnx.factor").(*ir.FloatAttr)
	require.True(t, ok)
	assert.Equal(t, float64(2), factor.Value)
}

func TestSpecializerDropsUnboundReference(t *testing.T) {
	config := &Config{Registry: scaleRegistry(false), Warnf: t.Logf}
	module, err := Import(scaleModel(nil), config)
	require.NoError(t, err)

	// No caller value and no default: the reference attribute disappears.
	assert.Nil(t, specializedBodyAttr(t, module, "torch.onnx.factor"))
}

func TestSpecializerContextDependentWinsTie(t *testing.T) {
	r := doubleRegistry()
	s, err := r.Lookup("Double", "", 13)
	require.NoError(t, err)

	builderCalls := 0
	s.AddContextDependentFunction(13, func(node *onnx.NodeProto, inputTypes []*onnx.TypeProto) (*onnx.FunctionProto, error) {
		builderCalls++
		return s.FunctionWithOpsetVersion(13), nil
	})

	config := &Config{Registry: r, Warnf: t.Logf}
	module, err := Import(doubleModel(), config)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	// The builder beats the plain template at the same version, and its
	// specializations are keyed on the whole calling node, so the two call
	// sites with different value names each get their own body.
	assert.Equal(t, 2, builderCalls)
	require.Len(t, module.Funcs, 3)

	main := module.FindFunc("main")
	assert.NotSame(t, main.Entry.Ops[1].Callee, main.Entry.Ops[2].Callee)
}

func TestSpecializerStrictInferenceFailure(t *testing.T) {
	r := schema.NewRegistry()
	broken := schema.NewSchema("Broken", "", 13)
	broken.AddFunction(13, &onnx.FunctionProto{
		Name:    "Broken",
		Inputs:  []string{"x"},
		Outputs: []string{"y"},
		Nodes: []onnx.NodeProto{
			// No schema registered for Mystery: strict inference fails.
			{OpType: "Mystery", Inputs: []string{"x"}, Outputs: []string{"y"}},
		},
		OpsetImport: []onnx.OperatorSetID{{Domain: "", Version: 13}},
	})
	r.Register(broken)

	model := doubleModel()
	model.Graph.Nodes = []onnx.NodeProto{
		{OpType: "Broken", Inputs: []string{"x"}, Outputs: []string{"b"}},
	}

	config := &Config{Registry: r, Warnf: t.Logf}
	_, err := Import(model, config)
	assert.ErrorIs(t, err, ErrSpecializationFailure)
}

func TestSpecializerArityMismatch(t *testing.T) {
	r := doubleRegistry()
	model := doubleModel()
	model.Graph.Nodes = []onnx.NodeProto{
		{OpType: "Double", Inputs: []string{"x", "x"}, Outputs: []string{"b"}},
	}

	config := &Config{Registry: r, Warnf: t.Logf}
	_, err := Import(model, config)
	assert.ErrorIs(t, err, ErrSpecializationFailure)
}

func TestImportModelLocalFunction(t *testing.T) {
	r := schema.NewRegistry()
	mul := schema.NewSchema("Mul", "", 13)
	mul.Infer = schema.InferSameAsInput()
	r.Register(mul)

	model := doubleModel()
	model.Graph.Nodes = []onnx.NodeProto{
		{OpType: "Square", Domain: "com.example", Inputs: []string{"x"}, Outputs: []string{"b"}},
	}
	model.OpsetImport = append(model.OpsetImport, onnx.OperatorSetID{Domain: "com.example", Version: 1})
	model.Functions = []onnx.FunctionProto{{
		Name:    "Square",
		Domain:  "com.example",
		Inputs:  []string{"x"},
		Outputs: []string{"y"},
		Nodes: []onnx.NodeProto{
			{OpType: "Mul", Inputs: []string{"x", "x"}, Outputs: []string{"y"}},
		},
		OpsetImport: []onnx.OperatorSetID{
			{Domain: "", Version: 13},
			{Domain: "com.example", Version: 1},
		},
	}}

	config := &Config{Registry: r, Warnf: t.Logf}
	module, err := Import(model, config)
	require.NoError(t, err)
	require.NoError(t, module.Verify())

	// The model-local function expands like a schema-backed operator.
	require.Len(t, module.Funcs, 2)
	assert.True(t, module.Funcs[1].Private)
	assert.Equal(t, ir.OpCall, module.FindFunc("main").Entry.Ops[1].Name)
}
