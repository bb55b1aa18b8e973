package importer

import (
	"fmt"
	"slices"

	"github.com/loom-ml/loom/ir"
	"github.com/loom-ml/loom/onnx"
)

// NodeImporter imports one graph's nodes into the IR.
//
// The top-level graph is imported into a function; nested subgraphs are
// imported into attribute regions with references to pre-existing values. The
// format requires graphs to be sorted topologically and free of cycles, so
// no steps are taken to order nodes for dominance.
type NodeImporter struct {
	gi     *GraphInfo
	cc     *ContextCache
	mc     *ModuleCache
	module *ir.Module

	// fn is the containing function when importing a function body, nil
	// when importing an attribute region.
	fn    *ir.Func
	block *ir.Block

	// nv is the binding map from value name to constructed IR value. A
	// name must be bound before any node consuming it is imported.
	nv map[string]*ir.Value
}

// DefineFunction creates a function for a graph and returns an importer
// positioned at its entry block: parameter types derive from the effective
// input set in declaration order, result types from the declared outputs, and
// each parameter is bound to its input name. Private functions are
// specializer scaffolding meant to be discarded after inlining.
func DefineFunction(gi *GraphInfo, module *ir.Module, cc *ContextCache, mc *ModuleCache, private bool) (*NodeImporter, error) {
	config := gi.modelInfo.Config
	if cc == nil {
		cc = NewContextCache(module.Context(), config)
	}
	if mc == nil {
		mc = NewModuleCache(module, cc, config.Registry, config.Inference)
	}

	inputTypes := make([]ir.Type, len(gi.inputNames))
	for i, name := range gi.inputNames {
		t, err := cc.TypeProtoToType(gi.InputType(name))
		if err != nil {
			return nil, fmt.Errorf("graph %q input %q: %w", gi.proto.Name, name, err)
		}
		inputTypes[i] = t
	}
	outputTypes := make([]ir.Type, len(gi.outputNames))
	for i, name := range gi.outputNames {
		t, err := cc.TypeProtoToType(gi.outputMap[name].Type)
		if err != nil {
			return nil, fmt.Errorf("graph %q output %q: %w", gi.proto.Name, name, err)
		}
		outputTypes[i] = t
	}

	fn := module.NewFunc(gi.proto.Name, inputTypes, outputTypes, private)
	imp := &NodeImporter{
		gi:     gi,
		cc:     cc,
		mc:     mc,
		module: module,
		fn:     fn,
		block:  fn.Entry,
		nv:     make(map[string]*ir.Value),
	}
	for i, name := range gi.inputNames {
		fn.Entry.Args[i].SetName(name)
		imp.nv[name] = fn.Entry.Args[i]
	}
	imp.populateGraphAttrs(fn)
	return imp, nil
}

// populateGraphAttrs attaches model-level metadata to the generated
// function: per-domain opset versions, default-domain opset version, format
// version, and producer identification.
func (imp *NodeImporter) populateGraphAttrs(fn *ir.Func) {
	m := imp.gi.modelInfo.Proto
	i64 := imp.cc.ctx.Integer(64, ir.Signed)

	var defaultOpsetVersion int64
	opsetVersions := &ir.DictAttr{}
	for _, opset := range m.OpsetImport {
		if opset.Domain != "" {
			opsetVersions.Set(opset.Domain, &ir.IntAttr{Type: i64, Value: opset.Version})
		} else {
			defaultOpsetVersion = opset.Version
		}
	}
	if defaultOpsetVersion != 0 {
		fn.Attrs.Set("torch.onnx_meta.opset_version",
			&ir.IntAttr{Type: i64, Value: defaultOpsetVersion})
	}
	if opsetVersions.Len() > 0 {
		fn.Attrs.Set("torch.onnx_meta.opset_versions", opsetVersions)
	}
	fn.Attrs.Set("torch.onnx_meta.ir_version", &ir.IntAttr{Type: i64, Value: m.IRVersion})
	fn.Attrs.Set("torch.onnx_meta.producer_name", &ir.StringAttr{Value: m.ProducerName})
	fn.Attrs.Set("torch.onnx_meta.producer_version", &ir.StringAttr{Value: m.ProducerVersion})
}

// ImportAll imports every initializer and node of the graph in descriptor
// order and terminates the region: a function return at top level, a generic
// terminator inside an attribute region.
func (imp *NodeImporter) ImportAll() error {
	return imp.importAll(true)
}

func (imp *NodeImporter) importAll(isFuncBody bool) error {
	for i := range imp.gi.proto.Initializers {
		if _, err := imp.ImportInitializer(&imp.gi.proto.Initializers[i], ""); err != nil {
			return err
		}
	}
	imp.GetNone()
	for i := range imp.gi.proto.Nodes {
		if err := imp.ImportNode(&imp.gi.proto.Nodes[i]); err != nil {
			return err
		}
	}

	outputs := make([]*ir.Value, len(imp.gi.outputNames))
	for i, name := range imp.gi.outputNames {
		v, ok := imp.nv[name]
		if !ok {
			return fmt.Errorf("%w: graph output %q was never produced", ErrNonTopological, name)
		}
		outputs[i] = v
	}
	terminator := ir.OpTerminator
	if isFuncBody {
		terminator = ir.OpReturn
	}
	imp.block.Append(ir.NewOperation(terminator, nil, outputs))
	return nil
}

// GetNone returns the shared none placeholder value, materializing it on
// first use under the empty name.
func (imp *NodeImporter) GetNone() *ir.Value {
	if v, ok := imp.nv[""]; ok {
		return v
	}
	op := ir.NewOperation(ir.OpNone, []ir.Type{imp.cc.NoneType()}, nil)
	imp.block.Append(op)
	imp.nv[""] = op.Results[0]
	return op.Results[0]
}

// ImportNode imports one node. Operators with special non-standard IR shapes
// are dispatched first; everything else goes through the general import.
func (imp *NodeImporter) ImportNode(node *onnx.NodeProto) error {
	switch node.OpType {
	case "Constant":
		// Constants specified by value attribute materialize to a literal
		// rather than a generic operator.
		handled, err := imp.handleConstant(node)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return imp.importGeneralNode(node)
}

func (imp *NodeImporter) importGeneralNode(node *onnx.NodeProto) error {
	inputValues := make([]*ir.Value, len(node.Inputs))
	inputTypeProtos := make([]*onnx.TypeProto, len(node.Inputs))
	for i, name := range node.Inputs {
		v, ok := imp.nv[name]
		if !ok {
			return fmt.Errorf("%w: node input %q in %s", ErrNonTopological, name, node)
		}
		inputValues[i] = v
		// Missing optional arguments have empty type descriptors.
		if tp := imp.gi.FindTypeProtoForName(name); tp != nil {
			inputTypeProtos[i] = tp
		} else {
			inputTypeProtos[i] = &onnx.TypeProto{}
		}
	}

	outputTypeProtos := make([]*onnx.TypeProto, len(node.Outputs))
	outputTypes := make([]ir.Type, len(node.Outputs))
	for i, name := range node.Outputs {
		tp := imp.gi.FindTypeProtoForName(name)
		outputTypeProtos[i] = tp
		t, err := imp.cc.TypeProtoToType(tp)
		if err != nil {
			return fmt.Errorf("node output %q in %s: %w", name, node, err)
		}
		outputTypes[i] = t
	}

	opsetVersion, _ := imp.gi.modelInfo.OpsetVersion(node.Domain)
	operatorFn, err := imp.mc.GetOperatorFunction(node.OpType, node.Domain, opsetVersion,
		inputTypeProtos, outputTypeProtos, node, imp.gi.modelInfo.Config)
	if err != nil {
		return err
	}

	var op *ir.Operation
	if operatorFn != nil {
		op = ir.NewCall(operatorFn, inputValues)
		imp.block.Append(op)
	} else {
		op = ir.NewOperation(ir.OpOperator, outputTypes, inputValues)
		if err := imp.importAttributes(node.Attributes, &op.Attrs); err != nil {
			return fmt.Errorf("node %s: %w", node, err)
		}
		op.Attrs.Set("name", &ir.StringAttr{Value: "onnx." + node.OpType})
		if node.Domain != "" {
			op.Attrs.Set("torch.onnx_meta.domain", &ir.StringAttr{Value: node.Domain})
		}
		for i, n := 0, countGraphAttrs(node.Attributes); i < n; i++ {
			op.AddRegion()
		}
		imp.block.Append(op)
		if err := imp.importRegions(node.Attributes, op); err != nil {
			return err
		}
	}

	for i, name := range node.Outputs {
		if i >= len(op.Results) {
			break
		}
		op.Results[i].SetName(name)
		imp.nv[name] = op.Results[i]
	}
	return nil
}

// importAttributes converts the node's attributes into operation attributes
// under the torch.onnx namespace, applying the fixed per-kind policy.
func (imp *NodeImporter) importAttributes(attrs []onnx.AttributeProto, out *ir.DictAttr) error {
	for i := range attrs {
		a := &attrs[i]
		converted, err := importAttribute(imp.cc, a)
		if err != nil {
			return err
		}
		if converted == nil {
			continue
		}
		out.Set("torch.onnx."+a.Name, converted)
	}
	return nil
}

func countGraphAttrs(attrs []onnx.AttributeProto) int {
	count := 0
	for i := range attrs {
		if attrs[i].Type == onnx.AttributeProtoGraph {
			count++
		}
	}
	return count
}

// importRegions imports every graph-valued attribute of the node as a nested
// region, in sorted attribute-name order. Each nested frame is pre-seeded
// with the enclosing scope's bindings, which is how control-flow operators
// close over outer values.
func (imp *NodeImporter) importRegions(attrs []onnx.AttributeProto, op *ir.Operation) error {
	graphAttrs := make(map[string]*onnx.AttributeProto)
	for i := range attrs {
		if attrs[i].Type == onnx.AttributeProtoGraph {
			graphAttrs[attrs[i].Name] = &attrs[i]
		}
	}
	names := make([]string, 0, len(graphAttrs))
	for name := range graphAttrs {
		names = append(names, name)
	}
	slices.Sort(names)

	for i, name := range names {
		attr := graphAttrs[name]
		region := op.Regions[i]
		block := region.AddBlock()
		for j := range attr.G.Inputs {
			in := &attr.G.Inputs[j]
			t, err := imp.cc.TypeProtoToType(in.Type)
			if err != nil {
				return fmt.Errorf("subgraph %q input %q: %w", attr.G.Name, in.Name, err)
			}
			block.AddArg(t, in.Name)
		}

		subInfo, err := NewGraphInfo(imp.gi.modelInfo, attr.G, true)
		if err != nil {
			return err
		}
		sub := &NodeImporter{
			gi:     subInfo,
			cc:     imp.cc,
			mc:     imp.mc,
			module: imp.module,
			block:  block,
			nv:     make(map[string]*ir.Value, len(imp.nv)+len(block.Args)),
		}
		for j := range attr.G.Inputs {
			sub.nv[attr.G.Inputs[j].Name] = block.Args[j]
		}
		for k, v := range imp.nv {
			sub.nv[k] = v
		}

		if err := sub.importAll(false); err != nil {
			return err
		}
	}
	return nil
}

// ImportInitializer imports an initial-value tensor as a literal-producing
// operation and binds its output. An explicit externName overrides the name
// carried by the tensor itself.
func (imp *NodeImporter) ImportInitializer(initializer *onnx.TensorProto, externName string) (*ir.Value, error) {
	name := externName
	if name == "" {
		name = initializer.Name
	}
	valueAttr, err := imp.cc.TensorProtoToAttr(initializer)
	if err != nil {
		return nil, fmt.Errorf("initializer %q: %w", name, err)
	}
	vtensorType, err := imp.cc.TensorProtoToType(initializer)
	if err != nil {
		return nil, fmt.Errorf("initializer %q: %w", name, err)
	}

	op := ir.NewOperation(ir.OpOperator, []ir.Type{vtensorType}, nil)
	op.Attrs.Set("name", &ir.StringAttr{Value: "onnx.Constant"})
	op.Attrs.Set("torch.onnx.value", valueAttr)
	imp.block.Append(op)
	op.Results[0].SetName(name)
	imp.nv[name] = op.Results[0]
	return op.Results[0], nil
}

// handleConstant imports a Constant node specified by value attribute as a
// literal. The literal is also registered as an initializer so operators
// requiring a constant input (e.g. ConstantOfShape) can resolve it. Returns
// false when the node uses one of the other value_* attribute forms, which
// fall through to the general import.
func (imp *NodeImporter) handleConstant(node *onnx.NodeProto) (bool, error) {
	valueAttr := node.Attr("value")
	if valueAttr == nil {
		return false, nil
	}
	if valueAttr.Type != onnx.AttributeProtoTensor || valueAttr.T == nil {
		return false, fmt.Errorf("%w: Constant value attribute must be a tensor (%s)",
			ErrUnsupportedAttribute, node)
	}
	if len(node.Outputs) != 1 {
		return false, fmt.Errorf("Constant node must have exactly one output: %s", node)
	}
	constName := node.Outputs[0]
	if _, err := imp.ImportInitializer(valueAttr.T, constName); err != nil {
		return false, err
	}
	imp.gi.initializerMap[constName] = valueAttr.T
	return true, nil
}
