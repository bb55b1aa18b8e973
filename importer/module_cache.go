package importer

import (
	"fmt"
	"strings"

	"github.com/loom-ml/loom/ir"
	"github.com/loom-ml/loom/onnx"
	"github.com/loom-ml/loom/schema"
)

// ModuleCache memoizes specialized operator functions per module. A
// function-backed operator called twice with the same signature and
// attributes resolves to the same generated function, so the oracle and the
// body import run once per distinct specialization.
type ModuleCache struct {
	module    *ir.Module
	cc        *ContextCache
	registry  *schema.Registry
	inference schema.Inference

	operatorFunctions map[string]*ir.Func
}

// NewModuleCache creates an empty cache over one module.
func NewModuleCache(module *ir.Module, cc *ContextCache, registry *schema.Registry, inference schema.Inference) *ModuleCache {
	return &ModuleCache{
		module:            module,
		cc:                cc,
		registry:          registry,
		inference:         inference,
		operatorFunctions: make(map[string]*ir.Func),
	}
}

// GetOperatorFunction resolves an operator call site to a specialized private
// function, or to nil when the operator should be imported as a generic
// operation instead: it is filtered by the expansion lists, has no schema,
// or is not defined by a function template at the requested opset version.
//
// Specialization works on a synthetic single-node-path model built from the
// template body: reference attributes are bound to the caller's concrete
// values, strict shape inference types the body, and the result is imported
// as a private function keyed by name, domain, version, signature, and
// attribute values.
func (mc *ModuleCache) GetOperatorFunction(
	opName, opDomain string,
	opsetVersion int64,
	inputTypeProtos, outputTypeProtos []*onnx.TypeProto,
	callerNode *onnx.NodeProto,
	config *Config,
) (*ir.Func, error) {
	if allowlists := config.FunctionExpansionAllowlists; allowlists != nil {
		if _, ok := allowlists[opDomain][opName]; !ok {
			return nil, nil
		}
	}
	if _, denied := config.FunctionExpansionDenylists[opDomain][opName]; denied {
		return nil, nil
	}

	s, err := mc.registry.Lookup(opName, opDomain, opsetVersion)
	if err != nil {
		// No schema known for the operator; import it generically.
		return nil, nil
	}

	// Select the highest function-bearing version not exceeding the
	// requested opset. A context-dependent builder at the same version
	// shadows a plain template.
	version := int64(-1)
	isContextDependent := false
	for _, v := range s.FunctionOpsetVersions() {
		if v <= opsetVersion && v > version {
			version = v
			isContextDependent = false
		}
	}
	for _, v := range s.ContextDependentOpsetVersions() {
		if v <= opsetVersion && v >= version {
			version = v
			isContextDependent = true
		}
	}
	if version < 0 {
		return nil, nil
	}

	// A context-dependent body can depend on anything about the call site,
	// so the whole node participates in the key; a plain template varies
	// only with the attribute values it binds.
	var discriminator string
	if isContextDependent {
		discriminator = callerNode.String()
	} else {
		parts := make([]string, len(callerNode.Attributes))
		for i := range callerNode.Attributes {
			parts[i] = callerNode.Attributes[i].String()
		}
		discriminator = strings.Join(parts, ",")
	}
	key := specializationKey(opName, opDomain, version, inputTypeProtos, outputTypeProtos, discriminator)
	if fn, ok := mc.operatorFunctions[key]; ok {
		return fn, nil
	}

	var fp *onnx.FunctionProto
	if isContextDependent {
		fp, err = s.ContextDependentFunction(version, callerNode, inputTypeProtos)
		if err != nil {
			return nil, fmt.Errorf("%w: building body for %s/%s at version %d: %v",
				ErrSpecializationFailure, opName, opDomain, version, err)
		}
	} else {
		fp = s.FunctionWithOpsetVersion(version)
	}
	if fp == nil {
		return nil, fmt.Errorf("%w: no function body for %s/%s at version %d",
			ErrSpecializationFailure, opName, opDomain, version)
	}

	model, err := specializeFunctionToModel(fp, s, key, inputTypeProtos, outputTypeProtos, callerNode)
	if err != nil {
		return nil, err
	}
	model, err = mc.inference.InferShapes(model, schema.InferenceOptions{
		StrictMode:      true,
		DataPropagation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: inferring shapes for %s: %v", ErrSpecializationFailure, key, err)
	}

	mi, err := NewModelInfo(model, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpecializationFailure, key, err)
	}
	imp, err := DefineFunction(mi.MainGraph, mc.module, mc.cc, mc, true)
	if err != nil {
		return nil, err
	}
	if err := imp.ImportAll(); err != nil {
		return nil, err
	}

	fn := imp.fn
	mc.operatorFunctions[key] = fn
	return fn, nil
}

func specializationKey(opName, opDomain string, version int64, inputTypeProtos, outputTypeProtos []*onnx.TypeProto, discriminator string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s.%d", opName, opDomain, version)
	for _, tp := range inputTypeProtos {
		b.WriteByte(':')
		b.WriteString(tp.String())
	}
	b.WriteByte('!')
	for _, tp := range outputTypeProtos {
		b.WriteByte(':')
		b.WriteString(tp.String())
	}
	if discriminator != "" {
		b.WriteByte('!')
		b.WriteString(discriminator)
	}
	return b.String()
}

// specializeFunctionToModel wraps a template body in a synthetic model: the
// function's formal inputs and outputs become graph inputs and outputs carrying
// the call site's resolved types, and reference attributes in the body are
// bound to concrete values.
func specializeFunctionToModel(
	fp *onnx.FunctionProto,
	s *schema.Schema,
	name string,
	inputTypeProtos, outputTypeProtos []*onnx.TypeProto,
	callerNode *onnx.NodeProto,
) (*onnx.ModelProto, error) {
	if len(fp.Inputs) != len(inputTypeProtos) {
		return nil, fmt.Errorf("%w: function %s declares %d inputs, call site has %d",
			ErrSpecializationFailure, fp.Name, len(fp.Inputs), len(inputTypeProtos))
	}
	if len(fp.Outputs) != len(outputTypeProtos) {
		return nil, fmt.Errorf("%w: function %s declares %d outputs, call site has %d",
			ErrSpecializationFailure, fp.Name, len(fp.Outputs), len(outputTypeProtos))
	}

	g := &onnx.GraphProto{Name: name}
	for i, formal := range fp.Inputs {
		g.Inputs = append(g.Inputs, onnx.ValueInfoProto{
			Name: formal,
			Type: inputTypeProtos[i].Clone(),
		})
	}
	for i, formal := range fp.Outputs {
		g.Outputs = append(g.Outputs, onnx.ValueInfoProto{
			Name: formal,
			Type: outputTypeProtos[i].Clone(),
		})
	}
	g.Nodes = make([]onnx.NodeProto, len(fp.Nodes))
	for i := range fp.Nodes {
		g.Nodes[i] = *fp.Nodes[i].Clone()
	}

	bindings := attributeBindings(s, callerNode)
	for i := range g.Nodes {
		bindAttributesOnNode(&g.Nodes[i], bindings)
	}

	model := &onnx.ModelProto{
		IRVersion:   schema.MinIRVersion(fp.OpsetImport),
		OpsetImport: append([]onnx.OperatorSetID(nil), fp.OpsetImport...),
		Graph:       g,
	}
	return model, nil
}

// attributeBindings resolves the values reference attributes bind to: the
// schema's defaults overlaid with the caller's concrete attributes.
func attributeBindings(s *schema.Schema, callerNode *onnx.NodeProto) map[string]*onnx.AttributeProto {
	bindings := make(map[string]*onnx.AttributeProto)
	for name, def := range s.Attributes {
		if def.HasDefault() {
			bindings[name] = def.Default
		}
	}
	for i := range callerNode.Attributes {
		bindings[callerNode.Attributes[i].Name] = &callerNode.Attributes[i]
	}
	return bindings
}

// bindAttributesOnNode replaces reference attributes on one body node with
// the values they bind to. A reference with no binding is dropped, which is
// how a function body observes an optional caller attribute being absent.
// Non-referencing graph attributes are recursed into, since nested control
// flow can reference caller attributes too.
func bindAttributesOnNode(node *onnx.NodeProto, bindings map[string]*onnx.AttributeProto) {
	bound := node.Attributes[:0]
	for i := range node.Attributes {
		attr := &node.Attributes[i]
		if attr.RefAttrName == "" {
			if attr.G != nil || len(attr.Graphs) > 0 {
				if attr.G != nil {
					for j := range attr.G.Nodes {
						bindAttributesOnNode(&attr.G.Nodes[j], bindings)
					}
				}
				for j := range attr.Graphs {
					for k := range attr.Graphs[j].Nodes {
						bindAttributesOnNode(&attr.Graphs[j].Nodes[k], bindings)
					}
				}
			}
			bound = append(bound, *attr)
			continue
		}
		value, ok := bindings[attr.RefAttrName]
		if !ok {
			continue
		}
		resolved := value.Clone()
		resolved.Name = attr.Name
		resolved.RefAttrName = ""
		bound = append(bound, *resolved)
	}
	node.Attributes = bound
}
