package schema

import (
	"github.com/pkg/errors"

	"github.com/loom-ml/loom/onnx"
)

// InferenceOptions configure a shape-inference run.
type InferenceOptions struct {
	// StrictMode fails when a node's output types cannot be determined.
	StrictMode bool
	// DataPropagation is accepted for interface parity; the basic pass
	// propagates types only.
	DataPropagation bool
}

// Inference annotates every internal value of a model with a type. The
// specializer runs it over each synthetic model before importing the body,
// because the importer cannot import a node whose operand types are
// unresolved.
type Inference interface {
	InferShapes(m *onnx.ModelProto, opts InferenceOptions) (*onnx.ModelProto, error)
}

// BasicInference is a registry-driven shape-inference pass: it walks the
// graph in node order, resolving each node's output types through the
// operator schema's Infer hook, and records them in the graph's value_info.
type BasicInference struct {
	Registry *Registry
}

// InferShapes implements Inference. The input model is not mutated; the
// returned model shares unannotated descriptors with it.
func (bi *BasicInference) InferShapes(m *onnx.ModelProto, opts InferenceOptions) (*onnx.ModelProto, error) {
	if m.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	out := *m
	out.Graph = m.Graph.Clone()
	if err := bi.inferGraph(&out, out.Graph, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

func (bi *BasicInference) inferGraph(m *onnx.ModelProto, g *onnx.GraphProto, opts InferenceOptions) error {
	known := make(map[string]*onnx.TypeProto)
	for i := range g.Inputs {
		known[g.Inputs[i].Name] = g.Inputs[i].Type
	}
	for i := range g.ValueInfo {
		known[g.ValueInfo[i].Name] = g.ValueInfo[i].Type
	}
	for i := range g.Outputs {
		if !g.Outputs[i].Type.IsEmpty() {
			known[g.Outputs[i].Name] = g.Outputs[i].Type
		}
	}
	for i := range g.Initializers {
		init := &g.Initializers[i]
		known[init.Name] = onnx.MakeTensorTypeProto(init.DataType, init.Dims)
	}

	opsetVersion := func(domain string) int64 {
		for _, opset := range m.OpsetImport {
			if opset.Domain == domain {
				return opset.Version
			}
		}
		return 0
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		inputTypes := make([]*onnx.TypeProto, len(node.Inputs))
		for j, name := range node.Inputs {
			inputTypes[j] = known[name]
		}

		outputTypes, err := bi.inferNode(node, inputTypes, opsetVersion(node.Domain))
		if err != nil {
			if opts.StrictMode {
				return errors.Wrapf(err, "inferring types for node %s", node)
			}
			continue
		}
		for j, name := range node.Outputs {
			if j >= len(outputTypes) || outputTypes[j].IsEmpty() {
				if opts.StrictMode {
					return errors.Errorf("no type inferred for output %q of node %s", name, node)
				}
				continue
			}
			if _, ok := known[name]; !ok {
				known[name] = outputTypes[j]
				g.ValueInfo = append(g.ValueInfo, onnx.ValueInfoProto{
					Name: name,
					Type: outputTypes[j],
				})
			}
		}
	}

	// Graph outputs inherit inferred types when the descriptor left them
	// untyped.
	for i := range g.Outputs {
		if g.Outputs[i].Type.IsEmpty() {
			if t, ok := known[g.Outputs[i].Name]; ok {
				g.Outputs[i].Type = t
			}
		}
	}
	return nil
}

func (bi *BasicInference) inferNode(node *onnx.NodeProto, inputTypes []*onnx.TypeProto, opsetVersion int64) ([]*onnx.TypeProto, error) {
	// Constant nodes carry their own type in the value attribute.
	if node.Domain == "" && node.OpType == "Constant" {
		if value := node.Attr("value"); value != nil && value.T != nil {
			return []*onnx.TypeProto{onnx.MakeTensorTypeProto(value.T.DataType, value.T.Dims)}, nil
		}
	}
	s, err := bi.Registry.Lookup(node.OpType, node.Domain, opsetVersion)
	if err != nil {
		return nil, err
	}
	if s.Infer == nil {
		return nil, errors.Errorf("operator %q in domain %q has no output inference",
			node.OpType, node.Domain)
	}
	return s.Infer(node, inputTypes)
}

// InferSameAsInput returns an inference hook that gives every output the type
// of the first typed input. Suitable for elementwise operators.
func InferSameAsInput() OutputInference {
	return func(node *onnx.NodeProto, inputTypes []*onnx.TypeProto) ([]*onnx.TypeProto, error) {
		var t *onnx.TypeProto
		for _, in := range inputTypes {
			if !in.IsEmpty() {
				t = in
				break
			}
		}
		if t == nil {
			return nil, errors.Errorf("node %s has no typed input", node)
		}
		out := make([]*onnx.TypeProto, len(node.Outputs))
		for i := range out {
			out[i] = t
		}
		return out, nil
	}
}
