// Package onnx reads the ONNX (Open Neural Network Exchange) interchange
// format into plain Go descriptors.
//
// The decoder is a hand-written protobuf reader covering the messages the
// rest of the project consumes: models, graphs, nodes, tensor literals, type
// descriptors, attributes, and model-local function definitions. Unknown
// fields are skipped, so models produced against newer onnx.proto revisions
// still parse.
//
// # Example Usage
//
//	model, err := onnx.ParseFile("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Producer:", model.ProducerName)
//	for _, node := range model.Graph.Nodes {
//	    fmt.Println(node.OpType)
//	}
package onnx

import "sort"

// Info summarizes a model without walking its weights, for quick inspection
// before committing to a full import.
type Info struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	OpsetVersion    int64            // default-domain opset
	OpsetImports    map[string]int64 // all opsets, keyed by domain
	GraphName       string
	InputNames      []string
	OutputNames     []string
	InitializerCnt  int
	FunctionNames   []string
	Operators       []string // distinct operator types, sorted
}

// Summarize extracts metadata from a parsed model.
func Summarize(m *ModelProto) *Info {
	info := &Info{
		IRVersion:       m.IRVersion,
		ProducerName:    m.ProducerName,
		ProducerVersion: m.ProducerVersion,
		Domain:          m.Domain,
		OpsetImports:    make(map[string]int64, len(m.OpsetImport)),
	}
	for _, opset := range m.OpsetImport {
		info.OpsetImports[opset.Domain] = opset.Version
		if opset.Domain == "" {
			info.OpsetVersion = opset.Version
		}
	}
	for i := range m.Functions {
		info.FunctionNames = append(info.FunctionNames, m.Functions[i].Name)
	}

	if g := m.Graph; g != nil {
		info.GraphName = g.Name
		info.InitializerCnt = len(g.Initializers)
		for i := range g.Inputs {
			info.InputNames = append(info.InputNames, g.Inputs[i].Name)
		}
		for i := range g.Outputs {
			info.OutputNames = append(info.OutputNames, g.Outputs[i].Name)
		}
		seen := make(map[string]struct{})
		collectOperators(g, seen)
		for op := range seen {
			info.Operators = append(info.Operators, op)
		}
		sort.Strings(info.Operators)
	}
	return info
}

func collectOperators(g *GraphProto, seen map[string]struct{}) {
	for i := range g.Nodes {
		node := &g.Nodes[i]
		name := node.OpType
		if node.Domain != "" {
			name = node.Domain + "." + name
		}
		seen[name] = struct{}{}
		for j := range node.Attributes {
			attr := &node.Attributes[j]
			if attr.G != nil {
				collectOperators(attr.G, seen)
			}
			for k := range attr.Graphs {
				collectOperators(&attr.Graphs[k], seen)
			}
		}
	}
}
