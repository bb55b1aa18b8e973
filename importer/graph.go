package importer

import (
	"fmt"
	"strings"

	"github.com/loom-ml/loom/onnx"
)

// GraphInfo builds lookup tables over one graph's declared inputs, outputs,
// initial-value tensors, and per-value type annotations. It performs no IR
// construction.
type GraphInfo struct {
	modelInfo *ModelInfo
	proto     *onnx.GraphProto

	initializerMap   map[string]*onnx.TensorProto
	valueInfoMap     map[string]*onnx.ValueInfoProto
	declaredInputMap map[string]*onnx.ValueInfoProto
	outputMap        map[string]*onnx.ValueInfoProto

	// inputNames is the effective input set in declaration order: declared
	// inputs minus those shadowed by an initializer, under the default
	// configuration. outputNames preserves declaration order likewise.
	inputNames  []string
	outputNames []string
}

// NewGraphInfo indexes one graph. Subgraphs (nested inside a node attribute)
// do not apply the input/initializer reconciliation rule and must have no
// name overlap between inputs and initial values.
func NewGraphInfo(mi *ModelInfo, proto *onnx.GraphProto, isSubgraph bool) (*GraphInfo, error) {
	gi := &GraphInfo{
		modelInfo:        mi,
		proto:            proto,
		initializerMap:   make(map[string]*onnx.TensorProto, len(proto.Initializers)),
		valueInfoMap:     make(map[string]*onnx.ValueInfoProto, len(proto.ValueInfo)),
		declaredInputMap: make(map[string]*onnx.ValueInfoProto, len(proto.Inputs)),
		outputMap:        make(map[string]*onnx.ValueInfoProto, len(proto.Outputs)),
	}
	for i := range proto.Initializers {
		gi.initializerMap[proto.Initializers[i].Name] = &proto.Initializers[i]
	}
	for i := range proto.ValueInfo {
		gi.valueInfoMap[proto.ValueInfo[i].Name] = &proto.ValueInfo[i]
	}
	for i := range proto.Inputs {
		gi.declaredInputMap[proto.Inputs[i].Name] = &proto.Inputs[i]
	}
	for i := range proto.Outputs {
		gi.outputMap[proto.Outputs[i].Name] = &proto.Outputs[i]
		gi.outputNames = append(gi.outputNames, proto.Outputs[i].Name)
	}

	if !isSubgraph && mi != nil && mi.Config.ElideInitializedInputs {
		for i := range proto.Inputs {
			if _, shadowed := gi.initializerMap[proto.Inputs[i].Name]; !shadowed {
				gi.inputNames = append(gi.inputNames, proto.Inputs[i].Name)
			}
		}
	} else {
		var overlap []string
		for i := range proto.Inputs {
			name := proto.Inputs[i].Name
			gi.inputNames = append(gi.inputNames, name)
			if _, shadowed := gi.initializerMap[name]; shadowed {
				overlap = append(overlap, name)
			}
		}
		if len(overlap) > 0 {
			return nil, fmt.Errorf("%w: graph %q declares inputs with initial values (%s)",
				ErrReconciliation, proto.Name, strings.Join(overlap, ", "))
		}
	}
	return gi, nil
}

// InputNames returns the effective input set in declaration order.
func (gi *GraphInfo) InputNames() []string { return gi.inputNames }

// OutputNames returns the declared outputs in declaration order.
func (gi *GraphInfo) OutputNames() []string { return gi.outputNames }

// InputType returns the declared type of an effective input.
func (gi *GraphInfo) InputType(name string) *onnx.TypeProto {
	if vi := gi.declaredInputMap[name]; vi != nil {
		return vi.Type
	}
	return nil
}

// Initializer returns the initial-value tensor for a name, or nil.
func (gi *GraphInfo) Initializer(name string) *onnx.TensorProto {
	return gi.initializerMap[name]
}

// FindTypeProtoForName resolves a value's type descriptor. Node outputs don't
// typically carry types on the node itself; shape inference records them in
// value_info. Failing that the name may be a graph output or declared input,
// both of which carry types, or an initializer, whose type is synthesized
// from the literal's own element type and shape. Returns nil when no type
// information is associated, which occurs for genuinely unused values.
func (gi *GraphInfo) FindTypeProtoForName(name string) *onnx.TypeProto {
	if vi := gi.valueInfoMap[name]; vi != nil {
		return vi.Type
	}
	if vi := gi.outputMap[name]; vi != nil {
		return vi.Type
	}
	if vi := gi.declaredInputMap[name]; vi != nil {
		return vi.Type
	}
	if init := gi.initializerMap[name]; init != nil {
		return onnx.MakeTensorTypeProto(init.DataType, init.Dims)
	}
	return nil
}
