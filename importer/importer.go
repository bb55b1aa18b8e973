// Package importer translates ONNX models into IR modules.
//
// The model's main graph becomes a public function: effective inputs map to
// parameters, initial-value tensors to constants, nodes to generic operator
// operations in declaration order, and declared outputs to the return. Nested
// subgraphs become operation regions closing over the enclosing scope.
// Operators defined by a function template expand, under configuration
// control, into calls to specialized private functions.
//
// Graphs are required to be pre-sorted topologically; the importer fails on
// the first use of an unbound value rather than reordering nodes.
package importer

import (
	"github.com/loom-ml/loom/ir"
	"github.com/loom-ml/loom/onnx"
)

// Import translates one model into a fresh module. A nil config means
// DefaultConfig. Model-local function definitions are registered as operator
// schemas before import so calls to them can expand.
func Import(model *onnx.ModelProto, config *Config) (*ir.Module, error) {
	if config == nil {
		config = DefaultConfig()
	}
	mi, err := NewModelInfo(model, config)
	if err != nil {
		return nil, err
	}
	if err := mi.Config.Registry.RegisterModelFunctions(model); err != nil {
		return nil, err
	}

	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	cc := NewContextCache(ctx, mi.Config)
	mc := NewModuleCache(module, cc, mi.Config.Registry, mi.Config.Inference)

	imp, err := DefineFunction(mi.MainGraph, module, cc, mc, false)
	if err != nil {
		return nil, err
	}
	if err := imp.ImportAll(); err != nil {
		return nil, err
	}
	return module, nil
}
