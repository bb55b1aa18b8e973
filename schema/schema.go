// Package schema is the operator-schema oracle consumed by the importer.
//
// A Registry answers, per (operator name, domain, max opset version): the
// operator's formal attribute definitions with defaults, the opset versions
// at which the operator is defined by a function template, the template
// bodies themselves, and context-dependent function builders for operators
// whose body depends on the specific call site.
//
// The registry is read-only during an import. It is populated up front,
// either programmatically or from a model's local function definitions.
package schema

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/loom-ml/loom/onnx"
)

// AttributeDef is an operator's formal attribute: a name, a kind, and an
// optional default value. A nil or kind-less default means the attribute is
// optional with no default.
type AttributeDef struct {
	Name     string
	Type     int32
	Required bool
	Default  *onnx.AttributeProto
}

// HasDefault reports whether the formal attribute carries a usable default.
func (d AttributeDef) HasDefault() bool {
	return d.Default != nil && d.Default.Type != onnx.AttributeProtoUndefined
}

// ContextDependentBuilder produces a function body specialized to one call
// site: the calling node and its resolved input types.
type ContextDependentBuilder func(node *onnx.NodeProto, inputTypes []*onnx.TypeProto) (*onnx.FunctionProto, error)

// OutputInference computes output type descriptors for one node from its
// input type descriptors. Registered per schema and consumed by the
// shape-inference pass.
type OutputInference func(node *onnx.NodeProto, inputTypes []*onnx.TypeProto) ([]*onnx.TypeProto, error)

// Schema describes one operator version.
type Schema struct {
	Name         string
	Domain       string
	SinceVersion int64

	// Attributes holds the formal attribute definitions keyed by name.
	Attributes map[string]AttributeDef

	// Infer computes output types for shape inference; nil when the
	// operator provides none.
	Infer OutputInference

	functions  map[int64]*onnx.FunctionProto
	cdBuilders map[int64]ContextDependentBuilder
}

// NewSchema creates an empty schema for one operator version.
func NewSchema(name, domain string, sinceVersion int64) *Schema {
	return &Schema{
		Name:         name,
		Domain:       domain,
		SinceVersion: sinceVersion,
		Attributes:   make(map[string]AttributeDef),
		functions:    make(map[int64]*onnx.FunctionProto),
		cdBuilders:   make(map[int64]ContextDependentBuilder),
	}
}

// AddAttribute registers a formal attribute definition.
func (s *Schema) AddAttribute(def AttributeDef) *Schema {
	s.Attributes[def.Name] = def
	return s
}

// AddFunction registers a non-context-dependent function template body for
// one opset version.
func (s *Schema) AddFunction(version int64, fn *onnx.FunctionProto) *Schema {
	s.functions[version] = fn
	return s
}

// AddContextDependentFunction registers a context-dependent function builder
// for one opset version.
func (s *Schema) AddContextDependentFunction(version int64, b ContextDependentBuilder) *Schema {
	s.cdBuilders[version] = b
	return s
}

// FunctionOpsetVersions returns the opset versions with a plain function
// template body, sorted ascending.
func (s *Schema) FunctionOpsetVersions() []int64 {
	return sortedKeys(s.functions)
}

// ContextDependentOpsetVersions returns the opset versions with a
// context-dependent function builder, sorted ascending.
func (s *Schema) ContextDependentOpsetVersions() []int64 {
	return sortedKeys(s.cdBuilders)
}

// FunctionWithOpsetVersion returns the template body registered at exactly
// the given version, or nil.
func (s *Schema) FunctionWithOpsetVersion(version int64) *onnx.FunctionProto {
	return s.functions[version]
}

// ContextDependentFunction builds the body registered at exactly the given
// version for the given call site.
func (s *Schema) ContextDependentFunction(version int64, node *onnx.NodeProto, inputTypes []*onnx.TypeProto) (*onnx.FunctionProto, error) {
	b := s.cdBuilders[version]
	if b == nil {
		return nil, errors.Errorf("no context-dependent function for %s/%s at version %d",
			s.Name, s.Domain, version)
	}
	return b(node, inputTypes)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Registry holds operator schemas keyed by domain and name, each possibly at
// several versions.
type Registry struct {
	// domain → name → schemas sorted by SinceVersion ascending
	schemas map[string]map[string][]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]map[string][]*Schema)}
}

// Register adds a schema version.
func (r *Registry) Register(s *Schema) {
	byName := r.schemas[s.Domain]
	if byName == nil {
		byName = make(map[string][]*Schema)
		r.schemas[s.Domain] = byName
	}
	versions := append(byName[s.Name], s)
	slices.SortFunc(versions, func(a, b *Schema) int {
		return int(a.SinceVersion - b.SinceVersion)
	})
	byName[s.Name] = versions
}

// Lookup returns the highest schema version for (name, domain) whose
// SinceVersion does not exceed maxInclusiveVersion.
func (r *Registry) Lookup(name, domain string, maxInclusiveVersion int64) (*Schema, error) {
	versions := r.schemas[domain][name]
	var best *Schema
	for _, s := range versions {
		if s.SinceVersion <= maxInclusiveVersion {
			best = s
		}
	}
	if best == nil {
		return nil, errors.Errorf("no schema for operator %q in domain %q at opset <= %d",
			name, domain, maxInclusiveVersion)
	}
	return best, nil
}

// RegisterModelFunctions registers a model's local function definitions as
// function-backed operator schemas, so they expand the same way schema-backed
// operators do. The schema version is the function's declared version for its
// own domain, defaulting to 1.
func (r *Registry) RegisterModelFunctions(m *onnx.ModelProto) error {
	for i := range m.Functions {
		fn := &m.Functions[i]
		if fn.Name == "" {
			return errors.Errorf("model-local function %d has no name", i)
		}
		version := int64(1)
		for _, opset := range fn.OpsetImport {
			if opset.Domain == fn.Domain {
				version = opset.Version
				break
			}
		}
		s := NewSchema(fn.Name, fn.Domain, version)
		for _, name := range fn.AttributeNames {
			s.AddAttribute(AttributeDef{Name: name})
		}
		for j := range fn.Attributes {
			attr := &fn.Attributes[j]
			s.AddAttribute(AttributeDef{Name: attr.Name, Type: attr.Type, Default: attr})
		}
		s.AddFunction(version, fn)
		r.Register(s)
	}
	return nil
}
