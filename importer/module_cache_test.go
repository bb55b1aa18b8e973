package importer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/loom-ml/loom/onnx"
	"github.com/loom-ml/loom/schema"
)

func TestBindAttributesOnNode(t *testing.T) {
	s := schema.NewSchema("Clip", "", 13)
	s.AddAttribute(schema.AttributeDef{
		Name: "max",
		Type: onnx.AttributeProtoFloat,
		Default: &onnx.AttributeProto{
			Name: "max", Type: onnx.AttributeProtoFloat, F: 6,
		},
	})
	s.AddAttribute(schema.AttributeDef{Name: "min", Type: onnx.AttributeProtoFloat})

	caller := &onnx.NodeProto{
		OpType: "Clip",
		Attributes: []onnx.AttributeProto{
			{Name: "min", Type: onnx.AttributeProtoFloat, F: -1},
		},
	}
	bindings := attributeBindings(s, caller)

	node := &onnx.NodeProto{
		OpType: "Identity",
		Attributes: []onnx.AttributeProto{
			{Name: "axis", Type: onnx.AttributeProtoInt, I: 1},
			{Name: "lo", RefAttrName: "min", Type: onnx.AttributeProtoFloat},
			{Name: "hi", RefAttrName: "max", Type: onnx.AttributeProtoFloat},
			{Name: "extra", RefAttrName: "missing", Type: onnx.AttributeProtoFloat},
		},
	}
	bindAttributesOnNode(node, bindings)

	want := []onnx.AttributeProto{
		// Plain attributes pass through untouched.
		{Name: "axis", Type: onnx.AttributeProtoInt, I: 1},
		// The caller's value wins over the schema default.
		{Name: "lo", Type: onnx.AttributeProtoFloat, F: -1},
		// No caller value: the schema default applies, under the body's name.
		{Name: "hi", Type: onnx.AttributeProtoFloat, F: 6},
		// No caller value and no default: the reference is dropped.
	}
	if diff := cmp.Diff(want, node.Attributes); diff != "" {
		t.Errorf("bound attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestBindAttributesRecursesIntoSubgraphs(t *testing.T) {
	s := schema.NewSchema("Sel", "", 13)
	caller := &onnx.NodeProto{
		OpType: "Sel",
		Attributes: []onnx.AttributeProto{
			{Name: "alpha", Type: onnx.AttributeProtoFloat, F: 3},
		},
	}
	bindings := attributeBindings(s, caller)

	node := &onnx.NodeProto{
		OpType: "If",
		Attributes: []onnx.AttributeProto{{
			Name: "then_branch",
			Type: onnx.AttributeProtoGraph,
			G: &onnx.GraphProto{
				Nodes: []onnx.NodeProto{{
					OpType: "Identity",
					Attributes: []onnx.AttributeProto{
						{Name: "scale", RefAttrName: "alpha", Type: onnx.AttributeProtoFloat},
					},
				}},
			},
		}},
	}
	bindAttributesOnNode(node, bindings)

	inner := node.Attributes[0].G.Nodes[0].Attributes
	want := []onnx.AttributeProto{
		{Name: "scale", Type: onnx.AttributeProtoFloat, F: 3},
	}
	if diff := cmp.Diff(want, inner); diff != "" {
		t.Errorf("nested bound attributes mismatch (-want +got):\n%s", diff)
	}
}
