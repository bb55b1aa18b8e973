package onnx

import (
	"fmt"
	"strconv"
	"strings"
)

// Stable textual encodings. These serve two purposes: diagnostics (error
// messages carry the offending descriptor) and canonical cache keys in the
// importer (identical descriptors must encode identically, and distinct ones
// distinctly).

// DataTypeName returns a human-readable name for an element data type code.
func DataTypeName(t int32) string {
	names := map[int32]string{
		TensorProtoUndefined:      "undefined",
		TensorProtoFloat:          "float",
		TensorProtoUint8:          "uint8",
		TensorProtoInt8:           "int8",
		TensorProtoUint16:         "uint16",
		TensorProtoInt16:          "int16",
		TensorProtoInt32:          "int32",
		TensorProtoInt64:          "int64",
		TensorProtoString:         "string",
		TensorProtoBool:           "bool",
		TensorProtoFloat16:        "float16",
		TensorProtoDouble:         "double",
		TensorProtoUint32:         "uint32",
		TensorProtoUint64:         "uint64",
		TensorProtoComplex64:      "complex64",
		TensorProtoComplex128:     "complex128",
		TensorProtoBfloat16:       "bfloat16",
		TensorProtoFloat8E4M3FN:   "float8e4m3fn",
		TensorProtoFloat8E4M3FNUZ: "float8e4m3fnuz",
		TensorProtoFloat8E5M2:     "float8e5m2",
		TensorProtoFloat8E5M2FNUZ: "float8e5m2fnuz",
		TensorProtoUint4:          "uint4",
		TensorProtoInt4:           "int4",
	}
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("dtype(%d)", t)
}

// String renders the type descriptor in a compact canonical form,
// e.g. "tensor(float,[2,?])" or "seq(tensor(int64,[?]))".
func (tp *TypeProto) String() string {
	switch {
	case tp.IsEmpty():
		return "<none>"
	case tp.TensorType != nil:
		var dims []string
		if tp.TensorType.Shape == nil {
			return fmt.Sprintf("tensor(%s,unranked)", DataTypeName(tp.TensorType.ElemType))
		}
		for _, d := range tp.TensorType.Shape.Dims {
			dims = append(dims, d.String())
		}
		return fmt.Sprintf("tensor(%s,[%s])",
			DataTypeName(tp.TensorType.ElemType), strings.Join(dims, ","))
	case tp.SequenceType != nil:
		return fmt.Sprintf("seq(%s)", tp.SequenceType.ElemType)
	case tp.OptionalType != nil:
		return fmt.Sprintf("opt(%s)", tp.OptionalType.ElemType)
	case tp.MapType != nil:
		return fmt.Sprintf("map(%s,%s)", DataTypeName(tp.MapType.KeyType), tp.MapType.ValueType)
	}
	return "<invalid>"
}

// String renders a dimension: a static value, a symbolic parameter name, or
// "?" for fully unknown.
func (d DimensionProto) String() string {
	if d.HasDimValue {
		return strconv.FormatInt(d.DimValue, 10)
	}
	if d.DimParam != "" {
		return d.DimParam
	}
	return "?"
}

// String renders the node with operator, operands, results and attributes.
func (n *NodeProto) String() string {
	var b strings.Builder
	if n.Domain != "" {
		b.WriteString(n.Domain)
		b.WriteByte('.')
	}
	b.WriteString(n.OpType)
	b.WriteByte('(')
	b.WriteString(strings.Join(n.Inputs, ","))
	b.WriteString(")->(")
	b.WriteString(strings.Join(n.Outputs, ","))
	b.WriteByte(')')
	if len(n.Attributes) > 0 {
		b.WriteByte('{')
		for i := range n.Attributes {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(n.Attributes[i].String())
		}
		b.WriteByte('}')
	}
	return b.String()
}

// String renders the attribute name, kind and payload.
func (a *AttributeProto) String() string {
	var b strings.Builder
	b.WriteString(a.Name)
	if a.RefAttrName != "" {
		b.WriteString("=@")
		b.WriteString(a.RefAttrName)
		return b.String()
	}
	b.WriteByte('=')
	switch a.Type {
	case AttributeProtoFloat:
		fmt.Fprintf(&b, "%g", a.F)
	case AttributeProtoInt:
		fmt.Fprintf(&b, "%d", a.I)
	case AttributeProtoString:
		fmt.Fprintf(&b, "%q", a.S)
	case AttributeProtoTensor:
		b.WriteString(a.T.String())
	case AttributeProtoGraph:
		b.WriteString(a.G.String())
	case AttributeProtoFloats:
		fmt.Fprintf(&b, "%v", a.Floats)
	case AttributeProtoInts:
		fmt.Fprintf(&b, "%v", a.Ints)
	case AttributeProtoStrings:
		fmt.Fprintf(&b, "%q", a.Strings)
	case AttributeProtoTensors:
		b.WriteByte('[')
		for i := range a.Tensors {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(a.Tensors[i].String())
		}
		b.WriteByte(']')
	case AttributeProtoGraphs:
		b.WriteByte('[')
		for i := range a.Graphs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(a.Graphs[i].String())
		}
		b.WriteByte(']')
	default:
		fmt.Fprintf(&b, "<%s>", AttributeTypeName(a.Type))
	}
	return b.String()
}

// String renders the tensor literal with its type, shape and data payload.
func (t *TensorProto) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tensor<%s:%s:%v", t.Name, DataTypeName(t.DataType), t.Dims)
	switch {
	case len(t.RawData) > 0:
		fmt.Fprintf(&b, ":raw:%x", t.RawData)
	case len(t.FloatData) > 0:
		fmt.Fprintf(&b, ":%v", t.FloatData)
	case len(t.Int32Data) > 0:
		fmt.Fprintf(&b, ":%v", t.Int32Data)
	case len(t.Int64Data) > 0:
		fmt.Fprintf(&b, ":%v", t.Int64Data)
	case len(t.DoubleData) > 0:
		fmt.Fprintf(&b, ":%v", t.DoubleData)
	case len(t.Uint64Data) > 0:
		fmt.Fprintf(&b, ":%v", t.Uint64Data)
	case len(t.StringData) > 0:
		fmt.Fprintf(&b, ":%q", t.StringData)
	}
	b.WriteByte('>')
	return b.String()
}

// String renders the graph structure recursively: signature plus body nodes.
func (g *GraphProto) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph<%s>(", g.Name)
	for i := range g.Inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%s", g.Inputs[i].Name, g.Inputs[i].Type)
	}
	b.WriteString(")->(")
	for i := range g.Outputs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%s", g.Outputs[i].Name, g.Outputs[i].Type)
	}
	b.WriteString("){")
	for i := range g.Nodes {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(g.Nodes[i].String())
	}
	b.WriteByte('}')
	return b.String()
}
