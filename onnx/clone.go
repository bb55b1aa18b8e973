package onnx

// Deep-copy helpers. The operator-function specializer rewrites template
// bodies in place; cloning keeps the registry's descriptors pristine.

// Clone returns a deep copy of the node.
func (n *NodeProto) Clone() *NodeProto {
	if n == nil {
		return nil
	}
	out := *n
	out.Inputs = append([]string(nil), n.Inputs...)
	out.Outputs = append([]string(nil), n.Outputs...)
	out.Attributes = cloneAttributes(n.Attributes)
	return &out
}

// Clone returns a deep copy of the attribute.
func (a *AttributeProto) Clone() *AttributeProto {
	if a == nil {
		return nil
	}
	out := *a
	out.S = append([]byte(nil), a.S...)
	out.T = a.T.Clone()
	out.G = a.G.Clone()
	out.TP = a.TP.Clone()
	out.Floats = append([]float32(nil), a.Floats...)
	out.Ints = append([]int64(nil), a.Ints...)
	out.Strings = cloneByteSlices(a.Strings)
	out.Tensors = make([]TensorProto, len(a.Tensors))
	for i := range a.Tensors {
		out.Tensors[i] = *a.Tensors[i].Clone()
	}
	out.Graphs = make([]GraphProto, len(a.Graphs))
	for i := range a.Graphs {
		out.Graphs[i] = *a.Graphs[i].Clone()
	}
	return &out
}

// Clone returns a deep copy of the graph.
func (g *GraphProto) Clone() *GraphProto {
	if g == nil {
		return nil
	}
	out := *g
	out.Nodes = make([]NodeProto, len(g.Nodes))
	for i := range g.Nodes {
		out.Nodes[i] = *g.Nodes[i].Clone()
	}
	out.Inputs = cloneValueInfos(g.Inputs)
	out.Outputs = cloneValueInfos(g.Outputs)
	out.ValueInfo = cloneValueInfos(g.ValueInfo)
	out.Initializers = make([]TensorProto, len(g.Initializers))
	for i := range g.Initializers {
		out.Initializers[i] = *g.Initializers[i].Clone()
	}
	return &out
}

// Clone returns a deep copy of the tensor literal.
func (t *TensorProto) Clone() *TensorProto {
	if t == nil {
		return nil
	}
	out := *t
	out.Dims = append([]int64(nil), t.Dims...)
	out.RawData = append([]byte(nil), t.RawData...)
	out.FloatData = append([]float32(nil), t.FloatData...)
	out.Int32Data = append([]int32(nil), t.Int32Data...)
	out.Int64Data = append([]int64(nil), t.Int64Data...)
	out.DoubleData = append([]float64(nil), t.DoubleData...)
	out.Uint64Data = append([]uint64(nil), t.Uint64Data...)
	out.StringData = cloneByteSlices(t.StringData)
	return &out
}

// Clone returns a deep copy of the type descriptor.
func (tp *TypeProto) Clone() *TypeProto {
	if tp == nil {
		return nil
	}
	out := *tp
	if tp.TensorType != nil {
		tt := *tp.TensorType
		if tp.TensorType.Shape != nil {
			shape := *tp.TensorType.Shape
			shape.Dims = append([]DimensionProto(nil), tp.TensorType.Shape.Dims...)
			tt.Shape = &shape
		}
		out.TensorType = &tt
	}
	if tp.SequenceType != nil {
		out.SequenceType = &SequenceTypeProto{ElemType: tp.SequenceType.ElemType.Clone()}
	}
	if tp.OptionalType != nil {
		out.OptionalType = &OptionalTypeProto{ElemType: tp.OptionalType.ElemType.Clone()}
	}
	if tp.MapType != nil {
		out.MapType = &MapTypeProto{
			KeyType:   tp.MapType.KeyType,
			ValueType: tp.MapType.ValueType.Clone(),
		}
	}
	return &out
}

func cloneAttributes(attrs []AttributeProto) []AttributeProto {
	out := make([]AttributeProto, len(attrs))
	for i := range attrs {
		out[i] = *attrs[i].Clone()
	}
	return out
}

func cloneValueInfos(vis []ValueInfoProto) []ValueInfoProto {
	out := make([]ValueInfoProto, len(vis))
	for i := range vis {
		out[i] = vis[i]
		out[i].Type = vis[i].Type.Clone()
	}
	return out
}

func cloneByteSlices(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i := range in {
		out[i] = append([]byte(nil), in[i]...)
	}
	return out
}
