package onnx

import (
	"testing"
)

func TestSummarize(t *testing.T) {
	model := &ModelProto{
		IRVersion:       8,
		ProducerName:    "pytorch",
		ProducerVersion: "2.1",
		OpsetImport: []OperatorSetID{
			{Domain: "", Version: 17},
			{Domain: "com.example", Version: 2},
		},
		Functions: []FunctionProto{{Name: "MyGelu", Domain: "com.example"}},
		Graph: &GraphProto{
			Name: "main",
			Inputs: []ValueInfoProto{
				{Name: "x", Type: MakeTensorTypeProto(TensorProtoFloat, []int64{1, 3})},
			},
			Outputs:      []ValueInfoProto{{Name: "y"}},
			Initializers: []TensorProto{{Name: "w"}},
			Nodes: []NodeProto{
				{OpType: "MatMul"},
				{OpType: "MyGelu", Domain: "com.example"},
				{OpType: "If", Attributes: []AttributeProto{{
					Name: "then_branch",
					Type: AttributeProtoGraph,
					G: &GraphProto{
						Nodes: []NodeProto{{OpType: "Identity"}},
					},
				}}},
			},
		},
	}

	info := Summarize(model)

	if info.OpsetVersion != 17 {
		t.Errorf("OpsetVersion = %d, want 17", info.OpsetVersion)
	}
	if info.OpsetImports["com.example"] != 2 {
		t.Errorf("OpsetImports = %v", info.OpsetImports)
	}
	if info.GraphName != "main" || info.InitializerCnt != 1 {
		t.Errorf("GraphName = %q, InitializerCnt = %d", info.GraphName, info.InitializerCnt)
	}
	if len(info.InputNames) != 1 || info.InputNames[0] != "x" {
		t.Errorf("InputNames = %v", info.InputNames)
	}
	if len(info.FunctionNames) != 1 || info.FunctionNames[0] != "MyGelu" {
		t.Errorf("FunctionNames = %v", info.FunctionNames)
	}

	// Operators are collected recursively through subgraphs, distinct and
	// sorted, custom-domain ops qualified.
	want := []string{"Identity", "If", "MatMul", "com.example.MyGelu"}
	if len(info.Operators) != len(want) {
		t.Fatalf("Operators = %v, want %v", info.Operators, want)
	}
	for i := range want {
		if info.Operators[i] != want[i] {
			t.Errorf("Operators[%d] = %q, want %q", i, info.Operators[i], want[i])
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	node := &NodeProto{
		OpType: "Clip",
		Inputs: []string{"x"},
		Attributes: []AttributeProto{{
			Name: "max",
			Type: AttributeProtoTensor,
			T: &TensorProto{
				Name:      "m",
				DataType:  TensorProtoFloat,
				Dims:      []int64{1},
				FloatData: []float32{3},
			},
		}},
	}

	clone := node.Clone()
	clone.Inputs[0] = "mutated"
	clone.Attributes[0].Name = "min"
	clone.Attributes[0].T.FloatData[0] = -1
	clone.Attributes[0].T.Dims[0] = 9

	if node.Inputs[0] != "x" {
		t.Errorf("clone shares Inputs: %v", node.Inputs)
	}
	if node.Attributes[0].Name != "max" {
		t.Errorf("clone shares Attributes: %v", node.Attributes[0].Name)
	}
	if node.Attributes[0].T.FloatData[0] != 3 || node.Attributes[0].T.Dims[0] != 1 {
		t.Errorf("clone shares tensor payload: %+v", node.Attributes[0].T)
	}
}

func TestCloneTypeProto(t *testing.T) {
	tp := MakeTensorTypeProto(TensorProtoFloat, []int64{2, 3})
	clone := tp.Clone()
	clone.TensorType.Shape.Dims[0].DimValue = 99

	if tp.TensorType.Shape.Dims[0].DimValue != 2 {
		t.Errorf("clone shares shape: %+v", tp.TensorType.Shape)
	}
	if (*TypeProto)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestTypeProtoString(t *testing.T) {
	cases := []struct {
		tp   *TypeProto
		want string
	}{
		{nil, "<none>"},
		{&TypeProto{}, "<none>"},
		{MakeTensorTypeProto(TensorProtoFloat, []int64{2}), "tensor(float,[2])"},
		{
			&TypeProto{TensorType: &TensorTypeProto{
				ElemType: TensorProtoInt64,
				Shape: &TensorShapeProto{Dims: []DimensionProto{
					{DimParam: "batch"},
					{},
					{DimValue: 4, HasDimValue: true},
				}},
			}},
			"tensor(int64,[batch,?,4])",
		},
		{
			&TypeProto{TensorType: &TensorTypeProto{ElemType: TensorProtoFloat}},
			"tensor(float,unranked)",
		},
		{
			&TypeProto{SequenceType: &SequenceTypeProto{
				ElemType: MakeTensorTypeProto(TensorProtoFloat, nil),
			}},
			"seq(tensor(float,[]))",
		},
		{
			&TypeProto{OptionalType: &OptionalTypeProto{
				ElemType: MakeTensorTypeProto(TensorProtoInt32, []int64{1}),
			}},
			"opt(tensor(int32,[1]))",
		},
	}
	for _, tc := range cases {
		if got := tc.tp.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestNodeProtoString(t *testing.T) {
	node := &NodeProto{
		OpType:  "Add",
		Inputs:  []string{"x", "c"},
		Outputs: []string{"y"},
		Attributes: []AttributeProto{
			{Name: "axis", Type: AttributeProtoInt, I: 1},
			{Name: "max", RefAttrName: "epsilon"},
		},
	}
	want := `Add(x,c)->(y){axis=1;max=@epsilon}`
	if got := node.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	custom := &NodeProto{OpType: "Gelu", Domain: "com.example"}
	if got := custom.String(); got != "com.example.Gelu()->()" {
		t.Errorf("String() = %q", got)
	}
}
