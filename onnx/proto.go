package onnx

// ONNX protobuf data structures (hand-written).
//
// Only the messages and fields the importer consumes are modeled. Field
// numbers follow the authoritative onnx.proto; unknown fields are skipped by
// the decoder.

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	OpsetImport     []OperatorSetID     // Opset version(s)
	ProducerName    string              // Framework name (e.g., "pytorch", "tf")
	ProducerVersion string              // Framework version
	Domain          string              // Model domain
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	MetadataProps   []StringStringEntry // Key-value metadata
	Functions       []FunctionProto     // Model-local function definitions
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string           // Graph name
	Nodes        []NodeProto      // Operation nodes, topologically sorted
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
	Initializers []TensorProto    // Weight tensors
	ValueInfo    []ValueInfoProto // Per-value type annotations (shape inference output)
	DocString    string           // Graph description
}

// NodeProto represents a single operator invocation.
type NodeProto struct {
	Name       string           // Node name (optional)
	OpType     string           // Operation type (e.g., "Conv", "MatMul", "Relu")
	Inputs     []string         // Input value names
	Outputs    []string         // Output value names
	Attributes []AttributeProto // Operation attributes
	Domain     string           // Operator domain (empty for default)
	DocString  string           // Node description
}

// TensorProto represents a tensor literal (weights/initializers).
type TensorProto struct {
	Name       string    // Tensor name
	DataType   int32     // Element data type
	Dims       []int64   // Tensor shape
	RawData    []byte    // Raw binary data (most common)
	FloatData  []float32 // float32 data (legacy typed field)
	Int32Data  []int32   // int32-family data (also bool, int8/16, uint8/16)
	Int64Data  []int64   // int64 data
	DoubleData []float64 // float64 data
	Uint64Data []uint64  // uint64 data; uint32 values are stored here too
	StringData [][]byte  // string data
	DocString  string    // Tensor description
}

// ValueInfoProto describes an input/output/intermediate value.
type ValueInfoProto struct {
	Name      string     // Value name
	Type      *TypeProto // Type information
	DocString string     // Description
}

// TypeProto describes a value type. Exactly one of the pointer fields is set
// for a well-formed descriptor; all nil means "no type information".
type TypeProto struct {
	TensorType   *TensorTypeProto   // Ranked/unranked tensor
	SequenceType *SequenceTypeProto // Homogeneous sequence
	OptionalType *OptionalTypeProto // Optional wrapper
	MapType      *MapTypeProto      // Map (unsupported by the importer)
	Denotation   string             // Semantic denotation (ignored)
}

// IsEmpty reports whether the descriptor carries no type information at all.
func (tp *TypeProto) IsEmpty() bool {
	return tp == nil || (tp.TensorType == nil && tp.SequenceType == nil &&
		tp.OptionalType == nil && tp.MapType == nil)
}

// TensorTypeProto describes tensor shape and element type.
type TensorTypeProto struct {
	ElemType int32             // Element data type
	Shape    *TensorShapeProto // Tensor shape; nil means unknown rank
}

// SequenceTypeProto describes a sequence of values of one element type.
type SequenceTypeProto struct {
	ElemType *TypeProto
}

// OptionalTypeProto describes an optional value of one element type.
type OptionalTypeProto struct {
	ElemType *TypeProto
}

// MapTypeProto describes a map type. Parsed for completeness; the importer
// rejects it.
type MapTypeProto struct {
	KeyType   int32
	ValueType *TypeProto
}

// TensorShapeProto describes tensor dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto describes a single dimension. A dynamic dimension is denoted
// either by DimParam being set or by neither field being set; HasDimValue
// distinguishes an explicit dim_value of 0 from an absent one.
type DimensionProto struct {
	DimValue    int64  // Static dimension value
	DimParam    string // Symbolic dimension name (e.g., "batch_size")
	HasDimValue bool   // Whether dim_value was present on the wire
}

// AttributeProto represents a node attribute. Inside a function template
// body, RefAttrName marks the attribute as a reference to an attribute of the
// calling node rather than a literal value.
type AttributeProto struct {
	Name        string        // Attribute name
	RefAttrName string        // Referenced caller attribute (function bodies only)
	Type        int32         // Attribute kind
	F           float32       // FLOAT value
	I           int64         // INT value
	S           []byte        // STRING value
	T           *TensorProto  // TENSOR value
	G           *GraphProto   // GRAPH value (nested subgraph)
	TP          *TypeProto    // TYPE_PROTO value
	Floats      []float32     // FLOATS array
	Ints        []int64       // INTS array
	Strings     [][]byte      // STRINGS array
	Tensors     []TensorProto // TENSORS array
	Graphs      []GraphProto  // GRAPHS array
	DocString   string        // Description
}

// FunctionProto represents a model-local function definition: a named,
// versioned operator whose body is a graph of simpler operators.
type FunctionProto struct {
	Name           string           // Operator name the function defines
	Domain         string           // Operator domain
	Inputs         []string         // Formal input names
	Outputs        []string         // Formal output names
	AttributeNames []string         // Formal attribute names (no default)
	Attributes     []AttributeProto // Formal attributes with default values
	Nodes          []NodeProto      // Function body, topologically sorted
	OpsetImport    []OperatorSetID  // Opsets the body is written against
	DocString      string           // Description
}

// OperatorSetID identifies an opset version for one domain.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
}

// StringStringEntry represents key-value metadata.
type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX element data types (TensorProto.DataType).
const (
	TensorProtoUndefined      = 0
	TensorProtoFloat          = 1  // float32
	TensorProtoUint8          = 2  // uint8
	TensorProtoInt8           = 3  // int8
	TensorProtoUint16         = 4  // uint16
	TensorProtoInt16          = 5  // int16
	TensorProtoInt32          = 6  // int32
	TensorProtoInt64          = 7  // int64
	TensorProtoString         = 8  // string
	TensorProtoBool           = 9  // bool
	TensorProtoFloat16        = 10 // float16
	TensorProtoDouble         = 11 // float64
	TensorProtoUint32         = 12 // uint32
	TensorProtoUint64         = 13 // uint64
	TensorProtoComplex64      = 14 // complex64
	TensorProtoComplex128     = 15 // complex128
	TensorProtoBfloat16       = 16 // bfloat16
	TensorProtoFloat8E4M3FN   = 17 // float8 e4m3fn
	TensorProtoFloat8E4M3FNUZ = 18 // float8 e4m3fnuz
	TensorProtoFloat8E5M2     = 19 // float8 e5m2
	TensorProtoFloat8E5M2FNUZ = 20 // float8 e5m2fnuz
	TensorProtoUint4          = 21 // uint4
	TensorProtoInt4           = 22 // int4
)

// ONNX attribute kinds (AttributeProto.Type).
const (
	AttributeProtoUndefined     = 0
	AttributeProtoFloat         = 1  // FLOAT
	AttributeProtoInt           = 2  // INT
	AttributeProtoString        = 3  // STRING
	AttributeProtoTensor        = 4  // TENSOR
	AttributeProtoGraph         = 5  // GRAPH
	AttributeProtoFloats        = 6  // FLOATS
	AttributeProtoInts          = 7  // INTS
	AttributeProtoStrings       = 8  // STRINGS
	AttributeProtoTensors       = 9  // TENSORS
	AttributeProtoGraphs        = 10 // GRAPHS
	AttributeProtoSparseTensor  = 11 // SPARSE_TENSOR
	AttributeProtoSparseTensors = 12 // SPARSE_TENSORS
	AttributeProtoTypeProto     = 13 // TYPE_PROTO
	AttributeProtoTypeProtos    = 14 // TYPE_PROTOS
)

// AttributeTypeName returns a human-readable name for an attribute kind,
// for diagnostics.
func AttributeTypeName(t int32) string {
	names := map[int32]string{
		AttributeProtoUndefined:     "UNDEFINED",
		AttributeProtoFloat:         "FLOAT",
		AttributeProtoInt:           "INT",
		AttributeProtoString:        "STRING",
		AttributeProtoTensor:        "TENSOR",
		AttributeProtoGraph:         "GRAPH",
		AttributeProtoFloats:        "FLOATS",
		AttributeProtoInts:          "INTS",
		AttributeProtoStrings:       "STRINGS",
		AttributeProtoTensors:       "TENSORS",
		AttributeProtoGraphs:        "GRAPHS",
		AttributeProtoSparseTensor:  "SPARSE_TENSOR",
		AttributeProtoSparseTensors: "SPARSE_TENSORS",
		AttributeProtoTypeProto:     "TYPE_PROTO",
		AttributeProtoTypeProtos:    "TYPE_PROTOS",
	}
	if n, ok := names[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Attr returns the named attribute of the node, or nil if absent.
func (n *NodeProto) Attr(name string) *AttributeProto {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i]
		}
	}
	return nil
}

// MakeTensorTypeProto builds a TypeProto for a tensor with fully static
// dimensions, as when synthesizing a type from an initializer literal.
func MakeTensorTypeProto(dataType int32, dims []int64) *TypeProto {
	shape := &TensorShapeProto{Dims: make([]DimensionProto, len(dims))}
	for i, d := range dims {
		shape.Dims[i] = DimensionProto{DimValue: d, HasDimValue: true}
	}
	return &TypeProto{TensorType: &TensorTypeProto{ElemType: dataType, Shape: shape}}
}
