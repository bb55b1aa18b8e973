package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	p := &parser{data: data, pos: 0}
	model := &ModelProto{}
	if err := p.readModelProto(model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// parser implements a minimal protobuf wire format decoder.
type parser struct {
	data []byte
	pos  int
}

// Protobuf wire types.
const (
	wireVarint = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	wire64Bit  = 1 // fixed64, sfixed64, double
	wireBytes  = 2 // string, bytes, embedded messages, packed repeated fields
	wire32Bit  = 5 // fixed32, sfixed32, float
)

// readEmbedded reads a length-delimited submessage and decodes it with fn.
func readEmbedded(p *parser, fn func(*parser) error) error {
	data, err := p.readBytes()
	if err != nil {
		return err
	}
	return fn(&parser{data: data, pos: 0})
}

// readString reads a length-delimited field as a string.
func (p *parser) readString() (string, error) {
	data, err := p.readBytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readModelProto reads a ModelProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing requires field-by-field switch logic for all ONNX message types
func (p *parser) readModelProto(m *ModelProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // ir_version
			m.IRVersion, err = p.readVarint()
		case 2: // producer_name
			m.ProducerName, err = p.readString()
		case 3: // producer_version
			m.ProducerVersion, err = p.readString()
		case 4: // domain
			m.Domain, err = p.readString()
		case 5: // model_version
			m.ModelVersion, err = p.readVarint()
		case 6: // doc_string
			m.DocString, err = p.readString()
		case 7: // graph
			m.Graph = &GraphProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readGraphProto(m.Graph)
			})
		case 8: // opset_import
			err = readEmbedded(p, func(sub *parser) error {
				opset := OperatorSetID{}
				if err2 := sub.readOperatorSetID(&opset); err2 != nil {
					return err2
				}
				m.OpsetImport = append(m.OpsetImport, opset)
				return nil
			})
		case 14: // metadata_props
			err = readEmbedded(p, func(sub *parser) error {
				entry := StringStringEntry{}
				if err2 := sub.readStringStringEntry(&entry); err2 != nil {
					return err2
				}
				m.MetadataProps = append(m.MetadataProps, entry)
				return nil
			})
		case 25: // functions
			err = readEmbedded(p, func(sub *parser) error {
				fn := FunctionProto{}
				if err2 := sub.readFunctionProto(&fn); err2 != nil {
					return err2
				}
				m.Functions = append(m.Functions, fn)
				return nil
			})
		default:
			err = p.skipField(wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readGraphProto reads a GraphProto message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readGraphProto(m *GraphProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // node
			err = readEmbedded(p, func(sub *parser) error {
				node := NodeProto{}
				if err2 := sub.readNodeProto(&node); err2 != nil {
					return err2
				}
				m.Nodes = append(m.Nodes, node)
				return nil
			})
		case 2: // name
			m.Name, err = p.readString()
		case 5: // initializer
			err = readEmbedded(p, func(sub *parser) error {
				tensor := TensorProto{}
				if err2 := sub.readTensorProto(&tensor); err2 != nil {
					return err2
				}
				m.Initializers = append(m.Initializers, tensor)
				return nil
			})
		case 10: // doc_string
			m.DocString, err = p.readString()
		case 11: // input
			err = readEmbedded(p, func(sub *parser) error {
				vi := ValueInfoProto{}
				if err2 := sub.readValueInfoProto(&vi); err2 != nil {
					return err2
				}
				m.Inputs = append(m.Inputs, vi)
				return nil
			})
		case 12: // output
			err = readEmbedded(p, func(sub *parser) error {
				vi := ValueInfoProto{}
				if err2 := sub.readValueInfoProto(&vi); err2 != nil {
					return err2
				}
				m.Outputs = append(m.Outputs, vi)
				return nil
			})
		case 13: // value_info
			err = readEmbedded(p, func(sub *parser) error {
				vi := ValueInfoProto{}
				if err2 := sub.readValueInfoProto(&vi); err2 != nil {
					return err2
				}
				m.ValueInfo = append(m.ValueInfo, vi)
				return nil
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readNodeProto reads a NodeProto message.
func (p *parser) readNodeProto(m *NodeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // input
			var s string
			if s, err = p.readString(); err == nil {
				m.Inputs = append(m.Inputs, s)
			}
		case 2: // output
			var s string
			if s, err = p.readString(); err == nil {
				m.Outputs = append(m.Outputs, s)
			}
		case 3: // name
			m.Name, err = p.readString()
		case 4: // op_type
			m.OpType, err = p.readString()
		case 5: // attribute
			err = readEmbedded(p, func(sub *parser) error {
				attr := AttributeProto{}
				if err2 := sub.readAttributeProto(&attr); err2 != nil {
					return err2
				}
				m.Attributes = append(m.Attributes, attr)
				return nil
			})
		case 6: // doc_string
			m.DocString, err = p.readString()
		case 7: // domain
			m.Domain, err = p.readString()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorProto reads a TensorProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing; int conversions are safe for tensor dimensions
func (p *parser) readTensorProto(m *TensorProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // dims (repeated int64)
			if wireType == wireBytes {
				// packed repeated
				err = p.readPackedVarints(func(v int64) {
					m.Dims = append(m.Dims, v)
				})
			} else {
				var v int64
				if v, err = p.readVarint(); err == nil {
					m.Dims = append(m.Dims, v)
				}
			}
		case 2: // data_type
			m.DataType, err = p.readInt32()
		case 4: // float_data (packed)
			err = p.readPacked32(func(bits uint32) {
				m.FloatData = append(m.FloatData, math.Float32frombits(bits))
			})
		case 5: // int32_data (packed)
			err = p.readPackedVarints(func(v int64) {
				m.Int32Data = append(m.Int32Data, int32(v)) //nolint:gosec // G115: ONNX protobuf varint fits in int32.
			})
		case 6: // string_data
			var data []byte
			if data, err = p.readBytes(); err == nil {
				m.StringData = append(m.StringData, data)
			}
		case 7: // int64_data (packed)
			err = p.readPackedVarints(func(v int64) {
				m.Int64Data = append(m.Int64Data, v)
			})
		case 8: // name
			m.Name, err = p.readString()
		case 9: // raw_data
			m.RawData, err = p.readBytes()
		case 10: // double_data (packed)
			err = p.readPacked64(func(bits uint64) {
				m.DoubleData = append(m.DoubleData, math.Float64frombits(bits))
			})
		case 11: // uint64_data (packed)
			err = p.readPackedVarints(func(v int64) {
				m.Uint64Data = append(m.Uint64Data, uint64(v)) //nolint:gosec // G115: wire varints round-trip through int64.
			})
		case 12: // doc_string
			m.DocString, err = p.readString()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readValueInfoProto reads a ValueInfoProto message.
func (p *parser) readValueInfoProto(m *ValueInfoProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // name
			m.Name, err = p.readString()
		case 2: // type
			m.Type = &TypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTypeProto(m.Type)
			})
		case 3: // doc_string
			m.DocString, err = p.readString()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTypeProto reads a TypeProto message.
func (p *parser) readTypeProto(m *TypeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // tensor_type
			m.TensorType = &TensorTypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTensorTypeProto(m.TensorType)
			})
		case 4: // sequence_type
			m.SequenceType = &SequenceTypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				m.SequenceType.ElemType = &TypeProto{}
				return sub.readNestedTypeProto(m.SequenceType.ElemType)
			})
		case 5: // map_type
			m.MapType = &MapTypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readMapTypeProto(m.MapType)
			})
		case 6: // denotation
			m.Denotation, err = p.readString()
		case 9: // optional_type
			m.OptionalType = &OptionalTypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				m.OptionalType.ElemType = &TypeProto{}
				return sub.readNestedTypeProto(m.OptionalType.ElemType)
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readNestedTypeProto reads the elem_type field (1) of a Sequence/Optional
// wrapper message into the given TypeProto.
func (p *parser) readNestedTypeProto(elem *TypeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // elem_type
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTypeProto(elem)
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readMapTypeProto reads a map type message.
func (p *parser) readMapTypeProto(m *MapTypeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // key_type
			m.KeyType, err = p.readInt32()
		case 2: // value_type
			m.ValueType = &TypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTypeProto(m.ValueType)
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorTypeProto reads a TensorTypeProto message.
func (p *parser) readTensorTypeProto(m *TensorTypeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // elem_type
			m.ElemType, err = p.readInt32()
		case 2: // shape
			m.Shape = &TensorShapeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTensorShapeProto(m.Shape)
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorShapeProto reads a TensorShapeProto message.
func (p *parser) readTensorShapeProto(m *TensorShapeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // dim
			err = readEmbedded(p, func(sub *parser) error {
				dim := DimensionProto{}
				if err2 := sub.readDimensionProto(&dim); err2 != nil {
					return err2
				}
				m.Dims = append(m.Dims, dim)
				return nil
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readDimensionProto reads a DimensionProto message.
func (p *parser) readDimensionProto(m *DimensionProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // dim_value
			m.DimValue, err = p.readVarint()
			m.HasDimValue = err == nil
		case 2: // dim_param
			m.DimParam, err = p.readString()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readAttributeProto reads an AttributeProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing requires field-by-field switch logic
func (p *parser) readAttributeProto(m *AttributeProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // name
			m.Name, err = p.readString()
		case 2: // f (float)
			m.F, err = p.readFloat32()
		case 3: // i (int)
			m.I, err = p.readVarint()
		case 4: // s (bytes)
			m.S, err = p.readBytes()
		case 5: // t (tensor)
			m.T = &TensorProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTensorProto(m.T)
			})
		case 6: // g (graph)
			m.G = &GraphProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readGraphProto(m.G)
			})
		case 7: // floats (packed)
			err = p.readPacked32(func(bits uint32) {
				m.Floats = append(m.Floats, math.Float32frombits(bits))
			})
		case 8: // ints (packed)
			err = p.readPackedVarints(func(v int64) {
				m.Ints = append(m.Ints, v)
			})
		case 9: // strings
			var data []byte
			if data, err = p.readBytes(); err == nil {
				m.Strings = append(m.Strings, data)
			}
		case 10: // tensors
			err = readEmbedded(p, func(sub *parser) error {
				tensor := TensorProto{}
				if err2 := sub.readTensorProto(&tensor); err2 != nil {
					return err2
				}
				m.Tensors = append(m.Tensors, tensor)
				return nil
			})
		case 11: // graphs
			err = readEmbedded(p, func(sub *parser) error {
				g := GraphProto{}
				if err2 := sub.readGraphProto(&g); err2 != nil {
					return err2
				}
				m.Graphs = append(m.Graphs, g)
				return nil
			})
		case 13: // doc_string
			m.DocString, err = p.readString()
		case 14: // tp (type proto)
			m.TP = &TypeProto{}
			err = readEmbedded(p, func(sub *parser) error {
				return sub.readTypeProto(m.TP)
			})
		case 20: // type
			var v int64
			if v, err = p.readVarint(); err == nil {
				m.Type = int32(v) //nolint:gosec // G115: ONNX protobuf varint fits in int32.
			}
		case 21: // ref_attr_name
			m.RefAttrName, err = p.readString()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readFunctionProto reads a FunctionProto message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readFunctionProto(m *FunctionProto) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // name
			m.Name, err = p.readString()
		case 4: // input
			var s string
			if s, err = p.readString(); err == nil {
				m.Inputs = append(m.Inputs, s)
			}
		case 5: // output
			var s string
			if s, err = p.readString(); err == nil {
				m.Outputs = append(m.Outputs, s)
			}
		case 6: // attribute
			var s string
			if s, err = p.readString(); err == nil {
				m.AttributeNames = append(m.AttributeNames, s)
			}
		case 7: // node
			err = readEmbedded(p, func(sub *parser) error {
				node := NodeProto{}
				if err2 := sub.readNodeProto(&node); err2 != nil {
					return err2
				}
				m.Nodes = append(m.Nodes, node)
				return nil
			})
		case 8: // doc_string
			m.DocString, err = p.readString()
		case 9: // opset_import
			err = readEmbedded(p, func(sub *parser) error {
				opset := OperatorSetID{}
				if err2 := sub.readOperatorSetID(&opset); err2 != nil {
					return err2
				}
				m.OpsetImport = append(m.OpsetImport, opset)
				return nil
			})
		case 10: // domain
			m.Domain, err = p.readString()
		case 11: // attribute_proto
			err = readEmbedded(p, func(sub *parser) error {
				attr := AttributeProto{}
				if err2 := sub.readAttributeProto(&attr); err2 != nil {
					return err2
				}
				m.Attributes = append(m.Attributes, attr)
				return nil
			})
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readOperatorSetID reads an OperatorSetID message.
func (p *parser) readOperatorSetID(m *OperatorSetID) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // domain
			m.Domain, err = p.readString()
		case 2: // version
			m.Version, err = p.readVarint()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readStringStringEntry reads a StringStringEntry message.
func (p *parser) readStringStringEntry(m *StringStringEntry) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch fieldNum {
		case 1: // key
			m.Key, err = p.readString()
		case 2: // value
			m.Value, err = p.readString()
		default:
			err = p.skipField(wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTag reads a protobuf field tag.
func (p *parser) readTag() (fieldNum, wireType int, err error) {
	if p.pos >= len(p.data) {
		return 0, 0, io.EOF
	}
	tag, err := p.readVarint()
	if err != nil {
		return 0, 0, err
	}
	fieldNum = int(tag >> 3)
	wireType = int(tag & 0x7)
	return fieldNum, wireType, nil
}

// readVarint reads a varint-encoded int64.
func (p *parser) readVarint() (int64, error) {
	var result uint64
	var shift uint
	for {
		if p.pos >= len(p.data) {
			return 0, io.EOF
		}
		b := p.data[p.pos]
		p.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
	return int64(result), nil //nolint:gosec // G115: Protobuf varint fits in int64.
}

// readInt32 reads a varint-encoded int32.
func (p *parser) readInt32() (int32, error) {
	v, err := p.readVarint()
	if err != nil {
		return 0, err
	}
	return int32(v), nil //nolint:gosec // G115: Protobuf varint fits in int32.
}

// readBytes reads a length-delimited byte slice.
func (p *parser) readBytes() ([]byte, error) {
	length, err := p.readVarint()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.New("negative length")
	}
	end := p.pos + int(length)
	if end > len(p.data) {
		return nil, io.ErrUnexpectedEOF
	}
	result := p.data[p.pos:end]
	p.pos = end
	return result, nil
}

// readFloat32 reads a 32-bit float.
func (p *parser) readFloat32() (float32, error) {
	if p.pos+4 > len(p.data) {
		return 0, io.ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(p.data[p.pos:])
	p.pos += 4
	return math.Float32frombits(bits), nil
}

// readPackedVarints reads a packed repeated varint field.
func (p *parser) readPackedVarints(emit func(int64)) error {
	data, err := p.readBytes()
	if err != nil {
		return err
	}
	sub := &parser{data: data, pos: 0}
	for sub.pos < len(sub.data) {
		v, err := sub.readVarint()
		if err != nil {
			return err
		}
		emit(v)
	}
	return nil
}

// readPacked32 reads a packed repeated fixed32 field.
func (p *parser) readPacked32(emit func(uint32)) error {
	data, err := p.readBytes()
	if err != nil {
		return err
	}
	for i := 0; i+4 <= len(data); i += 4 {
		emit(binary.LittleEndian.Uint32(data[i:]))
	}
	return nil
}

// readPacked64 reads a packed repeated fixed64 field.
func (p *parser) readPacked64(emit func(uint64)) error {
	data, err := p.readBytes()
	if err != nil {
		return err
	}
	for i := 0; i+8 <= len(data); i += 8 {
		emit(binary.LittleEndian.Uint64(data[i:]))
	}
	return nil
}

// skipField skips a field based on wire type.
func (p *parser) skipField(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := p.readVarint()
		return err
	case wire64Bit:
		if p.pos+8 > len(p.data) {
			return io.ErrUnexpectedEOF
		}
		p.pos += 8
		return nil
	case wireBytes:
		_, err := p.readBytes()
		return err
	case wire32Bit:
		if p.pos+4 > len(p.data) {
			return io.ErrUnexpectedEOF
		}
		p.pos += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type: %d", wireType)
	}
}
