package importer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loom-ml/loom/ir"
	"github.com/loom-ml/loom/onnx"
)

// ContextCache memoizes per-context type construction. Identical semantic
// types always map to the identical IR type object within one context, so
// type objects are safe to compare by identity downstream.
type ContextCache struct {
	ctx    *ir.Context
	config *Config

	elemTypeMap     map[int32]ir.Type
	listTypeMap     map[string]ir.Type
	optionalTypeMap map[string]ir.Type
	vtensorTypeMap  map[string]ir.Type
}

// NewContextCache creates an empty cache over one IR context.
func NewContextCache(ctx *ir.Context, config *Config) *ContextCache {
	return &ContextCache{
		ctx:             ctx,
		config:          config,
		elemTypeMap:     make(map[int32]ir.Type),
		listTypeMap:     make(map[string]ir.Type),
		optionalTypeMap: make(map[string]ir.Type),
		vtensorTypeMap:  make(map[string]ir.Type),
	}
}

// elemTypeConstructors maps ONNX element-type codes to IR type constructors.
// Codes without an entry are unsupported.
var elemTypeConstructors = map[int32]func(*ir.Context) (ir.Type, error){
	onnx.TensorProtoFloat:   func(c *ir.Context) (ir.Type, error) { return c.F32(), nil },
	onnx.TensorProtoUint8:   func(c *ir.Context) (ir.Type, error) { return c.Integer(8, ir.Unsigned), nil },
	onnx.TensorProtoInt8:    func(c *ir.Context) (ir.Type, error) { return c.Integer(8, ir.Signed), nil },
	onnx.TensorProtoUint16:  func(c *ir.Context) (ir.Type, error) { return c.Integer(16, ir.Unsigned), nil },
	onnx.TensorProtoInt16:   func(c *ir.Context) (ir.Type, error) { return c.Integer(16, ir.Signed), nil },
	onnx.TensorProtoInt32:   func(c *ir.Context) (ir.Type, error) { return c.Integer(32, ir.Signed), nil },
	onnx.TensorProtoInt64:   func(c *ir.Context) (ir.Type, error) { return c.Integer(64, ir.Signed), nil },
	onnx.TensorProtoBool:    func(c *ir.Context) (ir.Type, error) { return c.Integer(1, ir.Signless), nil },
	onnx.TensorProtoFloat16: func(c *ir.Context) (ir.Type, error) { return c.F16(), nil },
	onnx.TensorProtoDouble:  func(c *ir.Context) (ir.Type, error) { return c.F64(), nil },
	onnx.TensorProtoUint32:  func(c *ir.Context) (ir.Type, error) { return c.Integer(32, ir.Unsigned), nil },
	onnx.TensorProtoUint64:  func(c *ir.Context) (ir.Type, error) { return c.Integer(64, ir.Unsigned), nil },
	onnx.TensorProtoComplex64: func(c *ir.Context) (ir.Type, error) {
		return c.Complex(c.F32())
	},
	onnx.TensorProtoComplex128: func(c *ir.Context) (ir.Type, error) {
		return c.Complex(c.F64())
	},
	onnx.TensorProtoBfloat16:       func(c *ir.Context) (ir.Type, error) { return c.BF16(), nil },
	onnx.TensorProtoFloat8E4M3FN:   func(c *ir.Context) (ir.Type, error) { return c.Float8E4M3FN(), nil },
	onnx.TensorProtoFloat8E4M3FNUZ: func(c *ir.Context) (ir.Type, error) { return c.Float8E4M3FNUZ(), nil },
	onnx.TensorProtoFloat8E5M2:     func(c *ir.Context) (ir.Type, error) { return c.Float8E5M2(), nil },
	onnx.TensorProtoFloat8E5M2FNUZ: func(c *ir.Context) (ir.Type, error) { return c.Float8E5M2FNUZ(), nil },
	onnx.TensorProtoString:         func(c *ir.Context) (ir.Type, error) { return c.Str(), nil },
	onnx.TensorProtoUint4:          func(c *ir.Context) (ir.Type, error) { return c.Integer(4, ir.Unsigned), nil },
	onnx.TensorProtoInt4:           func(c *ir.Context) (ir.Type, error) { return c.Integer(4, ir.Signed), nil },
}

// TensorElementType maps an element-type code to an IR element type,
// memoized.
func (cc *ContextCache) TensorElementType(elemType int32) (ir.Type, error) {
	if t, ok := cc.elemTypeMap[elemType]; ok {
		return t, nil
	}
	mk, ok := elemTypeConstructors[elemType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tensor element type %s",
			ErrUnsupportedType, onnx.DataTypeName(elemType))
	}
	t, err := mk(cc.ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: element type %s: %v",
			ErrTypeConstruction, onnx.DataTypeName(elemType), err)
	}
	cc.elemTypeMap[elemType] = t
	return t, nil
}

// NoneType returns the distinguished none type.
func (cc *ContextCache) NoneType() ir.Type {
	return cc.ctx.None()
}

// ListType wraps an element type in a list type, memoized by the element's
// string form.
func (cc *ContextCache) ListType(elem ir.Type) (ir.Type, error) {
	key := elem.String()
	if t, ok := cc.listTypeMap[key]; ok {
		return t, nil
	}
	t, err := cc.ctx.List(elem)
	if err != nil {
		return nil, fmt.Errorf("%w: list over %s: %v", ErrTypeConstruction, key, err)
	}
	cc.listTypeMap[key] = t
	return t, nil
}

// OptionalType wraps an element type in an optional type, memoized by the
// element's string form.
func (cc *ContextCache) OptionalType(elem ir.Type) (ir.Type, error) {
	key := elem.String()
	if t, ok := cc.optionalTypeMap[key]; ok {
		return t, nil
	}
	t, err := cc.ctx.Optional(elem)
	if err != nil {
		return nil, fmt.Errorf("%w: optional over %s: %v", ErrTypeConstruction, key, err)
	}
	cc.optionalTypeMap[key] = t
	return t, nil
}

// VTensorType builds a ranked value tensor type, memoized by shape and
// element type. ir.DimDynamic marks a statically-unknown dimension; an empty
// dims slice is a 0-rank tensor.
func (cc *ContextCache) VTensorType(dims []int64, elem ir.Type) (ir.Type, error) {
	var b strings.Builder
	for _, d := range dims {
		fmt.Fprintf(&b, "%d,", d)
	}
	b.WriteString(elem.String())
	key := b.String()
	if t, ok := cc.vtensorTypeMap[key]; ok {
		return t, nil
	}
	t, err := cc.ctx.VTensor(dims, elem)
	if err != nil {
		return nil, fmt.Errorf("%w: vtensor [%v] of %s: %v", ErrTypeConstruction, dims, elem, err)
	}
	cc.vtensorTypeMap[key] = t
	return t, nil
}

// TensorProtoToType builds the value tensor type of a tensor literal.
func (cc *ContextCache) TensorProtoToType(tp *onnx.TensorProto) (ir.Type, error) {
	elem, err := cc.TensorElementType(tp.DataType)
	if err != nil {
		return nil, err
	}
	return cc.VTensorType(tp.Dims, elem)
}

// TensorProtoToBuiltinType builds the builtin (static-shape) tensor type of a
// tensor literal, used as the type of its dense attribute.
func (cc *ContextCache) TensorProtoToBuiltinType(tp *onnx.TensorProto) (ir.Type, error) {
	elem, err := cc.TensorElementType(tp.DataType)
	if err != nil {
		return nil, err
	}
	t, err := cc.ctx.RankedTensor(tp.Dims, elem)
	if err != nil {
		return nil, fmt.Errorf("%w: tensor %v of %s: %v", ErrTypeConstruction, tp.Dims, elem, err)
	}
	return t, nil
}

// TypeProtoToType maps a type descriptor to an IR type, dispatching on which
// of tensor/sequence/optional the descriptor carries. An empty descriptor
// produces the none type with a warning: many producers omit types on
// genuinely unused values, and re-running shape inference usually fills them
// in.
func (cc *ContextCache) TypeProtoToType(tp *onnx.TypeProto) (ir.Type, error) {
	if tp.IsEmpty() {
		cc.config.warnf("found a value without a type; consider re-running shape inference on the model")
		return cc.NoneType(), nil
	}

	switch {
	case tp.TensorType != nil:
		elem, err := cc.TensorElementType(tp.TensorType.ElemType)
		if err != nil {
			return nil, err
		}
		if tp.TensorType.Shape == nil {
			return nil, fmt.Errorf("%w: tensor of unknown rank (%s)", ErrUnsupportedType, tp)
		}
		return cc.VTensorType(importDims(tp.TensorType.Shape), elem)

	case tp.SequenceType != nil:
		elem, err := cc.listElementType(tp.SequenceType.ElemType)
		if err != nil {
			return nil, err
		}
		return cc.ListType(elem)

	case tp.OptionalType != nil:
		elem, err := cc.optionalElementType(tp.OptionalType.ElemType)
		if err != nil {
			return nil, err
		}
		return cc.OptionalType(elem)
	}

	return nil, fmt.Errorf("%w: type descriptor %s", ErrUnsupportedType, tp)
}

// listElementType resolves the element type of a sequence descriptor. Only
// tensor elements are supported.
func (cc *ContextCache) listElementType(tp *onnx.TypeProto) (ir.Type, error) {
	if tp != nil && tp.TensorType != nil {
		elem, err := cc.TensorElementType(tp.TensorType.ElemType)
		if err != nil {
			return nil, err
		}
		return cc.VTensorType(importDims(tp.TensorType.Shape), elem)
	}
	return nil, fmt.Errorf("%w: list element type %s", ErrUnsupportedType, tp)
}

// optionalElementType resolves the element type of an optional descriptor:
// a tensor, or a sequence of tensors.
func (cc *ContextCache) optionalElementType(tp *onnx.TypeProto) (ir.Type, error) {
	if tp != nil && tp.TensorType != nil {
		elem, err := cc.TensorElementType(tp.TensorType.ElemType)
		if err != nil {
			return nil, err
		}
		return cc.VTensorType(importDims(tp.TensorType.Shape), elem)
	}
	if tp != nil && tp.SequenceType != nil {
		elem, err := cc.listElementType(tp.SequenceType.ElemType)
		if err != nil {
			return nil, err
		}
		return cc.ListType(elem)
	}
	return nil, fmt.Errorf("%w: optional element type %s", ErrUnsupportedType, tp)
}

// importDims converts a shape descriptor to IR dimensions. A dynamic
// dimension is denoted either by a dim_param being set or by neither field
// being set; dim_value 0 is a valid static size and is distinguished from an
// absent field by wire presence.
func importDims(shape *onnx.TensorShapeProto) []int64 {
	if shape == nil {
		return nil
	}
	dims := make([]int64, len(shape.Dims))
	for i, d := range shape.Dims {
		if d.HasDimValue {
			dims[i] = d.DimValue
		} else {
			dims[i] = ir.DimDynamic
		}
	}
	return dims
}

var invalidResourceChars = regexp.MustCompile(`[^\w.]`)

// sanitizeResourceName makes a tensor name usable as an IR resource handle.
func sanitizeResourceName(name string) string {
	if name == "" || (name[0] != '_' && !isLetter(name[0])) {
		name = "_" + name
	}
	return invalidResourceChars.ReplaceAllString(name, "_")
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// inlineTensorConverters maps element-type codes to converters building a
// dense attribute from the typed-array fields of a tensor literal, for the
// cases where the data is not carried as a raw payload. Note uint32 data is
// stored in the 64-bit uint64_data field per the TensorProto contract.
var inlineTensorConverters = map[int32]func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error){
	onnx.TensorProtoFloat: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		return &ir.DenseAttr{Type: t, Values: append([]float32(nil), tp.FloatData...)}, nil
	},
	onnx.TensorProtoBool: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		values := make([]bool, len(tp.Int32Data))
		for i, v := range tp.Int32Data {
			values[i] = v != 0
		}
		return &ir.DenseAttr{Type: t, Values: values}, nil
	},
	onnx.TensorProtoUint8: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		values := make([]uint8, len(tp.Int32Data))
		for i, v := range tp.Int32Data {
			values[i] = uint8(v) //nolint:gosec // G115: uint8 data rides in int32_data.
		}
		return &ir.DenseAttr{Type: t, Values: values}, nil
	},
	onnx.TensorProtoInt8: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		values := make([]int8, len(tp.Int32Data))
		for i, v := range tp.Int32Data {
			values[i] = int8(v) //nolint:gosec // G115: int8 data rides in int32_data.
		}
		return &ir.DenseAttr{Type: t, Values: values}, nil
	},
	onnx.TensorProtoInt16: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		values := make([]int16, len(tp.Int32Data))
		for i, v := range tp.Int32Data {
			values[i] = int16(v) //nolint:gosec // G115: int16 data rides in int32_data.
		}
		return &ir.DenseAttr{Type: t, Values: values}, nil
	},
	onnx.TensorProtoInt32: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		return &ir.DenseAttr{Type: t, Values: append([]int32(nil), tp.Int32Data...)}, nil
	},
	onnx.TensorProtoInt64: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		return &ir.DenseAttr{Type: t, Values: append([]int64(nil), tp.Int64Data...)}, nil
	},
	onnx.TensorProtoDouble: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		return &ir.DenseAttr{Type: t, Values: append([]float64(nil), tp.DoubleData...)}, nil
	},
	onnx.TensorProtoUint32: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		values := make([]uint32, len(tp.Uint64Data))
		for i, v := range tp.Uint64Data {
			values[i] = uint32(v) //nolint:gosec // G115: uint32 data rides in uint64_data.
		}
		return &ir.DenseAttr{Type: t, Values: values}, nil
	},
	onnx.TensorProtoUint64: func(cc *ContextCache, tp *onnx.TensorProto, t ir.Type) (ir.Attr, error) {
		return &ir.DenseAttr{Type: t, Values: append([]uint64(nil), tp.Uint64Data...)}, nil
	},
	// Intentionally unsupported: STRING.
}

// TensorProtoToAttr converts a tensor literal to a dense IR attribute. Raw
// payloads conveniently share the dense-resource data format and are passed
// through by reference with maximum numeric alignment; typed scalar arrays
// are instantiated element by element.
func (cc *ContextCache) TensorProtoToAttr(tp *onnx.TensorProto) (ir.Attr, error) {
	tensorType, err := cc.TensorProtoToBuiltinType(tp)
	if err != nil {
		return nil, err
	}
	if len(tp.RawData) > 0 {
		return &ir.DenseResourceAttr{
			Handle:    sanitizeResourceName(tp.Name),
			Type:      tensorType,
			Data:      tp.RawData,
			Alignment: 8,
		}, nil
	}
	converter, ok := inlineTensorConverters[tp.DataType]
	if !ok {
		return nil, fmt.Errorf("%w: unhandled tensor literal data for %s", ErrUnsupportedType, tp)
	}
	return converter(cc, tp, tensorType)
}
