package importer

import (
	"fmt"

	"github.com/loom-ml/loom/ir"
	"github.com/loom-ml/loom/onnx"
)

// attrAction is the fixed per-kind policy for node attributes.
type attrAction int8

const (
	// attrConvert maps the attribute to an IR attribute.
	attrConvert attrAction = iota
	// attrSkip drops the attribute silently; graph-valued attributes are
	// skipped here because they are imported as regions instead.
	attrSkip
	// attrReject fails the import; these kinds would need special handling
	// the importer does not define.
	attrReject
)

type attrHandler struct {
	action  attrAction
	convert func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error)
}

var attributeHandlers = map[int32]attrHandler{
	onnx.AttributeProtoUndefined: {action: attrReject},
	onnx.AttributeProtoFloat: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		return &ir.FloatAttr{Type: cc.ctx.F32(), Value: float64(a.F)}, nil
	}},
	onnx.AttributeProtoInt: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		return &ir.IntAttr{Type: cc.ctx.Integer(64, ir.Signed), Value: a.I}, nil
	}},
	onnx.AttributeProtoString: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		return &ir.StringAttr{Value: string(a.S)}, nil
	}},
	onnx.AttributeProtoTensor: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		return cc.TensorProtoToAttr(a.T)
	}},
	onnx.AttributeProtoGraph:        {action: attrSkip},
	onnx.AttributeProtoSparseTensor: {action: attrReject},
	onnx.AttributeProtoTypeProto:    {action: attrReject},
	onnx.AttributeProtoFloats: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		elems := make([]ir.Attr, len(a.Floats))
		for i, f := range a.Floats {
			elems[i] = &ir.FloatAttr{Type: cc.ctx.F32(), Value: float64(f)}
		}
		return &ir.ArrayAttr{Elems: elems}, nil
	}},
	onnx.AttributeProtoInts: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		elems := make([]ir.Attr, len(a.Ints))
		for i, v := range a.Ints {
			elems[i] = &ir.IntAttr{Type: cc.ctx.Integer(64, ir.Signed), Value: v}
		}
		return &ir.ArrayAttr{Elems: elems}, nil
	}},
	onnx.AttributeProtoStrings: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		elems := make([]ir.Attr, len(a.Strings))
		for i, s := range a.Strings {
			elems[i] = &ir.StringAttr{Value: string(s)}
		}
		return &ir.ArrayAttr{Elems: elems}, nil
	}},
	onnx.AttributeProtoTensors: {convert: func(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
		elems := make([]ir.Attr, len(a.Tensors))
		for i := range a.Tensors {
			attr, err := cc.TensorProtoToAttr(&a.Tensors[i])
			if err != nil {
				return nil, err
			}
			elems[i] = attr
		}
		return &ir.ArrayAttr{Elems: elems}, nil
	}},
	onnx.AttributeProtoGraphs:        {action: attrReject},
	onnx.AttributeProtoSparseTensors: {action: attrReject},
	onnx.AttributeProtoTypeProtos:    {action: attrReject},
}

// importAttribute applies the per-kind policy to one attribute. A nil result
// with nil error means the attribute is actively skipped.
func importAttribute(cc *ContextCache, a *onnx.AttributeProto) (ir.Attr, error) {
	handler, ok := attributeHandlers[a.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unhandled attribute kind %d (%s)",
			ErrUnsupportedAttribute, a.Type, a)
	}
	switch handler.action {
	case attrSkip:
		return nil, nil
	case attrReject:
		return nil, fmt.Errorf("%w: attribute kind %s requires special node handling (%s)",
			ErrUnsupportedAttribute, onnx.AttributeTypeName(a.Type), a)
	default:
		return handler.convert(cc, a)
	}
}
