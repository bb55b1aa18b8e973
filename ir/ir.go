// Package ir is the target intermediate representation built by the importer.
//
// It models a small, MLIR-flavored IR: a Module of Funcs, each holding an
// entry Block of Operations over typed Values. Types are interned per Context
// so that semantically equal types are pointer-equal, which lets downstream
// code compare types by identity.
//
// The package is a construction target, not an optimizing IR: it offers
// builders, a textual printer, and a structural verifier, nothing more.
package ir

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type is an interned IR type. Two types obtained from the same Context are
// semantically equal if and only if they are pointer-equal.
type Type interface {
	String() string
	isType()
}

// DimDynamic marks a statically-unknown dimension in a tensor shape.
const DimDynamic int64 = -1

// Signedness of an integer type.
type Signedness int

const (
	Signless Signedness = iota
	Signed
	Unsigned
)

type scalarType struct{ asm string }

func (t *scalarType) String() string { return t.asm }
func (t *scalarType) isType()        {}

// IntegerType is a fixed-width integer with explicit signedness.
type IntegerType struct {
	Width int
	Sign  Signedness
}

func (t *IntegerType) String() string {
	prefix := "i"
	switch t.Sign {
	case Signed:
		prefix = "si"
	case Unsigned:
		prefix = "ui"
	}
	return prefix + strconv.Itoa(t.Width)
}
func (t *IntegerType) isType() {}

// ComplexType is a complex number over a float element type.
type ComplexType struct{ Elem Type }

func (t *ComplexType) String() string { return "complex<" + t.Elem.String() + ">" }
func (t *ComplexType) isType()        {}

// VTensorType is a ranked value tensor: a shape of static or dynamic
// dimensions over an element type.
type VTensorType struct {
	Dims []int64
	Elem Type
}

func (t *VTensorType) String() string {
	return "!torch.vtensor<[" + dimsAsm(t.Dims) + "]," + t.Elem.String() + ">"
}
func (t *VTensorType) isType() {}

// RankedTensorType is a builtin tensor type with fully static dimensions,
// used as the type of dense literal attributes.
type RankedTensorType struct {
	Dims []int64
	Elem Type
}

func (t *RankedTensorType) String() string {
	var b strings.Builder
	b.WriteString("tensor<")
	for _, d := range t.Dims {
		b.WriteString(strconv.FormatInt(d, 10))
		b.WriteByte('x')
	}
	b.WriteString(t.Elem.String())
	b.WriteByte('>')
	return b.String()
}
func (t *RankedTensorType) isType() {}

// ListType is a homogeneous list over an element type.
type ListType struct{ Elem Type }

func (t *ListType) String() string { return "!torch.list<" + innerAsm(t.Elem) + ">" }
func (t *ListType) isType()        {}

// OptionalType wraps an element type that may be absent.
type OptionalType struct{ Elem Type }

func (t *OptionalType) String() string { return "!torch.optional<" + innerAsm(t.Elem) + ">" }
func (t *OptionalType) isType()        {}

// innerAsm renders a type nested inside a container, where the dialect
// prefix is implied by the enclosing type.
func innerAsm(t Type) string {
	return strings.TrimPrefix(t.String(), "!torch.")
}

func dimsAsm(dims []int64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d == DimDynamic {
			parts[i] = "?"
		} else {
			parts[i] = strconv.FormatInt(d, 10)
		}
	}
	return strings.Join(parts, ",")
}

// Context owns and interns all types of one compilation. A Context must not
// be shared between independent compilations.
type Context struct {
	types map[string]Type
}

// NewContext returns an empty interning context.
func NewContext() *Context {
	return &Context{types: make(map[string]Type)}
}

func (c *Context) intern(mk func() Type) Type {
	t := mk()
	key := t.String()
	if existing, ok := c.types[key]; ok {
		return existing
	}
	c.types[key] = t
	return t
}

// F16 returns the 16-bit float type.
func (c *Context) F16() Type { return c.intern(func() Type { return &scalarType{"f16"} }) }

// F32 returns the 32-bit float type.
func (c *Context) F32() Type { return c.intern(func() Type { return &scalarType{"f32"} }) }

// F64 returns the 64-bit float type.
func (c *Context) F64() Type { return c.intern(func() Type { return &scalarType{"f64"} }) }

// BF16 returns the bfloat16 type.
func (c *Context) BF16() Type { return c.intern(func() Type { return &scalarType{"bf16"} }) }

// Float8E4M3FN returns the f8E4M3FN type.
func (c *Context) Float8E4M3FN() Type {
	return c.intern(func() Type { return &scalarType{"f8E4M3FN"} })
}

// Float8E4M3FNUZ returns the f8E4M3FNUZ type.
func (c *Context) Float8E4M3FNUZ() Type {
	return c.intern(func() Type { return &scalarType{"f8E4M3FNUZ"} })
}

// Float8E5M2 returns the f8E5M2 type.
func (c *Context) Float8E5M2() Type {
	return c.intern(func() Type { return &scalarType{"f8E5M2"} })
}

// Float8E5M2FNUZ returns the f8E5M2FNUZ type.
func (c *Context) Float8E5M2FNUZ() Type {
	return c.intern(func() Type { return &scalarType{"f8E5M2FNUZ"} })
}

// Str returns the string type.
func (c *Context) Str() Type { return c.intern(func() Type { return &scalarType{"!torch.str"} }) }

// None returns the none type, the type of the shared placeholder value.
func (c *Context) None() Type { return c.intern(func() Type { return &scalarType{"!torch.none"} }) }

// Integer returns a fixed-width integer type with the given signedness.
func (c *Context) Integer(width int, sign Signedness) Type {
	return c.intern(func() Type { return &IntegerType{Width: width, Sign: sign} })
}

// Complex returns a complex type over the given float element type.
func (c *Context) Complex(elem Type) (Type, error) {
	switch elem.String() {
	case "f32", "f64":
		return c.intern(func() Type { return &ComplexType{Elem: elem} }), nil
	}
	return nil, errors.Errorf("complex element type must be f32 or f64, got %s", elem)
}

// VTensor returns a ranked value tensor type. Dimensions must be non-negative
// or DimDynamic; an empty dims slice denotes a 0-rank tensor. Unknown rank is
// not representable.
func (c *Context) VTensor(dims []int64, elem Type) (Type, error) {
	if elem == nil {
		return nil, errors.New("vtensor requires an element type")
	}
	for _, d := range dims {
		if d < 0 && d != DimDynamic {
			return nil, errors.Errorf("invalid tensor dimension %d", d)
		}
	}
	return c.intern(func() Type {
		return &VTensorType{Dims: append([]int64(nil), dims...), Elem: elem}
	}), nil
}

// RankedTensor returns a builtin tensor type with static dimensions.
func (c *Context) RankedTensor(dims []int64, elem Type) (Type, error) {
	if elem == nil {
		return nil, errors.New("tensor requires an element type")
	}
	for _, d := range dims {
		if d < 0 {
			return nil, errors.Errorf("builtin tensor dimensions must be static, got %d", d)
		}
	}
	return c.intern(func() Type {
		return &RankedTensorType{Dims: append([]int64(nil), dims...), Elem: elem}
	}), nil
}

// List returns a list type. Only tensor and list element types are valid.
func (c *Context) List(elem Type) (Type, error) {
	switch elem.(type) {
	case *VTensorType, *ListType:
		return c.intern(func() Type { return &ListType{Elem: elem} }), nil
	}
	return nil, errors.Errorf("invalid list element type %s", elem)
}

// Optional returns an optional type. Only tensor and list element types are
// valid.
func (c *Context) Optional(elem Type) (Type, error) {
	switch elem.(type) {
	case *VTensorType, *ListType:
		return c.intern(func() Type { return &OptionalType{Elem: elem} }), nil
	}
	return nil, errors.Errorf("invalid optional element type %s", elem)
}
