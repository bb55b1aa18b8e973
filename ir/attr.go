package ir

import (
	"fmt"
	"strings"
)

// Attr is an IR attribute value. Attributes are plain immutable data; unlike
// types they are not interned.
type Attr interface {
	String() string
	isAttr()
}

// StringAttr holds a string.
type StringAttr struct{ Value string }

func (a *StringAttr) String() string { return fmt.Sprintf("%q", a.Value) }
func (a *StringAttr) isAttr()        {}

// IntAttr holds an integer of a given IR type.
type IntAttr struct {
	Type  Type
	Value int64
}

func (a *IntAttr) String() string { return fmt.Sprintf("%d : %s", a.Value, a.Type) }
func (a *IntAttr) isAttr()        {}

// FloatAttr holds a float of a given IR type.
type FloatAttr struct {
	Type  Type
	Value float64
}

func (a *FloatAttr) String() string { return fmt.Sprintf("%g : %s", a.Value, a.Type) }
func (a *FloatAttr) isAttr()        {}

// ArrayAttr holds an ordered list of attributes.
type ArrayAttr struct{ Elems []Attr }

func (a *ArrayAttr) String() string {
	parts := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (a *ArrayAttr) isAttr() {}

// DictAttr holds named attributes in insertion order.
type DictAttr struct{ entries []namedAttr }

type namedAttr struct {
	name string
	attr Attr
}

// Set adds or replaces an entry, preserving first-insertion order.
func (a *DictAttr) Set(name string, attr Attr) {
	for i := range a.entries {
		if a.entries[i].name == name {
			a.entries[i].attr = attr
			return
		}
	}
	a.entries = append(a.entries, namedAttr{name: name, attr: attr})
}

// Get returns the named entry, or nil.
func (a *DictAttr) Get(name string) Attr {
	for i := range a.entries {
		if a.entries[i].name == name {
			return a.entries[i].attr
		}
	}
	return nil
}

// Len returns the number of entries.
func (a *DictAttr) Len() int { return len(a.entries) }

func (a *DictAttr) String() string {
	parts := make([]string, len(a.entries))
	for i, e := range a.entries {
		parts[i] = fmt.Sprintf("%s = %s", e.name, e.attr)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (a *DictAttr) isAttr() {}

// DenseAttr is a dense literal built from typed scalar values. Values holds
// one of the supported element slices ([]float32, []float64, []int32,
// []int64, []uint32, []uint64, []bool, []uint8, ...).
type DenseAttr struct {
	Type   Type // RankedTensorType
	Values any
}

func (a *DenseAttr) String() string {
	return fmt.Sprintf("dense<%v> : %s", a.Values, a.Type)
}
func (a *DenseAttr) isAttr() {}

// DenseResourceAttr is a dense literal whose payload is an opaque byte buffer
// referenced by a named resource handle.
type DenseResourceAttr struct {
	Handle    string
	Type      Type // RankedTensorType
	Data      []byte
	Alignment int
}

func (a *DenseResourceAttr) String() string {
	return fmt.Sprintf("dense_resource<%s> : %s", a.Handle, a.Type)
}
func (a *DenseResourceAttr) isAttr() {}
