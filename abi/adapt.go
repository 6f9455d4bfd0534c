package abi

import (
	"fmt"

	"github.com/branched-services/go-devnet/felt"
)

// Value is one adapted argument or return value. The interface is
// sealed: only FeltValue, ArrayValue and StructValue implement it.
type Value interface {
	isValue()
}

// FeltValue is a single field element.
type FeltValue struct {
	Felt *felt.Felt
}

func (FeltValue) isValue() {}

// ArrayValue is an ordered sequence of equally typed elements.
type ArrayValue struct {
	Elems []Value
}

func (ArrayValue) isValue() {}

// Field is one named member of an adapted struct.
type Field struct {
	Name  string
	Value Value
}

// StructValue is an adapted struct: its declared name and its members in
// declaration order.
type StructValue struct {
	Name   string
	Fields []Field
}

func (StructValue) isValue() {}

// AdaptCalldata converts a flat felt sequence into one structured value
// per declared input.
//
// Scalars consume one felt. A struct parameter consumes its members
// depth first. An array parameter must be immediately preceded by a felt
// parameter named "<array>_len"; the value consumed for that parameter
// gives the element count, and the array then consumes count elements.
// Felts left over after the last parameter are ignored.
func AdaptCalldata(calldata []*felt.Felt, inputs []Param, cat *TypeCatalog) ([]Value, error) {
	return adaptFlat(calldata, inputs, cat)
}

// AdaptOutput converts a flat execution result into one structured value
// per declared output, under the same rules as AdaptCalldata.
func AdaptOutput(result []*felt.Felt, outputs []Param, cat *TypeCatalog) ([]Value, error) {
	return adaptFlat(result, outputs, cat)
}

// Flatten renders structured values back to the flat felt sequence they
// were adapted from. Array length prefixes are declared parameters in
// their own right, so flattening the result of AdaptCalldata reproduces
// the original sequence exactly. The returned felts alias the values.
func Flatten(values []Value) []*felt.Felt {
	var flat []*felt.Felt
	for _, v := range values {
		flat = appendFlat(flat, v)
	}
	return flat
}

func appendFlat(flat []*felt.Felt, v Value) []*felt.Felt {
	switch v := v.(type) {
	case FeltValue:
		return append(flat, v.Felt)
	case ArrayValue:
		for _, elem := range v.Elems {
			flat = appendFlat(flat, elem)
		}
	case StructValue:
		for _, field := range v.Fields {
			flat = appendFlat(flat, field.Value)
		}
	}
	return flat
}

func adaptFlat(flat []*felt.Felt, params []Param, cat *TypeCatalog) ([]Value, error) {
	w := &walker{flat: flat, cat: cat}
	values := make([]Value, 0, len(params))

	var prevName string
	var prevFelt *felt.Felt
	for i, p := range params {
		spec, err := ParseType(p.Type)
		if err != nil {
			return nil, &AdaptationError{Param: p.Name, Index: i, Err: err}
		}

		var v Value
		if spec.IsArray() {
			if prevFelt == nil || prevName != p.Name+"_len" {
				return nil, &AdaptationError{Param: p.Name, Index: i, Err: ErrMissingLengthPrefix}
			}
			v, err = w.array(spec.Elem(), prevFelt)
		} else {
			v, err = w.value(spec)
		}
		if err != nil {
			return nil, &AdaptationError{Param: p.Name, Index: i, Err: err}
		}

		values = append(values, v)
		prevName = p.Name
		if fv, ok := v.(FeltValue); ok {
			prevFelt = fv.Felt
		} else {
			prevFelt = nil
		}
	}

	return values, nil
}

type walker struct {
	flat []*felt.Felt
	cat  *TypeCatalog
	i    int
}

func (w *walker) next() (*felt.Felt, error) {
	if w.i >= len(w.flat) {
		return nil, fmt.Errorf("%w: only %d felts", ErrCalldataExhausted, len(w.flat))
	}
	f := w.flat[w.i]
	w.i++
	return f, nil
}

// value consumes one fixed-width value. Arrays are rejected here: they
// are only legal at parameter position, where the length prefix rule
// applies.
func (w *walker) value(spec TypeSpec) (Value, error) {
	switch {
	case spec.IsFelt():
		f, err := w.next()
		if err != nil {
			return nil, err
		}
		return FeltValue{Felt: f.Clone()}, nil
	case spec.IsArray():
		return nil, ErrUnsizedType
	}

	name := spec.StructName()
	st, ok := w.cat.Struct(name)
	if !ok {
		return nil, &UnknownStructError{Name: name}
	}
	// Resolving the width first surfaces cycles and bad member types
	// before any felt is consumed.
	if _, err := w.cat.WidthOf(spec); err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(st.Members))
	for _, member := range st.Members {
		memberSpec, err := ParseType(member.Type)
		if err != nil {
			return nil, err
		}
		mv, err := w.value(memberSpec)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: member.Name, Value: mv})
	}
	return StructValue{Name: name, Fields: fields}, nil
}

func (w *walker) array(elem TypeSpec, length *felt.Felt) (Value, error) {
	width, err := w.cat.WidthOf(elem)
	if err != nil {
		return nil, err
	}
	if width == 0 {
		// Zero-width elements cannot be delimited.
		return nil, ErrUnsizedType
	}

	remaining := uint64(len(w.flat) - w.i)
	if !length.IsUint64() || length.Uint64() > remaining/uint64(width) {
		return nil, fmt.Errorf("%w: array of length %s does not fit in %d remaining felts",
			ErrCalldataExhausted, length.Dec(), remaining)
	}

	n := length.Uint64()
	elems := make([]Value, 0, n)
	for k := uint64(0); k < n; k++ {
		v, err := w.value(elem)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return ArrayValue{Elems: elems}, nil
}
