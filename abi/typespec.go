package abi

import (
	"fmt"
	"strings"
)

// FeltTypeName is the scalar type: a single field element.
const FeltTypeName = "felt"

// TypeSpec is a parsed parameter type. The grammar is small: the felt
// scalar, a named struct, or a trailing-star array of either.
type TypeSpec struct {
	kind   typeKind
	elem   *TypeSpec
	strukt string
}

type typeKind uint8

const (
	kindFelt typeKind = iota
	kindArray
	kindStruct
)

// InvalidTypeError reports a type string the grammar cannot parse.
type InvalidTypeError struct {
	// Type is the rejected type string.
	Type string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("abi: invalid type %q", e.Type)
}

// ParseType parses a declared type string such as "felt", "Point" or
// "felt*".
func ParseType(s string) (TypeSpec, error) {
	trimmed := strings.TrimSpace(s)
	if rest, ok := strings.CutSuffix(trimmed, "*"); ok {
		elem, err := ParseType(rest)
		if err != nil {
			return TypeSpec{}, &InvalidTypeError{Type: s}
		}
		return TypeSpec{kind: kindArray, elem: &elem}, nil
	}
	if trimmed == FeltTypeName {
		return TypeSpec{kind: kindFelt}, nil
	}
	if trimmed == "" || strings.ContainsAny(trimmed, " \t()") {
		return TypeSpec{}, &InvalidTypeError{Type: s}
	}
	return TypeSpec{kind: kindStruct, strukt: trimmed}, nil
}

// IsFelt reports whether the spec is the felt scalar.
func (t TypeSpec) IsFelt() bool { return t.kind == kindFelt }

// IsArray reports whether the spec is an array.
func (t TypeSpec) IsArray() bool { return t.kind == kindArray }

// IsStruct reports whether the spec names a struct.
func (t TypeSpec) IsStruct() bool { return t.kind == kindStruct }

// Elem returns the element spec of an array. It panics on non-arrays.
func (t TypeSpec) Elem() TypeSpec {
	if t.kind != kindArray {
		panic("abi: Elem called on non-array type")
	}
	return *t.elem
}

// StructName returns the struct name, or "" for non-struct specs.
func (t TypeSpec) StructName() string { return t.strukt }

// String renders the spec back to its declaration form.
func (t TypeSpec) String() string {
	switch t.kind {
	case kindArray:
		return t.elem.String() + "*"
	case kindStruct:
		return t.strukt
	default:
		return FeltTypeName
	}
}
