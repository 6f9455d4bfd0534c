package abi

import (
	"errors"
	"fmt"
)

var (
	// ErrCalldataExhausted is returned when the flat felt sequence runs
	// out before every declared parameter has been adapted.
	ErrCalldataExhausted = errors.New("abi: too few arguments provided")

	// ErrMissingLengthPrefix is returned when an array parameter is not
	// immediately preceded by a felt parameter named "<array>_len".
	ErrMissingLengthPrefix = errors.New("abi: array parameter is missing its length parameter")

	// ErrUnsizedType is returned when a type with no fixed width appears
	// where a fixed width is required, such as an array nested inside a
	// struct or inside another array.
	ErrUnsizedType = errors.New("abi: type has no fixed width")

	// ErrStructCycle is returned when struct definitions reference each
	// other cyclically, making their widths unresolvable.
	ErrStructCycle = errors.New("abi: struct definitions form a cycle")
)

// UnknownEntryError is returned by Parse for an entry whose "type"
// discriminator is not recognised.
type UnknownEntryError struct {
	// Index is the position of the entry in the ABI array.
	Index int

	// Kind is the unrecognised discriminator value.
	Kind string
}

func (e *UnknownEntryError) Error() string {
	return fmt.Sprintf("abi: entry %d has unknown type %q", e.Index, e.Kind)
}

// UnknownStructError is returned when a parameter or member references a
// struct the ABI never declares.
type UnknownStructError struct {
	// Name is the missing struct's name.
	Name string
}

func (e *UnknownStructError) Error() string {
	return fmt.Sprintf("abi: struct %q is not declared", e.Name)
}

// AdaptationError wraps a failure while adapting one parameter between
// flat calldata and structured values.
type AdaptationError struct {
	// Param is the name of the parameter being adapted.
	Param string

	// Index is the parameter's position in the declared list.
	Index int

	// Err is the underlying error.
	Err error
}

func (e *AdaptationError) Error() string {
	return fmt.Sprintf("abi: adapting parameter %d (%q): %s", e.Index, e.Param, e.Err)
}

// Unwrap returns the underlying error.
func (e *AdaptationError) Unwrap() error {
	return e.Err
}
