package vm

import (
	"fmt"

	"github.com/branched-services/go-devnet/felt"
)

// ClassCollisionError indicates two registered classes share a marker,
// which only happens when they share a name.
type ClassCollisionError struct {
	Name     string
	Existing string
}

func (e *ClassCollisionError) Error() string {
	return fmt.Sprintf("vm: class %q collides with registered class %q", e.Name, e.Existing)
}

// UnknownClassError indicates a deployed contract whose marker word
// matches no registered class. The machine cannot execute it.
type UnknownClassError struct {
	Contract *felt.Felt
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("vm: contract %s has no registered class", e.Contract.Hex())
}

// EntryPointError indicates a selector the class neither declares nor
// catches with a fallback handler.
type EntryPointError struct {
	Class    string
	Selector *felt.Felt
}

func (e *EntryPointError) Error() string {
	return fmt.Sprintf("vm: class %q has no entry point for selector %s", e.Class, e.Selector.Hex())
}

// CallDepthError indicates an inner call chain past the configured
// maximum.
type CallDepthError struct {
	Depth int
	Max   int
}

func (e *CallDepthError) Error() string {
	return fmt.Sprintf("vm: call depth %d exceeds maximum %d", e.Depth, e.Max)
}

// RevertError is a handler-originated failure: the native analogue of a
// reverted execution. Handlers return it to abort with a message.
type RevertError struct {
	Message string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("vm: execution reverted: %s", e.Message)
}

// Revert builds a RevertError with a formatted message.
func Revert(format string, args ...any) error {
	return &RevertError{Message: fmt.Sprintf(format, args...)}
}
