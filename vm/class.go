package vm

import (
	"context"

	devnet "github.com/branched-services/go-devnet"
	"github.com/branched-services/go-devnet/abi"
	"github.com/branched-services/go-devnet/felt"
)

// markerPrefix namespaces class markers away from user felts.
const markerPrefix = "devnet_native_class/"

// MarkerFor derives the bytecode marker word for a class name.
func MarkerFor(name string) *felt.Felt {
	return felt.Keccak([]byte(markerPrefix + name))
}

// Handler is one native entry point. It returns the frame's flat
// retdata; an error aborts the whole execution with nothing applied.
type Handler func(env *CallEnv) ([]*felt.Felt, error)

// Class is a native contract class: a named collection of handlers keyed
// by entry point selector, with an optional catch-all. Register the
// handlers before deploying; the class is not safe for mutation once a
// machine can reach it.
type Class struct {
	name     string
	marker   *felt.Felt
	handlers map[felt.Felt]Handler
	fallback Handler
}

// NewClass creates an empty class under the given name.
func NewClass(name string) *Class {
	return &Class{
		name:     name,
		marker:   MarkerFor(name),
		handlers: make(map[felt.Felt]Handler),
	}
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Marker returns the bytecode word the machine resolves this class by.
func (c *Class) Marker() *felt.Felt { return c.marker.Clone() }

// Bytecode returns the deployable program payload: the marker word.
func (c *Class) Bytecode() []*felt.Felt {
	return []*felt.Felt{c.marker.Clone()}
}

// On registers a handler under the selector derived from name and
// returns the class for chaining.
func (c *Class) On(name string, h Handler) *Class {
	c.handlers[*abi.SelectorFromName(name)] = h
	if name == abi.DefaultEntryPointName {
		c.fallback = h
	}
	return c
}

// OnConstructor registers the handler run at deployment.
func (c *Class) OnConstructor(h Handler) *Class {
	return c.On(abi.ConstructorEntryPointName, h)
}

// OnDefault registers the catch-all handler, reached when no selector
// matches.
func (c *Class) OnDefault(h Handler) *Class {
	return c.On(abi.DefaultEntryPointName, h)
}

// handlerFor resolves a selector to its handler, falling back to the
// catch-all when no exact entry exists.
func (c *Class) handlerFor(selector *felt.Felt) (Handler, bool) {
	if h, ok := c.handlers[*selector]; ok {
		return h, true
	}
	if c.fallback != nil {
		return c.fallback, true
	}
	return nil, false
}

// CallEnv is what a handler sees of its frame: identity, calldata, the
// journaled storage of the execution, event emission and inner calls.
type CallEnv struct {
	ctx   context.Context
	run   *run
	info  *devnet.CallInfo
	depth int
}

// Context returns the execution's context.
func (e *CallEnv) Context() context.Context { return e.ctx }

// Self returns the executing contract's address.
func (e *CallEnv) Self() *felt.Felt { return e.info.Contract.Clone() }

// Caller returns the address this frame was called from. Zero marks an
// external origin.
func (e *CallEnv) Caller() *felt.Felt { return e.info.Caller.Clone() }

// Selector returns the selector this frame was dispatched under.
func (e *CallEnv) Selector() *felt.Felt { return e.info.Selector.Clone() }

// Calldata returns the frame's flat arguments. Callers must not modify
// the returned slice.
func (e *CallEnv) Calldata() []*felt.Felt { return e.info.Calldata }

// Read returns the executing contract's storage value under key, as of
// this execution's journal.
func (e *CallEnv) Read(key *felt.Felt) *felt.Felt {
	return e.run.read(e.info.Contract, key)
}

// Write journals a storage mutation on the executing contract. It
// becomes visible to later reads in the same execution and commits only
// if the whole execution succeeds.
func (e *CallEnv) Write(key, value *felt.Felt) {
	e.run.write(e.info.Contract, key, value)
}

// UseSteps meters n extra steps onto the execution, on top of the frame
// cost charged automatically.
func (e *CallEnv) UseSteps(n uint64) {
	e.run.res.Steps += n
}

// Emit records an event on this frame.
func (e *CallEnv) Emit(keys, data []*felt.Felt) {
	e.info.Events = append(e.info.Events, devnet.Event{
		From: e.info.Contract.Clone(),
		Keys: felt.CloneSlice(keys),
		Data: felt.CloneSlice(data),
	})
}

// Call dispatches an inner call to another contract, with this contract
// as the caller. The inner frame shares the execution's journal, so its
// writes commit and abort together with the caller's.
func (e *CallEnv) Call(to, selector *felt.Felt, calldata []*felt.Felt) ([]*felt.Felt, error) {
	e.run.res.InnerCalls++
	child, err := e.run.call(e.ctx, e.info.Contract, to, selector, calldata, e.depth+1)
	if err != nil {
		return nil, err
	}
	e.info.InnerCalls = append(e.info.InnerCalls, child)
	return child.Retdata, nil
}
