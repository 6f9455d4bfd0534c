package abi

import (
	"github.com/branched-services/go-devnet/felt"
)

const (
	// DefaultEntryPointName is the catch-all entry point. When a call
	// targets a selector the contract does not declare, resolution falls
	// back to this entry if present.
	DefaultEntryPointName = "__default__"

	// ExecuteEntryPointName is the account entry point that runs a
	// multicall.
	ExecuteEntryPointName = "execute"

	// ConstructorEntryPointName is the entry point run at deployment.
	ConstructorEntryPointName = "constructor"
)

// SelectorFromName derives the entry point selector for a function name:
// the keccak hash of the name, truncated into the field.
func SelectorFromName(name string) *felt.Felt {
	return felt.Keccak([]byte(name))
}

// DefaultSelector returns the selector of the catch-all entry point.
func DefaultSelector() *felt.Felt {
	return SelectorFromName(DefaultEntryPointName)
}

// ExecuteSelector returns the selector of the account execute entry
// point.
func ExecuteSelector() *felt.Felt {
	return SelectorFromName(ExecuteEntryPointName)
}

// SelectorTable maps entry point selectors to their function entries.
type SelectorTable struct {
	entries map[felt.Felt]*Function
	byName  map[string]*Function
}

// ExtractFunctions builds the selector table from an ABI's callable
// entries. Each function is registered under the selector derived from
// its name; a repeated name overwrites the earlier entry.
func ExtractFunctions(a *ABI) *SelectorTable {
	table := &SelectorTable{
		entries: make(map[felt.Felt]*Function),
		byName:  make(map[string]*Function),
	}
	for _, fn := range a.Functions() {
		table.entries[*SelectorFromName(fn.Name)] = fn
		table.byName[fn.Name] = fn
	}
	return table
}

// Len returns the number of registered entry points.
func (t *SelectorTable) Len() int {
	return len(t.entries)
}

// Lookup returns the function registered under exactly sel, with no
// default fallback.
func (t *SelectorTable) Lookup(sel *felt.Felt) (*Function, bool) {
	fn, ok := t.entries[*sel]
	return fn, ok
}

// ByName returns the function declared under name.
func (t *SelectorTable) ByName(name string) (*Function, bool) {
	fn, ok := t.byName[name]
	return fn, ok
}

// HasDefault reports whether the contract declares a catch-all entry
// point.
func (t *SelectorTable) HasDefault() bool {
	_, ok := t.byName[DefaultEntryPointName]
	return ok
}

// Resolve returns the function addressed by sel. An unknown selector
// falls back to the catch-all entry point when the contract declares
// one. The returned selector is the one the function is registered
// under, which differs from sel after a fallback.
func (t *SelectorTable) Resolve(sel *felt.Felt) (*Function, *felt.Felt, bool) {
	if fn, ok := t.entries[*sel]; ok {
		return fn, sel.Clone(), true
	}
	if fn, ok := t.byName[DefaultEntryPointName]; ok {
		return fn, DefaultSelector(), true
	}
	return nil, nil, false
}
