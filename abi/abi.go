// Package abi models the declarative interface of a deployed contract:
// its callable functions, their typed inputs and outputs, and the struct
// definitions those types reference.
//
// The wire form is an ordered JSON array of entries, each tagged with a
// "type" discriminator (function, constructor, l1_handler, struct,
// event). Calldata travels as a flat sequence of felts; the adapter in
// this package converts between that flat form and structured values by
// walking a function's declared parameter types through the type catalog.
package abi

import (
	"encoding/json"
	"fmt"
)

// EntryKind discriminates ABI entries.
type EntryKind string

const (
	// EntryFunction is an externally callable function.
	EntryFunction EntryKind = "function"

	// EntryConstructor runs once at deployment.
	EntryConstructor EntryKind = "constructor"

	// EntryL1Handler is a function invoked by messages from L1.
	EntryL1Handler EntryKind = "l1_handler"

	// EntryStruct declares a composite type.
	EntryStruct EntryKind = "struct"

	// EntryEvent declares an event shape.
	EntryEvent EntryKind = "event"
)

// Param is a named, typed function parameter or return value.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function describes a callable entry point. Constructors and L1 handlers
// share the layout.
type Function struct {
	Type            EntryKind `json:"type"`
	Name            string    `json:"name"`
	Inputs          []Param   `json:"inputs"`
	Outputs         []Param   `json:"outputs"`
	StateMutability string    `json:"stateMutability,omitempty"`
}

func (f *Function) entry() {}

// EntryName returns the declared name.
func (f *Function) EntryName() string { return f.Name }

// Kind returns the entry discriminator.
func (f *Function) Kind() EntryKind { return f.Type }

// IsView reports whether the function declares itself read-only.
func (f *Function) IsView() bool { return f.StateMutability == "view" }

// StructMember is one field of a struct definition.
type StructMember struct {
	Param
	Offset int `json:"offset"`
}

// Struct declares a composite type: an ordered member list plus the
// declared flat size in field elements.
type Struct struct {
	Type    EntryKind      `json:"type"`
	Name    string         `json:"name"`
	Size    int            `json:"size"`
	Members []StructMember `json:"members"`
}

func (s *Struct) entry() {}

// EntryName returns the declared name.
func (s *Struct) EntryName() string { return s.Name }

// Kind returns the entry discriminator.
func (s *Struct) Kind() EntryKind { return s.Type }

// Event declares an event's key and data shapes.
type Event struct {
	Type EntryKind `json:"type"`
	Name string    `json:"name"`
	Keys []Param   `json:"keys"`
	Data []Param   `json:"data"`
}

func (e *Event) entry() {}

// EntryName returns the declared name.
func (e *Event) EntryName() string { return e.Name }

// Kind returns the entry discriminator.
func (e *Event) Kind() EntryKind { return e.Type }

// Entry is one parsed ABI entry. The interface is sealed: only Function,
// Struct and Event implement it.
type Entry interface {
	entry()
	EntryName() string
	Kind() EntryKind
}

// ABI is the ordered entry list of one contract, plus the verbatim JSON
// it was parsed from (kept for introspection endpoints).
type ABI struct {
	Entries []Entry

	raw []byte
}

// Parse decodes a JSON ABI. Entries with an unknown "type" discriminator
// are rejected.
func Parse(data []byte) (*ABI, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("abi: parsing entry list: %w", err)
	}

	parsed := &ABI{
		Entries: make([]Entry, 0, len(raws)),
		raw:     append([]byte(nil), data...),
	}

	for i, raw := range raws {
		var probe struct {
			Type EntryKind `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("abi: entry %d: %w", i, err)
		}

		var entry Entry
		switch probe.Type {
		case EntryFunction, EntryConstructor, EntryL1Handler:
			fn := new(Function)
			if err := json.Unmarshal(raw, fn); err != nil {
				return nil, fmt.Errorf("abi: entry %d: %w", i, err)
			}
			entry = fn
		case EntryStruct:
			st := new(Struct)
			if err := json.Unmarshal(raw, st); err != nil {
				return nil, fmt.Errorf("abi: entry %d: %w", i, err)
			}
			entry = st
		case EntryEvent:
			ev := new(Event)
			if err := json.Unmarshal(raw, ev); err != nil {
				return nil, fmt.Errorf("abi: entry %d: %w", i, err)
			}
			entry = ev
		default:
			return nil, &UnknownEntryError{Index: i, Kind: string(probe.Type)}
		}
		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use only with literals.
func MustParse(data string) *ABI {
	parsed, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Raw returns the verbatim JSON the ABI was parsed from.
func (a *ABI) Raw() []byte {
	return a.raw
}

// Functions returns the callable entries (functions and L1 handlers) in
// declaration order. The constructor is excluded: it is not selector
// addressable.
func (a *ABI) Functions() []*Function {
	var fns []*Function
	for _, entry := range a.Entries {
		if fn, ok := entry.(*Function); ok && fn.Type != EntryConstructor {
			fns = append(fns, fn)
		}
	}
	return fns
}

// Constructor returns the constructor entry, or nil when none is
// declared.
func (a *ABI) Constructor() *Function {
	for _, entry := range a.Entries {
		if fn, ok := entry.(*Function); ok && fn.Type == EntryConstructor {
			return fn
		}
	}
	return nil
}

// Structs returns the struct declarations in declaration order.
func (a *ABI) Structs() []*Struct {
	var sts []*Struct
	for _, entry := range a.Entries {
		if st, ok := entry.(*Struct); ok {
			sts = append(sts, st)
		}
	}
	return sts
}

// Events returns the event declarations in declaration order.
func (a *ABI) Events() []*Event {
	var evs []*Event
	for _, entry := range a.Entries {
		if ev, ok := entry.(*Event); ok {
			evs = append(evs, ev)
		}
	}
	return evs
}
