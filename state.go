package devnet

import (
	"github.com/branched-services/go-devnet/felt"
)

// ContractState is one contract's persistent storage: a felt keyed,
// felt valued map. Unset keys read as zero.
//
// ContractState does no locking of its own. All access is coordinated by
// the owning Devnet: reads under its state read lock, writes only while
// an invoke commit holds the state write lock.
type ContractState struct {
	storage map[felt.Felt]*felt.Felt
}

// NewContractState returns an empty storage map.
func NewContractState() *ContractState {
	return &ContractState{storage: make(map[felt.Felt]*felt.Felt)}
}

// Read returns the value under key, zero when unset. The returned felt
// is a copy.
func (s *ContractState) Read(key *felt.Felt) *felt.Felt {
	if v, ok := s.storage[*key]; ok {
		return v.Clone()
	}
	return felt.Zero()
}

// Write stores value under key. A zero value is stored, not deleted:
// explicit zeroes and unset keys read the same but dump differently.
func (s *ContractState) Write(key, value *felt.Felt) {
	s.storage[*key] = value.Clone()
}

// Len returns the number of set keys.
func (s *ContractState) Len() int {
	return len(s.storage)
}

// snapshot returns an independent copy of the storage map.
func (s *ContractState) snapshot() map[felt.Felt]*felt.Felt {
	out := make(map[felt.Felt]*felt.Felt, len(s.storage))
	for k, v := range s.storage {
		out[k] = v.Clone()
	}
	return out
}

// StorageWrite is one pending storage mutation.
type StorageWrite struct {
	Contract *felt.Felt
	Key      *felt.Felt
	Value    *felt.Felt
}

// StateView is what an executor sees of the world: storage reads across
// every deployed contract, code lookup for inner call dispatch, and a
// single atomic write path.
//
// A persistent view reads and commits live state. An ephemeral view is a
// snapshot taken at construction: it observes no later commits, and
// writes applied to it are never visible outside the execution that
// holds it.
type StateView interface {
	// Read returns the storage value under key at contract, zero when
	// unset or when the contract is unknown.
	Read(contract, key *felt.Felt) *felt.Felt

	// Bytecode returns the program words deployed at contract.
	Bytecode(contract *felt.Felt) ([]*felt.Felt, bool)

	// Persistent reports whether commits through this view become
	// externally observable.
	Persistent() bool

	// Apply commits a write batch atomically. On a persistent view all
	// writes land under one state lock acquisition or the batch fails as
	// a whole; on an ephemeral view they land in the private snapshot.
	Apply(writes []StorageWrite) error
}

// persistentView reads and commits the devnet's live state.
type persistentView struct {
	d *Devnet
}

func (v *persistentView) Read(contract, key *felt.Felt) *felt.Felt {
	v.d.stateMu.RLock()
	defer v.d.stateMu.RUnlock()

	w, ok := v.d.lookup(contract)
	if !ok {
		return felt.Zero()
	}
	return w.state.Read(key)
}

func (v *persistentView) Bytecode(contract *felt.Felt) ([]*felt.Felt, bool) {
	w, ok := v.d.lookup(contract)
	if !ok {
		return nil, false
	}
	return w.def.Bytecode(), true
}

func (v *persistentView) Persistent() bool { return true }

func (v *persistentView) Apply(writes []StorageWrite) error {
	v.d.stateMu.Lock()
	defer v.d.stateMu.Unlock()

	for _, wr := range writes {
		if _, ok := v.d.lookup(wr.Contract); !ok {
			return &ContractNotFoundError{Address: wr.Contract.Clone()}
		}
	}
	for _, wr := range writes {
		w, _ := v.d.lookup(wr.Contract)
		w.state.Write(wr.Key, wr.Value)
	}
	return nil
}

// snapshotView is a point-in-time copy of every contract's storage plus
// the code registry. It is private to one execution.
type snapshotView struct {
	storage map[felt.Felt]map[felt.Felt]*felt.Felt
	code    map[felt.Felt][]*felt.Felt
}

func (v *snapshotView) Read(contract, key *felt.Felt) *felt.Felt {
	if m, ok := v.storage[*contract]; ok {
		if val, ok := m[*key]; ok {
			return val.Clone()
		}
	}
	return felt.Zero()
}

func (v *snapshotView) Bytecode(contract *felt.Felt) ([]*felt.Felt, bool) {
	code, ok := v.code[*contract]
	return code, ok
}

func (v *snapshotView) Persistent() bool { return false }

func (v *snapshotView) Apply(writes []StorageWrite) error {
	for _, wr := range writes {
		if _, ok := v.code[*wr.Contract]; !ok {
			return &ContractNotFoundError{Address: wr.Contract.Clone()}
		}
		m, ok := v.storage[*wr.Contract]
		if !ok {
			m = make(map[felt.Felt]*felt.Felt)
			v.storage[*wr.Contract] = m
		}
		m[*wr.Key] = wr.Value.Clone()
	}
	return nil
}
