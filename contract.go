package devnet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/branched-services/go-devnet/abi"
	"github.com/branched-services/go-devnet/felt"
)

// ContractDefinition is the immutable deployable unit: a parsed ABI, the
// verbatim ABI JSON it came from, and the bytecode payload. Definitions
// are shared between deployments; nothing in them is per-instance.
type ContractDefinition struct {
	abi       *abi.ABI
	bytecode  []*felt.Felt
	classHash *felt.Felt
}

// NewContractDefinition parses the ABI JSON and binds it to the bytecode
// payload. The class hash is derived once, over the program words and
// the raw ABI.
func NewContractDefinition(abiJSON []byte, bytecode []*felt.Felt) (*ContractDefinition, error) {
	parsed, err := abi.Parse(abiJSON)
	if err != nil {
		return nil, err
	}
	if len(bytecode) == 0 {
		return nil, ErrEmptyBytecode
	}

	words := felt.CloneSlice(bytecode)
	hashInput := make([]*felt.Felt, 0, len(words)+1)
	hashInput = append(hashInput, words...)
	hashInput = append(hashInput, felt.Keccak(parsed.Raw()))

	return &ContractDefinition{
		abi:       parsed,
		bytecode:  words,
		classHash: felt.KeccakOf(hashInput...),
	}, nil
}

// MustContractDefinition is like NewContractDefinition but panics on
// error. Use only with literals.
func MustContractDefinition(abiJSON string, bytecode ...*felt.Felt) *ContractDefinition {
	def, err := NewContractDefinition([]byte(abiJSON), bytecode)
	if err != nil {
		panic(err)
	}
	return def
}

// ABI returns the parsed ABI.
func (d *ContractDefinition) ABI() *abi.ABI {
	return d.abi
}

// RawABI returns the verbatim ABI JSON.
func (d *ContractDefinition) RawABI() []byte {
	return d.abi.Raw()
}

// Bytecode returns the program words. Callers must not modify the
// returned slice.
func (d *ContractDefinition) Bytecode() []*felt.Felt {
	return d.bytecode
}

// ClassHash returns the definition's derived class hash.
func (d *ContractDefinition) ClassHash() *felt.Felt {
	return d.classHash.Clone()
}

// ContractWrapper binds one deployed address to its definition, its
// persistent storage and the devnet's executor. It resolves selectors,
// builds execution requests, and adapts raw retdata back into structured
// values.
type ContractWrapper struct {
	d       *Devnet
	address *felt.Felt
	def     *ContractDefinition
	state   *ContractState
	table   *abi.SelectorTable
	catalog *abi.TypeCatalog
}

func newContractWrapper(d *Devnet, address *felt.Felt, def *ContractDefinition) *ContractWrapper {
	catalog, duplicates := abi.ExtractTypes(def.ABI())
	for _, name := range duplicates {
		d.log.Warn("duplicate struct declaration in contract abi, later one wins",
			zap.String("struct", name),
			zap.String("contract", address.Hex()))
	}
	return &ContractWrapper{
		d:       d,
		address: address.Clone(),
		def:     def,
		state:   NewContractState(),
		table:   abi.ExtractFunctions(def.ABI()),
		catalog: catalog,
	}
}

// Address returns the deployed address.
func (w *ContractWrapper) Address() *felt.Felt {
	return w.address.Clone()
}

// Definition returns the contract's definition.
func (w *ContractWrapper) Definition() *ContractDefinition {
	return w.def
}

// HasEntryPoint reports whether the contract declares a function with
// the given name.
func (w *ContractWrapper) HasEntryPoint(name string) bool {
	_, ok := w.table.ByName(name)
	return ok
}

// resolve maps a selector to its function entry, falling back to the
// catch-all entry point. An unresolvable selector never reaches the
// executor.
func (w *ContractWrapper) resolve(selector *felt.Felt) (*abi.Function, *felt.Felt, error) {
	fn, resolved, ok := w.table.Resolve(selector)
	if !ok {
		return nil, nil, &IllegalSelectorError{Selector: selector.Clone()}
	}
	return fn, resolved, nil
}

// CallOrInvoke runs the entry point addressed by selector with the given
// flat calldata.
//
// ChoiceCall executes against an ephemeral snapshot: concurrent calls
// run in parallel and nothing they do is externally observable.
// ChoiceInvoke executes against live state under the devnet's invoke
// lock with fee enforcement on: its writes commit atomically on success
// and are discarded entirely on failure.
//
// The raw retdata is adapted through the contract's declared outputs;
// the full ExecutionInfo is returned alongside for fee and trace
// consumers. Executor failures come back wrapped in ExecutionError with
// state guaranteed untouched. An adaptation failure on the output side
// is different: the execution already committed, so the error is
// returned together with the non-nil ExecutionInfo.
func (w *ContractWrapper) CallOrInvoke(ctx context.Context, choice Choice, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) ([]abi.Value, *ExecutionInfo, error) {
	if !choice.valid() {
		return nil, nil, fmt.Errorf("devnet: unknown choice %d", choice)
	}

	fn, resolved, err := w.resolve(selector)
	if err != nil {
		return nil, nil, err
	}

	cfg := newCallConfig(opts)
	req := &ExecutionRequest{
		Contract:   w.address.Clone(),
		Selector:   resolved,
		Calldata:   felt.CloneSlice(calldata),
		Caller:     cfg.caller,
		Signature:  cfg.signature,
		MaxFee:     cfg.maxFee,
		EnforceFee: choice == ChoiceInvoke,
	}

	var view StateView
	if choice == ChoiceInvoke {
		w.d.invokeMu.Lock()
		defer w.d.invokeMu.Unlock()
		view = &persistentView{d: w.d}
	} else {
		view = w.d.snapshotAll()
	}

	info, err := w.d.exec.Execute(ctx, view, req)
	if err != nil {
		return nil, nil, &ExecutionError{Contract: w.address.Clone(), Selector: resolved.Clone(), Err: err}
	}

	adapted, err := abi.AdaptOutput(info.Call.Retdata, fn.Outputs, w.catalog)
	if err != nil {
		return nil, info, err
	}
	return adapted, info, nil
}

// Call runs the entry point against an ephemeral snapshot.
func (w *ContractWrapper) Call(ctx context.Context, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) ([]abi.Value, *ExecutionInfo, error) {
	return w.CallOrInvoke(ctx, ChoiceCall, selector, calldata, opts...)
}

// Invoke runs the entry point against live persistent state.
func (w *ContractWrapper) Invoke(ctx context.Context, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) ([]abi.Value, *ExecutionInfo, error) {
	return w.CallOrInvoke(ctx, ChoiceInvoke, selector, calldata, opts...)
}

// EstimateFee runs the same resolution and dispatch as an invoke against
// an ephemeral snapshot with fee enforcement off, and returns the fee
// the execution would charge. Persistent state is never touched.
func (w *ContractWrapper) EstimateFee(ctx context.Context, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) (*felt.Felt, *ExecutionInfo, error) {
	_, resolved, err := w.resolve(selector)
	if err != nil {
		return nil, nil, err
	}

	cfg := newCallConfig(opts)
	req := &ExecutionRequest{
		Contract:   w.address.Clone(),
		Selector:   resolved,
		Calldata:   felt.CloneSlice(calldata),
		Caller:     cfg.caller,
		Signature:  cfg.signature,
		MaxFee:     cfg.maxFee,
		EnforceFee: false,
	}

	info, err := w.d.exec.Execute(ctx, w.d.snapshotAll(), req)
	if err != nil {
		return nil, nil, &ExecutionError{Contract: w.address.Clone(), Selector: resolved.Clone(), Err: err}
	}
	return info.ActualFee.Clone(), info, nil
}
