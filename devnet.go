// Package devnet is a local simulation gateway for a Starknet-style
// contract execution environment.
//
// A Devnet keeps a registry of deployed contracts, each bound to its
// definition (ABI plus bytecode payload) and its persistent storage. It
// does not interpret bytecode: executions are delegated to an Executor,
// and everything around them lives here:
//   - Selector resolution with a catch-all fallback entry point
//   - Calldata and output adaptation between flat felt sequences and the
//     contract's declared types
//   - The call/invoke split: ephemeral snapshots for reads, atomically
//     committed writes for invokes
//   - Account multicalls with nonce tracking and fee gating
//   - A transaction ledger with deterministic hashes
//
// # Basic Usage
//
// Wire an executor, deploy a definition, and call it:
//
//	dn := devnet.New(exec)
//
//	def, err := devnet.NewContractDefinition(abiJSON, bytecode)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, contract, err := dn.Deploy(ctx, def, felt.Slice(10), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	values, _, err := contract.Call(ctx, abi.SelectorFromName("get_balance"), nil)
//
// # Calls and Invokes
//
// A call runs against an ephemeral snapshot of the whole state: calls
// run concurrently and can never cause an externally observable change.
// An invoke runs under the devnet's invoke lock against live state with
// fee enforcement on; its writes commit atomically on success and are
// discarded entirely on failure, so a rejected transaction leaves no
// trace beyond its REJECTED ledger record.
//
// # Accounts
//
// An account contract batches calls: Execute builds the multicall
// calldata (call records plus the account's current nonce), and the
// account's execute entry point dispatches each record as an inner call.
// The multicall is atomic, and the nonce advances exactly once per
// accepted transaction.
package devnet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/branched-services/go-devnet/abi"
	"github.com/branched-services/go-devnet/felt"
)

// Domain separation prefixes for address and transaction hash
// derivation.
var (
	addressPrefix  = felt.Keccak([]byte("DEVNET_CONTRACT_ADDRESS"))
	deployTxPrefix = felt.Keccak([]byte("DEVNET_DEPLOY_TX"))
	invokeTxPrefix = felt.Keccak([]byte("DEVNET_INVOKE_TX"))
)

// Devnet is the deployed-contract registry plus everything shared
// between contracts: the executor, the storage locks, the transaction
// ledger and the logger.
type Devnet struct {
	exec Executor
	log  *zap.Logger

	mu        sync.RWMutex
	contracts map[felt.Felt]*ContractWrapper

	// stateMu guards the storage content of every contract. Readers and
	// snapshots share it; invoke commits take it exclusively, which is
	// what makes a commit atomic across contracts.
	stateMu sync.RWMutex

	// invokeMu serializes state-mutating executions end to end.
	invokeMu sync.Mutex

	ledger *txLedger
}

// New creates an empty devnet over the given executor.
func New(exec Executor, opts ...Option) *Devnet {
	d := &Devnet{
		exec:      exec,
		log:       zap.NewNop(),
		contracts: make(map[felt.Felt]*ContractWrapper),
		ledger:    newTxLedger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// lookup returns the wrapper at address. Callers holding stateMu may
// call it; the reverse order is never taken.
func (d *Devnet) lookup(address *felt.Felt) (*ContractWrapper, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.contracts[*address]
	return w, ok
}

// Contract returns the wrapper deployed at address.
func (d *Devnet) Contract(address *felt.Felt) (*ContractWrapper, error) {
	w, ok := d.lookup(address)
	if !ok {
		return nil, &ContractNotFoundError{Address: address.Clone()}
	}
	return w, nil
}

// snapshotAll copies every contract's storage and code registry into an
// ephemeral view. The copy is taken under the state read lock, so it is
// consistent: it never observes half of a commit.
func (d *Devnet) snapshotAll() *snapshotView {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	d.mu.RLock()
	defer d.mu.RUnlock()

	view := &snapshotView{
		storage: make(map[felt.Felt]map[felt.Felt]*felt.Felt, len(d.contracts)),
		code:    make(map[felt.Felt][]*felt.Felt, len(d.contracts)),
	}
	for addr, w := range d.contracts {
		view.storage[addr] = w.state.snapshot()
		view.code[addr] = w.def.Bytecode()
	}
	return view
}

// DeriveAddress computes the deterministic deployment address for a
// class, salt and constructor calldata.
func DeriveAddress(classHash, salt *felt.Felt, constructorCalldata []*felt.Felt) *felt.Felt {
	if salt == nil {
		salt = felt.Zero()
	}
	return felt.KeccakOf(addressPrefix, classHash, salt, felt.KeccakOf(constructorCalldata...))
}

func deployTxHash(address, classHash *felt.Felt, calldata []*felt.Felt, seq uint64) *felt.Felt {
	return felt.KeccakOf(deployTxPrefix, address, classHash, felt.KeccakOf(calldata...), felt.New(seq))
}

func invokeTxHash(address, selector *felt.Felt, calldata []*felt.Felt, seq uint64) *felt.Felt {
	return felt.KeccakOf(invokeTxPrefix, address, selector, felt.KeccakOf(calldata...), felt.New(seq))
}

// Deploy registers the definition at its derived address and runs the
// constructor, when one is declared, against the new persistent state.
// Deployments are not fee gated.
//
// On constructor failure the registration is rolled back and the
// returned record carries status REJECTED alongside the error. An
// occupied address fails with ErrAlreadyDeployed before any record is
// written.
func (d *Devnet) Deploy(ctx context.Context, def *ContractDefinition, constructorCalldata []*felt.Felt, salt *felt.Felt, opts ...CallOption) (*TransactionRecord, *ContractWrapper, error) {
	ctor := def.ABI().Constructor()
	if ctor == nil && len(constructorCalldata) > 0 {
		return nil, nil, ErrNoConstructor
	}

	address := DeriveAddress(def.ClassHash(), salt, constructorCalldata)

	d.invokeMu.Lock()
	defer d.invokeMu.Unlock()

	d.mu.Lock()
	if _, ok := d.contracts[*address]; ok {
		d.mu.Unlock()
		return nil, nil, ErrAlreadyDeployed
	}
	w := newContractWrapper(d, address, def)
	d.contracts[*address] = w
	d.mu.Unlock()

	seq := d.ledger.reserve()
	rec := &TransactionRecord{
		Hash:     deployTxHash(address, def.ClassHash(), constructorCalldata, seq),
		Index:    seq,
		Type:     TxDeploy,
		Contract: address.Clone(),
		Calldata: felt.CloneSlice(constructorCalldata),
		MaxFee:   felt.Zero(),
		Time:     time.Now(),
	}

	if ctor != nil {
		cfg := newCallConfig(opts)
		req := &ExecutionRequest{
			Contract:   address.Clone(),
			Selector:   abi.SelectorFromName(abi.ConstructorEntryPointName),
			Calldata:   felt.CloneSlice(constructorCalldata),
			Caller:     cfg.caller,
			Signature:  cfg.signature,
			MaxFee:     felt.Zero(),
			EnforceFee: false,
		}
		info, err := d.exec.Execute(ctx, &persistentView{d: d}, req)
		if err != nil {
			d.mu.Lock()
			delete(d.contracts, *address)
			d.mu.Unlock()

			rec.Status = StatusRejected
			rec.FailureReason = err.Error()
			d.ledger.append(rec)
			d.log.Warn("deploy rejected",
				zap.String("address", address.Hex()),
				zap.Error(err))
			return rec, nil, &ExecutionError{Contract: address.Clone(), Selector: req.Selector, Err: err}
		}
		rec.Info = info
	}

	rec.Status = StatusAcceptedOnL2
	d.ledger.append(rec)
	d.log.Info("contract deployed",
		zap.String("address", address.Hex()),
		zap.String("class_hash", def.ClassHash().Hex()),
		zap.String("tx", rec.Hash.Hex()))
	return rec, w, nil
}

// Call runs an entry point against an ephemeral snapshot. Calls are not
// transactions: nothing is recorded.
func (d *Devnet) Call(ctx context.Context, address, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) ([]abi.Value, *ExecutionInfo, error) {
	w, ok := d.lookup(address)
	if !ok {
		return nil, nil, &ContractNotFoundError{Address: address.Clone()}
	}
	return w.Call(ctx, selector, calldata, opts...)
}

// Invoke submits an invoke transaction. After the contract lookup
// succeeds every outcome is recorded: the returned record is non-nil
// with status ACCEPTED_ON_L2 or REJECTED, and on rejection the error
// explains why while state and nonces stay untouched.
//
// The ledger status tracks state, not the returned error: when the
// execution commits but its retdata cannot be adapted through the
// declared outputs, the writes are already live, so the record reads
// ACCEPTED_ON_L2 and the adaptation error is returned alongside it.
func (d *Devnet) Invoke(ctx context.Context, address, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) (*TransactionRecord, error) {
	w, ok := d.lookup(address)
	if !ok {
		return nil, &ContractNotFoundError{Address: address.Clone()}
	}

	cfg := newCallConfig(opts)
	seq := d.ledger.reserve()
	rec := &TransactionRecord{
		Hash:      invokeTxHash(address, selector, calldata, seq),
		Index:     seq,
		Type:      TxInvoke,
		Contract:  address.Clone(),
		Selector:  selector.Clone(),
		Calldata:  felt.CloneSlice(calldata),
		MaxFee:    cfg.maxFee.Clone(),
		Signature: felt.CloneSlice(cfg.signature),
		Time:      time.Now(),
	}

	_, info, err := w.CallOrInvoke(ctx, ChoiceInvoke, selector, calldata, opts...)
	if info == nil {
		// Nothing committed: resolution or execution failed.
		rec.Status = StatusRejected
		rec.FailureReason = err.Error()
		d.ledger.append(rec)
		d.log.Warn("invoke rejected",
			zap.String("tx", rec.Hash.Hex()),
			zap.String("contract", address.Hex()),
			zap.Error(err))
		return rec, err
	}

	// The execution committed. A non-nil err here means only the output
	// adaptation failed, after the writes went live; REJECTED would lie
	// about state.
	rec.Status = StatusAcceptedOnL2
	rec.Info = info
	if err != nil {
		rec.FailureReason = err.Error()
	}
	d.ledger.append(rec)
	if err != nil {
		d.log.Warn("invoke accepted with unadaptable retdata",
			zap.String("tx", rec.Hash.Hex()),
			zap.String("contract", address.Hex()),
			zap.Error(err))
		return rec, err
	}
	d.log.Info("invoke accepted",
		zap.String("tx", rec.Hash.Hex()),
		zap.String("contract", address.Hex()),
		zap.String("fee", info.ActualFee.Dec()))
	return rec, nil
}

// EstimateFee returns the fee an invoke of the entry point would charge,
// without touching persistent state or recording a transaction.
func (d *Devnet) EstimateFee(ctx context.Context, address, selector *felt.Felt, calldata []*felt.Felt, opts ...CallOption) (*felt.Felt, error) {
	w, ok := d.lookup(address)
	if !ok {
		return nil, &ContractNotFoundError{Address: address.Clone()}
	}
	fee, _, err := w.EstimateFee(ctx, selector, calldata, opts...)
	return fee, err
}
