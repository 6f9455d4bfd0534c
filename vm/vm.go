// Package vm is the reference executor for go-devnet: a native-class
// machine implementing devnet.Executor.
//
// The machine does not interpret bytecode. A deployed contract's first
// program word is a class marker, and the machine maps markers to
// registered native classes: collections of Go handlers keyed by entry
// point selector. Handlers run against a journaled overlay of the state
// view they were given, so an execution's writes commit atomically on
// success and vanish entirely on failure. Every execution is metered
// (steps, storage reads and writes, inner calls) and charged a
// deterministic fee; when the request asks for enforcement, a fee above
// the declared maximum rejects the execution with nothing applied.
//
// The builtin account class ships with every machine: it stores a public
// key and a nonce, and its execute entry point dispatches a multicall
// after checking the carried nonce against the stored one.
package vm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	devnet "github.com/branched-services/go-devnet"
	"github.com/branched-services/go-devnet/felt"
)

// Config is the machine's gas schedule: a flat price per metered unit.
// Fees come out as GasPrice * (BaseGas + StepGas*steps + ReadGas*reads +
// WriteGas*writes + CallGas*innerCalls).
type Config struct {
	// GasPrice scales the whole fee. Zero is legal and makes every fee
	// zero.
	GasPrice uint64

	// BaseGas is charged once per execution, so any enforced execution
	// with a positive gas price costs something.
	BaseGas uint64

	StepGas  uint64
	ReadGas  uint64
	WriteGas uint64
	CallGas  uint64

	// MaxDepth bounds the inner call chain.
	MaxDepth int
}

// DefaultConfig returns the default gas schedule.
func DefaultConfig() Config {
	return Config{
		GasPrice: 100,
		BaseGas:  500,
		StepGas:  1,
		ReadGas:  20,
		WriteGas: 50,
		CallGas:  100,
		MaxDepth: 16,
	}
}

// frameSteps is the step cost of entering a call frame, before the
// per-calldata-felt cost.
const frameSteps = 10

// Option configures a Machine.
type Option func(*Machine)

// WithConfig replaces the default gas schedule.
func WithConfig(cfg Config) Option {
	return func(m *Machine) {
		m.cfg = cfg
	}
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// Machine executes native classes against devnet state views. It is safe
// for concurrent use; the devnet's own locking decides which executions
// may overlap.
type Machine struct {
	cfg Config
	log *zap.Logger

	mu      sync.RWMutex
	classes map[felt.Felt]*Class
}

// New returns a machine with the builtin account class registered.
func New(opts ...Option) *Machine {
	m := &Machine{
		cfg:     DefaultConfig(),
		log:     zap.NewNop(),
		classes: make(map[felt.Felt]*Class),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Register(AccountClass()); err != nil {
		panic(err) // fresh class map, unreachable
	}
	return m
}

// Register installs a native class under its marker.
func (m *Machine) Register(class *Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker := class.Marker()
	if existing, ok := m.classes[*marker]; ok {
		return &ClassCollisionError{Name: class.Name(), Existing: existing.Name()}
	}
	m.classes[*marker] = class
	m.log.Debug("class registered", zap.String("class", class.Name()))
	return nil
}

// classOf resolves a deployed bytecode payload to its class via the
// marker word.
func (m *Machine) classOf(code []*felt.Felt) (*Class, bool) {
	if len(code) == 0 {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	class, ok := m.classes[*code[0]]
	return class, ok
}

// Execute implements devnet.Executor. The request's writes land in a
// private overlay first; only after the execution succeeds and, when
// enforcement is on, the fee clears the declared maximum, is the whole
// overlay applied to the view in one batch.
func (m *Machine) Execute(ctx context.Context, view devnet.StateView, req *devnet.ExecutionRequest) (*devnet.ExecutionInfo, error) {
	r := &run{
		m:       m,
		view:    view,
		overlay: make(map[felt.Felt]map[felt.Felt]*felt.Felt),
	}

	root, err := r.call(ctx, req.Caller, req.Contract, req.Selector, req.Calldata, 0)
	if err != nil {
		return nil, err
	}

	fee := m.fee(r.res)
	if req.EnforceFee {
		maxFee := req.MaxFee
		if maxFee == nil {
			maxFee = felt.Zero()
		}
		if fee.Gt(maxFee) {
			return nil, &devnet.FeeExceededError{ActualFee: fee, MaxFee: maxFee.Clone()}
		}
	}

	if err := view.Apply(r.writes); err != nil {
		return nil, err
	}

	return &devnet.ExecutionInfo{
		Call:      root,
		ActualFee: fee,
		Resources: r.res,
	}, nil
}

// fee prices a metered trace under the machine's gas schedule.
func (m *Machine) fee(res devnet.ExecutionResources) *felt.Felt {
	gas := m.cfg.BaseGas +
		m.cfg.StepGas*res.Steps +
		m.cfg.ReadGas*res.StorageReads +
		m.cfg.WriteGas*res.StorageWrites +
		m.cfg.CallGas*res.InnerCalls
	return new(felt.Felt).Mul(felt.New(m.cfg.GasPrice), felt.New(gas))
}

// run is one execution: the journal overlay spanning every touched
// contract, the ordered write log it commits from, and the meter.
type run struct {
	m    *Machine
	view devnet.StateView

	overlay map[felt.Felt]map[felt.Felt]*felt.Felt
	writes  []devnet.StorageWrite
	res     devnet.ExecutionResources
}

// call runs one frame: class lookup through the deployed marker,
// handler dispatch with the class's own catch-all fallback, and the
// CallInfo bookkeeping around the handler.
func (r *run) call(ctx context.Context, caller, contract, selector *felt.Felt, calldata []*felt.Felt, depth int) (*devnet.CallInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > r.m.cfg.MaxDepth {
		return nil, &CallDepthError{Depth: depth, Max: r.m.cfg.MaxDepth}
	}

	code, ok := r.view.Bytecode(contract)
	if !ok {
		return nil, &devnet.ContractNotFoundError{Address: contract.Clone()}
	}
	class, ok := r.m.classOf(code)
	if !ok {
		return nil, &UnknownClassError{Contract: contract.Clone()}
	}
	handler, ok := class.handlerFor(selector)
	if !ok {
		return nil, &EntryPointError{Class: class.Name(), Selector: selector.Clone()}
	}

	info := &devnet.CallInfo{
		Contract: contract.Clone(),
		Selector: selector.Clone(),
		Caller:   caller.Clone(),
		Calldata: felt.CloneSlice(calldata),
	}
	r.res.Steps += frameSteps + uint64(len(calldata))

	env := &CallEnv{ctx: ctx, run: r, info: info, depth: depth}
	ret, err := handler(env)
	if err != nil {
		return nil, err
	}
	info.Retdata = felt.CloneSlice(ret)
	return info, nil
}

// read returns the journaled value under (contract, key): the overlay
// when written this execution, the view otherwise.
func (r *run) read(contract, key *felt.Felt) *felt.Felt {
	r.res.StorageReads++
	if pending, ok := r.overlay[*contract]; ok {
		if v, ok := pending[*key]; ok {
			return v.Clone()
		}
	}
	return r.view.Read(contract, key)
}

// write journals a storage mutation. Nothing reaches the view until the
// whole execution commits.
func (r *run) write(contract, key, value *felt.Felt) {
	r.res.StorageWrites++
	pending, ok := r.overlay[*contract]
	if !ok {
		pending = make(map[felt.Felt]*felt.Felt)
		r.overlay[*contract] = pending
	}
	pending[*key] = value.Clone()
	r.writes = append(r.writes, devnet.StorageWrite{
		Contract: contract.Clone(),
		Key:      key.Clone(),
		Value:    value.Clone(),
	})
}
