package devnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/branched-services/go-devnet/abi"
	"github.com/branched-services/go-devnet/felt"
)

const counterABI = `[
	{"type": "constructor", "name": "constructor", "inputs": [{"name": "initial", "type": "felt"}], "outputs": []},
	{"type": "function", "name": "get_value", "inputs": [], "outputs": [{"name": "value", "type": "felt"}], "stateMutability": "view"},
	{"type": "function", "name": "set_value", "inputs": [{"name": "value", "type": "felt"}], "outputs": []},
	{"type": "function", "name": "fail", "inputs": [], "outputs": []},
	{"type": "function", "name": "sneaky_write", "inputs": [], "outputs": []}
]`

const plainABI = `[
	{"type": "function", "name": "ping", "inputs": [], "outputs": []}
]`

// valueKey is the storage slot the stub handlers keep the counter in.
var valueKey = felt.New(7)

type stubHandler func(view StateView, req *ExecutionRequest) (*ExecutionInfo, error)

// stubExecutor scripts executions per selector and records every request
// it sees.
type stubExecutor struct {
	mu       sync.Mutex
	handlers map[felt.Felt]stubHandler
	requests []*ExecutionRequest
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{handlers: make(map[felt.Felt]stubHandler)}
}

func (s *stubExecutor) handle(name string, fn stubHandler) {
	s.handlers[*abi.SelectorFromName(name)] = fn
}

func (s *stubExecutor) seen() []*ExecutionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ExecutionRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *stubExecutor) last(t *testing.T) *ExecutionRequest {
	t.Helper()
	reqs := s.seen()
	if len(reqs) == 0 {
		t.Fatal("Expected the executor to have been reached")
	}
	return reqs[len(reqs)-1]
}

func (s *stubExecutor) Execute(_ context.Context, view StateView, req *ExecutionRequest) (*ExecutionInfo, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.handlers[*req.Selector]
	s.mu.Unlock()

	if fn != nil {
		return fn(view, req)
	}
	return okInfo(req, nil), nil
}

// okInfo builds a successful ExecutionInfo with the given retdata and a
// zero fee.
func okInfo(req *ExecutionRequest, retdata []*felt.Felt) *ExecutionInfo {
	return &ExecutionInfo{
		Call: &CallInfo{
			Contract: req.Contract,
			Selector: req.Selector,
			Caller:   req.Caller,
			Calldata: req.Calldata,
			Retdata:  retdata,
		},
		ActualFee: felt.Zero(),
		Resources: ExecutionResources{Steps: 1},
	}
}

// counterExecutor wires the counterABI semantics: the constructor seeds
// the value slot, get_value reads it, set_value writes it through the
// view, fail always errors, sneaky_write writes without permission.
func counterExecutor() *stubExecutor {
	exec := newStubExecutor()
	exec.handle(abi.ConstructorEntryPointName, func(view StateView, req *ExecutionRequest) (*ExecutionInfo, error) {
		if len(req.Calldata) != 1 {
			return nil, fmt.Errorf("constructor wants one argument, got %d", len(req.Calldata))
		}
		err := view.Apply([]StorageWrite{{Contract: req.Contract, Key: valueKey, Value: req.Calldata[0]}})
		if err != nil {
			return nil, err
		}
		return okInfo(req, nil), nil
	})
	exec.handle("get_value", func(view StateView, req *ExecutionRequest) (*ExecutionInfo, error) {
		return okInfo(req, []*felt.Felt{view.Read(req.Contract, valueKey)}), nil
	})
	exec.handle("set_value", func(view StateView, req *ExecutionRequest) (*ExecutionInfo, error) {
		if len(req.Calldata) != 1 {
			return nil, fmt.Errorf("set_value wants one argument, got %d", len(req.Calldata))
		}
		err := view.Apply([]StorageWrite{{Contract: req.Contract, Key: valueKey, Value: req.Calldata[0]}})
		if err != nil {
			return nil, err
		}
		return okInfo(req, nil), nil
	})
	exec.handle("fail", func(view StateView, req *ExecutionRequest) (*ExecutionInfo, error) {
		return nil, errors.New("scripted failure")
	})
	exec.handle("sneaky_write", func(view StateView, req *ExecutionRequest) (*ExecutionInfo, error) {
		err := view.Apply([]StorageWrite{{Contract: req.Contract, Key: valueKey, Value: felt.New(666)}})
		if err != nil {
			return nil, err
		}
		return okInfo(req, nil), nil
	})
	return exec
}

func deployCounter(t *testing.T, d *Devnet, initial uint64) *ContractWrapper {
	t.Helper()
	def := MustContractDefinition(counterABI, felt.New(100))
	_, w, err := d.Deploy(context.Background(), def, felt.Slice(initial), felt.New(initial))
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	return w
}

func readCounter(t *testing.T, w *ContractWrapper) uint64 {
	t.Helper()
	values, _, err := w.Call(context.Background(), abi.SelectorFromName("get_value"), nil)
	if err != nil {
		t.Fatalf("get_value failed: %v", err)
	}
	fv, ok := values[0].(abi.FeltValue)
	if !ok {
		t.Fatalf("Expected FeltValue, got %T", values[0])
	}
	return fv.Felt.Uint64()
}

func TestDeploy(t *testing.T) {
	t.Run("registers and runs the constructor", func(t *testing.T) {
		d := New(counterExecutor())
		def := MustContractDefinition(counterABI, felt.New(100))

		rec, w, err := d.Deploy(context.Background(), def, felt.Slice(42), felt.New(1))
		if err != nil {
			t.Fatalf("Deploy failed: %v", err)
		}
		if rec.Type != TxDeploy || rec.Status != StatusAcceptedOnL2 {
			t.Errorf("Expected an accepted DEPLOY record, got %s %s", rec.Type, rec.Status)
		}
		want := DeriveAddress(def.ClassHash(), felt.New(1), felt.Slice(42))
		if !w.Address().Eq(want) {
			t.Errorf("Expected address %s, got %s", want.Hex(), w.Address().Hex())
		}
		if got := readCounter(t, w); got != 42 {
			t.Errorf("Expected constructor to seed 42, got %d", got)
		}
		if _, err := d.Contract(w.Address()); err != nil {
			t.Errorf("Expected the contract to be registered: %v", err)
		}
		if got := d.TransactionStatus(rec.Hash); got != StatusAcceptedOnL2 {
			t.Errorf("Expected ACCEPTED_ON_L2, got %s", got)
		}
	})

	t.Run("address collision", func(t *testing.T) {
		d := New(counterExecutor())
		def := MustContractDefinition(counterABI, felt.New(100))
		if _, _, err := d.Deploy(context.Background(), def, felt.Slice(1), felt.New(9)); err != nil {
			t.Fatalf("first Deploy failed: %v", err)
		}
		_, _, err := d.Deploy(context.Background(), def, felt.Slice(1), felt.New(9))
		if !errors.Is(err, ErrAlreadyDeployed) {
			t.Errorf("Expected ErrAlreadyDeployed, got %v", err)
		}
	})

	t.Run("different salts give different addresses", func(t *testing.T) {
		d := New(counterExecutor())
		def := MustContractDefinition(counterABI, felt.New(100))
		_, w1, err := d.Deploy(context.Background(), def, felt.Slice(1), felt.New(1))
		if err != nil {
			t.Fatalf("Deploy failed: %v", err)
		}
		_, w2, err := d.Deploy(context.Background(), def, felt.Slice(1), felt.New(2))
		if err != nil {
			t.Fatalf("Deploy failed: %v", err)
		}
		if w1.Address().Eq(w2.Address()) {
			t.Error("Expected distinct addresses for distinct salts")
		}
	})

	t.Run("constructor failure rolls back", func(t *testing.T) {
		d := New(counterExecutor())
		def := MustContractDefinition(counterABI, felt.New(100))

		rec, w, err := d.Deploy(context.Background(), def, felt.Slice(1, 2), felt.New(3))
		if err == nil {
			t.Fatal("Expected the two-argument constructor to fail")
		}
		if w != nil {
			t.Error("Expected no wrapper on a rejected deploy")
		}
		if rec == nil || rec.Status != StatusRejected {
			t.Fatalf("Expected a REJECTED record, got %+v", rec)
		}
		if rec.FailureReason == "" {
			t.Error("Expected a failure reason on the record")
		}
		address := DeriveAddress(def.ClassHash(), felt.New(3), felt.Slice(1, 2))
		var notFound *ContractNotFoundError
		if _, err := d.Contract(address); !errors.As(err, &notFound) {
			t.Errorf("Expected the registration to be rolled back, got %v", err)
		}
	})

	t.Run("calldata without a constructor", func(t *testing.T) {
		d := New(newStubExecutor())
		def := MustContractDefinition(plainABI, felt.New(100))
		_, _, err := d.Deploy(context.Background(), def, felt.Slice(1), nil)
		if !errors.Is(err, ErrNoConstructor) {
			t.Errorf("Expected ErrNoConstructor, got %v", err)
		}
	})

	t.Run("no constructor and no calldata", func(t *testing.T) {
		d := New(newStubExecutor())
		def := MustContractDefinition(plainABI, felt.New(100))
		rec, w, err := d.Deploy(context.Background(), def, nil, nil)
		if err != nil {
			t.Fatalf("Deploy failed: %v", err)
		}
		if rec.Status != StatusAcceptedOnL2 || w == nil {
			t.Errorf("Expected an accepted deploy, got %s", rec.Status)
		}
	})
}

func TestInvoke(t *testing.T) {
	t.Run("commits and records", func(t *testing.T) {
		exec := counterExecutor()
		d := New(exec)
		w := deployCounter(t, d, 10)

		rec, err := d.Invoke(context.Background(), w.Address(), abi.SelectorFromName("set_value"), felt.Slice(55))
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if rec.Status != StatusAcceptedOnL2 || rec.Type != TxInvoke {
			t.Errorf("Expected an accepted INVOKE_FUNCTION record, got %s %s", rec.Type, rec.Status)
		}
		if rec.Info == nil {
			t.Error("Expected execution info on an accepted record")
		}
		if got := readCounter(t, w); got != 55 {
			t.Errorf("Expected 55 after the invoke, got %d", got)
		}
		got, err := d.Transaction(rec.Hash)
		if err != nil {
			t.Fatalf("Transaction lookup failed: %v", err)
		}
		if got != rec {
			t.Error("Expected the ledger to return the same record")
		}
	})

	t.Run("rejection leaves no trace but the record", func(t *testing.T) {
		exec := counterExecutor()
		d := New(exec)
		w := deployCounter(t, d, 10)

		rec, err := d.Invoke(context.Background(), w.Address(), abi.SelectorFromName("fail"), nil)
		if err == nil {
			t.Fatal("Expected the scripted failure to surface")
		}
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Fatalf("Expected ExecutionError, got %v", err)
		}
		if rec == nil || rec.Status != StatusRejected {
			t.Fatalf("Expected a REJECTED record, got %+v", rec)
		}
		if rec.FailureReason == "" {
			t.Error("Expected a failure reason")
		}
		if got := readCounter(t, w); got != 10 {
			t.Errorf("Expected the value untouched at 10, got %d", got)
		}
	})

	t.Run("unknown contract", func(t *testing.T) {
		d := New(newStubExecutor())
		_, err := d.Invoke(context.Background(), felt.New(404), abi.SelectorFromName("ping"), nil)
		var notFound *ContractNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("Expected ContractNotFoundError, got %v", err)
		}
		if got := len(d.Transactions()); got != 0 {
			t.Errorf("Expected no ledger record, got %d", got)
		}
	})

	t.Run("identical submissions get distinct hashes", func(t *testing.T) {
		exec := counterExecutor()
		d := New(exec)
		w := deployCounter(t, d, 10)

		rec1, err := d.Invoke(context.Background(), w.Address(), abi.SelectorFromName("set_value"), felt.Slice(5))
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		rec2, err := d.Invoke(context.Background(), w.Address(), abi.SelectorFromName("set_value"), felt.Slice(5))
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if rec1.Hash.Eq(rec2.Hash) {
			t.Error("Expected distinct transaction hashes")
		}
		if rec2.Index <= rec1.Index {
			t.Errorf("Expected increasing indices, got %d then %d", rec1.Index, rec2.Index)
		}
	})
}

func TestLedgerLookups(t *testing.T) {
	d := New(newStubExecutor())

	if got := d.TransactionStatus(felt.New(123)); got != StatusNotReceived {
		t.Errorf("Expected NOT_RECEIVED for an unknown hash, got %s", got)
	}
	_, err := d.Transaction(felt.New(123))
	var notFound *TransactionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected TransactionNotFoundError, got %v", err)
	}
	if !notFound.Hash.Eq(felt.New(123)) {
		t.Errorf("Expected the missing hash in the error, got %s", notFound.Hash.Hex())
	}
}

func TestConcurrentCallsDuringInvokes(t *testing.T) {
	exec := counterExecutor()
	d := New(exec)
	w := deployCounter(t, d, 1)

	var wg sync.WaitGroup
	start := make(chan struct{})
	values := make([]uint64, 32)

	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			values[i] = readCounter(t, w)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		if _, err := d.Invoke(context.Background(), w.Address(), abi.SelectorFromName("set_value"), felt.Slice(2)); err != nil {
			t.Errorf("Invoke failed: %v", err)
		}
	}()

	close(start)
	wg.Wait()

	for i, v := range values {
		if v != 1 && v != 2 {
			t.Errorf("Expected call %d to observe 1 or 2, got %d", i, v)
		}
	}
	if got := readCounter(t, w); got != 2 {
		t.Errorf("Expected the committed value 2, got %d", got)
	}
}
