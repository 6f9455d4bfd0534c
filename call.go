package devnet

import (
	"context"

	"github.com/branched-services/go-devnet/felt"
)

// Choice selects how a contract entry point is run: against an ephemeral
// snapshot or against live persistent state. The variant is closed; any
// other value is rejected before the executor is reached.
type Choice uint8

const (
	// ChoiceCall runs against an ephemeral snapshot. Nothing the
	// execution writes is externally observable.
	ChoiceCall Choice = iota

	// ChoiceInvoke runs against live persistent state. Writes are
	// committed atomically on success and discarded on any failure.
	ChoiceInvoke
)

// String returns the choice name.
func (c Choice) String() string {
	switch c {
	case ChoiceCall:
		return "call"
	case ChoiceInvoke:
		return "invoke"
	default:
		return "unknown"
	}
}

func (c Choice) valid() bool {
	return c == ChoiceCall || c == ChoiceInvoke
}

// ExecutionRequest carries everything an executor needs to run one entry
// point. The selector is already resolved: catch-all fallback happened
// before the request was built.
type ExecutionRequest struct {
	// Contract is the target address.
	Contract *felt.Felt

	// Selector is the resolved entry point selector.
	Selector *felt.Felt

	// Calldata is the raw flat argument sequence, unadapted.
	Calldata []*felt.Felt

	// Caller is the invoking address. Zero for external origin.
	Caller *felt.Felt

	// Signature is the transaction signature. Nil when absent; it is
	// recorded, not verified.
	Signature []*felt.Felt

	// MaxFee bounds the fee the execution may charge.
	MaxFee *felt.Felt

	// EnforceFee makes the executor reject the execution when the actual
	// fee exceeds MaxFee. Estimates run with enforcement off.
	EnforceFee bool
}

// Executor runs a resolved entry point against a state view. It is the
// boundary to the execution engine: the core never interprets bytecode
// itself.
//
// Execute returns ExecutionInfo on success. On failure it returns an
// error and must leave the view's persistent state untouched; partial
// writes never survive.
type Executor interface {
	Execute(ctx context.Context, view StateView, req *ExecutionRequest) (*ExecutionInfo, error)
}

// ExecutionInfo is the full result of one execution.
type ExecutionInfo struct {
	// Call is the outermost call frame.
	Call *CallInfo

	// ActualFee is the fee the execution charged, or would charge when
	// enforcement is off.
	ActualFee *felt.Felt

	// Resources is the metered execution trace.
	Resources ExecutionResources
}

// CallInfo describes one call frame: identity, input, output, events and
// the inner calls it made, in order.
type CallInfo struct {
	Contract   *felt.Felt
	Selector   *felt.Felt
	Caller     *felt.Felt
	Calldata   []*felt.Felt
	Retdata    []*felt.Felt
	Events     []Event
	InnerCalls []*CallInfo
}

// Event is one emitted event.
type Event struct {
	// From is the emitting contract.
	From *felt.Felt

	Keys []*felt.Felt
	Data []*felt.Felt
}

// ExecutionResources meters what an execution consumed. The fee model is
// a function of these counters.
type ExecutionResources struct {
	Steps         uint64
	StorageReads  uint64
	StorageWrites uint64
	InnerCalls    uint64
}

// Add accumulates another trace into this one.
func (r *ExecutionResources) Add(other ExecutionResources) {
	r.Steps += other.Steps
	r.StorageReads += other.StorageReads
	r.StorageWrites += other.StorageWrites
	r.InnerCalls += other.InnerCalls
}
