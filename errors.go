package devnet

import (
	"errors"
	"fmt"

	"github.com/branched-services/go-devnet/felt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrAlreadyDeployed indicates the derived deployment address is occupied.
	ErrAlreadyDeployed = errors.New("devnet: contract already deployed at this address")

	// ErrMalformedMulticall indicates a multicall calldata stream that cannot
	// be decoded into whole call records plus the trailing nonce.
	ErrMalformedMulticall = errors.New("devnet: malformed multicall calldata")

	// ErrEmptyBytecode indicates a contract definition with no program words.
	ErrEmptyBytecode = errors.New("devnet: contract definition has empty bytecode")

	// ErrNoConstructor indicates constructor arguments supplied for a contract
	// whose ABI declares no constructor.
	ErrNoConstructor = errors.New("devnet: constructor arguments supplied but no constructor declared")
)

// IllegalSelectorError indicates a call targeted a selector the contract
// does not declare, and the contract has no catch-all entry point. The
// executor is never reached.
type IllegalSelectorError struct {
	Selector *felt.Felt
}

func (e *IllegalSelectorError) Error() string {
	return fmt.Sprintf("devnet: illegal method selector: %s", e.Selector.Dec())
}

// ContractNotFoundError indicates an operation targeted an address with no
// deployed contract.
type ContractNotFoundError struct {
	Address *felt.Felt
}

func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf("devnet: contract with address %s is not deployed", e.Address.Hex())
}

// TransactionNotFoundError indicates a transaction lookup missed.
type TransactionNotFoundError struct {
	Hash *felt.Felt
}

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("devnet: no transaction with hash %s", e.Hash.Hex())
}

// ExecutionError wraps an executor failure with the identity of the call
// that failed. State is guaranteed untouched when it is returned.
type ExecutionError struct {
	Contract *felt.Felt
	Selector *felt.Felt
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("devnet: execution of %s at %s failed: %v", e.Selector.Hex(), e.Contract.Hex(), e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FeeExceededError indicates an execution whose actual fee came out above
// the transaction's declared maximum. The execution's writes are discarded.
type FeeExceededError struct {
	ActualFee *felt.Felt
	MaxFee    *felt.Felt
}

func (e *FeeExceededError) Error() string {
	return fmt.Sprintf("devnet: actual fee %s exceeds max fee %s", e.ActualFee.Dec(), e.MaxFee.Dec())
}

// NonceMismatchError indicates a multicall carried a nonce other than the
// account's stored nonce. Nothing is applied and the stored nonce does not
// advance.
type NonceMismatchError struct {
	Expected *felt.Felt
	Got      *felt.Felt
}

func (e *NonceMismatchError) Error() string {
	return fmt.Sprintf("devnet: invalid nonce: expected %s, got %s", e.Expected.Dec(), e.Got.Dec())
}
