package devnet

import (
	"context"
	"fmt"

	"github.com/branched-services/go-devnet/abi"
	"github.com/branched-services/go-devnet/felt"
)

// Entry point names every account contract declares.
const (
	// NonceEntryPointName reads the account's current nonce.
	NonceEntryPointName = "get_nonce"

	// PublicKeyEntryPointName reads the account's stored public key.
	PublicKeyEntryPointName = "get_public_key"
)

// AccountCall is one planned call of a multicall: the target contract,
// the method by name, and its raw flat arguments. The selector is
// derived from the method name when the multicall is built.
type AccountCall struct {
	To       *felt.Felt
	Method   string
	Calldata []*felt.Felt
}

// BuildMulticallCalldata derives each call's selector and encodes the
// whole plan, nonce included, into flat execute calldata.
func BuildMulticallCalldata(calls []AccountCall, nonce *felt.Felt) []*felt.Felt {
	records := make([]MulticallRecord, 0, len(calls))
	for _, c := range calls {
		records = append(records, MulticallRecord{
			To:       c.To.Clone(),
			Selector: abi.SelectorFromName(c.Method),
			Calldata: felt.CloneSlice(c.Calldata),
		})
	}
	return EncodeMulticallCalldata(records, nonce)
}

// Account is a handle on a deployed account contract: the multicall
// entry point plus its nonce and key views.
type Account struct {
	d       *Devnet
	wrapper *ContractWrapper
}

// Account returns a handle on the account contract deployed at address.
func (d *Devnet) Account(address *felt.Felt) (*Account, error) {
	w, ok := d.lookup(address)
	if !ok {
		return nil, &ContractNotFoundError{Address: address.Clone()}
	}
	return &Account{d: d, wrapper: w}, nil
}

// Address returns the account's address.
func (a *Account) Address() *felt.Felt {
	return a.wrapper.Address()
}

// Nonce reads the account's current nonce through its get_nonce view.
func (a *Account) Nonce(ctx context.Context) (*felt.Felt, error) {
	values, _, err := a.wrapper.Call(ctx, abi.SelectorFromName(NonceEntryPointName), nil)
	if err != nil {
		return nil, err
	}
	return singleFelt(values)
}

// PublicKey reads the account's stored public key.
func (a *Account) PublicKey(ctx context.Context) (*felt.Felt, error) {
	values, _, err := a.wrapper.Call(ctx, abi.SelectorFromName(PublicKeyEntryPointName), nil)
	if err != nil {
		return nil, err
	}
	return singleFelt(values)
}

// Execute runs the calls as one multicall: it reads the current nonce,
// builds the execute calldata and submits an invoke transaction on the
// account's own execute entry point. Either every inner call applies and
// the nonce advances exactly once, or the transaction is rejected with
// nothing applied and the nonce unchanged.
//
// The returned record is non-nil even when the transaction was rejected;
// the error then explains the rejection.
//
// The nonce read and the invoke are two steps, not one: concurrent
// Executes on the same account can build calldata for the same nonce,
// and the loser is rejected with NonceMismatchError. Serialize Executes
// per account when that rejection is unwanted.
func (a *Account) Execute(ctx context.Context, calls []AccountCall, opts ...CallOption) (*TransactionRecord, error) {
	nonce, err := a.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	calldata := BuildMulticallCalldata(calls, nonce)
	return a.d.Invoke(ctx, a.wrapper.address, abi.ExecuteSelector(), calldata, opts...)
}

// EstimateFee runs the same multicall construction and dispatch as
// Execute against an ephemeral snapshot with fee enforcement off, and
// returns the fee the execution would charge. No state changes and the
// nonce does not advance.
func (a *Account) EstimateFee(ctx context.Context, calls []AccountCall, opts ...CallOption) (*felt.Felt, error) {
	nonce, err := a.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	calldata := BuildMulticallCalldata(calls, nonce)
	fee, _, err := a.wrapper.EstimateFee(ctx, abi.ExecuteSelector(), calldata, opts...)
	return fee, err
}

// singleFelt unpacks a one-felt result shape.
func singleFelt(values []abi.Value) (*felt.Felt, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("devnet: expected a single felt result, got %d values", len(values))
	}
	fv, ok := values[0].(abi.FeltValue)
	if !ok {
		return nil, fmt.Errorf("devnet: expected a felt result, got %T", values[0])
	}
	return fv.Felt.Clone(), nil
}
