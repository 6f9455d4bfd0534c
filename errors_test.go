package devnet

import (
	"errors"
	"strings"
	"testing"

	"github.com/branched-services/go-devnet/felt"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "IllegalSelectorError",
			err:  &IllegalSelectorError{Selector: felt.New(123)},
			want: "illegal method selector: 123",
		},
		{
			name: "ContractNotFoundError",
			err:  &ContractNotFoundError{Address: felt.New(0xab)},
			want: "contract with address 0xab is not deployed",
		},
		{
			name: "TransactionNotFoundError",
			err:  &TransactionNotFoundError{Hash: felt.New(0xcd)},
			want: "no transaction with hash 0xcd",
		},
		{
			name: "FeeExceededError",
			err:  &FeeExceededError{ActualFee: felt.New(100), MaxFee: felt.New(99)},
			want: "actual fee 100 exceeds max fee 99",
		},
		{
			name: "NonceMismatchError",
			err:  &NonceMismatchError{Expected: felt.New(1), Got: felt.Zero()},
			want: "invalid nonce: expected 1, got 0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if msg := tc.err.Error(); !strings.Contains(msg, tc.want) {
				t.Errorf("Expected %q in %q", tc.want, msg)
			}
			if msg := tc.err.Error(); !strings.HasPrefix(msg, "devnet: ") {
				t.Errorf("Expected the devnet prefix on %q", msg)
			}
		})
	}
}

func TestExecutionErrorUnwrap(t *testing.T) {
	inner := &FeeExceededError{ActualFee: felt.New(2), MaxFee: felt.New(1)}
	err := &ExecutionError{Contract: felt.New(5), Selector: felt.New(6), Err: inner}

	var exceeded *FeeExceededError
	if !errors.As(err, &exceeded) {
		t.Fatal("Expected the wrapped FeeExceededError to be reachable")
	}
	if exceeded != inner {
		t.Error("Expected the original error instance")
	}
	if !strings.Contains(err.Error(), inner.Error()) {
		t.Errorf("Expected the inner message inside %q", err.Error())
	}
}

func TestSentinelWrapping(t *testing.T) {
	_, _, err := DecodeMulticallCalldata(felt.Slice(5))
	if !errors.Is(err, ErrMalformedMulticall) {
		t.Errorf("Expected ErrMalformedMulticall, got %v", err)
	}
	// The wrapped form keeps the sentinel text.
	if !strings.Contains(err.Error(), "malformed multicall calldata") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
