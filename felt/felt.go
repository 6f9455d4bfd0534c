// Package felt provides the field element type shared by every layer of
// go-devnet: calldata words, selectors, storage keys and values, contract
// addresses, fees and transaction hashes are all felts.
//
// A Felt is an alias of uint256.Int, so the full uint256 arithmetic and
// formatting surface is available directly. The package adds what the
// simulation gateway needs on top: parsing with range validation against
// the Stark prime, and the truncated-keccak hash used to derive selectors
// and addresses.
package felt

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Felt is a Stark field element. Values are kept below Modulus by Parse;
// arithmetic helpers that need to stay in the field reduce explicitly.
type Felt = uint256.Int

// Modulus is the Stark prime 2^251 + 17*2^192 + 1. Every felt accepted on
// the wire is strictly below it.
var Modulus = uint256.MustFromHex("0x800000000000011000000000000000000000000000000000000000000000001")

// mask250 truncates a keccak digest into the field (2^250 - 1 < Modulus).
var mask250 = uint256.MustFromHex("0x3ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

// New returns a felt holding the given small value.
func New(v uint64) *Felt {
	return uint256.NewInt(v)
}

// Zero returns a fresh zero felt.
func Zero() *Felt {
	return new(Felt)
}

// IsValid reports whether f lies inside the field.
func IsValid(f *Felt) bool {
	return f != nil && f.Cmp(Modulus) < 0
}

// NotFeltError indicates an input that does not parse into the field,
// either because it is malformed or because it is >= Modulus.
type NotFeltError struct {
	Input string
	Err   error
}

func (e *NotFeltError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("felt: invalid field element %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("felt: value %q outside the field", e.Input)
}

func (e *NotFeltError) Unwrap() error {
	return e.Err
}

// Parse converts a "0x"-prefixed hex string or a decimal string into a
// felt, rejecting values outside the field. Leading zero digits are
// accepted: gateway clients routinely send zero-padded addresses.
func Parse(s string) (*Felt, error) {
	f := new(Felt)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" {
			return nil, &NotFeltError{Input: s, Err: fmt.Errorf("empty hex body")}
		}
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		raw, err := hex.DecodeString(digits)
		if err != nil {
			return nil, &NotFeltError{Input: s, Err: err}
		}
		if len(raw) > 32 {
			return nil, &NotFeltError{Input: s}
		}
		f.SetBytes(raw)
	} else {
		if err := f.SetFromDecimal(s); err != nil {
			return nil, &NotFeltError{Input: s, Err: err}
		}
	}
	if !IsValid(f) {
		return nil, &NotFeltError{Input: s}
	}
	return f, nil
}

// MustParse is like Parse but panics on error. Use only with literals.
func MustParse(s string) *Felt {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Keccak hashes data with keccak-256 and truncates the digest to its low
// 250 bits, the canonical name-hash of the environment. The result always
// lies inside the field.
func Keccak(data []byte) *Felt {
	digest := crypto.Keccak256(data)
	f := new(Felt).SetBytes(digest)
	return f.And(f, mask250)
}

// KeccakOf chains the 32-byte big-endian forms of the given felts through
// Keccak. Deterministic combinators such as contract addresses and
// transaction hashes are built from it.
func KeccakOf(items ...*Felt) *Felt {
	buf := make([]byte, 0, 32*len(items))
	for _, item := range items {
		b := item.Bytes32()
		buf = append(buf, b[:]...)
	}
	return Keccak(buf)
}

// Slice builds a felt slice from small values; handy for fixtures and
// calldata literals.
func Slice(vs ...uint64) []*Felt {
	out := make([]*Felt, len(vs))
	for i, v := range vs {
		out[i] = New(v)
	}
	return out
}

// CloneSlice deep-copies a felt slice.
func CloneSlice(fs []*Felt) []*Felt {
	if fs == nil {
		return nil
	}
	out := make([]*Felt, len(fs))
	for i, f := range fs {
		out[i] = f.Clone()
	}
	return out
}

// HexSlice renders felts as minimal "0x" hex strings, the wire form used
// by the gateway.
func HexSlice(fs []*Felt) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Hex()
	}
	return out
}

// ParseSlice converts a slice of wire strings into felts, failing on the
// first invalid element.
func ParseSlice(ss []string) ([]*Felt, error) {
	out := make([]*Felt, len(ss))
	for i, s := range ss {
		f, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
