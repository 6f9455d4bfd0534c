package vm

import (
	devnet "github.com/branched-services/go-devnet"
	"github.com/branched-services/go-devnet/felt"
)

// AccountClassName is the builtin account class, registered on every
// machine.
const AccountClassName = "Account"

// accountABI is the account contract's interface. The execute entry
// point's call_data parameter carries the multicall record stream; the
// trailing nonce is a parameter of its own, which is what keeps a replay
// with a stale nonce distinguishable from a malformed stream.
const accountABI = `[
	{"type": "constructor", "name": "constructor",
	 "inputs": [{"name": "public_key", "type": "felt"}], "outputs": []},
	{"type": "function", "name": "get_public_key", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "public_key", "type": "felt"}]},
	{"type": "function", "name": "get_nonce", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "nonce", "type": "felt"}]},
	{"type": "function", "name": "execute",
	 "inputs": [
	   {"name": "call_data_len", "type": "felt"},
	   {"name": "call_data", "type": "felt*"},
	   {"name": "nonce", "type": "felt"}],
	 "outputs": [
	   {"name": "response_len", "type": "felt"},
	   {"name": "response", "type": "felt*"}]}
]`

// Account storage slots, derived the same way storage variables address
// themselves.
var (
	publicKeySlot = felt.Keccak([]byte("Account/public_key"))
	nonceSlot     = felt.Keccak([]byte("Account/nonce"))
)

// AccountDefinition returns a deployable definition of the builtin
// account class. Constructor calldata: the account's public key.
func AccountDefinition() *devnet.ContractDefinition {
	return devnet.MustContractDefinition(accountABI, MarkerFor(AccountClassName))
}

// AccountClass builds the builtin account class. Machines register it at
// construction; it is exported so tests and alternative machines can
// reuse it.
func AccountClass() *Class {
	c := NewClass(AccountClassName)

	c.OnConstructor(func(env *CallEnv) ([]*felt.Felt, error) {
		if len(env.Calldata()) != 1 {
			return nil, Revert("account constructor takes the public key, got %d felts", len(env.Calldata()))
		}
		env.Write(publicKeySlot, env.Calldata()[0])
		return nil, nil
	})

	c.On("get_public_key", func(env *CallEnv) ([]*felt.Felt, error) {
		return []*felt.Felt{env.Read(publicKeySlot)}, nil
	})

	c.On("get_nonce", func(env *CallEnv) ([]*felt.Felt, error) {
		return []*felt.Felt{env.Read(nonceSlot)}, nil
	})

	// execute parses the multicall stream, gates it on the stored nonce,
	// dispatches each record as an inner call in order and advances the
	// nonce in the same journal. Any failure aborts the execution, so
	// either every record applied and the nonce moved once, or nothing
	// happened at all.
	c.On("execute", func(env *CallEnv) ([]*felt.Felt, error) {
		records, nonce, err := devnet.DecodeMulticallCalldata(env.Calldata())
		if err != nil {
			return nil, err
		}

		stored := env.Read(nonceSlot)
		if !stored.Eq(nonce) {
			return nil, &devnet.NonceMismatchError{Expected: stored, Got: nonce.Clone()}
		}

		var response []*felt.Felt
		for _, rec := range records {
			ret, err := env.Call(rec.To, rec.Selector, rec.Calldata)
			if err != nil {
				return nil, err
			}
			response = append(response, felt.New(uint64(len(ret))))
			response = append(response, ret...)
		}

		env.Write(nonceSlot, new(felt.Felt).AddUint64(stored, 1))

		out := make([]*felt.Felt, 0, len(response)+1)
		out = append(out, felt.New(uint64(len(response))))
		return append(out, response...), nil
	})

	return c
}
