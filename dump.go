package devnet

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/branched-services/go-devnet/felt"
)

// StateDump is the serializable image of a devnet: every contract's
// definition and storage, plus the transaction ledger. Felts travel as
// hex strings. Execution traces are not carried; restored records have
// no Info.
type StateDump struct {
	Contracts    []ContractDump    `json:"contracts"`
	Transactions []TransactionDump `json:"transactions"`
}

// ContractDump is one deployed contract in a dump.
type ContractDump struct {
	Address  string            `json:"address"`
	ABI      json.RawMessage   `json:"abi"`
	Bytecode []string          `json:"bytecode"`
	Storage  map[string]string `json:"storage"`
}

// TransactionDump is one ledger record in a dump.
type TransactionDump struct {
	Hash          string    `json:"transaction_hash"`
	Index         uint64    `json:"index"`
	Type          TxType    `json:"type"`
	Status        TxStatus  `json:"status"`
	Contract      string    `json:"contract_address"`
	Selector      string    `json:"entry_point_selector,omitempty"`
	Calldata      []string  `json:"calldata"`
	MaxFee        string    `json:"max_fee"`
	Signature     []string  `json:"signature,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Time          time.Time `json:"time"`
}

// Dump captures the devnet at a consistent point: it is taken under the
// invoke lock, so no transaction is half reflected.
func (d *Devnet) Dump() *StateDump {
	d.invokeMu.Lock()
	defer d.invokeMu.Unlock()

	dump := &StateDump{}

	d.stateMu.RLock()
	d.mu.RLock()
	for addr, w := range d.contracts {
		storage := make(map[string]string, len(w.state.storage))
		for k, v := range w.state.storage {
			storage[k.Hex()] = v.Hex()
		}
		dump.Contracts = append(dump.Contracts, ContractDump{
			Address:  addr.Hex(),
			ABI:      json.RawMessage(w.def.RawABI()),
			Bytecode: felt.HexSlice(w.def.Bytecode()),
			Storage:  storage,
		})
	}
	d.mu.RUnlock()
	d.stateMu.RUnlock()

	sort.Slice(dump.Contracts, func(i, j int) bool {
		return dump.Contracts[i].Address < dump.Contracts[j].Address
	})

	for _, rec := range d.ledger.all() {
		td := TransactionDump{
			Hash:          rec.Hash.Hex(),
			Index:         rec.Index,
			Type:          rec.Type,
			Status:        rec.Status,
			Contract:      rec.Contract.Hex(),
			Calldata:      felt.HexSlice(rec.Calldata),
			MaxFee:        rec.MaxFee.Hex(),
			Signature:     felt.HexSlice(rec.Signature),
			FailureReason: rec.FailureReason,
			Time:          rec.Time,
		}
		if rec.Selector != nil {
			td.Selector = rec.Selector.Hex()
		}
		dump.Transactions = append(dump.Transactions, td)
	}

	return dump
}

// Restore replaces the devnet's whole state with the dump: registry,
// storage and ledger. Nothing is mutated until the dump parses in full.
func (d *Devnet) Restore(dump *StateDump) error {
	contracts := make(map[felt.Felt]*ContractWrapper, len(dump.Contracts))
	for _, c := range dump.Contracts {
		address, err := felt.Parse(c.Address)
		if err != nil {
			return fmt.Errorf("devnet: restoring contract address: %w", err)
		}
		bytecode, err := felt.ParseSlice(c.Bytecode)
		if err != nil {
			return fmt.Errorf("devnet: restoring bytecode of %s: %w", c.Address, err)
		}
		def, err := NewContractDefinition(c.ABI, bytecode)
		if err != nil {
			return fmt.Errorf("devnet: restoring definition of %s: %w", c.Address, err)
		}

		w := newContractWrapper(d, address, def)
		for k, v := range c.Storage {
			key, err := felt.Parse(k)
			if err != nil {
				return fmt.Errorf("devnet: restoring storage key of %s: %w", c.Address, err)
			}
			value, err := felt.Parse(v)
			if err != nil {
				return fmt.Errorf("devnet: restoring storage value of %s: %w", c.Address, err)
			}
			w.state.Write(key, value)
		}
		contracts[*address] = w
	}

	records := make([]*TransactionRecord, 0, len(dump.Transactions))
	for _, t := range dump.Transactions {
		rec := &TransactionRecord{
			Index:         t.Index,
			Type:          t.Type,
			Status:        t.Status,
			FailureReason: t.FailureReason,
			Time:          t.Time,
		}
		var err error
		if rec.Hash, err = felt.Parse(t.Hash); err != nil {
			return fmt.Errorf("devnet: restoring transaction hash: %w", err)
		}
		if rec.Contract, err = felt.Parse(t.Contract); err != nil {
			return fmt.Errorf("devnet: restoring transaction %s: %w", t.Hash, err)
		}
		if t.Selector != "" {
			if rec.Selector, err = felt.Parse(t.Selector); err != nil {
				return fmt.Errorf("devnet: restoring transaction %s: %w", t.Hash, err)
			}
		}
		if rec.Calldata, err = felt.ParseSlice(t.Calldata); err != nil {
			return fmt.Errorf("devnet: restoring transaction %s: %w", t.Hash, err)
		}
		if rec.MaxFee, err = felt.Parse(t.MaxFee); err != nil {
			return fmt.Errorf("devnet: restoring transaction %s: %w", t.Hash, err)
		}
		if rec.Signature, err = felt.ParseSlice(t.Signature); err != nil {
			return fmt.Errorf("devnet: restoring transaction %s: %w", t.Hash, err)
		}
		records = append(records, rec)
	}

	d.invokeMu.Lock()
	defer d.invokeMu.Unlock()

	d.stateMu.Lock()
	d.mu.Lock()
	d.contracts = contracts
	d.mu.Unlock()
	d.stateMu.Unlock()

	d.ledger.replace(records)

	d.log.Info("state restored",
		zap.Int("contracts", len(dump.Contracts)),
		zap.Int("transactions", len(records)))
	return nil
}
