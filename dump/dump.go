// Package dump persists a devnet state image to disk and restores it,
// backed by a badger database at a caller-chosen path.
//
// The layout is one record per key: contract records under the contract
// prefix keyed by address, transaction records under the transaction
// prefix keyed by their ledger index. Values are the JSON forms from the
// devnet's StateDump. Saving replaces the database's previous content,
// so a dump file always reflects exactly one devnet image.
package dump

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v3"

	devnet "github.com/branched-services/go-devnet"
)

var (
	contractPrefix = []byte("contract/")
	txPrefix       = []byte("tx/")
)

func contractKey(address string) []byte {
	return append(append([]byte(nil), contractPrefix...), address...)
}

func txKey(index uint64) []byte {
	key := append([]byte(nil), txPrefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return append(key, buf[:]...)
}

// open returns a quiet badger handle at path.
func open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("dump: opening %s: %w", path, err)
	}
	return db, nil
}

// Save writes the state image to the database at path, dropping whatever
// the database held before.
func Save(path string, image *devnet.StateDump) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DropAll(); err != nil {
		return fmt.Errorf("dump: clearing %s: %w", path, err)
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	for _, c := range image.Contracts {
		value, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("dump: encoding contract %s: %w", c.Address, err)
		}
		if err := wb.Set(contractKey(c.Address), value); err != nil {
			return fmt.Errorf("dump: writing contract %s: %w", c.Address, err)
		}
	}
	for _, t := range image.Transactions {
		value, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("dump: encoding transaction %s: %w", t.Hash, err)
		}
		if err := wb.Set(txKey(t.Index), value); err != nil {
			return fmt.Errorf("dump: writing transaction %s: %w", t.Hash, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("dump: flushing %s: %w", path, err)
	}
	return nil
}

// Load reads the state image stored at path.
func Load(path string) (*devnet.StateDump, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	image := &devnet.StateDump{}
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(contractPrefix); it.ValidForPrefix(contractPrefix); it.Next() {
			var c devnet.ContractDump
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &c)
			}); err != nil {
				return fmt.Errorf("dump: decoding contract record: %w", err)
			}
			image.Contracts = append(image.Contracts, c)
		}
		for it.Seek(txPrefix); it.ValidForPrefix(txPrefix); it.Next() {
			var t devnet.TransactionDump
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &t)
			}); err != nil {
				return fmt.Errorf("dump: decoding transaction record: %w", err)
			}
			image.Transactions = append(image.Transactions, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Key order already sorts transactions by index; keep it explicit for
	// restored ledgers.
	sort.Slice(image.Transactions, func(i, j int) bool {
		return image.Transactions[i].Index < image.Transactions[j].Index
	})
	return image, nil
}
