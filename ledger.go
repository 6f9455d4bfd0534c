package devnet

import (
	"sync"
	"time"

	"github.com/branched-services/go-devnet/felt"
)

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	// StatusAcceptedOnL2 marks a transaction whose execution succeeded
	// and whose writes are committed.
	StatusAcceptedOnL2 TxStatus = "ACCEPTED_ON_L2"

	// StatusRejected marks a transaction whose execution failed. Nothing
	// it did is observable.
	StatusRejected TxStatus = "REJECTED"

	// StatusNotReceived is reported for hashes the ledger has never
	// seen.
	StatusNotReceived TxStatus = "NOT_RECEIVED"
)

// TxType discriminates ledger records.
type TxType string

const (
	// TxDeploy records a contract deployment.
	TxDeploy TxType = "DEPLOY"

	// TxInvoke records an entry point invocation.
	TxInvoke TxType = "INVOKE_FUNCTION"
)

// TransactionRecord is one ledger entry. Records are immutable once
// appended: the devnet is synchronous, so a transaction's status is
// final when its record exists.
type TransactionRecord struct {
	Hash     *felt.Felt
	Index    uint64
	Type     TxType
	Status   TxStatus
	Contract *felt.Felt

	// Selector is the resolved entry point. Nil for deploys.
	Selector *felt.Felt

	Calldata  []*felt.Felt
	MaxFee    *felt.Felt
	Signature []*felt.Felt

	// FailureReason explains a REJECTED status. It is also set on the
	// rare ACCEPTED_ON_L2 record whose committed execution returned
	// retdata the declared outputs could not adapt.
	FailureReason string

	// Info is the execution trace. Nil when the execution never
	// completed.
	Info *ExecutionInfo

	Time time.Time
}

// txLedger is the transaction history: hash to record plus insertion
// order. There are no blocks; block production stays outside the core.
type txLedger struct {
	mu     sync.RWMutex
	seq    uint64
	byHash map[felt.Felt]*TransactionRecord
	order  []*TransactionRecord
}

func newTxLedger() *txLedger {
	return &txLedger{byHash: make(map[felt.Felt]*TransactionRecord)}
}

// reserve hands out the next transaction sequence number. The number is
// hashed into the transaction hash, which keeps identical resubmissions
// distinct.
func (l *txLedger) reserve() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	return l.seq
}

func (l *txLedger) append(rec *TransactionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byHash[*rec.Hash] = rec
	l.order = append(l.order, rec)
	if rec.Index > l.seq {
		l.seq = rec.Index
	}
}

func (l *txLedger) get(hash *felt.Felt) (*TransactionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.byHash[*hash]
	return rec, ok
}

func (l *txLedger) all() []*TransactionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*TransactionRecord, len(l.order))
	copy(out, l.order)
	return out
}

// replace swaps the whole history in, keeping the sequence counter ahead
// of every restored index.
func (l *txLedger) replace(records []*TransactionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byHash = make(map[felt.Felt]*TransactionRecord, len(records))
	l.order = make([]*TransactionRecord, 0, len(records))
	l.seq = 0
	for _, rec := range records {
		l.byHash[*rec.Hash] = rec
		l.order = append(l.order, rec)
		if rec.Index > l.seq {
			l.seq = rec.Index
		}
	}
}

// Transaction returns the ledger record for hash.
func (d *Devnet) Transaction(hash *felt.Felt) (*TransactionRecord, error) {
	rec, ok := d.ledger.get(hash)
	if !ok {
		return nil, &TransactionNotFoundError{Hash: hash.Clone()}
	}
	return rec, nil
}

// TransactionStatus returns the status for hash. Unknown hashes report
// NOT_RECEIVED rather than an error.
func (d *Devnet) TransactionStatus(hash *felt.Felt) TxStatus {
	rec, ok := d.ledger.get(hash)
	if !ok {
		return StatusNotReceived
	}
	return rec.Status
}

// Transactions returns every ledger record in submission order.
func (d *Devnet) Transactions() []*TransactionRecord {
	return d.ledger.all()
}
