package devnet

import (
	"fmt"

	"github.com/branched-services/go-devnet/felt"
)

// Multicall wire format. The whole stream is the flat calldata of an
// account's execute entry point:
//
//	[call_data_len:1][records...][nonce:1]
//
// where call_data_len counts the record felts (everything between it and
// the trailing nonce) and each record is
//
//	[to:1][selector:1][argc:1][args:argc]
//
// Records land exactly: a stream whose records do not consume precisely
// the declared length is malformed, never partially applied.
const recordHeaderLen = 3

// MulticallRecord is one decoded call of a multicall: target address,
// resolved selector and raw arguments.
type MulticallRecord struct {
	To       *felt.Felt
	Selector *felt.Felt
	Calldata []*felt.Felt
}

// EncodeMulticallCalldata renders call records and the account nonce
// into the flat execute calldata.
func EncodeMulticallCalldata(records []MulticallRecord, nonce *felt.Felt) []*felt.Felt {
	var stream []*felt.Felt
	for _, r := range records {
		stream = append(stream, r.To.Clone(), r.Selector.Clone(), felt.New(uint64(len(r.Calldata))))
		stream = append(stream, felt.CloneSlice(r.Calldata)...)
	}

	out := make([]*felt.Felt, 0, len(stream)+2)
	out = append(out, felt.New(uint64(len(stream))))
	out = append(out, stream...)
	out = append(out, nonce.Clone())
	return out
}

// DecodeMulticallCalldata parses flat execute calldata back into call
// records and the carried nonce. Any inconsistency between the declared
// length, the record headers and the actual felt count yields
// ErrMalformedMulticall; no partial record list is ever returned.
func DecodeMulticallCalldata(flat []*felt.Felt) ([]MulticallRecord, *felt.Felt, error) {
	if len(flat) < 2 {
		return nil, nil, fmt.Errorf("%w: need a length and a nonce, got %d felts", ErrMalformedMulticall, len(flat))
	}

	declared := flat[0]
	if !declared.IsUint64() || declared.Uint64() != uint64(len(flat)-2) {
		return nil, nil, fmt.Errorf("%w: declared %s record felts, have %d before the nonce",
			ErrMalformedMulticall, declared.Dec(), len(flat)-2)
	}

	stream := flat[1 : len(flat)-1]
	nonce := flat[len(flat)-1]

	var records []MulticallRecord
	i := 0
	for i < len(stream) {
		if len(stream)-i < recordHeaderLen {
			return nil, nil, fmt.Errorf("%w: truncated record header at felt %d", ErrMalformedMulticall, i)
		}
		to := stream[i]
		selector := stream[i+1]
		argc := stream[i+2]
		if !argc.IsUint64() || argc.Uint64() > uint64(len(stream)-i-recordHeaderLen) {
			return nil, nil, fmt.Errorf("%w: record at felt %d declares %s arguments, %d available",
				ErrMalformedMulticall, i, argc.Dec(), len(stream)-i-recordHeaderLen)
		}

		n := int(argc.Uint64())
		records = append(records, MulticallRecord{
			To:       to.Clone(),
			Selector: selector.Clone(),
			Calldata: felt.CloneSlice(stream[i+recordHeaderLen : i+recordHeaderLen+n]),
		})
		i += recordHeaderLen + n
	}

	return records, nonce.Clone(), nil
}
