// Package tx defines transaction types and validation.
package tx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Tag classifies what a transaction does to the UTXO set.
type Tag uint8

const (
	// Payment moves value between unlocked outputs.
	TagPayment Tag = 0x01
	// Freeze creates a staking output that backs a validator enrollment.
	TagFreeze Tag = 0x02
	// Coinbase mints new value (genesis issuance, periodic validator payout).
	TagCoinbase Tag = 0x03
)

// String returns a human-readable tag name.
func (t Tag) String() string {
	switch t {
	case TagPayment:
		return "Payment"
	case TagFreeze:
		return "Freeze"
	case TagCoinbase:
		return "Coinbase"
	default:
		return "Unknown"
	}
}

// Transaction is a tagged record of input references and outputs.
type Transaction struct {
	Version  uint32   `json:"version"`
	Tag      Tag      `json:"tag"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint64   `json:"locktime"`
}

// Input references a UTXO being spent and the witness unlocking it.
// A Coinbase transaction carries a single Input with a zero PrevOut.
type Input struct {
	PrevOut types.Outpoint `json:"prevout"`
	Unlock  types.Unlock   `json:"unlock"`
}

// Output defines a new UTXO.
type Output struct {
	Amount uint64     `json:"amount"`
	Lock   types.Lock `json:"lock"`
}

// IsCoinbase reports whether this input mints rather than spends.
func (in Input) IsCoinbase() bool {
	return in.PrevOut.IsZero()
}

// Hash computes the transaction's canonical fingerprint: BLAKE3 over the
// signing bytes. Unlock witnesses are excluded so it is stable for signing.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.SigningBytes())
}

// SigningBytes returns the canonical little-endian length-prefixed encoding
// used for hashing and for signing unlock witnesses.
//
// Format: version(4) | tag(1) | input_count(4) | [prevout(36)]... |
// output_count(4) | [amount(8) + lock_len(4) + lock.SigningBytes()]... | locktime(8)
func (t *Transaction) SigningBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, t.Version)
	buf = append(buf, byte(t.Tag))

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
		lb := out.Lock.SigningBytes()
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(lb)))
		buf = append(buf, lb...)
	}

	buf = binary.LittleEndian.AppendUint64(buf, t.LockTime)

	return buf
}

// TotalOutputValue returns the sum of all output amounts.
// Returns an error if the sum overflows uint64.
func (t *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		if total > math.MaxUint64-out.Amount {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Amount
	}
	return total, nil
}
