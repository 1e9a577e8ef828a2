// Package utxo manages the unspent transaction output set, the frozen
// stake UTXOs validators enroll with, and the script-engine gate a spend
// must pass through before it can remove an entry from the set.
package utxo

import (
	"github.com/fbanet/ledgercore/pkg/types"
)

// UTXO represents an unspent transaction output.
type UTXO struct {
	Outpoint types.Outpoint `json:"outpoint"`
	Amount   uint64         `json:"amount"`
	Lock     types.Lock     `json:"lock"`
	Height   uint64         `json:"height"`
	Coinbase bool           `json:"coinbase"`

	// FreezeUnlockHeight is non-zero only for Freeze-tagged outputs: the
	// height at which the frozen stake becomes spendable again
	// (enroll_height + cycle_length*2, per the enrollment lifecycle).
	FreezeUnlockHeight uint64 `json:"freeze_unlock_height,omitempty"`
}

// SpendableAt reports whether the UTXO can be spent once the chain
// reaches targetHeight: coinbase maturity and freeze unlock height must
// both have passed.
func (u *UTXO) SpendableAt(targetHeight, coinbaseMaturity uint64) bool {
	if u.Coinbase && targetHeight < u.Height+coinbaseMaturity {
		return false
	}
	if u.FreezeUnlockHeight > 0 && targetHeight < u.FreezeUnlockHeight {
		return false
	}
	return true
}

// Set is the interface for UTXO storage.
type Set interface {
	Get(outpoint types.Outpoint) (*UTXO, error)
	Put(utxo *UTXO) error
	Delete(outpoint types.Outpoint) error
	Has(outpoint types.Outpoint) (bool, error)
}
