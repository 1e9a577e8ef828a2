package ledger

import (
	"errors"
	"fmt"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/types"
)

// ValidateTxSet implements fba.Ledger's validate_value callback (spec.md
// §4.6): a candidate value is valid if every transaction spends UTXOs
// that exist and aren't double-spent within the set itself, and every
// enrollment's signature verifies. Runs on the event-loop goroutine,
// called synchronously from within Driver methods.
func (l *Ledger) ValidateTxSet(value *fba.Value) error {
	if value == nil {
		return errors.New("ledger: nil candidate value")
	}

	spentInSet := make(map[types.Outpoint]bool, len(value.Transactions))
	for _, t := range value.Transactions {
		for _, in := range utxo.SpentOutpoints(t) {
			if spentInSet[in] {
				return fmt.Errorf("ledger: outpoint %s double-spent within candidate set", in)
			}
			spentInSet[in] = true
		}
		if err := utxo.ValidateSpend(t, l.utxos, l.script, l.Height()+1, l.cfg.MinFee); err != nil {
			return fmt.Errorf("ledger: candidate tx %s: %w", t.Hash(), err)
		}
	}

	for i := range value.Enrollments {
		e := value.Enrollments[i]
		if !e.VerifySignature() {
			return fmt.Errorf("ledger: candidate enrollment for %s has a bad signature", e.UTXOKey)
		}
	}

	return nil
}

// OnTxSetExternalized implements fba.Ledger's value_externalized callback
// (spec.md §4.6/§4.7 step 2): assembles the block, collects validator
// attestations, and appends it atomically.
func (l *Ledger) OnTxSetExternalized(slot uint64, value *fba.Value) error {
	if slot != l.Height()+1 {
		// Another path (catchup, a peer's block) already advanced the
		// tip past this slot — benign duplicate per spec.md §7
		// "SlotAlreadyExternalized is a benign duplicate".
		return nil
	}

	blk, err := l.assembleBlock(slot, value)
	if err != nil {
		return fmt.Errorf("ledger: assemble block %d: %w", slot, err)
	}

	return l.appendBlockLocked(blk)
}
