package utxo

import (
	"errors"
	"fmt"

	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Spend-validation errors. These check what pkg/tx.Transaction.Validate
// deliberately leaves out: UTXO existence, maturity, unlock correctness,
// and value balance, since those all require the live UTXO set and the
// script engine.
var (
	ErrUTXONotFound    = errors.New("referenced utxo not found")
	ErrUTXOImmature    = errors.New("utxo not yet spendable at this height")
	ErrUnlockFailed    = errors.New("unlock witness does not satisfy lock")
	ErrInsufficientFee = errors.New("total input value does not cover outputs plus minimum fee")
)

// CoinbaseMaturity is the number of blocks a coinbase output must wait
// before it can be spent.
const CoinbaseMaturity = 100

// ValidateSpend checks that every non-coinbase input of t references a
// spendable UTXO in set and supplies an unlock witness the engine
// accepts, and that total input value covers total output value plus
// minFee. It does not mutate set; callers apply the resulting spends via
// Store.ApplyBlock once a whole block's transactions have all validated.
func ValidateSpend(t *tx.Transaction, set Set, engine script.Engine, height, minFee uint64) error {
	signingHash := t.Hash()

	var totalIn uint64
	for i, in := range t.Inputs {
		if in.IsCoinbase() {
			continue
		}

		u, err := set.Get(in.PrevOut)
		if err != nil {
			return fmt.Errorf("input %d: %w: %v", i, ErrUTXONotFound, in.PrevOut)
		}
		if !u.SpendableAt(height, CoinbaseMaturity) {
			return fmt.Errorf("input %d: %w", i, ErrUTXOImmature)
		}
		if err := engine.Verify(u.Lock, in.Unlock, signingHash[:]); err != nil {
			return fmt.Errorf("input %d: %w: %v", i, ErrUnlockFailed, err)
		}

		if totalIn > ^uint64(0)-u.Amount {
			return fmt.Errorf("input %d: total input value overflow", i)
		}
		totalIn += u.Amount
	}

	if t.Tag == tx.TagCoinbase {
		return nil
	}

	totalOut, err := t.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("total output value: %w", err)
	}
	if totalIn < totalOut || totalIn-totalOut < minFee {
		return fmt.Errorf("%w: in=%d out=%d minFee=%d", ErrInsufficientFee, totalIn, totalOut, minFee)
	}

	return nil
}

// OutputsToUTXOs converts a transaction's outputs into new UTXO entries
// ready to be added to the set at the given height. Freeze-tagged
// transactions get their FreezeUnlockHeight set to height + cycleLength*2,
// per the enrollment lifecycle (spec §3, "Freeze outputs are ineligible
// to be spent before their unlock height").
func OutputsToUTXOs(t *tx.Transaction, height, cycleLength uint64) []*UTXO {
	txHash := t.Hash()
	var freezeUnlock uint64
	if t.Tag == tx.TagFreeze {
		freezeUnlock = height + cycleLength*2
	}

	utxos := make([]*UTXO, len(t.Outputs))
	for i, out := range t.Outputs {
		utxos[i] = &UTXO{
			Outpoint:           types.Outpoint{TxID: txHash, Index: uint32(i)},
			Amount:             out.Amount,
			Lock:               out.Lock,
			Height:             height,
			Coinbase:           t.Tag == tx.TagCoinbase,
			FreezeUnlockHeight: freezeUnlock,
		}
	}
	return utxos
}

// SpentOutpoints returns the outpoints a (non-coinbase) transaction's
// inputs consume.
func SpentOutpoints(t *tx.Transaction) []types.Outpoint {
	outs := make([]types.Outpoint, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		if in.IsCoinbase() {
			continue
		}
		outs = append(outs, in.PrevOut)
	}
	return outs
}
