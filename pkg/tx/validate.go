package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/fbanet/ledgercore/config"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Validation errors.
var (
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrDuplicateInput = errors.New("duplicate input")
	ErrOutputOverflow = errors.New("output values overflow")
	ErrZeroOutput     = errors.New("output value is zero")
	ErrTooManyInputs  = errors.New("too many inputs")
	ErrTooManyOutputs = errors.New("too many outputs")
	ErrLockDataTooBig = errors.New("lock data too large")
	ErrBadTag         = errors.New("unrecognised transaction tag")
	ErrCoinbaseShape  = errors.New("coinbase transaction must have exactly one zero-prevout input")
	ErrMissingUnlock  = errors.New("input missing unlock witness")
)

// Validate checks transaction structure and basic rules. It does NOT check
// UTXO existence or unlock-witness correctness — those require the UTXO set
// and the script engine (see internal/utxo and internal/script).
func (t *Transaction) Validate() error {
	switch t.Tag {
	case TagPayment, TagFreeze, TagCoinbase:
	default:
		return fmt.Errorf("%w: %d", ErrBadTag, t.Tag)
	}

	if len(t.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(t.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(t.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(t.Inputs), config.MaxTxInputs)
	}
	if len(t.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(t.Outputs), config.MaxTxOutputs)
	}

	if t.Tag == TagCoinbase {
		if len(t.Inputs) != 1 || !t.Inputs[0].IsCoinbase() {
			return ErrCoinbaseShape
		}
	}

	seen := make(map[types.Outpoint]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		if in.IsCoinbase() {
			if t.Tag != TagCoinbase {
				return fmt.Errorf("input %d: zero prevout only allowed in coinbase transactions", i)
			}
			continue
		}
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
		if in.Unlock.Kind == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingUnlock)
		}
	}

	var totalOutput uint64
	for i, out := range t.Outputs {
		if out.Amount == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if len(out.Lock.Data) > config.MaxScriptData {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrLockDataTooBig, len(out.Lock.Data), config.MaxScriptData)
		}
		if totalOutput > math.MaxUint64-out.Amount {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Amount
	}

	return nil
}
