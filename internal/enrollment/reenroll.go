package enrollment

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
)

// DueForRenewal returns active, recurring validators whose cycle ends at
// or before h+1 (h ≥ enroll_height + N - 1), sorted by utxo-key
// ascending for the tie-break spec.md §4.4 requires when more than one
// validator's cycle ends in the same block.
func (m *Manager) DueForRenewal(h uint64) ([]*ValidatorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dueLocked(h, func(v *ValidatorState) bool { return v.Recurring })
}

// ForceRenewal returns every active, non-recurring validator whose cycle
// ends at or before h+1, with the same ordering as DueForRenewal. It only
// selects: it changes no validator state, and it does not check how many
// validators remain active.
func (m *Manager) ForceRenewal(h uint64) ([]*ValidatorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dueLocked(h, func(v *ValidatorState) bool { return !v.Recurring })
}

func (m *Manager) dueLocked(h uint64, match func(*ValidatorState) bool) ([]*ValidatorState, error) {
	var due []*ValidatorState
	err := m.db.ForEach(prefixActive, func(_, value []byte) error {
		var v ValidatorState
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("validator state unmarshal: %w", err)
		}
		if v.Phase == PhaseEjected || v.Phase == PhaseSlashed {
			return nil
		}
		if h+1 < v.CycleEndHeight() {
			return nil
		}
		if !match(&v) {
			return nil
		}
		state := v
		due = append(due, &state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool { return lessOutpoint(due[i].UTXOKey, due[j].UTXOKey) })
	return due, nil
}

// Renew generates a fresh pre-image chain and signed Enrollment for a
// validator whose cycle is ending, using the same frozen UTXO as before
// (spec.md §4.4 "Re-enrollment": "a fresh enrollment with a new random
// seed; it is appended to the header of the terminal block").
func (m *Manager) Renew(state *ValidatorState, signer signer) (*enroll.Enrollment, *Chain, error) {
	chain, err := GenerateChain(state.UTXOKey, state.CycleLength)
	if err != nil {
		return nil, nil, err
	}
	if err := m.chains.Put(chain); err != nil {
		return nil, nil, fmt.Errorf("persist renewed chain: %w", err)
	}

	e := &enroll.Enrollment{
		UTXOKey:      state.UTXOKey,
		Commitment:   chain.Commitment(),
		CycleLength:  state.CycleLength,
		SignerPubKey: state.PubKey,
	}
	h := crypto.DomainHash(crypto.DomainEnrollSigningData, e.SigningBytes())
	sig, err := signer.Sign(h[:])
	if err != nil {
		return nil, nil, fmt.Errorf("sign renewed enrollment: %w", err)
	}
	e.Signature = sig
	return e, chain, nil
}

// signer is satisfied by *crypto.PrivateKey; declared locally so this
// package doesn't need to import crypto's concrete key type into its
// exported surface.
type signer interface {
	Sign(hash []byte) ([]byte, error)
}
