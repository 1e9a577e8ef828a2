package enrollment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/types"
)

var (
	prefixPending = []byte("ep/") // ep/<utxo_key> -> pending Enrollment JSON
	prefixActive  = []byte("ev/") // ev/<utxo_key> -> ValidatorState JSON
)

// Admission errors (spec.md §4.4 "Enrollment admission").
var (
	ErrBadSignature     = errors.New("enrollment signature does not verify")
	ErrSignerMismatch   = errors.New("enrollment signer does not own the frozen utxo")
	ErrUTXONotFound     = errors.New("enrollment utxo not found")
	ErrNotFrozen        = errors.New("enrollment utxo is not a frozen stake output")
	ErrBelowMinStake    = errors.New("enrollment utxo value is below the minimum stake")
	ErrAlreadyActive    = errors.New("staker is already an active validator")
	ErrCycleLenMismatch = errors.New("enrollment cycle length does not match protocol")
)

// Config holds the enrollment manager's protocol-derived parameters
// (config.ProtocolConfig's enrollment fields).
type Config struct {
	CycleLength            uint64
	MinStakeAmount         uint64
	SlashPenaltyAmount     uint64
	RevealGraceBlocks      uint64
	MaxEnrollmentsPerBlock int
	RecurringDefault       bool
}

// SlashAction describes a frozen-stake deduction the ledger coordinator
// must apply when it next builds a block — the manager tracks whose
// reveal was missed but never mutates the UTXO set directly (spec.md §5
// reserves UTXO mutation for the single-goroutine coordinator).
type SlashAction struct {
	UTXOKey types.Outpoint
	PubKey  []byte
	Amount  uint64
}

// Manager tracks pending enrollments, the active validator set, and
// pre-image reveal bookkeeping (spec.md §4.4).
type Manager struct {
	mu sync.Mutex

	db     storage.DB
	utxos  utxo.Set
	chains *chainStore
	cfg    Config
}

// New creates an enrollment manager backed by db, checking frozen stake
// against utxos.
func New(db storage.DB, utxos utxo.Set, cfg Config) *Manager {
	return &Manager{
		db:     db,
		utxos:  utxos,
		chains: &chainStore{db: db},
		cfg:    cfg,
	}
}

// AddEnrollment validates e against the rules of spec.md §4.4 and, if
// accepted, adds it to the pending-enrollments pool ordered by
// utxo-key ascending.
func (m *Manager) AddEnrollment(e enroll.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !e.VerifySignature() {
		return ErrBadSignature
	}

	u, err := m.utxos.Get(e.UTXOKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUTXONotFound, e.UTXOKey)
	}
	if u.FreezeUnlockHeight == 0 {
		return ErrNotFrozen
	}
	if u.Amount < m.cfg.MinStakeAmount {
		return fmt.Errorf("%w: %d < %d", ErrBelowMinStake, u.Amount, m.cfg.MinStakeAmount)
	}
	if u.Lock.Kind != types.LockKey || !bytes.Equal(u.Lock.Data, e.SignerPubKey) {
		return ErrSignerMismatch
	}
	if e.CycleLength != m.cfg.CycleLength {
		return fmt.Errorf("%w: got %d, want %d", ErrCycleLenMismatch, e.CycleLength, m.cfg.CycleLength)
	}
	if active, err := m.isActiveLocked(e.SignerPubKey); err != nil {
		return err
	} else if active {
		return ErrAlreadyActive
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("enrollment marshal: %w", err)
	}
	return m.db.Put(pendingKey(e.UTXOKey), data)
}

// PendingEnrollments returns the pending pool ordered by utxo-key
// ascending, capped at MaxEnrollmentsPerBlock — the candidate list a
// block header may admit (spec.md §4.4).
func (m *Manager) PendingEnrollments() ([]enroll.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []enroll.Enrollment
	err := m.db.ForEach(prefixPending, func(_, value []byte) error {
		var e enroll.Enrollment
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("pending enrollment unmarshal: %w", err)
		}
		pending = append(pending, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pending, func(i, j int) bool {
		return lessOutpoint(pending[i].UTXOKey, pending[j].UTXOKey)
	})
	if m.cfg.MaxEnrollmentsPerBlock > 0 && len(pending) > m.cfg.MaxEnrollmentsPerBlock {
		pending = pending[:m.cfg.MaxEnrollmentsPerBlock]
	}
	return pending, nil
}

// Admit moves an accepted enrollment from the pending pool into the
// active validator set at enrollHeight — called once the block carrying
// it has externalized (spec.md §4.4's Candidate → Enrolled transition).
func (m *Manager) Admit(e enroll.Enrollment, enrollHeight uint64, recurring bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := fromEnrollment(e, enrollHeight, recurring)
	state.Phase = PhaseActive
	if err := m.putState(state); err != nil {
		return err
	}
	return m.db.Delete(pendingKey(e.UTXOKey))
}

// ActiveValidators returns the pubkeys of every validator active at
// height h, sorted ascending for canonical ordering.
func (m *Manager) ActiveValidators(h uint64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active [][]byte
	err := m.db.ForEach(prefixActive, func(_, value []byte) error {
		var v ValidatorState
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("validator state unmarshal: %w", err)
		}
		if v.ActiveAt(h) {
			active = append(active, v.PubKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(active, func(i, j int) bool { return bytes.Compare(active[i], active[j]) < 0 })
	return active, nil
}

// RecordReveal verifies a pre-image reveal against the validator's
// committed chain and, if valid, updates its latest-revealed bookkeeping.
func (m *Manager) RecordReveal(p enroll.PreImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.getState(p.UTXOKey)
	if err != nil {
		return err
	}
	if !p.Verify(state.Commitment) {
		return fmt.Errorf("enrollment: pre-image does not verify against commitment for %s", p.UTXOKey)
	}
	if p.Distance > state.LatestDistance || !state.HasRevealed {
		state.LatestRevealed = p.Value
		state.LatestDistance = p.Distance
		state.HasRevealed = true
	}
	return m.putState(state)
}

// CheckMissedReveals scans every active validator at height h and
// returns a SlashAction for each one that has not revealed a pre-image
// within RevealGraceBlocks of what height h requires — the ledger
// coordinator applies these deductions when it builds the block at h
// (spec.md §4.4 "Reveal tracking").
func (m *Manager) CheckMissedReveals(h uint64) ([]SlashAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var actions []SlashAction
	err := m.db.ForEach(prefixActive, func(_, value []byte) error {
		var v ValidatorState
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("validator state unmarshal: %w", err)
		}
		if v.Phase != PhaseActive || h <= v.EnrollHeight || h > v.EnrollHeight+v.CycleLength {
			return nil
		}
		required := h - v.EnrollHeight - 1
		grace := m.cfg.RevealGraceBlocks
		if !v.HasRevealed || v.LatestDistance+grace < required {
			v.Phase = PhaseSlashed
			if err := m.putStateLocked(&v); err != nil {
				return err
			}
			actions = append(actions, SlashAction{
				UTXOKey: v.UTXOKey,
				PubKey:  v.PubKey,
				Amount:  m.cfg.SlashPenaltyAmount,
			})
		}
		return nil
	})
	return actions, err
}

// ValidatorState returns the active-set state for utxoKey, the backing
// lookup for the get_enrollment Peer RPC method when the enrollment has
// already been admitted (spec.md §6).
func (m *Manager) ValidatorState(utxoKey types.Outpoint) (*ValidatorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getState(utxoKey)
}

// PendingEnrollment returns the still-pending enrollment for utxoKey, if
// any — the backing lookup for get_enrollment before a validator's
// enrollment has been admitted into a block (spec.md §6).
func (m *Manager) PendingEnrollment(utxoKey types.Outpoint) (*enroll.Enrollment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.db.Get(pendingKey(utxoKey))
	if err != nil {
		return nil, false, nil
	}
	var e enroll.Enrollment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("pending enrollment unmarshal: %w", err)
	}
	return &e, true, nil
}

// LatestPreimage returns the most recently recorded reveal for utxoKey,
// the backing lookup for the get_preimage Peer RPC method (spec.md §6).
func (m *Manager) LatestPreimage(utxoKey types.Outpoint) (enroll.PreImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.getState(utxoKey)
	if err != nil {
		return enroll.PreImage{}, err
	}
	if !state.HasRevealed {
		return enroll.PreImage{}, fmt.Errorf("enrollment: %s has not revealed a pre-image yet", utxoKey)
	}
	return enroll.PreImage{
		UTXOKey:  utxoKey,
		Value:    state.LatestRevealed,
		Distance: state.LatestDistance,
	}, nil
}

func (m *Manager) isActiveLocked(pubKey []byte) (bool, error) {
	found := false
	err := m.db.ForEach(prefixActive, func(_, value []byte) error {
		var v ValidatorState
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		if bytes.Equal(v.PubKey, pubKey) && v.Phase != PhaseEjected && v.Phase != PhaseCycleEnded {
			found = true
		}
		return nil
	})
	return found, err
}

func (m *Manager) getState(utxoKey types.Outpoint) (*ValidatorState, error) {
	data, err := m.db.Get(activeKey(utxoKey))
	if err != nil {
		return nil, fmt.Errorf("validator state get: %w", err)
	}
	var v ValidatorState
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("validator state unmarshal: %w", err)
	}
	return &v, nil
}

func (m *Manager) putState(v *ValidatorState) error {
	return m.putStateLocked(v)
}

func (m *Manager) putStateLocked(v *ValidatorState) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("validator state marshal: %w", err)
	}
	return m.db.Put(activeKey(v.UTXOKey), data)
}

func lessOutpoint(a, b types.Outpoint) bool {
	if c := bytes.Compare(a.TxID[:], b.TxID[:]); c != 0 {
		return c < 0
	}
	return a.Index < b.Index
}

func pendingKey(utxoKey types.Outpoint) []byte {
	return append(append([]byte{}, prefixPending...), outpointBytes(utxoKey)...)
}

func activeKey(utxoKey types.Outpoint) []byte {
	return append(append([]byte{}, prefixActive...), outpointBytes(utxoKey)...)
}

func outpointBytes(o types.Outpoint) []byte {
	buf := make([]byte, 0, types.HashSize+4)
	buf = append(buf, o.TxID[:]...)
	buf = append(buf, indexBytes(o.Index)...)
	return buf
}
