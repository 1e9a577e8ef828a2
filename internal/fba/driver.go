package fba

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fbanet/ledgercore/internal/quorum"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Validity is the result of validate_value (spec.md §4.6).
type Validity int

const (
	Invalid Validity = iota
	FullyValid
)

// Ledger is the subset of the ledger coordinator the driver calls back
// into (spec.md §4.6): UTXO-consistency/min-fee checking for candidate
// values, and block assembly once a slot externalizes.
type Ledger interface {
	ValidateTxSet(value *Value) error
	OnTxSetExternalized(slot uint64, value *Value) error
}

// Transport broadcasts an envelope to peers whose client is in the
// quorum (spec.md §4.6 "emit_envelope"). Send failures are the
// transport's problem to swallow — the driver treats emission as
// fire-and-forget.
type Transport interface {
	Broadcast(env *Envelope)
}

// QuorumLookup resolves a quorum-set hash to its contents, the
// get_quorum_set callback's backing cache (spec.md §4.6).
type QuorumLookup func(hash types.Hash) (quorum.Set, bool)

// slotState tracks one slot's in-progress federated vote.
type slotState struct {
	round             uint64
	externalized      bool
	externalizedValue *Value
	nominateVotes     map[string]*Value
	confirmVotes      map[string]types.Hash
	confirmSigs       map[string][]byte // nodeID -> signature over its Confirm statement, for block aggregation.
	confirmedValue    map[types.Hash]*Value
	combined          bool
}

func newSlotState() *slotState {
	return &slotState{
		nominateVotes:  make(map[string]*Value),
		confirmVotes:   make(map[string]types.Hash),
		confirmSigs:    make(map[string][]byte),
		confirmedValue: make(map[types.Hash]*Value),
	}
}

// Driver bridges the ledger to the nomination/confirm federated-voting
// protocol (spec.md §4.6). It starts no goroutines of its own, but the
// callbacks it schedules through SetupTimer run on time.AfterFunc
// goroutines; mu guards the driver's state.
type Driver struct {
	mu sync.Mutex

	nodeID       []byte
	signer       *crypto.PrivateKey
	ledger       Ledger
	transport    Transport
	quorumLookup QuorumLookup
	selfQuorum   quorum.Set

	timers *Timers
	slots  map[uint64]*slotState
}

// NewDriver creates a consensus driver for a local validator identified
// by signer, voting under selfQuorum.
func NewDriver(signer *crypto.PrivateKey, selfQuorum quorum.Set, ledger Ledger, transport Transport, quorumLookup QuorumLookup) *Driver {
	return &Driver{
		nodeID:       signer.PublicKey(),
		signer:       signer,
		ledger:       ledger,
		transport:    transport,
		quorumLookup: quorumLookup,
		selfQuorum:   selfQuorum,
		timers:       NewTimers(),
		slots:        make(map[uint64]*slotState),
	}
}

func (d *Driver) slotLocked(slot uint64) *slotState {
	s, ok := d.slots[slot]
	if !ok {
		s = newSlotState()
		d.slots[slot] = s
	}
	return s
}

// ValidateValue decodes value as a candidate transaction set and checks
// it against the ledger's UTXO-consistency and min-fee rules (spec.md
// §4.6 "validate_value").
func (d *Driver) ValidateValue(slot uint64, value *Value, nomination bool) Validity {
	if value == nil {
		return Invalid
	}
	if err := d.ledger.ValidateTxSet(value); err != nil {
		return Invalid
	}
	return FullyValid
}

// ValueExternalized handles a slot's outcome, idempotently (spec.md §4.6
// "value_externalized": "idempotent — if slot is already recorded as
// externalised, ignore").
func (d *Driver) ValueExternalized(slot uint64, value *Value) error {
	d.mu.Lock()
	s := d.slotLocked(slot)
	if s.externalized {
		d.mu.Unlock()
		return nil
	}
	s.externalized = true
	s.externalizedValue = value
	d.mu.Unlock()

	d.timers.Setup(slot, TimerNomination, 0, nil)
	d.timers.Setup(slot, TimerBallot, 0, nil)
	return d.ledger.OnTxSetExternalized(slot, value)
}

// ConfirmSignatures returns the Confirm-statement signatures this node
// collected for slot, keyed by compressed validator pubkey. The ledger
// coordinator uses these as each validator's attestation to the
// externalized value when assembling a block's aggregate signature,
// since a Confirm vote for the value's fingerprint already commits that
// validator to exactly the tx set and enrollments the block carries.
func (d *Driver) ConfirmSignatures(slot uint64) map[string][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.slotLocked(slot)
	out := make(map[string][]byte, len(s.confirmSigs))
	for k, v := range s.confirmSigs {
		out[k] = v
	}
	return out
}

// EmitEnvelope broadcasts env via the transport (spec.md §4.6
// "emit_envelope").
func (d *Driver) EmitEnvelope(env *Envelope) {
	d.transport.Broadcast(env)
}

// SignEnvelope Schnorr-signs env's canonical encoding (spec.md §4.6
// "sign_envelope").
func (d *Driver) SignEnvelope(env *Envelope) error {
	return Sign(env, d.signer)
}

// GetQuorumSet looks up a quorum set by hash in the driver's cache
// (spec.md §4.6 "get_quorum_set").
func (d *Driver) GetQuorumSet(hash types.Hash) (quorum.Set, bool) {
	if d.quorumLookup == nil {
		return quorum.Set{}, false
	}
	return d.quorumLookup(hash)
}

// SetupTimer schedules callback after timeout unless superseded (spec.md
// §4.6 "setup_timer").
func (d *Driver) SetupTimer(slot uint64, kind TimerKind, timeout time.Duration, callback func()) {
	d.timers.Setup(slot, kind, timeout, callback)
}

// CancelAll marks every outstanding timer cancelled, for cooperative
// shutdown (spec.md §5 "Task cancellation on node shutdown").
func (d *Driver) CancelAll() {
	d.timers.CancelAll()
}

// Nominate starts this node's vote for slot with value: records its own
// nominate vote, signs, and emits a Nominate envelope (spec.md §4.6
// "Nomination policy").
func (d *Driver) Nominate(slot uint64, value *Value) error {
	d.mu.Lock()
	s := d.slotLocked(slot)
	if s.externalized {
		d.mu.Unlock()
		return nil
	}
	s.round++
	round := s.round
	s.nominateVotes[string(d.nodeID)] = value
	d.mu.Unlock()

	env := &Envelope{Statement: Statement{
		Slot:    slot,
		Kind:    StatementNominate,
		ValueFP: value.Fingerprint(),
		Value:   value,
	}}
	if err := d.SignEnvelope(env); err != nil {
		return fmt.Errorf("sign nomination: %w", err)
	}
	d.EmitEnvelope(env)
	d.SetupTimer(slot, TimerNomination, RoundTimeout(round), func() {
		d.Nominate(slot, value)
	})
	return d.tryCombine(slot)
}

// ReceiveEnvelope forwards env to the federated-voting state machine
// (spec.md §5 "receive_envelope(env) forwards to the FBA library, which
// may call back into validate_value"). Envelopes for already-
// externalised slots are accepted but never re-externalise.
func (d *Driver) ReceiveEnvelope(env *Envelope) error {
	if !env.VerifySignature() {
		return errors.New("fba: envelope signature does not verify")
	}
	st := env.Statement

	switch st.Kind {
	case StatementNominate:
		if st.Value == nil || d.ValidateValue(st.Slot, st.Value, true) != FullyValid {
			return nil
		}
		d.mu.Lock()
		s := d.slotLocked(st.Slot)
		if s.externalized {
			d.mu.Unlock()
			return nil
		}
		s.nominateVotes[string(st.NodeID)] = st.Value
		d.mu.Unlock()
		return d.tryCombine(st.Slot)

	case StatementConfirm:
		d.mu.Lock()
		s := d.slotLocked(st.Slot)
		if s.externalized {
			d.mu.Unlock()
			return nil
		}
		s.confirmVotes[string(st.NodeID)] = st.ValueFP
		s.confirmSigs[string(st.NodeID)] = env.Signature
		if st.Value != nil {
			s.confirmedValue[st.ValueFP] = st.Value
		}
		value, ready := d.checkConfirmLocked(s, st.ValueFP)
		d.mu.Unlock()
		if ready {
			return d.ValueExternalized(st.Slot, value)
		}
		return nil

	case StatementExternalize:
		d.mu.Lock()
		s := d.slotLocked(st.Slot)
		already := s.externalized
		d.mu.Unlock()
		if already || st.Value == nil {
			return nil
		}
		return d.ValueExternalized(st.Slot, st.Value)
	}
	return nil
}

// tryCombine checks whether this node's quorum is satisfied by the
// nominate votes collected so far for slot; if so, it combines them into
// one value and moves the slot into the confirm phase.
func (d *Driver) tryCombine(slot uint64) error {
	d.mu.Lock()
	s := d.slotLocked(slot)
	if s.externalized || s.combined {
		d.mu.Unlock()
		return nil
	}
	satisfied := quorum.Satisfied(d.selfQuorum, func(pubKey []byte) bool {
		_, voted := s.nominateVotes[string(pubKey)]
		return voted
	})
	if !satisfied {
		d.mu.Unlock()
		return nil
	}
	candidates := make([]*Value, 0, len(s.nominateVotes))
	for _, v := range s.nominateVotes {
		candidates = append(candidates, v)
	}
	s.combined = true
	round := s.round
	d.mu.Unlock()

	combined, err := CombineCandidates(candidates, func(v *Value) bool {
		return d.ValidateValue(slot, v, false) == FullyValid
	})
	if err != nil {
		return nil
	}

	fp := combined.Fingerprint()
	env := &Envelope{Statement: Statement{Slot: slot, Kind: StatementConfirm, ValueFP: fp, Value: combined}}
	if err := d.SignEnvelope(env); err != nil {
		return fmt.Errorf("sign confirm: %w", err)
	}

	d.mu.Lock()
	s.confirmVotes[string(d.nodeID)] = fp
	s.confirmSigs[string(d.nodeID)] = env.Signature
	s.confirmedValue[fp] = combined
	value, ready := d.checkConfirmLocked(s, fp)
	d.mu.Unlock()

	d.EmitEnvelope(env)
	d.SetupTimer(slot, TimerBallot, RoundTimeout(round), func() {
		d.tryCombine(slot)
	})

	if ready {
		return d.ValueExternalized(slot, value)
	}
	return nil
}

// checkConfirmLocked reports whether the quorum has converged on
// fingerprint fp for slot s, returning the agreed value if so. Caller
// must hold d.mu.
func (d *Driver) checkConfirmLocked(s *slotState, fp types.Hash) (*Value, bool) {
	satisfied := quorum.Satisfied(d.selfQuorum, func(pubKey []byte) bool {
		voted, ok := s.confirmVotes[string(pubKey)]
		return ok && voted == fp
	})
	if !satisfied {
		return nil, false
	}
	value, ok := s.confirmedValue[fp]
	return value, ok
}
