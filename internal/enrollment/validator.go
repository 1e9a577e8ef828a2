package enrollment

import (
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Phase is a validator's position in its enrollment lifecycle (spec.md
// §4.4 "State machine per validator": Candidate → Enrolled(h0) →
// Active(h0..h0+N); on each block either Revealing(k) advances or
// MissedReveal → Slashed → Ejected; terminal CycleEnded → Ejected unless
// re-enrolling).
type Phase int

const (
	PhaseCandidate Phase = iota
	PhaseEnrolled
	PhaseActive
	PhaseMissedReveal
	PhaseSlashed
	PhaseCycleEnded
	PhaseEjected
)

func (p Phase) String() string {
	switch p {
	case PhaseCandidate:
		return "Candidate"
	case PhaseEnrolled:
		return "Enrolled"
	case PhaseActive:
		return "Active"
	case PhaseMissedReveal:
		return "MissedReveal"
	case PhaseSlashed:
		return "Slashed"
	case PhaseCycleEnded:
		return "CycleEnded"
	case PhaseEjected:
		return "Ejected"
	default:
		return "Unknown"
	}
}

// ValidatorState is a validator's mapping from enrolled UTXO-key to
// {enrolled-height, latest-revealed pre-image, latest-revealed distance}
// (spec.md §3 "Validator Set"), plus the bookkeeping needed to drive its
// lifecycle.
type ValidatorState struct {
	UTXOKey      types.Outpoint `json:"utxo_key"`
	PubKey       []byte         `json:"pubkey"`
	EnrollHeight uint64         `json:"enroll_height"`
	CycleLength  uint64         `json:"cycle_length"`
	Commitment   types.Hash     `json:"commitment"`
	Signature    []byte         `json:"signature"`

	LatestRevealed types.Hash `json:"latest_revealed"`
	LatestDistance uint64     `json:"latest_distance"`
	HasRevealed    bool       `json:"has_revealed"`

	Recurring bool  `json:"recurring"`
	Phase     Phase `json:"phase"`
}

// ActiveAt reports whether the validator is active at height h: per
// spec.md §3, enrolled-height < h ≤ enrolled-height + N and it has
// revealed a pre-image at distance ≥ h - enrolled-height - 1.
func (v *ValidatorState) ActiveAt(h uint64) bool {
	if h <= v.EnrollHeight || h > v.EnrollHeight+v.CycleLength {
		return false
	}
	required := h - v.EnrollHeight - 1
	return v.HasRevealed && v.LatestDistance >= required
}

// CycleEndHeight returns the height at which this validator's cycle ends
// (enroll_height + N), after which it must re-enroll to remain active.
func (v *ValidatorState) CycleEndHeight() uint64 {
	return v.EnrollHeight + v.CycleLength
}

// fromEnrollment builds a fresh ValidatorState in PhaseEnrolled for an
// admitted enrollment.
func fromEnrollment(e enroll.Enrollment, enrollHeight uint64, recurring bool) *ValidatorState {
	return &ValidatorState{
		UTXOKey:      e.UTXOKey,
		PubKey:       e.SignerPubKey,
		EnrollHeight: enrollHeight,
		CycleLength:  e.CycleLength,
		Commitment:   e.Commitment,
		Signature:    e.Signature,
		Recurring:    recurring,
		Phase:        PhaseEnrolled,
	}
}
