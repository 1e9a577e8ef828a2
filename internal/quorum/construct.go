package quorum

import (
	"fmt"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Config holds the constructor's tunable protocol parameters (spec.md
// §4.5 and config.Protocol's max_quorum_nodes/quorum_threshold fields).
type Config struct {
	MaxGroupSize int // max_quorum_nodes.
	ThresholdPct int // quorum_threshold, percent.
	Strict       bool
}

// Construct derives every validator's quorum set from the active
// validator list and a per-height seed, following spec.md §4.5's
// shuffle-and-partition algorithm: shuffle, partition into groups, assign
// each validator its group's quorum set, wrap groups in an outer set when
// there is more than one, run sanity, then normalize (with self removed
// from its own quorum set — a validator never depends on itself).
//
// Returns a map from validator pubkey to its derived quorum set.
func Construct(validators [][]byte, seed types.Hash, cfg Config) (map[string]Set, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("quorum construct: no active validators")
	}

	shuffled := Shuffle(validators, seed)
	groups := Partition(shuffled, cfg.MaxGroupSize)

	groupSets := make([]Set, len(groups))
	for i, g := range groups {
		groupSets[i] = Set{
			Threshold:  thresholdFor(len(g), cfg.ThresholdPct),
			Validators: g,
		}
	}

	result := make(map[string]Set, len(validators))
	for _, g := range groups {
		for _, v := range g {
			q := quorumSetFor(groupSets, cfg.ThresholdPct)
			if err := Sanity(q, cfg.Strict); err != nil {
				return nil, fmt.Errorf("quorum construct: %w", err)
			}
			norm := Normalize(q, v)
			// Self-removal can shrink a branch's entry count out from
			// under its threshold (see Normalize's clampThresholds); a
			// quorum set that fails sanity after normalization is just as
			// disqualifying as one that fails before it.
			if err := Sanity(norm, cfg.Strict); err != nil {
				return nil, fmt.Errorf("quorum construct: normalized quorum set failed sanity: %w", err)
			}
			result[string(v)] = norm
		}
	}
	return result, nil
}

// quorumSetFor builds the quorum set a validator sees: if there is only
// one group, that group's set is used directly; otherwise every group is
// wrapped as an inner set under a top-level threshold computed over the
// number of groups (spec.md §4.5 step 4).
func quorumSetFor(groupSets []Set, thresholdPct int) Set {
	if len(groupSets) == 1 {
		return groupSets[0]
	}
	inner := make([]Set, len(groupSets))
	copy(inner, groupSets)
	return Set{
		Threshold: thresholdFor(len(inner), thresholdPct),
		Inner:     inner,
	}
}

// thresholdFor computes ⌈thresholdPct · n / 100⌉, floored at 1.
func thresholdFor(n, thresholdPct int) int {
	t := (n*thresholdPct + 99) / 100
	if t < 1 {
		t = 1
	}
	if t > n {
		t = n
	}
	return t
}

// Seed derives the per-height quorum seed by XOR-folding the revealed
// pre-images contributed to a block, per spec.md §4.5 ("a per-height
// random seed derived from pre-image commitments (XOR-fold of revealed
// pre-images for the block)").
func Seed(revealed []types.Hash) types.Hash {
	var fold types.Hash
	for _, h := range revealed {
		for i := range fold {
			fold[i] ^= h[i]
		}
	}
	return crypto.DomainHash(crypto.DomainQuorumSeed, fold[:])
}
