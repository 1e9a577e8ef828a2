package quorum

import "errors"

// Sanity errors (spec.md §4.5 step 5, §3 "Quorum-set sanity").
var (
	ErrDepthExceeded  = errors.New("quorum set depth exceeds 2")
	ErrThresholdRange = errors.New("quorum set threshold out of [1, entries] range")
	ErrDuplicateLeaf  = errors.New("quorum set has a validator duplicated across branches")
	ErrTooManyLeaves  = errors.New("quorum set has more than 1000 total leaves")
	ErrNotBlocking    = errors.New("quorum set threshold does not form a blocking set under strict sanity")
	ErrEmptySet       = errors.New("quorum set has no entries")
)

// MaxLeaves is the maximum number of validator leaves a quorum set may
// reference, across all nested inner sets (spec.md §3).
const MaxLeaves = 1000

// Sanity reports whether q satisfies the structural invariants every
// quorum set produced by the constructor must hold: depth ≤ 2, threshold
// in [1, entries], no validator duplicated across branches, at most
// MaxLeaves total leaves, and, under strict mode, a threshold that forms
// a blocking set (threshold ≥ entries − threshold + 1).
func Sanity(q Set, strict bool) error {
	return sanity(q, strict, make(map[string]bool))
}

func sanity(q Set, strict bool, seen map[string]bool) error {
	if q.depth() > 2 {
		return ErrDepthExceeded
	}
	entries := len(q.Validators) + len(q.Inner)
	if entries == 0 {
		return ErrEmptySet
	}
	if q.Threshold < 1 || q.Threshold > entries {
		return ErrThresholdRange
	}
	if strict && q.Threshold < blockingThreshold(entries, q.Threshold) {
		return ErrNotBlocking
	}
	if q.leafCount() > MaxLeaves {
		return ErrTooManyLeaves
	}
	for _, v := range q.Validators {
		key := string(v)
		if seen[key] {
			return ErrDuplicateLeaf
		}
		seen[key] = true
	}
	for _, in := range q.Inner {
		if len(in.Inner) > 0 {
			return ErrDepthExceeded
		}
		if err := sanity(in, strict, seen); err != nil {
			return err
		}
	}
	return nil
}
