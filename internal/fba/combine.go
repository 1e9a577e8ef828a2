package fba

import (
	"bytes"
	"errors"
)

// ErrNoValidCandidates is returned by CombineCandidates when every
// candidate failed validation.
var ErrNoValidCandidates = errors.New("fba: no valid candidate values to combine")

// CombineCandidates deterministically merges a slot's candidate values:
// discard any candidate validate rejects, then pick the valid candidate
// whose fingerprint sorts smallest, ties broken the same way since the
// fingerprint already is the tx-set hash (spec.md §4.6
// "combine_candidates").
func CombineCandidates(candidates []*Value, validate func(*Value) bool) (*Value, error) {
	var best *Value
	var bestFP []byte
	for _, c := range candidates {
		if validate != nil && !validate(c) {
			continue
		}
		fp := c.Fingerprint()
		if best == nil || bytes.Compare(fp[:], bestFP) < 0 {
			best = c
			bestFP = fp[:]
		}
	}
	if best == nil {
		return nil, ErrNoValidCandidates
	}
	return best, nil
}
