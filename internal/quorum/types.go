// Package quorum derives and validates federated byzantine agreement
// quorum sets (spec.md §4.5 "Quorum Constructor"). A QuorumSet is a tree
// of depth at most 2: a threshold, a list of validator leaves, and a list
// of inner quorum sets, each itself a {threshold, leaves} pair.
package quorum

import (
	"bytes"
	"sort"
)

// Set is a quorum slice: threshold-k-of-n over a mix of validator leaves
// and nested inner sets (spec.md §3 "QuorumSet"). An inner singleton
// {Threshold: 1, Validators: [v]} is semantically equivalent to v itself;
// Normalize collapses that case.
type Set struct {
	Threshold  int      `json:"threshold"`
	Validators [][]byte `json:"validators"` // Compressed pubkeys, 33 bytes each.
	Inner      []Set    `json:"inner"`
}

// leafCount returns the total number of validator leaves reachable from
// this set, including those nested in inner sets.
func (s Set) leafCount() int {
	n := len(s.Validators)
	for _, in := range s.Inner {
		n += in.leafCount()
	}
	return n
}

// depth returns the tree depth rooted at this set (a set with no inner
// sets has depth 1).
func (s Set) depth() int {
	max := 0
	for _, in := range s.Inner {
		if d := in.depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// containsValidator reports whether pubKey appears as a leaf anywhere in
// the tree rooted at this set.
func (s Set) containsValidator(pubKey []byte) bool {
	for _, v := range s.Validators {
		if bytes.Equal(v, pubKey) {
			return true
		}
	}
	for _, in := range s.Inner {
		if in.containsValidator(pubKey) {
			return true
		}
	}
	return false
}

// sortedCopy returns a deep copy of s with validator leaves sorted
// ascending by bytes and inner sets sorted lexicographically by
// (validators, inner-sets, threshold), as required for canonical,
// byte-identical output across nodes (spec.md §4.5 step 6).
func (s Set) sortedCopy() Set {
	out := Set{Threshold: s.Threshold}
	if len(s.Validators) > 0 {
		out.Validators = make([][]byte, len(s.Validators))
		copy(out.Validators, s.Validators)
		sort.Slice(out.Validators, func(i, j int) bool {
			return bytes.Compare(out.Validators[i], out.Validators[j]) < 0
		})
	}
	if len(s.Inner) > 0 {
		out.Inner = make([]Set, len(s.Inner))
		for i, in := range s.Inner {
			out.Inner[i] = in.sortedCopy()
		}
		sort.Slice(out.Inner, func(i, j int) bool {
			return compareSets(out.Inner[i], out.Inner[j]) < 0
		})
	}
	return out
}

func compareSets(a, b Set) int {
	la, lb := len(a.Validators), len(b.Validators)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if c := bytes.Compare(a.Validators[i], b.Validators[i]); c != 0 {
			return c
		}
	}
	if la != lb {
		return la - lb
	}
	ia, ib := len(a.Inner), len(b.Inner)
	m := ia
	if ib < m {
		m = ib
	}
	for i := 0; i < m; i++ {
		if c := compareSets(a.Inner[i], b.Inner[i]); c != 0 {
			return c
		}
	}
	if ia != ib {
		return ia - ib
	}
	return a.Threshold - b.Threshold
}

// blockingThreshold returns the minimum threshold that makes every slice
// containing this node a blocking set under strict sanity: entries -
// threshold + 1 (spec.md §4.5 step 5).
func blockingThreshold(entries, threshold int) int {
	return entries - threshold + 1
}
