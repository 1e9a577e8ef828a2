package quorum

import "bytes"

// Normalize applies the constructor's final canonicalization pass (spec.md
// §4.5 step 6): optionally remove a self pubkey from every level, collapse
// singleton inner sets into their parent, repair any threshold left
// stranded above its entry count by that removal, then sort validators
// ascending and inner sets lexicographically so that any two nodes
// deriving the same unnormalized tree produce byte-identical output.
func Normalize(q Set, self []byte) Set {
	q = removeValidator(q, self)
	q = collapseSingletons(q)
	q = clampThresholds(q)
	return q.sortedCopy()
}

// clampThresholds repairs a threshold left stale by self-removal: removing
// self shrinks entries by one in whichever branch held it, but Threshold
// (computed by thresholdFor against the pre-removal group size) is not
// otherwise adjusted, which can leave Threshold > entries — e.g. a
// 2-validator group at ThresholdPct=100 normalizes down to {Threshold:2,
// Validators:[other]}, an unsatisfiable 1-entry set. Recurses into every
// inner set and floors each level's threshold at min(Threshold, entries),
// never below 1.
func clampThresholds(q Set) Set {
	for i, in := range q.Inner {
		q.Inner[i] = clampThresholds(in)
	}
	entries := len(q.Validators) + len(q.Inner)
	if q.Threshold > entries {
		q.Threshold = entries
	}
	if q.Threshold < 1 {
		q.Threshold = 1
	}
	return q
}

func removeValidator(q Set, target []byte) Set {
	if len(target) == 0 {
		return q
	}
	out := Set{Threshold: q.Threshold}
	for _, v := range q.Validators {
		if !bytes.Equal(v, target) {
			out.Validators = append(out.Validators, v)
		}
	}
	for _, in := range q.Inner {
		out.Inner = append(out.Inner, removeValidator(in, target))
	}
	return out
}

// collapseSingletons folds an inner singleton {Threshold: 1, Validators:
// [v], no Inner} into its parent as a plain validator leaf, and an outer
// {Threshold: 1, no Validators, exactly one Inner} into that inner set
// directly (spec.md §3 "QuorumSet").
func collapseSingletons(q Set) Set {
	var inner []Set
	for _, in := range q.Inner {
		collapsed := collapseSingletons(in)
		if collapsed.Threshold == 1 && len(collapsed.Validators) == 1 && len(collapsed.Inner) == 0 {
			q.Validators = append(q.Validators, collapsed.Validators[0])
			continue
		}
		inner = append(inner, collapsed)
	}
	q.Inner = inner

	if q.Threshold == 1 && len(q.Validators) == 0 && len(q.Inner) == 1 {
		return q.Inner[0]
	}
	return q
}
