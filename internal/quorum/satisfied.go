package quorum

// Satisfied reports whether enough members of q have voted (per voted) to
// cross q's threshold — the federated-voting acceptance test the
// consensus driver runs against its own quorum set and, for peers it
// hears from, against a peer's own advertised quorum set. A Set is
// satisfied when at least Threshold of its direct entries (validator
// leaves plus inner sets, each inner set recursively satisfied) are
// affirmed.
func Satisfied(q Set, voted func(pubKey []byte) bool) bool {
	if voted == nil {
		return false
	}
	count := 0
	for _, v := range q.Validators {
		if voted(v) {
			count++
		}
	}
	for _, in := range q.Inner {
		if Satisfied(in, voted) {
			count++
		}
	}
	return count >= q.Threshold
}
