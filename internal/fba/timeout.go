package fba

import "time"

// maxRoundTimeoutSeconds caps the linear round-timeout back-off (spec.md
// §4.6 "Timeout policy").
const maxRoundTimeoutSeconds = 1800

// RoundTimeout computes a slot round's timeout: min(round, 1800) seconds,
// a linear back-off capped at 30 minutes (spec.md §4.6). Round numbers
// start at 1; callers must not pass round 0.
func RoundTimeout(round uint64) time.Duration {
	seconds := round
	if seconds > maxRoundTimeoutSeconds {
		seconds = maxRoundTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}
