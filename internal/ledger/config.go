// Package ledger implements the Ledger Coordinator (spec.md §4.7): the
// orchestrator that applies externalised transaction sets, derives
// validator quorums, triggers re-enrollment, and answers the Peer RPC
// surface on a single-goroutine event loop (spec.md §5), grounded on the
// teacher's internal/node.Node ctx/cancel/WaitGroup lifecycle shape.
package ledger

import "time"

// Config bundles the coordinator's protocol-derived and node-local
// parameters (spec.md §6 "Configuration (recognised options)").
type Config struct {
	BlockIntervalSec    uint64 // block_interval_sec.
	TxsToNominate       int    // txs_to_nominate (0 = unlimited).
	ValidatorCycle      uint64 // validator_cycle, N in the pre-image chain length.
	MaxQuorumNodes      int
	QuorumThresholdPct  int
	SlashPenaltyAmount  uint64
	MinFee              uint64
	RecurringEnrollment bool

	CatchupInterval time.Duration // block_catchup_interval.
	MaxRetries      int
	RetryDelay      time.Duration
}

// DefaultConfig returns reasonable defaults for a local/test ledger.
func DefaultConfig() Config {
	return Config{
		BlockIntervalSec:    5,
		TxsToNominate:       0,
		ValidatorCycle:      1008,
		MaxQuorumNodes:      10,
		QuorumThresholdPct:  67,
		SlashPenaltyAmount:  0,
		MinFee:              1,
		RecurringEnrollment: true,
		CatchupInterval:     10 * time.Second,
		MaxRetries:          3,
		RetryDelay:          2 * time.Second,
	}
}
