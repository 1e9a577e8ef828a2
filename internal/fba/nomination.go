package fba

import (
	"github.com/fbanet/ledgercore/internal/mempool"
	"github.com/fbanet/ledgercore/pkg/enroll"
)

// ProposeValue asks the pool for up to txsToNominate transactions and
// pairs them with any pending enrollments, the candidate the driver
// proposes at the start of a slot (spec.md §4.6 "Nomination policy").
// The second return is false when txsToNominate > 0 but fewer
// transactions than that are currently available — nomination is
// deferred rather than proposing a short set.
func ProposeValue(pool *mempool.Pool, txsToNominate int, pendingEnrollments []enroll.Enrollment) (*Value, bool) {
	txs := pool.SelectForNomination(txsToNominate)
	if txsToNominate > 0 && len(txs) < txsToNominate {
		return nil, false
	}
	return &Value{Transactions: txs, Enrollments: pendingEnrollments}, true
}
