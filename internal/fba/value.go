// Package fba implements the consensus driver (spec.md §4.6): the bridge
// between the ledger and the federated-voting nomination/ballot protocol.
// No off-the-shelf Go implementation of Stellar-style SCP exists in the
// reference corpus, so the federated-voting threshold check
// (internal/quorum.Satisfied) and the two-phase nominate/confirm state
// machine below are original to this package, grounded directly on
// spec.md §4.6's callback list and §5's single-goroutine event-loop
// model rather than on a teacher file.
package fba

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Value is a slot's candidate proposal: a transaction set plus any
// enrollments to admit at this height (spec.md §4.6 "decodes value as a
// candidate transaction set").
type Value struct {
	Transactions []*tx.Transaction
	Enrollments  []enroll.Enrollment
}

// Fingerprint deterministically fingerprints a value for combine and
// tie-break comparisons: the domain-hash of its sorted transaction
// hashes followed by its sorted enrollment hashes (spec.md §4.6
// "combine_candidates": "pick the value whose transaction-set
// fingerprint sorts smallest ... tie-break by the hash of the tx-set").
func (v *Value) Fingerprint() types.Hash {
	txHashes := make([]types.Hash, len(v.Transactions))
	for i, t := range v.Transactions {
		txHashes[i] = t.Hash()
	}
	sort.Slice(txHashes, func(i, j int) bool { return bytes.Compare(txHashes[i][:], txHashes[j][:]) < 0 })

	enrollHashes := make([]types.Hash, len(v.Enrollments))
	for i := range v.Enrollments {
		enrollHashes[i] = v.Enrollments[i].Hash()
	}
	sort.Slice(enrollHashes, func(i, j int) bool { return bytes.Compare(enrollHashes[i][:], enrollHashes[j][:]) < 0 })

	buf := make([]byte, 0, 4+len(txHashes)*types.HashSize+4+len(enrollHashes)*types.HashSize)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(txHashes)))
	for _, h := range txHashes {
		buf = append(buf, h[:]...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(enrollHashes)))
	for _, h := range enrollHashes {
		buf = append(buf, h[:]...)
	}
	return crypto.DomainHash(crypto.DomainValueFingerprint, buf)
}

// IsEmpty reports whether the value carries no transactions and no
// enrollments — the degenerate "nothing to propose" candidate.
func (v *Value) IsEmpty() bool {
	return len(v.Transactions) == 0 && len(v.Enrollments) == 0
}
