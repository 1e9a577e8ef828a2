package enroll

import (
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// PreImage is a single pre-image chain reveal, returned by the
// get_preimage Peer RPC method (spec.md §6) and carried internally by the
// validator-set reveal tracker.
type PreImage struct {
	UTXOKey  types.Outpoint `json:"utxo_key"`
	Value    types.Hash     `json:"value"`    // h[N-1-k], the revealed pre-image.
	Distance uint64         `json:"distance"` // k, the age since enrollment.
}

// Verify checks that hashing Value forward Distance times reaches the
// enrollment's commitment: hash^distance(value) == commitment. At
// distance 0, Value must equal commitment itself.
func (p PreImage) Verify(commitment types.Hash) bool {
	h := p.Value
	for i := uint64(0); i < p.Distance; i++ {
		h = crypto.PreimageStep(h)
	}
	return h == commitment
}
