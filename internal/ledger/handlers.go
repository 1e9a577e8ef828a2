package ledger

import (
	"fmt"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/internal/netrpc"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Ledger implements netrpc.Handlers, the eleven Peer RPC methods (spec.md
// §6). Every method here is invoked on a libp2p stream-handler goroutine,
// never the event loop. ReceiveEnvelope, SendEnrollment and SendPreimage
// hop over via dispatch; the read-only methods call the stores directly.
var _ netrpc.Handlers = (*Ledger)(nil)

// GetPublicKey answers get_public_key with a signed proof of identity.
// Observer nodes (no validator identity) have nothing to prove.
func (l *Ledger) GetPublicKey() (netrpc.Identity, error) {
	if l.validator == nil {
		return netrpc.Identity{}, fmt.Errorf("ledger: node runs without a validator identity")
	}
	return netrpc.SignIdentity(l.validator.signer)
}

// GetNodeInfo answers get_node_info with this node's sync state and peer
// count (spec.md §6). A node is Complete once it has appended at least
// the genesis block; Incomplete otherwise.
func (l *Ledger) GetNodeInfo() (netrpc.NodeInfo, error) {
	l.peersMu.Lock()
	peers := len(l.peers)
	l.peersMu.Unlock()

	state := netrpc.StateIncomplete
	if l.Height() > 0 || l.tipHash() != (types.Hash{}) {
		state = netrpc.StateComplete
	}
	return netrpc.NodeInfo{State: state, Peers: peers}, nil
}

// PutTransaction admits t into the mempool and opportunistically
// nominates (spec.md §6 "put_transaction").
func (l *Ledger) PutTransaction(t *tx.Transaction) error {
	return l.AcceptTransaction(t)
}

// ReceiveEnvelope forwards env to the consensus driver (spec.md §6
// "receive_envelope").
func (l *Ledger) ReceiveEnvelope(env *fba.Envelope) error {
	var outErr error
	l.dispatch(func() {
		if l.driver == nil {
			outErr = fmt.Errorf("ledger: node runs as a non-validator observer and does not vote")
			return
		}
		outErr = l.driver.ReceiveEnvelope(env)
	})
	return outErr
}

// SendEnrollment queues e for nomination once it verifies (spec.md §6
// "send_enrollment").
func (l *Ledger) SendEnrollment(e enroll.Enrollment) error {
	var outErr error
	l.dispatch(func() {
		outErr = l.enroll.AddEnrollment(e)
	})
	return outErr
}

// SendPreimage records a pre-image reveal against its validator's
// committed chain (spec.md §6 "send_preimage").
func (l *Ledger) SendPreimage(p enroll.PreImage) error {
	var outErr error
	l.dispatch(func() {
		outErr = l.enroll.RecordReveal(p)
	})
	return outErr
}

// GetBlockHeight answers get_block_height with the current tip height
// (spec.md §6).
func (l *Ledger) GetBlockHeight() (uint64, error) {
	return l.Height(), nil
}

// GetBlocksFrom answers get_blocks_from, returning up to max blocks
// starting at height (spec.md §6).
func (l *Ledger) GetBlocksFrom(height, max uint64) ([]*block.Block, error) {
	return l.blocks.Range(height, int(max))
}

// GetPreimage answers get_preimage with the latest reveal recorded for
// utxoKey (spec.md §6).
func (l *Ledger) GetPreimage(utxoKey types.Outpoint) (enroll.PreImage, error) {
	return l.enroll.LatestPreimage(utxoKey)
}

// GetEnrollment answers get_enrollment, checking the active set before
// falling back to the pending pool (spec.md §6). It returns nil, nil when
// neither holds an enrollment for utxoKey.
func (l *Ledger) GetEnrollment(utxoKey types.Outpoint) (*enroll.Enrollment, error) {
	if state, err := l.enroll.ValidatorState(utxoKey); err == nil {
		return &enroll.Enrollment{
			UTXOKey:      state.UTXOKey,
			Commitment:   state.Commitment,
			CycleLength:  state.CycleLength,
			SignerPubKey: state.PubKey,
			Signature:    state.Signature,
		}, nil
	}
	if e, ok, err := l.enroll.PendingEnrollment(utxoKey); err != nil {
		return nil, err
	} else if ok {
		return e, nil
	}
	return nil, nil
}

// HasTransactionHash answers has_transaction_hash by checking mempool
// membership, including transactions this pool admitted earlier and has
// since removed (spec.md §6).
func (l *Ledger) HasTransactionHash(h types.Hash) (bool, error) {
	return l.pool.Has(h) || l.pool.EverAccepted(h), nil
}
