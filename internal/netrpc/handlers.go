package netrpc

import (
	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// NodeState is this node's sync status, returned by get_node_info
// (spec.md §6: "state ∈ {Incomplete, Complete}").
type NodeState string

const (
	StateIncomplete NodeState = "Incomplete"
	StateComplete   NodeState = "Complete"
)

// Identity is a node's public key together with a proof of possession: a
// Schnorr signature over the key's own domain-hash, so a caller can
// confirm the responder actually holds the matching private key rather
// than replaying someone else's public key (spec.md §6 "get_public_key()
// → Identity (pubkey + proof)").
type Identity struct {
	PubKey []byte `json:"pubkey"`
	Proof  []byte `json:"proof"`
}

// SignIdentity builds an Identity proof for signer.
func SignIdentity(signer *crypto.PrivateKey) (Identity, error) {
	pub := signer.PublicKey()
	h := crypto.DomainHash(crypto.DomainIdentityProof, pub)
	sig, err := signer.Sign(h[:])
	if err != nil {
		return Identity{}, err
	}
	return Identity{PubKey: pub, Proof: sig}, nil
}

// Verify reports whether id's proof matches its claimed public key.
func (id Identity) Verify() bool {
	h := crypto.DomainHash(crypto.DomainIdentityProof, id.PubKey)
	return crypto.VerifySignature(h[:], id.Proof, id.PubKey)
}

// NodeInfo is get_node_info's response body.
type NodeInfo struct {
	State NodeState `json:"state"`
	Peers int       `json:"peers"`
}

// Handlers is the ledger coordinator's implementation of the eleven Peer
// RPC methods (spec.md §6). Server wires each method onto a stream
// handler that decodes a request, calls the matching Handlers method, and
// encodes either the result or an errorResponse.
//
// Every method here runs on whatever goroutine the libp2p stream handler
// fires on, NOT the ledger coordinator's own event-loop goroutine
// (spec.md §5) — implementations must hop onto the event loop themselves
// (e.g. via a channel send) rather than touch ledger state directly.
type Handlers interface {
	GetPublicKey() (Identity, error)
	GetNodeInfo() (NodeInfo, error)
	PutTransaction(t *tx.Transaction) error
	ReceiveEnvelope(env *fba.Envelope) error
	SendEnrollment(e enroll.Enrollment) error
	SendPreimage(p enroll.PreImage) error
	GetBlockHeight() (uint64, error)
	GetBlocksFrom(height, max uint64) ([]*block.Block, error)
	GetPreimage(utxoKey types.Outpoint) (enroll.PreImage, error)
	GetEnrollment(utxoKey types.Outpoint) (*enroll.Enrollment, error)
	HasTransactionHash(h types.Hash) (bool, error)
}
