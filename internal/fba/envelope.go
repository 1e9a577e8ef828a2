package fba

import (
	"encoding/binary"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// StatementKind is the phase of federated voting an Envelope carries
// (spec.md §4.6's nomination/ballot protocol, collapsed to the two
// phases this driver implements — see the package doc comment).
type StatementKind uint8

const (
	// StatementNominate proposes a candidate value for a slot.
	StatementNominate StatementKind = iota
	// StatementConfirm votes to accept a (possibly combined) value as
	// the slot's outcome.
	StatementConfirm
	// StatementExternalize announces a slot has externalized, used for
	// peer catch-up (spec.md §4.6 "accepted ... for peer catch-up").
	StatementExternalize
)

// Statement is one node's vote for a slot.
type Statement struct {
	Slot    uint64
	Kind    StatementKind
	NodeID  []byte // Compressed pubkey of the voting node.
	ValueFP types.Hash
	Value   *Value // Populated on Nominate, Confirm and Externalize.
}

// Envelope is a signed Statement, the unit exchanged over the wire and
// via emit_envelope/receive_envelope (spec.md §4.6).
type Envelope struct {
	Statement Statement
	Signature []byte
}

// SigningBytes returns the canonical bytes an envelope's signature
// covers: slot, kind, node id, and value fingerprint. The full Value (if
// present) is carried alongside but not signed directly — its
// fingerprint is, which is sufficient since Fingerprint is collision-
// resistant over the value's contents.
func (e *Statement) SigningBytes() []byte {
	buf := make([]byte, 0, 8+1+len(e.NodeID)+types.HashSize)
	buf = binary.LittleEndian.AppendUint64(buf, e.Slot)
	buf = append(buf, byte(e.Kind))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.NodeID)))
	buf = append(buf, e.NodeID...)
	buf = append(buf, e.ValueFP[:]...)
	return buf
}

// Hash domain-hashes an envelope's statement for the signature digest.
func (e *Statement) Hash() types.Hash {
	return crypto.DomainHash(crypto.DomainEnvelope, e.SigningBytes())
}

// Sign signs env's statement with key, the sign_envelope callback
// (spec.md §4.6 "Schnorr-sign the canonical encoding").
func Sign(env *Envelope, key *crypto.PrivateKey) error {
	h := env.Statement.Hash()
	sig, err := key.Sign(h[:])
	if err != nil {
		return err
	}
	env.Signature = sig
	env.Statement.NodeID = key.PublicKey()
	return nil
}

// VerifySignature checks env's signature against its own claimed NodeID.
func (e *Envelope) VerifySignature() bool {
	h := e.Statement.Hash()
	return crypto.VerifySignature(h[:], e.Signature, e.Statement.NodeID)
}
