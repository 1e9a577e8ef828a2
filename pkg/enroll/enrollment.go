// Package enroll defines the wire types for validator enrollment and
// pre-image chain reveals (spec.md §3 "Enrollment", "Pre-image chain").
package enroll

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Enrollment binds a frozen UTXO to a pre-image chain commitment, staking
// its owner as a validator candidate.
type Enrollment struct {
	UTXOKey      types.Outpoint `json:"utxo_key"`
	Commitment   types.Hash     `json:"commitment"`   // h[N-1], the root of the pre-image chain.
	CycleLength  uint64         `json:"cycle_length"` // N.
	SignerPubKey []byte         `json:"signer_pubkey"`
	Signature    []byte         `json:"signature"`
}

type enrollmentJSON struct {
	UTXOKey      types.Outpoint `json:"utxo_key"`
	Commitment   types.Hash     `json:"commitment"`
	CycleLength  uint64         `json:"cycle_length"`
	SignerPubKey string         `json:"signer_pubkey"`
	Signature    string         `json:"signature"`
}

// MarshalJSON encodes the enrollment with hex-encoded byte fields.
func (e Enrollment) MarshalJSON() ([]byte, error) {
	return json.Marshal(enrollmentJSON{
		UTXOKey:      e.UTXOKey,
		Commitment:   e.Commitment,
		CycleLength:  e.CycleLength,
		SignerPubKey: hex.EncodeToString(e.SignerPubKey),
		Signature:    hex.EncodeToString(e.Signature),
	})
}

// UnmarshalJSON decodes an enrollment with hex-encoded byte fields.
func (e *Enrollment) UnmarshalJSON(data []byte) error {
	var j enrollmentJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.UTXOKey = j.UTXOKey
	e.Commitment = j.Commitment
	e.CycleLength = j.CycleLength
	if j.SignerPubKey != "" {
		b, err := hex.DecodeString(j.SignerPubKey)
		if err != nil {
			return err
		}
		e.SignerPubKey = b
	}
	if j.Signature != "" {
		b, err := hex.DecodeString(j.Signature)
		if err != nil {
			return err
		}
		e.Signature = b
	}
	return nil
}

// SigningBytes returns the canonical bytes an enrollment's signature is
// computed over: the UTXO key, the commitment, and the cycle length. This
// binds the enrollment to the staker's key and (via the UTXO key) a
// one-time signature nonce, as required by spec.md §3.
func (e *Enrollment) SigningBytes() []byte {
	buf := make([]byte, 0, 32+4+32+8)
	buf = append(buf, e.UTXOKey.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, e.UTXOKey.Index)
	buf = append(buf, e.Commitment[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.CycleLength)
	return buf
}

// Hash fingerprints the enrollment (used for dedup/ordering bookkeeping).
func (e *Enrollment) Hash() types.Hash {
	return crypto.DomainHash(crypto.DomainEnrollSigningData, e.SigningBytes())
}

// VerifySignature checks the enrollment signature against its signer's key.
func (e *Enrollment) VerifySignature() bool {
	h := crypto.DomainHash(crypto.DomainEnrollSigningData, e.SigningBytes())
	return crypto.VerifySignature(h[:], e.Signature, e.SignerPubKey)
}
