package crypto

import (
	"encoding/binary"

	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/zeebo/blake3"
)

// DomainHash computes a domain-separated BLAKE3-256 hash over one or more
// byte slices. The domain tag is length-prefixed ahead of every part so
// that two different domains can never collide on the same raw bytes —
// used to keep transaction hashing, pre-image chain links, enrollment
// commitments, and quorum-seed derivation in disjoint hash spaces.
func DomainHash(domain string, parts ...[]byte) types.Hash {
	h := blake3.New()
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(domain)))
	h.Write(lenBuf[:])
	h.Write([]byte(domain))
	for _, p := range parts {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Pre-image chain and commitment domains (spec.md §3/§4.4).
const (
	DomainPreimage          = "fba/preimage"
	DomainEnrollCommitment  = "fba/enroll-commitment"
	DomainQuorumSeed        = "fba/quorum-seed"
	DomainEnrollSigningData = "fba/enroll-signing"
)

// Consensus driver domains (spec.md §4.6 "Consensus Driver").
const (
	DomainValueFingerprint = "fba/value-fingerprint"
	DomainEnvelope         = "fba/envelope"
)

// DomainIdentityProof separates the self-attestation a node signs over its
// own public key for get_public_key (spec.md §6 "Identity (pubkey +
// proof)") from every other signature domain.
const DomainIdentityProof = "fba/identity-proof"

// DomainQuorumSetHash separates a quorum set's cache-key hash (get_quorum_set,
// spec.md §4.6) from the per-height quorum seed derived under
// DomainQuorumSeed — the two must never collide despite both hashing
// quorum-related data.
const DomainQuorumSetHash = "fba/quorum-set-hash"

// DomainGenesisValidatorSeed derives a pre-image chain seed for a
// genesis-config validator from public genesis data (chain ID, pubkey)
// rather than a private keyvault seed, so a fresh chain can start with an
// active validator set at height 0 without an off-chain seed-sharing
// ceremony. Only the genesis chain's very first cycle uses this seed; a
// validator's re-enrollment (internal/enrollment Manager.Renew) replaces
// it with a chain from internal/enrollment.GenerateChain.
const DomainGenesisValidatorSeed = "fba/genesis-validator-seed"

// PreimageStep computes h[i] = DomainHash(DomainPreimage, h[i-1]).
func PreimageStep(prev types.Hash) types.Hash {
	return DomainHash(DomainPreimage, prev[:])
}

// PreimageSeed computes h[0] = DomainHash(DomainPreimage, seed).
func PreimageSeed(seed []byte) types.Hash {
	return DomainHash(DomainPreimage, seed)
}
