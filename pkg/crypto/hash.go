// Package crypto provides cryptographic primitives for the ledger node.
package crypto

import (
	"crypto/sha512"

	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// HashConcat hashes the concatenation of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// Hash512 computes a SHA-512 hash of the input data. Used wherever
// spec.md's 64-byte hash fields appear (KeyHash/Redeem locks), matching
// the SHA-512 width already mandated for block merkle roots rather than
// introducing a third hash width into the wire format.
func Hash512(data []byte) types.Hash512 {
	return types.Hash512(sha512.Sum512(data))
}
