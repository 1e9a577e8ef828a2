package quorum

import (
	"bytes"
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/chacha20"

	"github.com/fbanet/ledgercore/pkg/types"
)

// Shuffle performs a deterministic Fisher-Yates shuffle of validators,
// keyed by seed. Two nodes given the same seed and the same starting
// order always produce the same permutation (spec.md §4.5 step 1,
// "deterministic for a given (seed, set, height)").
//
// validators is sorted ascending before shuffling so the permutation
// depends only on (seed, set-membership), never on caller-supplied
// ordering.
func Shuffle(validators [][]byte, seed types.Hash) [][]byte {
	ordered := make([][]byte, len(validators))
	copy(ordered, validators)
	sort.Slice(ordered, func(i, j int) bool { return bytes.Compare(ordered[i], ordered[j]) < 0 })

	stream := newKeyedStream(seed)
	for i := len(ordered) - 1; i > 0; i-- {
		j := stream.uint32n(uint32(i + 1))
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}

// Partition splits a shuffled validator list into consecutive groups of
// at most maxGroupSize (spec.md §4.5 step 2).
func Partition(shuffled [][]byte, maxGroupSize int) [][][]byte {
	if maxGroupSize <= 0 {
		maxGroupSize = len(shuffled)
	}
	var groups [][][]byte
	for i := 0; i < len(shuffled); i += maxGroupSize {
		end := i + maxGroupSize
		if end > len(shuffled) {
			end = len(shuffled)
		}
		groups = append(groups, shuffled[i:end])
	}
	return groups
}

// keyedStream draws deterministic pseudo-random draws from a ChaCha20
// keystream seeded by a quorum seed. Using a real stream cipher rather
// than a general-purpose PRNG keeps the derivation auditable: the same
// (seed, index) always yields the same bytes, on any platform.
type keyedStream struct {
	cipher *chacha20.Cipher
}

func newKeyedStream(seed types.Hash) *keyedStream {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// seed is always exactly 32 bytes (types.Hash), chacha20's only
		// possible NewUnauthenticatedCipher error is a bad key/nonce size.
		panic(err)
	}
	return &keyedStream{cipher: c}
}

// uint32n draws a uniform value in [0, n) from the keystream. A small
// modulo bias is acceptable here: the shuffle only needs determinism
// across nodes, not cryptographic uniformity.
func (k *keyedStream) uint32n(n uint32) uint32 {
	var buf [4]byte
	k.cipher.XORKeyStream(buf[:], buf[:])
	return binary.LittleEndian.Uint32(buf[:]) % n
}
