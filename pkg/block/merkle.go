package block

import (
	"crypto/sha512"

	"github.com/fbanet/ledgercore/pkg/types"
)

// ComputeMerkleRoot calculates the merkle root of transaction hashes using
// a binary SHA-512 tree, with a lone leaf duplicated at each level, as
// mandated by spec.md §6 ("Block serialisation"). This is a protocol
// correctness requirement, not a style choice — every node must compute
// the identical root, so the hash function is fixed by the spec rather
// than left to the teacher's BLAKE3 convention used elsewhere.
//
//   - 0 hashes: returns the zero hash
//   - 1 hash: returns that hash's SHA-512 digest (widened to 64 bytes)
//   - otherwise: pairwise SHA-512(a||b), duplicating the last element if
//     the level has an odd count, recursing until one hash remains.
func ComputeMerkleRoot(txHashes []types.Hash) types.Hash512 {
	if len(txHashes) == 0 {
		return types.Hash512{}
	}

	level := make([]types.Hash512, len(txHashes))
	for i, h := range txHashes {
		level[i] = sha512Sum(h[:])
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash512, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = merkleConcat(level[i], level[i+1])
		}
		level = next
	}

	return level[0]
}

func sha512Sum(data []byte) types.Hash512 {
	sum := sha512.Sum512(data)
	return types.Hash512(sum)
}

func merkleConcat(a, b types.Hash512) types.Hash512 {
	var buf [types.Hash512Size * 2]byte
	copy(buf[:types.Hash512Size], a[:])
	copy(buf[types.Hash512Size:], b[:])
	return sha512Sum(buf[:])
}
