package utxo

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the store.
// Each UTXO is hashed deterministically, the hashes are sorted, and a
// merkle tree is folded from them with BLAKE3 — this is a state
// commitment used for catchup/sync comparison, not the block body's
// consensus merkle root (which is SHA-512, see pkg/block.ComputeMerkleRoot).
// Returns a zero hash for an empty set.
func Commitment(store *Store) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(u *UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	sort.Slice(hashes, func(i, j int) bool {
		return hashLess(hashes[i], hashes[j])
	})

	return merkleFold(hashes), nil
}

// hashUTXO produces a deterministic BLAKE3 hash of a UTXO.
// Format: txid(32) | index(4) | amount(8) | lock_kind(1) | lock_data |
// freeze_unlock_height(8) | coinbase(1)
func hashUTXO(u *UTXO) types.Hash {
	var buf []byte
	buf = append(buf, u.Outpoint.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, u.Outpoint.Index)
	buf = binary.LittleEndian.AppendUint64(buf, u.Amount)
	buf = append(buf, byte(u.Lock.Kind))
	buf = append(buf, u.Lock.Data...)
	buf = binary.LittleEndian.AppendUint64(buf, u.FreezeUnlockHeight)
	if u.Coinbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return crypto.Hash(buf)
}

func hashLess(a, b types.Hash) bool {
	for i := 0; i < types.HashSize; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// merkleFold builds a binary BLAKE3 merkle tree over hashes, duplicating
// the last element of an odd-length level, matching the fold rule used
// for the UTXO commitment specifically (not the block body's SHA-512
// tree, which has its own implementation in pkg/block).
func merkleFold(hashes []types.Hash) types.Hash {
	level := hashes
	for len(level) > 1 {
		var next []types.Hash
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, crypto.HashConcat(level[i], level[i+1]))
			} else {
				next = append(next, crypto.HashConcat(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}
