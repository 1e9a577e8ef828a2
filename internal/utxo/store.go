package utxo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO   = []byte("u/") // u/<txid><index> -> UTXO JSON
	prefixAddr   = []byte("a/") // a/<address><txid><index> -> empty (index)
	prefixFreeze = []byte("f/") // f/<pubkey33><txid><index> -> empty (freeze/stake index)
)

// compressedPubKeySize is the length of a compressed secp256k1 public key.
const compressedPubKeySize = 33

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an outpoint: "u/" + txid(32) + index(4).
func utxoKey(op types.Outpoint) []byte {
	key := make([]byte, len(prefixUTXO)+types.HashSize+4)
	copy(key, prefixUTXO)
	copy(key[len(prefixUTXO):], op.TxID[:])
	binary.BigEndian.PutUint32(key[len(prefixUTXO)+types.HashSize:], op.Index)
	return key
}

// addrKey builds an address index key: "a/" + addr(20) + txid(32) + index(4).
func addrKey(addr types.Address, op types.Outpoint) []byte {
	key := make([]byte, len(prefixAddr)+types.AddressSize+types.HashSize+4)
	copy(key, prefixAddr)
	copy(key[len(prefixAddr):], addr[:])
	off := len(prefixAddr) + types.AddressSize
	copy(key[off:], op.TxID[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// freezeKey builds a freeze/stake index key: "f/" + pubkey(33) + txid(32) + index(4).
func freezeKey(pubKey []byte, op types.Outpoint) []byte {
	key := make([]byte, len(prefixFreeze)+compressedPubKeySize+types.HashSize+4)
	copy(key, prefixFreeze)
	copy(key[len(prefixFreeze):], pubKey)
	off := len(prefixFreeze) + compressedPubKeySize
	copy(key[off:], op.TxID[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// Get retrieves a UTXO by its outpoint.
func (s *Store) Get(outpoint types.Outpoint) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(outpoint))
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// lockAddress returns the spendable address for a lock, if one can be
// derived directly from it. Only Key locks are indexed by address;
// KeyHash, Script and Redeem locks are reachable only by outpoint or
// (for frozen stake) by pubkey.
func lockAddress(l types.Lock) (types.Address, bool) {
	switch l.Kind {
	case types.LockKey:
		if len(l.Data) != compressedPubKeySize {
			return types.Address{}, false
		}
		return crypto.AddressFromPubKey(l.Data), true
	case types.LockKeyHash:
		// The address index is keyed by pubkey, not pubkey hash; a
		// KeyHash lock doesn't reveal the owning pubkey until spent, so
		// it isn't indexed here. Callers that need it look up by outpoint.
		return types.Address{}, false
	default:
		return types.Address{}, false
	}
}

// freezePubKey returns the validator pubkey a frozen stake UTXO is
// locked to, if this UTXO is a recognizable freeze output. Freeze
// outputs are always LockKey (the validator's own pubkey directly).
func freezePubKey(u *UTXO) ([]byte, bool) {
	if u.FreezeUnlockHeight == 0 || u.Lock.Kind != types.LockKey {
		return nil, false
	}
	if len(u.Lock.Data) != compressedPubKeySize {
		return nil, false
	}
	return u.Lock.Data, true
}

// Put stores a UTXO and updates the address and freeze indexes.
func (s *Store) Put(u *UTXO) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := s.db.Put(utxoKey(u.Outpoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}

	if addr, ok := lockAddress(u.Lock); ok {
		if err := s.db.Put(addrKey(addr, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}

	if pubKey, ok := freezePubKey(u); ok {
		if err := s.db.Put(freezeKey(pubKey, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("freeze index put: %w", err)
		}
	}

	return nil
}

// Delete removes a UTXO and its secondary index entries.
func (s *Store) Delete(outpoint types.Outpoint) error {
	u, err := s.Get(outpoint)
	if err == nil {
		if addr, ok := lockAddress(u.Lock); ok {
			s.db.Delete(addrKey(addr, u.Outpoint))
		}
		if pubKey, ok := freezePubKey(u); ok {
			s.db.Delete(freezeKey(pubKey, u.Outpoint))
		}
	}

	if err := s.db.Delete(utxoKey(outpoint)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(outpoint types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// ForEach iterates over all UTXOs in the store.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&u)
	})
}

// GetFrozenStake returns all frozen stake UTXOs locked by the given
// compressed validator public key. It scans the freeze index and loads
// each referenced UTXO.
func (s *Store) GetFrozenStake(pubKey []byte) ([]*UTXO, error) {
	if len(pubKey) != compressedPubKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes, got %d", compressedPubKeySize, len(pubKey))
	}

	prefix := make([]byte, len(prefixFreeze)+compressedPubKeySize)
	copy(prefix, prefixFreeze)
	copy(prefix[len(prefixFreeze):], pubKey)

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		off := len(prefixFreeze) + compressedPubKeySize
		if len(key) < off+types.HashSize+4 {
			return nil // Malformed key, skip.
		}
		var op types.Outpoint
		copy(op.TxID[:], key[off:off+types.HashSize])
		op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])

		u, err := s.Get(op)
		if err != nil {
			return nil // UTXO may have been spent, skip.
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan freeze index: %w", err)
	}
	return utxos, nil
}

// GetAllStakedValidators returns the unique compressed public keys of all
// validators that currently have frozen stake UTXOs.
func (s *Store) GetAllStakedValidators() ([][]byte, error) {
	seen := make(map[string]struct{})
	var validators [][]byte

	err := s.db.ForEach(prefixFreeze, func(key, _ []byte) error {
		if len(key) < len(prefixFreeze)+compressedPubKeySize {
			return nil
		}
		pk := key[len(prefixFreeze) : len(prefixFreeze)+compressedPubKeySize]
		pkStr := string(pk)
		if _, ok := seen[pkStr]; !ok {
			seen[pkStr] = struct{}{}
			pubKey := make([]byte, compressedPubKeySize)
			copy(pubKey, pk)
			validators = append(validators, pubKey)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan freeze index: %w", err)
	}
	return validators, nil
}

// ClearAll removes all UTXOs and their secondary indexes. Used during
// UTXO set recovery after a crash mid-apply.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixAddr, prefixFreeze} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return nil
}

// GetByAddress returns all UTXOs belonging to the given address.
func (s *Store) GetByAddress(addr types.Address) ([]*UTXO, error) {
	prefix := make([]byte, len(prefixAddr)+types.AddressSize)
	copy(prefix, prefixAddr)
	copy(prefix[len(prefixAddr):], addr[:])

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		off := len(prefixAddr) + types.AddressSize
		if len(key) < off+types.HashSize+4 {
			return nil // Malformed key, skip.
		}
		var op types.Outpoint
		copy(op.TxID[:], key[off:off+types.HashSize])
		op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])

		u, err := s.Get(op)
		if err != nil {
			return nil // UTXO may have been spent, skip.
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}

// ApplyBlock atomically removes spent outpoints and adds new UTXOs using
// the underlying storage.Batcher, so a block's effect on the set either
// commits in full or not at all.
func (s *Store) ApplyBlock(spent []types.Outpoint, created []*UTXO) error {
	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		return s.applySequential(spent, created)
	}

	batch := batcher.NewBatch()
	for _, op := range spent {
		u, err := s.Get(op)
		if err != nil {
			return fmt.Errorf("apply block: spend missing utxo %v: %w", op, err)
		}
		if err := batch.Delete(utxoKey(op)); err != nil {
			return fmt.Errorf("apply block: batch delete: %w", err)
		}
		if addr, ok := lockAddress(u.Lock); ok {
			batch.Delete(addrKey(addr, op))
		}
		if pubKey, ok := freezePubKey(u); ok {
			batch.Delete(freezeKey(pubKey, op))
		}
	}
	for _, u := range created {
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("apply block: marshal utxo: %w", err)
		}
		if err := batch.Put(utxoKey(u.Outpoint), data); err != nil {
			return fmt.Errorf("apply block: batch put: %w", err)
		}
		if addr, ok := lockAddress(u.Lock); ok {
			batch.Put(addrKey(addr, u.Outpoint), []byte{})
		}
		if pubKey, ok := freezePubKey(u); ok {
			batch.Put(freezeKey(pubKey, u.Outpoint), []byte{})
		}
	}
	return batch.Commit()
}

// applySequential is the non-atomic fallback for a DB that doesn't
// implement storage.Batcher.
func (s *Store) applySequential(spent []types.Outpoint, created []*UTXO) error {
	for _, op := range spent {
		if err := s.Delete(op); err != nil {
			return fmt.Errorf("apply block: %w", err)
		}
	}
	for _, u := range created {
		if err := s.Put(u); err != nil {
			return fmt.Errorf("apply block: %w", err)
		}
	}
	return nil
}
