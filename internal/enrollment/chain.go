// Package enrollment implements the validator enrollment manager
// (spec.md §4.4): pre-image chain generation and persistence, enrollment
// admission, active-validator bookkeeping, reveal tracking with slashing,
// and recurring/forced re-enrollment.
package enrollment

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

var (
	prefixChain = []byte("ec/") // ec/<utxo_key> -> persisted Chain JSON
)

// Chain is a validator's full pre-image hash chain: h[0] = H(seed),
// h[i] = H(h[i-1]) for i < N-1, committing to h[N-1]. The seed and every
// intermediate value are persisted at generation time so a crash can't
// force reusing a seed, which spec.md §4.4 calls out as failing
// validation if it ever happens across two different staker UTXOs.
type Chain struct {
	UTXOKey     types.Outpoint `json:"utxo_key"`
	Seed        []byte         `json:"seed"`
	CycleLength uint64         `json:"cycle_length"`
	Values      []types.Hash   `json:"values"` // Values[i] = h[i], i in [0, N-1].
}

// Commitment is h[N-1], the value an Enrollment commits to.
func (c *Chain) Commitment() types.Hash {
	return c.Values[len(c.Values)-1]
}

// RevealAt returns the pre-image to reveal at distance k since
// enrollment: a value v such that hashing forward k times reaches the
// commitment (matches pkg/enroll.PreImage.Verify). k must be in
// [0, N-1]; k == 0 reveals the commitment itself.
func (c *Chain) RevealAt(k uint64) (types.Hash, error) {
	n := uint64(len(c.Values))
	if k >= n {
		return types.Hash{}, fmt.Errorf("reveal distance %d exceeds cycle length %d", k, n)
	}
	return c.Values[n-1-k], nil
}

// GenerateChain produces a fresh pre-image chain of the given length for
// utxoKey, using crypto/rand for the seed. The chain is bound to utxoKey
// via a domain-separated re-derivation of the seed, so two validators
// that happen to draw the same random seed never produce the same chain.
func GenerateChain(utxoKey types.Outpoint, cycleLength uint64) (*Chain, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("enrollment: generate seed: %w", err)
	}
	return GenerateChainWithSeed(utxoKey, cycleLength, raw)
}

// GenerateChainWithSeed is GenerateChain with an explicit 32-byte seed
// instead of one freshly drawn from crypto/rand — used when a validator's
// seed is managed externally (internal/keyvault's BIP-32-derived chain
// seed, recoverable from a mnemonic rather than requiring its own backup).
func GenerateChainWithSeed(utxoKey types.Outpoint, cycleLength uint64, raw []byte) (*Chain, error) {
	if cycleLength < 2 {
		return nil, errors.New("enrollment: cycle length must be at least 2")
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("enrollment: seed must be 32 bytes, got %d", len(raw))
	}
	bound := crypto.DomainHash(crypto.DomainEnrollCommitment, utxoKey.TxID[:], indexBytes(utxoKey.Index), raw)

	values := make([]types.Hash, cycleLength)
	values[0] = crypto.PreimageSeed(bound[:])
	for i := uint64(1); i < cycleLength; i++ {
		values[i] = crypto.PreimageStep(values[i-1])
	}

	return &Chain{
		UTXOKey:     utxoKey,
		Seed:        raw,
		CycleLength: cycleLength,
		Values:      values,
	}, nil
}

func indexBytes(index uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], index)
	return buf[:]
}

// chainStore persists generated chains so a restart can resume reveals
// without regenerating (and thus changing) the committed chain.
type chainStore struct {
	db storage.DB
}

func (s *chainStore) Put(c *Chain) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("chain marshal: %w", err)
	}
	return s.db.Put(chainKey(c.UTXOKey), data)
}

func (s *chainStore) Get(utxoKey types.Outpoint) (*Chain, error) {
	data, err := s.db.Get(chainKey(utxoKey))
	if err != nil {
		return nil, fmt.Errorf("chain get: %w", err)
	}
	var c Chain
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("chain unmarshal: %w", err)
	}
	return &c, nil
}

func chainKey(utxoKey types.Outpoint) []byte {
	key := make([]byte, 0, len(prefixChain)+types.HashSize+4)
	key = append(key, prefixChain...)
	key = append(key, utxoKey.TxID[:]...)
	key = append(key, indexBytes(utxoKey.Index)...)
	return key
}
