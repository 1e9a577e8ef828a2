// Package blockstore implements the append-only, height-indexed block
// sequence described in spec.md §4.3: blocks are admitted only after full
// header+body validation, the genesis block is injected once at
// construction and is immutable thereafter, and range reads are capped to
// bound a single RPC response.
package blockstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/types"
)

// MaxRangeLimit bounds how many blocks a single Range call returns,
// regardless of the caller-requested limit (spec.md §4.3).
const MaxRangeLimit = 1000

var (
	prefixBlock  = []byte("cb/") // cb/<height(8)> -> block JSON
	prefixHash   = []byte("ch/") // ch/<hash(32)> -> height(8)
	keyTipHeight = []byte("cs/tip_height")
)

// Errors returned by Store.
var (
	ErrNotFound         = errors.New("block not found")
	ErrGenesisSet       = errors.New("genesis already set")
	ErrNotGenesis       = errors.New("store has no genesis yet")
	ErrHeightMismatch   = errors.New("block height does not extend the current tip")
	ErrPrevHashMismatch = errors.New("block prev_hash does not match current tip")
)

// Store is the append-only block sequence. It is safe for concurrent use
// only to the extent the underlying storage.DB is; callers that need
// read-modify-write atomicity around Append should serialize externally
// (the ledger coordinator owns a single goroutine per spec.md §5).
type Store struct {
	db storage.DB
}

// New creates a block store backed by db. The store has no genesis block
// until SetGenesis is called.
func New(db storage.DB) *Store {
	return &Store{db: db}
}

// SetGenesis injects the genesis block at height 0. It fails if a genesis
// block is already present — the genesis block is immutable once set.
func (s *Store) SetGenesis(genesis *block.Block) error {
	if genesis.Header.Height != 0 {
		return fmt.Errorf("genesis block must have height 0, got %d", genesis.Header.Height)
	}
	if _, _, err := s.Tip(); err == nil {
		return ErrGenesisSet
	}
	if err := s.putAt(0, genesis); err != nil {
		return err
	}
	return s.setTipHeight(0)
}

// Append validates blk extends the current tip (height = tip+1, prev_hash
// = tip hash) and, if so, stores it and advances the tip. Callers are
// expected to have already run blk.Validate() and
// blk.ValidateAgainstValidatorSet() — Append only enforces the append-only
// chain-linkage invariant, not full consensus validation.
func (s *Store) Append(blk *block.Block) error {
	tipHeight, tipHash, err := s.Tip()
	if err != nil {
		return fmt.Errorf("append: %w", ErrNotGenesis)
	}
	if blk.Header.Height != tipHeight+1 {
		return fmt.Errorf("%w: tip=%d block=%d", ErrHeightMismatch, tipHeight, blk.Header.Height)
	}
	if blk.Header.PrevHash != tipHash {
		return fmt.Errorf("%w: tip_hash=%s block_prev=%s", ErrPrevHashMismatch, tipHash, blk.Header.PrevHash)
	}
	if err := s.putAt(blk.Header.Height, blk); err != nil {
		return err
	}
	return s.setTipHeight(blk.Header.Height)
}

// Get retrieves the block at the given height.
func (s *Store) Get(height uint64) (*block.Block, error) {
	data, err := s.db.Get(blockKey(height))
	if err != nil {
		return nil, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("block unmarshal: %w", err)
	}
	return &blk, nil
}

// GetByHash retrieves the block with the given header hash.
func (s *Store) GetByHash(hash types.Hash) (*block.Block, error) {
	heightBytes, err := s.db.Get(hashKey(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	return s.Get(binary.BigEndian.Uint64(heightBytes))
}

// Range returns up to limit consecutive blocks starting at height from,
// inclusive. limit is silently capped at MaxRangeLimit. Returns fewer
// blocks than requested if the chain's tip is reached first.
func (s *Store) Range(from uint64, limit int) ([]*block.Block, error) {
	if limit <= 0 || limit > MaxRangeLimit {
		limit = MaxRangeLimit
	}
	tipHeight, _, err := s.Tip()
	if err != nil {
		return nil, nil
	}
	blocks := make([]*block.Block, 0, limit)
	for h := from; h <= tipHeight && len(blocks) < limit; h++ {
		blk, err := s.Get(h)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}

// Tip returns the current chain tip's height and header hash.
func (s *Store) Tip() (uint64, types.Hash, error) {
	data, err := s.db.Get(keyTipHeight)
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("%w", ErrNotGenesis)
	}
	height := binary.BigEndian.Uint64(data)
	blk, err := s.Get(height)
	if err != nil {
		return 0, types.Hash{}, err
	}
	return height, blk.Hash(), nil
}

// Height returns the current tip height, or 0 if no genesis is set yet.
func (s *Store) Height() uint64 {
	height, _, err := s.Tip()
	if err != nil {
		return 0
	}
	return height
}

func (s *Store) putAt(height uint64, blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block encode: %w", err)
	}
	if err := s.db.Put(blockKey(height), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], height)
	if err := s.db.Put(hashKey(blk.Hash()), heightBuf[:]); err != nil {
		return fmt.Errorf("hash index put: %w", err)
	}
	return nil
}

func (s *Store) setTipHeight(height uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return s.db.Put(keyTipHeight, buf[:])
}

func blockKey(height uint64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], height)
	return key
}

func hashKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixHash)+types.HashSize)
	copy(key, prefixHash)
	copy(key[len(prefixHash):], hash[:])
	return key
}
