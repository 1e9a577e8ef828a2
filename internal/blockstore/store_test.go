package blockstore

import (
	"testing"

	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

func testCoinbase(height uint64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Tag:     tx.TagCoinbase,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{}}},
		Outputs: []tx.Output{{
			Amount: 1000 + height,
			Lock:   types.Lock{Kind: types.LockKey, Data: make([]byte, 33)},
		}},
	}
}

func signedHeader(h *block.Header) *block.Header {
	h.ValidatorBitfield = block.NewBitfield(1)
	block.BitfieldSetBit(h.ValidatorBitfield, 0)
	h.AggregateSig = []byte{0x01}
	return h
}

func genesisBlock() *block.Block {
	coinbase := testCoinbase(0)
	root := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	header := signedHeader(&block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   types.Hash{},
		MerkleRoot: root,
		Height:     0,
		Timestamp:  1700000000,
	})
	return block.NewBlock(header, []*tx.Transaction{coinbase})
}

func childBlock(parent *block.Block) *block.Block {
	height := parent.Header.Height + 1
	coinbase := testCoinbase(height)
	root := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	header := signedHeader(&block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   parent.Hash(),
		MerkleRoot: root,
		Height:     height,
		Timestamp:  parent.Header.Timestamp + 10,
	})
	return block.NewBlock(header, []*tx.Transaction{coinbase})
}

func TestStore_SetGenesis(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	if err := s.SetGenesis(genesis); err != nil {
		t.Fatalf("SetGenesis() error: %v", err)
	}
	height, hash, err := s.Tip()
	if err != nil {
		t.Fatalf("Tip() error: %v", err)
	}
	if height != 0 {
		t.Errorf("Tip() height = %d, want 0", height)
	}
	if hash != genesis.Hash() {
		t.Errorf("Tip() hash mismatch")
	}
}

func TestStore_SetGenesis_Twice(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	if err := s.SetGenesis(genesis); err != nil {
		t.Fatalf("SetGenesis() error: %v", err)
	}
	if err := s.SetGenesis(genesis); err != ErrGenesisSet {
		t.Fatalf("second SetGenesis() = %v, want ErrGenesisSet", err)
	}
}

func TestStore_Append(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)

	child := childBlock(genesis)
	if err := s.Append(child); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	height, hash, err := s.Tip()
	if err != nil {
		t.Fatalf("Tip() error: %v", err)
	}
	if height != 1 {
		t.Errorf("Tip() height = %d, want 1", height)
	}
	if hash != child.Hash() {
		t.Errorf("Tip() hash mismatch after Append")
	}
}

func TestStore_Append_WrongHeight(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)

	child := childBlock(genesis)
	child.Header.Height = 5
	if err := s.Append(child); err == nil {
		t.Fatal("Append() should reject a block that does not extend the tip by exactly 1")
	}
}

func TestStore_Append_WrongPrevHash(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)

	child := childBlock(genesis)
	child.Header.PrevHash = types.Hash{0xff}
	if err := s.Append(child); err == nil {
		t.Fatal("Append() should reject a block whose prev_hash does not match the tip")
	}
}

func TestStore_Get(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)
	child := childBlock(genesis)
	s.Append(child)

	got, err := s.Get(1)
	if err != nil {
		t.Fatalf("Get(1) error: %v", err)
	}
	if got.Hash() != child.Hash() {
		t.Errorf("Get(1) returned wrong block")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := New(storage.NewMemory())
	s.SetGenesis(genesisBlock())
	if _, err := s.Get(99); err == nil {
		t.Fatal("Get() on missing height should error")
	}
}

func TestStore_GetByHash(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)

	got, err := s.GetByHash(genesis.Hash())
	if err != nil {
		t.Fatalf("GetByHash() error: %v", err)
	}
	if got.Header.Height != 0 {
		t.Errorf("GetByHash() height = %d, want 0", got.Header.Height)
	}
}

func TestStore_Range(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)

	prev := genesis
	for i := 0; i < 5; i++ {
		child := childBlock(prev)
		if err := s.Append(child); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
		prev = child
	}

	blocks, err := s.Range(0, 3)
	if err != nil {
		t.Fatalf("Range() error: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("Range(0, 3) returned %d blocks, want 3", len(blocks))
	}
	for i, blk := range blocks {
		if blk.Header.Height != uint64(i) {
			t.Errorf("blocks[%d] height = %d, want %d", i, blk.Header.Height, i)
		}
	}
}

func TestStore_Range_CapsAtMaxLimit(t *testing.T) {
	s := New(storage.NewMemory())
	s.SetGenesis(genesisBlock())

	blocks, err := s.Range(0, MaxRangeLimit+500)
	if err != nil {
		t.Fatalf("Range() error: %v", err)
	}
	if len(blocks) > MaxRangeLimit {
		t.Errorf("Range() returned %d blocks, want <= %d", len(blocks), MaxRangeLimit)
	}
}

func TestStore_Range_StopsAtTip(t *testing.T) {
	s := New(storage.NewMemory())
	genesis := genesisBlock()
	s.SetGenesis(genesis)
	s.Append(childBlock(genesis))

	blocks, err := s.Range(0, 100)
	if err != nil {
		t.Fatalf("Range() error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("Range() returned %d blocks, want 2 (tip reached)", len(blocks))
	}
}

func TestStore_Height(t *testing.T) {
	s := New(storage.NewMemory())
	if s.Height() != 0 {
		t.Errorf("Height() before genesis = %d, want 0", s.Height())
	}
	genesis := genesisBlock()
	s.SetGenesis(genesis)
	s.Append(childBlock(genesis))
	if s.Height() != 1 {
		t.Errorf("Height() = %d, want 1", s.Height())
	}
}
