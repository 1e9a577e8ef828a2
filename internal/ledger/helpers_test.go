package ledger

import (
	"testing"

	"github.com/fbanet/ledgercore/internal/blockstore"
	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// testCoinbase and friends mirror internal/blockstore's own test helpers:
// a single-output coinbase transaction and a fake-signed header, used
// wherever a test needs a well-formed chain but isn't exercising
// signature verification itself.
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

func fakeSignedHeader(h *block.Header) *block.Header {
	h.ValidatorBitfield = block.NewBitfield(1)
	block.BitfieldSetBit(h.ValidatorBitfield, 0)
	h.AggregateSig = []byte{0x01}
	return h
}

func testGenesisBlock() *block.Block {
	coinbase := testCoinbase(0)
	root := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	header := fakeSignedHeader(&block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   types.Hash{},
		MerkleRoot: root,
		Height:     0,
		Timestamp:  1700000000,
	})
	return block.NewBlock(header, []*tx.Transaction{coinbase})
}

func testChildBlock(parent *block.Block) *block.Block {
	height := parent.Header.Height + 1
	coinbase := testCoinbase(height)
	root := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	header := fakeSignedHeader(&block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   parent.Hash(),
		MerkleRoot: root,
		Height:     height,
		Timestamp:  parent.Header.Timestamp + 10,
	})
	return block.NewBlock(header, []*tx.Transaction{coinbase})
}

// blockstoreForHeight returns a block store chained up to the given
// height via fake-signed blocks, for tests that only care about the tip
// height/hash and not about consensus correctness.
func blockstoreForHeight(t *testing.T, height uint64) *blockstore.Store {
	t.Helper()
	s := blockstore.New(storage.NewMemory())
	genesis := testGenesisBlock()
	if err := s.SetGenesis(genesis); err != nil {
		t.Fatalf("SetGenesis() error: %v", err)
	}
	blk := genesis
	for blk.Header.Height < height {
		blk = testChildBlock(blk)
		if err := s.Append(blk); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}
	return s
}
