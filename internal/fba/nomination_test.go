package fba

import (
	"testing"

	"github.com/fbanet/ledgercore/internal/mempool"
	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

func testPoolWithTxs(t *testing.T, n int) *mempool.Pool {
	t.Helper()
	set := utxo.NewStore(storage.NewMemory())
	pool := mempool.New(set, script.DefaultEngine(), func() uint64 { return 10 }, 100, 0)

	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey() error: %v", err)
		}
		prevOut := types.Outpoint{TxID: types.Hash{byte(i + 1)}, Index: 0}
		set.Put(&utxo.UTXO{
			Outpoint: prevOut,
			Amount:   1000,
			Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
		})
		b := tx.NewBuilder(tx.TagPayment).AddInput(prevOut).AddKeyOutput(900, key.PublicKey())
		if err := b.Sign(key); err != nil {
			t.Fatalf("Sign() error: %v", err)
		}
		if err := pool.Add(b.Build()); err != nil {
			t.Fatalf("pool.Add() error: %v", err)
		}
	}
	return pool
}

func TestProposeValue_ReturnsAvailable(t *testing.T) {
	pool := testPoolWithTxs(t, 3)
	value, ok := ProposeValue(pool, 2, nil)
	if !ok {
		t.Fatal("ProposeValue() should succeed when enough transactions are available")
	}
	if len(value.Transactions) != 2 {
		t.Fatalf("ProposeValue() returned %d transactions, want 2", len(value.Transactions))
	}
}

func TestProposeValue_DefersWhenShort(t *testing.T) {
	pool := testPoolWithTxs(t, 1)
	_, ok := ProposeValue(pool, 5, nil)
	if ok {
		t.Fatal("ProposeValue() should defer nomination when fewer transactions than requested are available")
	}
}

func TestProposeValue_ZeroMeansAll(t *testing.T) {
	pool := testPoolWithTxs(t, 4)
	value, ok := ProposeValue(pool, 0, nil)
	if !ok {
		t.Fatal("ProposeValue() with txsToNominate=0 should never defer")
	}
	if len(value.Transactions) != 4 {
		t.Fatalf("ProposeValue(0) returned %d transactions, want all 4", len(value.Transactions))
	}
}
