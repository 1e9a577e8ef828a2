package utxo

import (
	"errors"
	"testing"

	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

func TestValidateSpend_Valid(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	set := NewStore(storage.NewMemory())
	prevOut := types.Outpoint{TxID: types.Hash{0x01}, Index: 0}
	set.Put(&UTXO{
		Outpoint: prevOut,
		Amount:   10_000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
		Height:   1,
	})

	builder := tx.NewBuilder(tx.TagPayment).
		AddInput(prevOut).
		AddKeyOutput(9_000, key.PublicKey())
	if err := builder.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	transaction := builder.Build()

	engine := script.DefaultEngine()
	if err := ValidateSpend(transaction, set, engine, 10, 100); err != nil {
		t.Fatalf("expected valid spend, got: %v", err)
	}
}

func TestValidateSpend_MissingUTXO(t *testing.T) {
	key, _ := crypto.GenerateKey()
	set := NewStore(storage.NewMemory())

	prevOut := types.Outpoint{TxID: types.Hash{0x02}, Index: 0}
	builder := tx.NewBuilder(tx.TagPayment).
		AddInput(prevOut).
		AddKeyOutput(1000, key.PublicKey())
	builder.Sign(key)
	transaction := builder.Build()

	engine := script.DefaultEngine()
	err := ValidateSpend(transaction, set, engine, 1, 0)
	if !errors.Is(err, ErrUTXONotFound) {
		t.Fatalf("expected ErrUTXONotFound, got: %v", err)
	}
}

func TestValidateSpend_Immature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	set := NewStore(storage.NewMemory())
	prevOut := types.Outpoint{TxID: types.Hash{0x03}, Index: 0}
	set.Put(&UTXO{
		Outpoint: prevOut,
		Amount:   5000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
		Height:   100,
		Coinbase: true,
	})

	builder := tx.NewBuilder(tx.TagPayment).
		AddInput(prevOut).
		AddKeyOutput(1000, key.PublicKey())
	builder.Sign(key)
	transaction := builder.Build()

	engine := script.DefaultEngine()
	// Height 105 is within coinbase maturity of a height-100 coinbase.
	err := ValidateSpend(transaction, set, engine, 105, 0)
	if !errors.Is(err, ErrUTXOImmature) {
		t.Fatalf("expected ErrUTXOImmature, got: %v", err)
	}
}

func TestValidateSpend_WrongSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	set := NewStore(storage.NewMemory())
	prevOut := types.Outpoint{TxID: types.Hash{0x04}, Index: 0}
	set.Put(&UTXO{
		Outpoint: prevOut,
		Amount:   5000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
		Height:   1,
	})

	builder := tx.NewBuilder(tx.TagPayment).
		AddInput(prevOut).
		AddKeyOutput(1000, key.PublicKey())
	builder.Sign(other) // Signed by the wrong key.
	transaction := builder.Build()

	engine := script.DefaultEngine()
	err := ValidateSpend(transaction, set, engine, 10, 0)
	if !errors.Is(err, ErrUnlockFailed) {
		t.Fatalf("expected ErrUnlockFailed, got: %v", err)
	}
}

func TestValidateSpend_InsufficientFee(t *testing.T) {
	key, _ := crypto.GenerateKey()
	set := NewStore(storage.NewMemory())
	prevOut := types.Outpoint{TxID: types.Hash{0x05}, Index: 0}
	set.Put(&UTXO{
		Outpoint: prevOut,
		Amount:   1000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
		Height:   1,
	})

	builder := tx.NewBuilder(tx.TagPayment).
		AddInput(prevOut).
		AddKeyOutput(1000, key.PublicKey()) // Spends all value, no room for fee.
	builder.Sign(key)
	transaction := builder.Build()

	engine := script.DefaultEngine()
	err := ValidateSpend(transaction, set, engine, 10, 50)
	if !errors.Is(err, ErrInsufficientFee) {
		t.Fatalf("expected ErrInsufficientFee, got: %v", err)
	}
}

func TestValidateSpend_CoinbaseSkipsFeeCheck(t *testing.T) {
	set := NewStore(storage.NewMemory())
	key, _ := crypto.GenerateKey()

	transaction := &tx.Transaction{
		Version: 1,
		Tag:     tx.TagCoinbase,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{}}},
		Outputs: []tx.Output{{Amount: 1_000_000, Lock: types.Lock{Kind: types.LockKey, Data: key.PublicKey()}}},
	}

	engine := script.DefaultEngine()
	if err := ValidateSpend(transaction, set, engine, 10, 1000); err != nil {
		t.Fatalf("coinbase should skip fee/balance check, got: %v", err)
	}
}

func TestOutputsToUTXOs_FreezeSetsUnlockHeight(t *testing.T) {
	key, _ := crypto.GenerateKey()
	builder := tx.NewBuilder(tx.TagFreeze).
		AddInput(types.Outpoint{TxID: types.Hash{0x06}, Index: 0}).
		AddKeyOutput(1_000_000, key.PublicKey())
	builder.Sign(key)
	transaction := builder.Build()

	utxos := OutputsToUTXOs(transaction, 100, 20)
	if len(utxos) != 1 {
		t.Fatalf("expected 1 utxo, got %d", len(utxos))
	}
	want := uint64(100 + 20*2)
	if utxos[0].FreezeUnlockHeight != want {
		t.Errorf("FreezeUnlockHeight = %d, want %d", utxos[0].FreezeUnlockHeight, want)
	}
}

func TestOutputsToUTXOs_PaymentHasNoFreezeHeight(t *testing.T) {
	key, _ := crypto.GenerateKey()
	builder := tx.NewBuilder(tx.TagPayment).
		AddInput(types.Outpoint{TxID: types.Hash{0x07}, Index: 0}).
		AddKeyOutput(1000, key.PublicKey())
	builder.Sign(key)
	transaction := builder.Build()

	utxos := OutputsToUTXOs(transaction, 50, 20)
	if utxos[0].FreezeUnlockHeight != 0 {
		t.Errorf("FreezeUnlockHeight = %d, want 0", utxos[0].FreezeUnlockHeight)
	}
}

func TestSpentOutpoints_SkipsCoinbase(t *testing.T) {
	transaction := &tx.Transaction{
		Tag: tx.TagCoinbase,
		Inputs: []tx.Input{
			{PrevOut: types.Outpoint{}},
		},
	}
	if got := SpentOutpoints(transaction); len(got) != 0 {
		t.Errorf("expected 0 spent outpoints for coinbase, got %d", len(got))
	}
}

func TestSpentOutpoints_ReturnsPrevouts(t *testing.T) {
	op1 := types.Outpoint{TxID: types.Hash{0x08}, Index: 0}
	op2 := types.Outpoint{TxID: types.Hash{0x09}, Index: 1}
	transaction := &tx.Transaction{
		Tag: tx.TagPayment,
		Inputs: []tx.Input{
			{PrevOut: op1},
			{PrevOut: op2},
		},
	}
	got := SpentOutpoints(transaction)
	if len(got) != 2 || got[0] != op1 || got[1] != op2 {
		t.Errorf("SpentOutpoints() = %v, want [%v %v]", got, op1, op2)
	}
}
