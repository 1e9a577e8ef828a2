package ledger

import (
	"testing"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// buildSpendTx creates a signed payment transaction spending prevOut to
// the same key, mirroring internal/mempool's buildTx helper.
func buildSpendTx(t *testing.T, key *crypto.PrivateKey, prevOut types.Outpoint, outputValue uint64) *tx.Transaction {
	t.Helper()
	b := tx.NewBuilder(tx.TagPayment).
		AddInput(prevOut).
		AddKeyOutput(outputValue, key.PublicKey())
	if err := b.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return b.Build()
}

// testValidateLedger builds a bare Ledger sufficient to exercise
// ValidateTxSet: a UTXO set, a block store at height 0 and a script
// engine, no event loop running.
func testValidateLedger(t *testing.T) (*Ledger, *utxo.Store) {
	t.Helper()
	set := utxo.NewStore(storage.NewMemory())
	l := &Ledger{
		cfg:    DefaultConfig(),
		utxos:  set,
		blocks: blockstoreForHeight(t, 0),
		script: script.DefaultEngine(),
	}
	return l, set
}

func TestValidateTxSet_Valid(t *testing.T) {
	l, set := testValidateLedger(t)
	key, _ := crypto.GenerateKey()

	prevOut := types.Outpoint{TxID: types.Hash{0x01}, Index: 0}
	set.Put(&utxo.UTXO{
		Outpoint: prevOut,
		Amount:   5000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
	})

	transaction := buildSpendTx(t, key, prevOut, 4000)
	value := &fba.Value{Transactions: []*tx.Transaction{transaction}}

	if err := l.ValidateTxSet(value); err != nil {
		t.Fatalf("ValidateTxSet() error: %v", err)
	}
}

func TestValidateTxSet_Nil(t *testing.T) {
	l, _ := testValidateLedger(t)
	if err := l.ValidateTxSet(nil); err == nil {
		t.Fatal("ValidateTxSet(nil) should error")
	}
}

func TestValidateTxSet_DoubleSpendWithinSet(t *testing.T) {
	l, set := testValidateLedger(t)
	key, _ := crypto.GenerateKey()

	prevOut := types.Outpoint{TxID: types.Hash{0x02}, Index: 0}
	set.Put(&utxo.UTXO{
		Outpoint: prevOut,
		Amount:   5000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
	})

	tx1 := buildSpendTx(t, key, prevOut, 1000)
	tx2 := buildSpendTx(t, key, prevOut, 2000)
	value := &fba.Value{Transactions: []*tx.Transaction{tx1, tx2}}

	if err := l.ValidateTxSet(value); err == nil {
		t.Fatal("ValidateTxSet() should reject a set that double-spends the same outpoint")
	}
}

func TestValidateTxSet_UnknownInput(t *testing.T) {
	l, _ := testValidateLedger(t)
	key, _ := crypto.GenerateKey()

	prevOut := types.Outpoint{TxID: types.Hash{0x03}, Index: 0}
	transaction := buildSpendTx(t, key, prevOut, 1000)
	value := &fba.Value{Transactions: []*tx.Transaction{transaction}}

	if err := l.ValidateTxSet(value); err == nil {
		t.Fatal("ValidateTxSet() should reject a tx spending a nonexistent UTXO")
	}
}

func TestValidateTxSet_BadEnrollmentSignature(t *testing.T) {
	l, set := testValidateLedger(t)
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()

	prevOut := types.Outpoint{TxID: types.Hash{0x04}, Index: 0}
	set.Put(&utxo.UTXO{
		Outpoint: prevOut,
		Amount:   5000,
		Lock:     types.Lock{Kind: types.LockKey, Data: key.PublicKey()},
	})
	transaction := buildSpendTx(t, key, prevOut, 1000)

	e := enroll.Enrollment{
		UTXOKey:      types.Outpoint{TxID: types.Hash{0x05}, Index: 0},
		Commitment:   types.Hash{0xaa},
		CycleLength:  1008,
		SignerPubKey: key.PublicKey(),
	}
	h := e.Hash()
	sig, err := other.Sign(h[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	e.Signature = sig

	value := &fba.Value{
		Transactions: []*tx.Transaction{transaction},
		Enrollments:  []enroll.Enrollment{e},
	}
	if err := l.ValidateTxSet(value); err == nil {
		t.Fatal("ValidateTxSet() should reject an enrollment whose signature does not verify")
	}
}

func TestOnTxSetExternalized_StaleSlotIsBenign(t *testing.T) {
	l, _ := testValidateLedger(t)
	l.blocks = blockstoreForHeight(t, 3)

	if err := l.OnTxSetExternalized(1, &fba.Value{}); err != nil {
		t.Fatalf("OnTxSetExternalized() for an already-passed slot should be a benign no-op, got: %v", err)
	}
}
