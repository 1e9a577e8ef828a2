package utxo

import (
	"testing"

	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func makeOutpoint(data string, index uint32) types.Outpoint {
	return types.Outpoint{
		TxID:  crypto.Hash([]byte(data)),
		Index: index,
	}
}

func testPubKey(seed byte) []byte {
	pk := make([]byte, 33)
	pk[0] = 0x02
	for i := 1; i < 33; i++ {
		pk[i] = seed + byte(i)
	}
	return pk
}

func makeUTXO(data string, index uint32, amount uint64) *UTXO {
	return &UTXO{
		Outpoint: makeOutpoint(data, index),
		Amount:   amount,
		Lock:     types.Lock{Kind: types.LockKey, Data: testPubKey(0x10)},
		Height:   1,
	}
}

// makeFreezeUTXO creates a frozen-stake UTXO locked to the given pubkey.
func makeFreezeUTXO(txData string, index uint32, amount uint64, pubKey []byte, unlockHeight uint64) *UTXO {
	return &UTXO{
		Outpoint:           makeOutpoint(txData, index),
		Amount:             amount,
		Lock:               types.Lock{Kind: types.LockKey, Data: pubKey},
		Height:             1,
		FreezeUnlockHeight: unlockHeight,
	}
}

func TestStore_PutAndGet(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 5000)

	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(u.Outpoint)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got.Amount != u.Amount {
		t.Errorf("Amount = %d, want %d", got.Amount, u.Amount)
	}
	if got.Outpoint != u.Outpoint {
		t.Error("Outpoint mismatch")
	}
	if got.Height != u.Height {
		t.Errorf("Height = %d, want %d", got.Height, u.Height)
	}
}

func TestStore_GetNonexistent(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(makeOutpoint("missing", 0))
	if err == nil {
		t.Error("Get() for nonexistent UTXO should return error")
	}
}

func TestStore_Has(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 1000)

	ok, _ := s.Has(u.Outpoint)
	if ok {
		t.Error("Has() should be false before Put()")
	}

	s.Put(u)

	ok, err := s.Has(u.Outpoint)
	if err != nil {
		t.Fatalf("Has() error: %v", err)
	}
	if !ok {
		t.Error("Has() should be true after Put()")
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 1000)

	s.Put(u)

	if err := s.Delete(u.Outpoint); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	ok, _ := s.Has(u.Outpoint)
	if ok {
		t.Error("UTXO should be gone after Delete()")
	}
}

func TestStore_MultipleOutputs(t *testing.T) {
	s := testStore(t)

	u0 := makeUTXO("tx1", 0, 1000)
	u1 := makeUTXO("tx1", 1, 2000)
	u2 := makeUTXO("tx1", 2, 3000)

	s.Put(u0)
	s.Put(u1)
	s.Put(u2)

	got0, _ := s.Get(u0.Outpoint)
	got1, _ := s.Get(u1.Outpoint)
	got2, _ := s.Get(u2.Outpoint)

	if got0.Amount != 1000 || got1.Amount != 2000 || got2.Amount != 3000 {
		t.Error("amounts mismatch for multi-output tx")
	}

	s.Delete(u1.Outpoint)

	ok, _ := s.Has(u1.Outpoint)
	if ok {
		t.Error("deleted output should be gone")
	}

	ok0, _ := s.Has(u0.Outpoint)
	ok2, _ := s.Has(u2.Outpoint)
	if !ok0 || !ok2 {
		t.Error("non-deleted outputs should remain")
	}
}

func TestStore_ImplementsSet(t *testing.T) {
	// Compile-time check that Store satisfies Set.
	var _ Set = (*Store)(nil)
}

func TestStore_AddressIndex_PutAndGetByAddress(t *testing.T) {
	s := testStore(t)
	pubKey := testPubKey(0x20)
	addr := crypto.AddressFromPubKey(pubKey)

	u := &UTXO{
		Outpoint: makeOutpoint("addr-tx", 0),
		Amount:   1234,
		Lock:     types.Lock{Kind: types.LockKey, Data: pubKey},
	}
	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.GetByAddress(addr)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetByAddress() returned %d, want 1", len(got))
	}
	if got[0].Amount != 1234 {
		t.Errorf("Amount = %d, want 1234", got[0].Amount)
	}
}

func TestStore_AddressIndex_DeleteRemovesIndex(t *testing.T) {
	s := testStore(t)
	pubKey := testPubKey(0x30)
	addr := crypto.AddressFromPubKey(pubKey)

	u := &UTXO{
		Outpoint: makeOutpoint("addr-del", 0),
		Amount:   500,
		Lock:     types.Lock{Kind: types.LockKey, Data: pubKey},
	}
	s.Put(u)
	s.Delete(u.Outpoint)

	got, err := s.GetByAddress(addr)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetByAddress() returned %d after delete, want 0", len(got))
	}
}

func TestStore_FreezeIndex_PutAndGet(t *testing.T) {
	s := testStore(t)
	pubKey := testPubKey(0x40)

	u := makeFreezeUTXO("stake-tx", 0, 1000_000_000_000, pubKey, 2016)
	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	stakes, err := s.GetFrozenStake(pubKey)
	if err != nil {
		t.Fatalf("GetFrozenStake() error: %v", err)
	}
	if len(stakes) != 1 {
		t.Fatalf("GetFrozenStake() returned %d, want 1", len(stakes))
	}
	if stakes[0].Amount != u.Amount {
		t.Errorf("Amount = %d, want %d", stakes[0].Amount, u.Amount)
	}
	if stakes[0].FreezeUnlockHeight != 2016 {
		t.Errorf("FreezeUnlockHeight = %d, want 2016", stakes[0].FreezeUnlockHeight)
	}
}

func TestStore_FreezeIndex_MultipleStakes(t *testing.T) {
	s := testStore(t)
	pubKey := testPubKey(0x50)

	u1 := makeFreezeUTXO("stake1", 0, 500_000_000_000, pubKey, 100)
	u2 := makeFreezeUTXO("stake2", 0, 600_000_000_000, pubKey, 100)

	s.Put(u1)
	s.Put(u2)

	stakes, err := s.GetFrozenStake(pubKey)
	if err != nil {
		t.Fatalf("GetFrozenStake() error: %v", err)
	}
	if len(stakes) != 2 {
		t.Fatalf("GetFrozenStake() returned %d, want 2", len(stakes))
	}

	var total uint64
	for _, st := range stakes {
		total += st.Amount
	}
	if total != 1_100_000_000_000 {
		t.Errorf("total stake = %d, want 1_100_000_000_000", total)
	}
}

func TestStore_FreezeIndex_DeleteRemovesIndex(t *testing.T) {
	s := testStore(t)
	pubKey := testPubKey(0x60)

	u := makeFreezeUTXO("stake-del", 0, 1000_000_000_000, pubKey, 500)
	s.Put(u)

	stakes, _ := s.GetFrozenStake(pubKey)
	if len(stakes) != 1 {
		t.Fatalf("expected 1 stake before delete, got %d", len(stakes))
	}

	if err := s.Delete(u.Outpoint); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	stakes, err := s.GetFrozenStake(pubKey)
	if err != nil {
		t.Fatalf("GetFrozenStake() error: %v", err)
	}
	if len(stakes) != 0 {
		t.Errorf("GetFrozenStake() returned %d after delete, want 0", len(stakes))
	}
}

func TestStore_FreezeIndex_InvalidPubkeyLength(t *testing.T) {
	s := testStore(t)

	_, err := s.GetFrozenStake([]byte{0x02, 0x03}) // Too short.
	if err == nil {
		t.Error("GetFrozenStake() should fail with wrong-length pubkey")
	}
}

func TestStore_GetAllStakedValidators(t *testing.T) {
	s := testStore(t)

	vals, err := s.GetAllStakedValidators()
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 0 {
		t.Fatalf("empty store: got %d validators, want 0", len(vals))
	}

	pk1 := testPubKey(0x70)
	pk2 := testPubKey(0x80)

	s.Put(makeFreezeUTXO("s1", 0, 1000, pk1, 10))
	s.Put(makeFreezeUTXO("s2", 0, 2000, pk2, 10))
	s.Put(makeFreezeUTXO("s3", 0, 500, pk1, 10))

	vals, err = s.GetAllStakedValidators()
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 2 {
		t.Fatalf("got %d validators, want 2", len(vals))
	}

	found := make(map[string]bool)
	for _, v := range vals {
		found[string(v)] = true
	}
	if !found[string(pk1)] {
		t.Error("pk1 not found in validators")
	}
	if !found[string(pk2)] {
		t.Error("pk2 not found in validators")
	}

	s.Delete(makeOutpoint("s1", 0))
	s.Delete(makeOutpoint("s3", 0))

	vals, err = s.GetAllStakedValidators()
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 1 {
		t.Fatalf("after delete: got %d validators, want 1", len(vals))
	}
	if string(vals[0]) != string(pk2) {
		t.Error("expected pk2 to remain")
	}
}

func TestStore_ApplyBlock_SpendsAndCreatesAtomically(t *testing.T) {
	s := testStore(t)
	existing := makeUTXO("existing", 0, 9000)
	s.Put(existing)

	created := makeUTXO("created", 0, 4500)

	if err := s.ApplyBlock([]types.Outpoint{existing.Outpoint}, []*UTXO{created}); err != nil {
		t.Fatalf("ApplyBlock() error: %v", err)
	}

	if ok, _ := s.Has(existing.Outpoint); ok {
		t.Error("spent outpoint should be gone after ApplyBlock")
	}
	if ok, _ := s.Has(created.Outpoint); !ok {
		t.Error("created outpoint should exist after ApplyBlock")
	}
}

func TestStore_ApplyBlock_FailsOnMissingSpend(t *testing.T) {
	s := testStore(t)
	missing := makeOutpoint("nonexistent", 0)

	if err := s.ApplyBlock([]types.Outpoint{missing}, nil); err == nil {
		t.Error("ApplyBlock() should fail when spending a nonexistent outpoint")
	}
}

func TestStore_ClearAll(t *testing.T) {
	s := testStore(t)
	s.Put(makeUTXO("a", 0, 100))
	s.Put(makeFreezeUTXO("b", 0, 200, testPubKey(0x90), 10))

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}

	count := 0
	s.ForEach(func(*UTXO) error { count++; return nil })
	if count != 0 {
		t.Errorf("ForEach after ClearAll found %d entries, want 0", count)
	}
}
