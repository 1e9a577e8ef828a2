package fba

import (
	"testing"

	"github.com/fbanet/ledgercore/pkg/tx"
)

func TestCombineCandidates_PicksSmallestFingerprint(t *testing.T) {
	a := &Value{Transactions: []*tx.Transaction{testTx(t, 0x01)}}
	b := &Value{Transactions: []*tx.Transaction{testTx(t, 0x02)}}
	fa, fb := a.Fingerprint(), b.Fingerprint()

	got, err := CombineCandidates([]*Value{a, b}, func(*Value) bool { return true })
	if err != nil {
		t.Fatalf("CombineCandidates() error: %v", err)
	}
	wantSmaller := a
	if string(fb[:]) < string(fa[:]) {
		wantSmaller = b
	}
	if got.Fingerprint() != wantSmaller.Fingerprint() {
		t.Fatal("CombineCandidates() should pick the candidate with the smallest fingerprint")
	}
}

func TestCombineCandidates_SkipsInvalid(t *testing.T) {
	a := &Value{Transactions: []*tx.Transaction{testTx(t, 0x01)}}
	b := &Value{Transactions: []*tx.Transaction{testTx(t, 0x02)}}
	got, err := CombineCandidates([]*Value{a, b}, func(v *Value) bool { return v == b })
	if err != nil {
		t.Fatalf("CombineCandidates() error: %v", err)
	}
	if got != b {
		t.Fatal("CombineCandidates() should only consider values that pass validate")
	}
}

func TestCombineCandidates_AllInvalid(t *testing.T) {
	a := &Value{Transactions: []*tx.Transaction{testTx(t, 0x01)}}
	_, err := CombineCandidates([]*Value{a}, func(*Value) bool { return false })
	if err != ErrNoValidCandidates {
		t.Fatalf("CombineCandidates() = %v, want ErrNoValidCandidates", err)
	}
}
