package quorum

import "testing"

func TestSatisfied_FlatThreshold(t *testing.T) {
	q := Set{Threshold: 2, Validators: [][]byte{{0x01}, {0x02}, {0x03}}}
	voted := func(pubKey []byte) bool { return pubKey[0] == 0x01 || pubKey[0] == 0x02 }
	if !Satisfied(q, voted) {
		t.Fatal("Satisfied() should be true when 2 of 3 required validators voted")
	}
}

func TestSatisfied_BelowThreshold(t *testing.T) {
	q := Set{Threshold: 2, Validators: [][]byte{{0x01}, {0x02}, {0x03}}}
	voted := func(pubKey []byte) bool { return pubKey[0] == 0x01 }
	if Satisfied(q, voted) {
		t.Fatal("Satisfied() should be false when only 1 of 2 required validators voted")
	}
}

func TestSatisfied_NestedInnerSet(t *testing.T) {
	q := Set{
		Threshold:  2,
		Validators: [][]byte{{0x01}},
		Inner: []Set{
			{Threshold: 1, Validators: [][]byte{{0x02}, {0x03}}},
		},
	}
	// Top-level needs 2 of (validator 0x01, inner set). The inner set
	// needs 1 of (0x02, 0x03).
	voted := func(pubKey []byte) bool { return pubKey[0] == 0x01 || pubKey[0] == 0x03 }
	if !Satisfied(q, voted) {
		t.Fatal("Satisfied() should recurse into inner sets and count a satisfied inner set as one entry")
	}
}

func TestSatisfied_NilVoted(t *testing.T) {
	q := Set{Threshold: 1, Validators: [][]byte{{0x01}}}
	if Satisfied(q, nil) {
		t.Fatal("Satisfied() with a nil voted function should always be false")
	}
}
