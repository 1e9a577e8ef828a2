package fba

import (
	"testing"

	"github.com/fbanet/ledgercore/pkg/crypto"
)

func TestEnvelope_SignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	env := &Envelope{Statement: Statement{Slot: 1, Kind: StatementNominate}}
	if err := Sign(env, key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !env.VerifySignature() {
		t.Fatal("VerifySignature() should accept a freshly signed envelope")
	}
}

func TestEnvelope_VerifyRejectsTamperedStatement(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	env := &Envelope{Statement: Statement{Slot: 1, Kind: StatementNominate}}
	if err := Sign(env, key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	env.Statement.Slot = 2
	if env.VerifySignature() {
		t.Fatal("VerifySignature() should reject a statement mutated after signing")
	}
}
