package enrollment

import (
	"testing"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

func testUTXOKey() types.Outpoint {
	return types.Outpoint{TxID: types.Hash{0x01, 0x02}, Index: 0}
}

func TestGenerateChain_CommitmentIsLastValue(t *testing.T) {
	chain, err := GenerateChain(testUTXOKey(), 20)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	if len(chain.Values) != 20 {
		t.Fatalf("chain has %d values, want 20", len(chain.Values))
	}
	if chain.Commitment() != chain.Values[19] {
		t.Fatal("Commitment() should be the last value in the chain")
	}
}

func TestGenerateChainWithSeed_Deterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	a, err := GenerateChainWithSeed(testUTXOKey(), 10, seed)
	if err != nil {
		t.Fatalf("GenerateChainWithSeed() error: %v", err)
	}
	b, err := GenerateChainWithSeed(testUTXOKey(), 10, seed)
	if err != nil {
		t.Fatalf("GenerateChainWithSeed() error: %v", err)
	}
	if a.Commitment() != b.Commitment() {
		t.Fatal("GenerateChainWithSeed() should be deterministic for a fixed seed and utxo key")
	}
}

func TestGenerateChainWithSeed_RejectsWrongSeedLength(t *testing.T) {
	if _, err := GenerateChainWithSeed(testUTXOKey(), 10, []byte{0x01}); err == nil {
		t.Fatal("GenerateChainWithSeed() should reject a seed that isn't 32 bytes")
	}
}

func TestGenerateChain_Unique(t *testing.T) {
	a, err := GenerateChain(testUTXOKey(), 10)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	b, err := GenerateChain(testUTXOKey(), 10)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	if a.Commitment() == b.Commitment() {
		t.Fatal("two independently generated chains should not share a commitment")
	}
}

func TestGenerateChain_RejectsTinyCycle(t *testing.T) {
	if _, err := GenerateChain(testUTXOKey(), 1); err == nil {
		t.Fatal("GenerateChain() should reject cycle length < 2")
	}
}

func TestChain_RevealAt(t *testing.T) {
	chain, err := GenerateChain(testUTXOKey(), 5)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	// Distance 0 reveals the commitment itself (hash^0(v) == v).
	got, err := chain.RevealAt(0)
	if err != nil {
		t.Fatalf("RevealAt(0) error: %v", err)
	}
	if got != chain.Commitment() {
		t.Fatal("RevealAt(0) should return the commitment")
	}
}

func TestChain_RevealAt_LastDistanceSucceeds(t *testing.T) {
	chain, err := GenerateChain(testUTXOKey(), 5)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	// Distance N-1 must still be revealable — a validator active through
	// its very last cycle block needs this to avoid being slashed.
	got, err := chain.RevealAt(4)
	if err != nil {
		t.Fatalf("RevealAt(4) error: %v", err)
	}
	if got != chain.Values[0] {
		t.Fatal("RevealAt(N-1) should return the chain's seed hash")
	}
}

func TestChain_RevealAt_OutOfRange(t *testing.T) {
	chain, err := GenerateChain(testUTXOKey(), 5)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	if _, err := chain.RevealAt(5); err == nil {
		t.Fatal("RevealAt() should reject a distance equal to the cycle length")
	}
	if _, err := chain.RevealAt(10); err == nil {
		t.Fatal("RevealAt() should reject a distance beyond the chain length")
	}
}

func TestChain_RevealAt_MatchesVerify(t *testing.T) {
	chain, err := GenerateChain(testUTXOKey(), 8)
	if err != nil {
		t.Fatalf("GenerateChain() error: %v", err)
	}
	commitment := chain.Commitment()
	for k := uint64(0); k < 8; k++ {
		value, err := chain.RevealAt(k)
		if err != nil {
			t.Fatalf("RevealAt(%d) error: %v", k, err)
		}
		h := value
		for i := uint64(0); i < k; i++ {
			h = crypto.PreimageStep(h)
		}
		if h != commitment {
			t.Errorf("distance %d: hashing forward %d times from the reveal should reach the commitment", k, k)
		}
	}
}
