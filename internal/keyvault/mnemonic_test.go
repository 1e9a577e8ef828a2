package keyvault

import "testing"

func TestGenerateMnemonic_Valid(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if !ValidateMnemonic(mnemonic) {
		t.Error("generated mnemonic should validate")
	}
}

func TestValidateMnemonic_Invalid(t *testing.T) {
	if ValidateMnemonic("not a real mnemonic phrase at all") {
		t.Error("garbage phrase should not validate")
	}
}

func TestSeedFromMnemonic_Deterministic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	a, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	b, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	if !bytesEqual(a, b) {
		t.Error("same mnemonic should produce the same seed")
	}
	if len(a) != SeedSize {
		t.Errorf("seed length = %d, want %d", len(a), SeedSize)
	}
}

func TestSeedFromMnemonic_RejectsInvalid(t *testing.T) {
	if _, err := SeedFromMnemonic("invalid mnemonic phrase", ""); err == nil {
		t.Error("SeedFromMnemonic() should reject an invalid mnemonic")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
