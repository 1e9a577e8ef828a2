package keyvault

import (
	"fmt"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/tyler-smith/go-bip32"
)

// Derivation path constants for a validator identity, adapted from the
// teacher's BIP-44 account tree (internal/wallet/hdkey.go) down to the
// two fixed leaves a validator actually needs: one child key for signing,
// one for seeding the pre-image chain, both hardened so neither can be
// derived from the other without the master seed.
const (
	// purposeValidator is this module's BIP-43 purpose field (hardened).
	purposeValidator = bip32.FirstHardenedChild + 4444

	// indexSigningKey is the child index for the Schnorr signing key.
	indexSigningKey = bip32.FirstHardenedChild + 0

	// indexChainSeed is the child index for the pre-image chain seed.
	indexChainSeed = bip32.FirstHardenedChild + 1
)

// deriveChild derives m/purposeValidator'/index from a 64-byte master seed.
func deriveChild(seed []byte, index uint32) (*bip32.Key, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	purpose, err := master.NewChildKey(purposeValidator)
	if err != nil {
		return nil, fmt.Errorf("derive purpose child: %w", err)
	}
	child, err := purpose.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return child, nil
}

// privateKeyBytes extracts the raw 32-byte scalar from a bip32 key
// (bip32.Key.Key is 33 bytes with a leading 0x00 for private keys).
func privateKeyBytes(k *bip32.Key) []byte {
	raw := k.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// SigningKeyFromSeed derives this validator's Schnorr signing key from a
// BIP-39 master seed.
func SigningKeyFromSeed(seed []byte) (*crypto.PrivateKey, error) {
	child, err := deriveChild(seed, indexSigningKey)
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromBytes(privateKeyBytes(child))
}

// ChainSeedFromSeed derives the 32-byte seed this validator's pre-image
// chain is generated from (internal/enrollment.GenerateChainWithSeed's input).
func ChainSeedFromSeed(seed []byte) ([]byte, error) {
	child, err := deriveChild(seed, indexChainSeed)
	if err != nil {
		return nil, err
	}
	return privateKeyBytes(child), nil
}
