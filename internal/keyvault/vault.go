package keyvault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fbanet/ledgercore/pkg/crypto"
)

// vaultFile is the on-disk JSON format for an encrypted validator identity,
// narrowed from the teacher's multi-account keystoreFile (internal/wallet/keystore.go)
// down to the single signing key + chain seed a validator actually holds.
type vaultFile struct {
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	EncryptedSeed  []byte    `json:"encrypted_seed"`  // BIP-39 seed, if derived from a mnemonic.
	EncryptedKey   []byte    `json:"encrypted_key"`   // secp256k1 signing key, always present.
	EncryptedChain []byte    `json:"encrypted_chain"` // pre-image chain seed, always present.
	FromMnemonic   bool      `json:"from_mnemonic"`
}

// Identity is a decrypted validator identity: the signing key used to sign
// ballot/nomination envelopes and enrollments, and the seed used to
// generate the validator's pre-image chain (internal/enrollment.GenerateChainWithSeed).
type Identity struct {
	SigningKey *crypto.PrivateKey
	ChainSeed  []byte
}

// Zero overwrites the identity's secret material in place.
func (id *Identity) Zero() {
	if id.SigningKey != nil {
		id.SigningKey.Zero()
	}
	zero(id.ChainSeed)
}

// Vault manages a single encrypted validator identity file on disk.
type Vault struct {
	path string
}

// Open returns a Vault backed by the given file path. The parent directory
// is created if it doesn't exist; the file itself is created by
// CreateFromMnemonic, RestoreFromMnemonic or CreateDetached.
func Open(path string) (*Vault, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create keyvault dir: %w", err)
	}
	return &Vault{path: path}, nil
}

// Exists reports whether a vault file is already present.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// CreateFromMnemonic generates a fresh 24-word mnemonic, derives a signing
// key and chain seed from it via BIP-32, and persists both (plus the
// mnemonic's seed, to allow re-deriving further material later) encrypted
// under password. Returns the mnemonic so the caller can display it once
// for backup; it is never written to disk in plaintext.
func (v *Vault) CreateFromMnemonic(password []byte, params EncryptionParams) (mnemonic string, id *Identity, err error) {
	if v.Exists() {
		return "", nil, fmt.Errorf("keyvault %q already exists", v.path)
	}

	mnemonic, err = GenerateMnemonic()
	if err != nil {
		return "", nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return "", nil, fmt.Errorf("derive seed: %w", err)
	}

	id, err = identityFromSeed(seed)
	if err != nil {
		return "", nil, err
	}

	if err := v.write(seed, id, true, password, params); err != nil {
		return "", nil, err
	}
	return mnemonic, id, nil
}

// RestoreFromMnemonic recreates a vault from a previously-generated
// mnemonic, re-deriving the same signing key and chain seed.
func (v *Vault) RestoreFromMnemonic(mnemonic string, password []byte, params EncryptionParams) (*Identity, error) {
	if v.Exists() {
		return nil, fmt.Errorf("keyvault %q already exists", v.path)
	}
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	id, err := identityFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if err := v.write(seed, id, true, password, params); err != nil {
		return nil, err
	}
	return id, nil
}

// CreateDetached persists an explicit signing key and chain seed with no
// backing mnemonic — for operators who manage backups out of band.
func (v *Vault) CreateDetached(signingKey *crypto.PrivateKey, chainSeed []byte, password []byte, params EncryptionParams) error {
	if v.Exists() {
		return fmt.Errorf("keyvault %q already exists", v.path)
	}
	return v.write(nil, &Identity{SigningKey: signingKey, ChainSeed: chainSeed}, false, password, params)
}

func identityFromSeed(seed []byte) (*Identity, error) {
	signingKey, err := SigningKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	chainSeed, err := ChainSeedFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("derive chain seed: %w", err)
	}
	return &Identity{SigningKey: signingKey, ChainSeed: chainSeed}, nil
}

func (v *Vault) write(mnemonicSeed []byte, id *Identity, fromMnemonic bool, password []byte, params EncryptionParams) error {
	encKey, err := Encrypt(id.SigningKey.Serialize(), password, params)
	if err != nil {
		return fmt.Errorf("encrypt signing key: %w", err)
	}
	encChain, err := Encrypt(id.ChainSeed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt chain seed: %w", err)
	}
	vf := vaultFile{
		Version:        1,
		CreatedAt:      time.Now().UTC(),
		EncryptedKey:   encKey,
		EncryptedChain: encChain,
		FromMnemonic:   fromMnemonic,
	}
	if fromMnemonic {
		encSeed, err := Encrypt(mnemonicSeed, password, params)
		if err != nil {
			return fmt.Errorf("encrypt mnemonic seed: %w", err)
		}
		vf.EncryptedSeed = encSeed
	}

	data, err := json.MarshalIndent(&vf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keyvault: %w", err)
	}
	if err := os.WriteFile(v.path, data, 0600); err != nil {
		return fmt.Errorf("write keyvault: %w", err)
	}
	return nil
}

// Load decrypts the vault's validator identity with password.
func (v *Vault) Load(password []byte) (*Identity, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return nil, fmt.Errorf("read keyvault: %w", err)
	}
	var vf vaultFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("unmarshal keyvault: %w", err)
	}

	keyBytes, err := Decrypt(vf.EncryptedKey, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt signing key: %w", err)
	}
	signingKey, err := crypto.PrivateKeyFromBytes(keyBytes)
	zero(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	chainSeed, err := Decrypt(vf.EncryptedChain, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt chain seed: %w", err)
	}

	return &Identity{SigningKey: signingKey, ChainSeed: chainSeed}, nil
}

// LoadMnemonicSeed decrypts and returns the BIP-39 seed this vault was
// created from, for re-deriving further material. Returns an error if the
// vault was created via CreateDetached.
func (v *Vault) LoadMnemonicSeed(password []byte) ([]byte, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return nil, fmt.Errorf("read keyvault: %w", err)
	}
	var vf vaultFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("unmarshal keyvault: %w", err)
	}
	if !vf.FromMnemonic {
		return nil, fmt.Errorf("keyvault %q was not created from a mnemonic", v.path)
	}
	return Decrypt(vf.EncryptedSeed, password)
}
