// Package script implements the lock/unlock verification engine consumed
// by the UTXO validator (spec.md §6, "Script engine interface"). It is a
// pure function of (lock, unlock, tx) and carries a fixed stack budget —
// it is explicitly not a general scripting VM (spec.md Non-goals).
package script

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Verification errors.
var (
	ErrLockKindMismatch  = errors.New("unlock kind does not match lock kind")
	ErrBadPubKeyLength   = errors.New("public key has unexpected length")
	ErrPubKeyHashMismatch = errors.New("public key does not match lock hash")
	ErrBadSignature      = errors.New("signature verification failed")
	ErrRedeemHashMismatch = errors.New("redeem script hash does not match lock")
	ErrScriptFailed      = errors.New("script execution failed")
	ErrStackBudget       = errors.New("script exceeded stack budget")
)

// compressedPubKeySize is the length of a compressed secp256k1 public key.
const compressedPubKeySize = 33

// Engine verifies that an Unlock witness satisfies a Lock, for a given
// transaction's signing bytes.
type Engine interface {
	Verify(lock types.Lock, unlock types.Unlock, txSigningBytes []byte) error
}

// BuiltinEngine is the engine's reference implementation, covering all
// four lock kinds spec.md names: Key, KeyHash, Script, Redeem.
type BuiltinEngine struct {
	// MaxTotalStack bounds the number of items ever pushed to the VM
	// stack while executing a Script-kind lock.
	MaxTotalStack int
	// MaxItemSize bounds the byte length of any single stack item.
	MaxItemSize int
}

// NewBuiltinEngine creates an engine with the given stack budget.
func NewBuiltinEngine(maxTotalStack, maxItemSize int) *BuiltinEngine {
	return &BuiltinEngine{MaxTotalStack: maxTotalStack, MaxItemSize: maxItemSize}
}

// DefaultEngine is a BuiltinEngine with a conservative budget, suitable
// for ordinary payment/freeze spends.
func DefaultEngine() *BuiltinEngine {
	return NewBuiltinEngine(64, 4096)
}

// Verify checks that unlock satisfies lock for the transaction whose
// canonical signing bytes are txSigningBytes.
func (e *BuiltinEngine) Verify(lock types.Lock, unlock types.Unlock, txSigningBytes []byte) error {
	if unlock.Kind != lock.Kind {
		return fmt.Errorf("%w: lock=%d unlock=%d", ErrLockKindMismatch, lock.Kind, unlock.Kind)
	}

	switch lock.Kind {
	case types.LockKey:
		return e.verifyKey(lock, unlock, txSigningBytes)
	case types.LockKeyHash:
		return e.verifyKeyHash(lock, unlock, txSigningBytes)
	case types.LockScript:
		return e.verifyScript(lock, unlock, txSigningBytes)
	case types.LockRedeem:
		return e.verifyRedeem(lock, unlock, txSigningBytes)
	default:
		return fmt.Errorf("%w: unknown lock kind %d", ErrScriptFailed, lock.Kind)
	}
}

// verifyKey checks a direct pay-to-pubkey lock: lock.Data is the
// compressed public key itself, unlock carries a matching signature.
func (e *BuiltinEngine) verifyKey(lock types.Lock, unlock types.Unlock, txSigningBytes []byte) error {
	if len(unlock.PubKey) != compressedPubKeySize {
		return fmt.Errorf("%w: got %d bytes", ErrBadPubKeyLength, len(unlock.PubKey))
	}
	if !bytes.Equal(lock.Data, unlock.PubKey) {
		return fmt.Errorf("%w", ErrPubKeyHashMismatch)
	}
	return e.checkSig(unlock, txSigningBytes)
}

// verifyKeyHash checks pay-to-pubkey-hash: lock.Data is a 64-byte
// SHA-512 hash of the spending public key.
func (e *BuiltinEngine) verifyKeyHash(lock types.Lock, unlock types.Unlock, txSigningBytes []byte) error {
	if len(unlock.PubKey) != compressedPubKeySize {
		return fmt.Errorf("%w: got %d bytes", ErrBadPubKeyLength, len(unlock.PubKey))
	}
	got := crypto.Hash512(unlock.PubKey)
	if !bytes.Equal(lock.Data, got[:]) {
		return fmt.Errorf("%w", ErrPubKeyHashMismatch)
	}
	return e.checkSig(unlock, txSigningBytes)
}

// verifyRedeem checks pay-to-redeem-hash: lock.Data is a 64-byte
// SHA-512 hash of a redeem script; the unlock witness supplies the
// script bytes whose hash must match, then the redeem script itself
// runs through the Script-kind VM.
func (e *BuiltinEngine) verifyRedeem(lock types.Lock, unlock types.Unlock, txSigningBytes []byte) error {
	if len(unlock.Redeem) == 0 {
		return fmt.Errorf("%w: empty redeem script", ErrScriptFailed)
	}
	got := crypto.Hash512(unlock.Redeem)
	if !bytes.Equal(lock.Data, got[:]) {
		return fmt.Errorf("%w", ErrRedeemHashMismatch)
	}

	maxStack, maxItem := e.budget()
	m := newVM(maxStack, maxItem, unlock.Signature, unlock.PubKey)
	return m.run(unlock.Redeem, txSigningBytes)
}

// budget returns the engine's stack limits, defaulting them if unset.
func (e *BuiltinEngine) budget() (maxTotalStack, maxItemSize int) {
	maxTotalStack, maxItemSize = e.MaxTotalStack, e.MaxItemSize
	if maxTotalStack <= 0 {
		maxTotalStack = 64
	}
	if maxItemSize <= 0 {
		maxItemSize = 4096
	}
	return maxTotalStack, maxItemSize
}

// checkSig verifies unlock.Signature against the transaction's signing
// hash for unlock.PubKey using Schnorr/secp256k1. txSigningBytes is the
// already-computed 32-byte tx hash (see pkg/tx.Builder.Sign), not raw
// bytes to be hashed again.
func (e *BuiltinEngine) checkSig(unlock types.Unlock, txSigningBytes []byte) error {
	if !crypto.VerifySignature(txSigningBytes, unlock.Signature, unlock.PubKey) {
		return fmt.Errorf("%w", ErrBadSignature)
	}
	return nil
}
