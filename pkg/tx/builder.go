package tx

import (
	"fmt"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder for the given tag.
func NewBuilder(tag Tag) *Builder {
	return &Builder{
		tx: &Transaction{Version: 1, Tag: tag},
	}
}

// AddInput adds an input referencing a previous output.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut})
	return b
}

// AddOutput adds an output locked under the given lock.
func (b *Builder) AddOutput(amount uint64, lock types.Lock) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Amount: amount, Lock: lock})
	return b
}

// AddKeyOutput adds an output directly locked to a Schnorr public key.
func (b *Builder) AddKeyOutput(amount uint64, pubKey []byte) *Builder {
	return b.AddOutput(amount, types.Lock{Kind: types.LockKey, Data: pubKey})
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint64) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// Sign signs every non-coinbase input with the provided private key,
// producing a LockKey-style unlock witness. Use SignMulti when inputs are
// owned by different keys.
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	hash := b.tx.Hash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	pubKey := key.PublicKey()
	for i := range b.tx.Inputs {
		if b.tx.Inputs[i].IsCoinbase() {
			continue
		}
		b.tx.Inputs[i].Unlock = types.Unlock{
			Kind:      types.LockKey,
			PubKey:    pubKey,
			Signature: sig,
		}
	}
	return nil
}

// SignMulti signs each input with the key that owns its outpoint.
// outpointAddr maps each input's outpoint to the address that owns it;
// signers maps each address to the private key that can spend from it.
func (b *Builder) SignMulti(
	signers map[types.Address]*crypto.PrivateKey,
	outpointAddr map[types.Outpoint]types.Address,
) error {
	hash := b.tx.Hash()

	type sigPub struct {
		sig    []byte
		pubKey []byte
	}
	cache := make(map[types.Address]*sigPub)

	for i := range b.tx.Inputs {
		if b.tx.Inputs[i].IsCoinbase() {
			continue
		}

		addr, ok := outpointAddr[b.tx.Inputs[i].PrevOut]
		if !ok {
			return fmt.Errorf("no address mapping for input %d outpoint", i)
		}
		key, ok := signers[addr]
		if !ok {
			return fmt.Errorf("no signer for address %s (input %d)", addr, i)
		}

		sp, cached := cache[addr]
		if !cached {
			sig, err := key.Sign(hash[:])
			if err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			sp = &sigPub{sig: sig, pubKey: key.PublicKey()}
			cache[addr] = sp
		}
		b.tx.Inputs[i].Unlock = types.Unlock{
			Kind:      types.LockKey,
			PubKey:    sp.pubKey,
			Signature: sp.sig,
		}
	}
	return nil
}

// Build returns the constructed transaction. Does NOT validate — call
// tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
