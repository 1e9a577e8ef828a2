package ledger

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fbanet/ledgercore/config"
	"github.com/fbanet/ledgercore/internal/enrollment"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// BuildGenesisBlock builds the height-0 block from gen: a single coinbase
// transaction distributing gen.Alloc, followed by one key-locked stake
// output per entry in gen.InitialValidators in the same transaction, sized
// to the protocol's minimum stake (ApplyGenesisUTXOs freezes them). Adapted from the teacher's internal/chain.CreateGenesisBlock,
// generalized from a plain P2PKH coinbase to also seed the frozen stake
// outputs a fresh chain's initial validators enroll against.
func BuildGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}

	coinbase, err := buildGenesisCoinbase(gen)
	if err != nil {
		return nil, fmt.Errorf("build coinbase: %w", err)
	}

	root := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   types.Hash{},
		MerkleRoot: root,
		Timestamp:  gen.Timestamp,
		Height:     0,
	}
	return block.NewBlock(header, []*tx.Transaction{coinbase}), nil
}

func buildGenesisCoinbase(gen *config.Genesis) (*tx.Transaction, error) {
	addrs := make([]string, 0, len(gen.Alloc))
	for addr := range gen.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var outputs []tx.Output
	for _, addrStr := range addrs {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		outputs = append(outputs, tx.Output{
			Amount: gen.Alloc[addrStr],
			Lock:   types.Lock{Kind: types.LockKeyHash, Data: addr.Bytes()},
		})
	}

	for _, pubHex := range gen.InitialValidators {
		pub, err := hex.DecodeString(pubHex)
		if err != nil {
			return nil, fmt.Errorf("invalid initial validator pubkey %q: %w", pubHex, err)
		}
		outputs = append(outputs, tx.Output{
			Amount: gen.Protocol.MinStakeAmount,
			Lock:   types.Lock{Kind: types.LockKey, Data: pub},
		})
	}

	if len(outputs) == 0 {
		outputs = []tx.Output{{Amount: 0, Lock: types.Lock{Kind: types.LockKeyHash, Data: make([]byte, types.AddressSize)}}}
	}

	return &tx.Transaction{
		Version: 1,
		Tag:     tx.TagCoinbase,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{}}},
		Outputs: outputs,
	}, nil
}

// ApplyGenesisUTXOs seeds set with genesisTx's outputs: the alloc entries
// as ordinary spendable coinbase UTXOs, and one frozen stake UTXO per
// initial validator (unlock height = 2 * ValidatorCycle, the enroll
// height 0 plus twice the cycle length).
// Bypasses internal/utxo.OutputsToUTXOs, which derives FreezeUnlockHeight
// from a transaction-wide Freeze tag — the genesis coinbase mixes alloc
// and stake outputs in one transaction, so each output's freeze status
// is decided here per-index instead.
func ApplyGenesisUTXOs(set *utxo.Store, gen *config.Genesis, genesisTx *tx.Transaction) error {
	allocCount := len(gen.Alloc)
	txHash := genesisTx.Hash()
	for i, out := range genesisTx.Outputs {
		u := &utxo.UTXO{
			Outpoint: types.Outpoint{TxID: txHash, Index: uint32(i)},
			Amount:   out.Amount,
			Lock:     out.Lock,
			Coinbase: true,
		}
		if i >= allocCount {
			u.FreezeUnlockHeight = gen.Protocol.ValidatorCycle * 2
		}
		if err := set.Put(u); err != nil {
			return fmt.Errorf("apply genesis utxo %d: %w", i, err)
		}
	}
	return nil
}

// BootstrapInitialValidators admits gen's initial validators directly into
// mgr's active set at height 0, bypassing the signed-Enrollment admission
// path: a fresh chain's first validators have no prior block to carry a
// signed enrollment in, so the genesis stake outputs built by
// BuildGenesisBlock are admitted by fiat instead.
//
// Each validator's pre-image chain is seeded from DomainGenesisValidatorSeed
// rather than a private keyvault seed — public, deterministic, reconstructible
// by any node from genesis data alone — so the commitment actually verifies
// against the reveal the validator publishes later. This trades chain-seed
// secrecy for the genesis cycle only: a validator's first recurring Renew
// replaces it with a real private seed, same as any later enrollment.
func BootstrapInitialValidators(gen *config.Genesis, genesisTx *tx.Transaction, mgr interface {
	Admit(e enroll.Enrollment, enrollHeight uint64, recurring bool) error
}) error {
	allocCount := len(gen.Alloc)
	for i, pubHex := range gen.InitialValidators {
		pub, err := hex.DecodeString(pubHex)
		if err != nil {
			return fmt.Errorf("invalid initial validator pubkey %q: %w", pubHex, err)
		}
		utxoKey := types.Outpoint{TxID: genesisTx.Hash(), Index: uint32(allocCount + i)}
		seed := crypto.DomainHash(crypto.DomainGenesisValidatorSeed, []byte(gen.ChainID), pub)
		chain, err := enrollment.GenerateChainWithSeed(utxoKey, gen.Protocol.ValidatorCycle, seed[:])
		if err != nil {
			return fmt.Errorf("bootstrap validator %q: derive pre-image chain: %w", pubHex, err)
		}
		e := enroll.Enrollment{
			UTXOKey:      utxoKey,
			Commitment:   chain.Commitment(),
			CycleLength:  gen.Protocol.ValidatorCycle,
			SignerPubKey: pub,
		}
		if err := mgr.Admit(e, 0, gen.Protocol.RecurringEnrollment); err != nil {
			return fmt.Errorf("bootstrap validator %q: %w", pubHex, err)
		}
	}
	return nil
}
