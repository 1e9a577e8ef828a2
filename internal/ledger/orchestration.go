package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/internal/quorum"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// initQuorum derives every active validator's quorum set for the current
// tip and caches this node's own (spec.md §4.5). Called once at startup;
// refreshed after every block via refreshQuorumLocked.
func (l *Ledger) initQuorum() error {
	return l.refreshQuorumLocked()
}

// refreshQuorumLocked recomputes the quorum-set cache from the active
// validator set and the per-height seed (XOR-fold of the enrollment
// commitments carried by the tip). Must run on the event loop.
func (l *Ledger) refreshQuorumLocked() error {
	// ValidatorState.ActiveAt requires height > enroll-height, so the set
	// relevant to the slot this node will next nominate is evaluated one
	// past the current tip, not at the tip itself.
	active, err := l.enroll.ActiveValidators(l.Height() + 1)
	if err != nil {
		return fmt.Errorf("active validators: %w", err)
	}
	if len(active) == 0 {
		// Genesis / pre-enrollment: nothing to derive yet. initDriver
		// tolerates an empty selfQuorum until the first validator enrolls.
		return nil
	}

	seed := quorum.Seed(l.revealedAtTip())
	sets, err := quorum.Construct(active, seed, quorum.Config{
		MaxGroupSize: l.cfg.MaxQuorumNodes,
		ThresholdPct: l.cfg.QuorumThresholdPct,
	})
	if err != nil {
		return fmt.Errorf("construct quorum: %w", err)
	}

	l.quorumMu.Lock()
	defer l.quorumMu.Unlock()
	l.quorumByHash = make(map[types.Hash]quorum.Set, len(sets))
	for pub, set := range sets {
		l.quorumByHash[quorumSetHash(set)] = set
		if l.validator != nil && pub == string(l.validator.signer.PublicKey()) {
			l.selfQuorum = set
		}
	}
	return nil
}

// revealedAtTip collects the enrollment commitments carried by the tip
// block's header, for quorum.Seed. A node with no blocks yet votes with an empty fold.
func (l *Ledger) revealedAtTip() []types.Hash {
	tip, err := l.blocks.Get(l.Height())
	if err != nil || tip == nil {
		return nil
	}
	hashes := make([]types.Hash, 0, len(tip.Header.Enrollments))
	for _, e := range tip.Header.Enrollments {
		hashes = append(hashes, e.Commitment)
	}
	return hashes
}

// quorumSetHash canonically hashes a quorum set for use as its
// get_quorum_set cache key (spec.md §4.6 "get_quorum_set"). JSON gives a
// stable field order since Set's fields are fixed and never reordered by
// marshalling, so this is deterministic across nodes that agree on Set's
// contents.
func quorumSetHash(q quorum.Set) types.Hash {
	data, err := json.Marshal(q)
	if err != nil {
		return types.Hash{}
	}
	return crypto.DomainHash(crypto.DomainQuorumSetHash, data)
}

// initDriver (re)builds the FBA driver bound to this node's current
// quorum cache. Only validators run a driver; a non-validator node stays
// an observer and applies blocks it learns about via catchup;
// ReceiveEnvelope returns an error on an observer.
func (l *Ledger) initDriver() {
	if l.validator == nil {
		return
	}
	l.driver = fba.NewDriver(l.validator.signer, l.selfQuorum, l, l.transport, l.quorumLookup)
}

func (l *Ledger) quorumLookup(hash types.Hash) (quorum.Set, bool) {
	l.quorumMu.Lock()
	defer l.quorumMu.Unlock()
	q, ok := l.quorumByHash[hash]
	return q, ok
}

// checkAndEnrollLocked re-enrolls this node's validator when its cycle
// ends at or before the next height: recurring validators always, and
// non-recurring ones (ForceRenewal) only when cfg.RecurringEnrollment is
// set. The forced case does not depend on how many validators remain
// active. Must run on the event loop.
func (l *Ledger) checkAndEnrollLocked() {
	h := l.Height()

	due, err := l.enroll.DueForRenewal(h)
	if err != nil {
		l.logger.Warn().Err(err).Msg("scan due-for-renewal validators")
		due = nil
	}
	if l.cfg.RecurringEnrollment {
		forced, err := l.enroll.ForceRenewal(h)
		if err != nil {
			l.logger.Warn().Err(err).Msg("scan forced-renewal validators")
		} else {
			due = append(due, forced...)
		}
	}

	if l.validator == nil {
		return
	}
	for _, state := range due {
		if !bytes.Equal(state.PubKey, l.validator.signer.PublicKey()) {
			continue
		}
		e, _, err := l.enroll.Renew(state, l.validator.signer)
		if err != nil {
			l.logger.Warn().Err(err).Msg("renew enrollment")
			continue
		}
		if err := l.enroll.AddEnrollment(*e); err != nil {
			l.logger.Warn().Err(err).Msg("queue renewed enrollment")
		}
	}
}

// assembleBlock builds the block for an externalized slot: canonical
// tx order, merkle root, validator bitfield sized to the active set at
// that slot's height, and an aggregate signature built from each
// attesting validator's Confirm-statement signature (spec.md §4.7 step 2;
// see DESIGN.md for why Confirm signatures stand in for a dedicated
// block-signing round).
func (l *Ledger) assembleBlock(slot uint64, value *fba.Value) (*block.Block, error) {
	if value == nil || value.IsEmpty() {
		return nil, errors.New("cannot assemble a block from an empty externalized value")
	}
	if len(value.Transactions) == 0 {
		// An enrollment-only value has nothing to anchor a merkle root
		// to (block.Validate requires at least one transaction). Defer:
		// the enrollments stay in the pending pool and ride along with
		// whichever transaction externalizes next.
		return nil, errors.New("cannot assemble a block with no transactions")
	}

	txs := make([]*tx.Transaction, len(value.Transactions))
	copy(txs, value.Transactions)
	sort.Slice(txs, func(i, j int) bool {
		hi, hj := txs[i].Hash(), txs[j].Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})
	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.Hash()
	}

	active, err := l.enroll.ActiveValidators(slot)
	if err != nil {
		return nil, fmt.Errorf("active validators: %w", err)
	}

	sigs := l.driver.ConfirmSignatures(slot)
	bitfield := block.NewBitfield(len(active))
	var aggregate []byte
	for i, pub := range active {
		sig, ok := sigs[string(pub)]
		if !ok {
			continue
		}
		block.BitfieldSetBit(bitfield, i)
		aggregate = append(aggregate, sig...)
	}
	if block.BitfieldCount(bitfield) == 0 {
		return nil, errors.New("no validator attestations collected for this slot yet")
	}

	header := &block.Header{
		Version:           block.CurrentVersion,
		PrevHash:          l.tipHash(),
		Height:            slot,
		MerkleRoot:        block.ComputeMerkleRoot(txHashes),
		Timestamp:         uint64(time.Now().Unix()),
		ValidatorBitfield: bitfield,
		AggregateSig:      aggregate,
		Enrollments:       value.Enrollments,
	}

	return block.NewBlock(header, txs), nil
}

// appendBlockLocked validates and commits an assembled or peer-supplied
// block, advancing the UTXO set, mempool, enrollment manager, and quorum
// cache together (spec.md §4.7 step 2/3). Must run on the event loop.
func (l *Ledger) appendBlockLocked(blk *block.Block) error {
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("validate assembled block: %w", err)
	}
	active, err := l.enroll.ActiveValidators(blk.Header.Height)
	if err != nil {
		return fmt.Errorf("active validators: %w", err)
	}
	if err := blk.ValidateAgainstValidatorSet(len(active)); err != nil {
		return err
	}

	var spent []types.Outpoint
	var created []*utxo.UTXO
	for _, t := range blk.Transactions {
		spent = append(spent, utxo.SpentOutpoints(t)...)
		created = append(created, utxo.OutputsToUTXOs(t, blk.Header.Height, l.cfg.ValidatorCycle)...)
	}
	if err := l.utxos.ApplyBlock(spent, created); err != nil {
		return fmt.Errorf("apply utxo set: %w", err)
	}

	if err := l.blocks.Append(blk); err != nil {
		return fmt.Errorf("append block: %w", err)
	}
	l.pool.RemoveExternalized(blk.Transactions)

	for _, e := range blk.Header.Enrollments {
		if err := l.enroll.Admit(e, blk.Header.Height, l.cfg.RecurringEnrollment); err != nil {
			l.logger.Warn().Err(err).Str("utxo", e.UTXOKey.String()).Msg("admit enrollment")
		}
	}
	if _, err := l.enroll.CheckMissedReveals(blk.Header.Height); err != nil {
		l.logger.Warn().Err(err).Msg("check missed reveals")
	}
	if err := l.refreshQuorumLocked(); err != nil {
		l.logger.Warn().Err(err).Msg("refresh quorum after block")
	}

	l.logger.Info().
		Uint64("height", blk.Header.Height).
		Int("txs", len(blk.Transactions)).
		Int("enrollments", len(blk.Header.Enrollments)).
		Msg("block externalized")
	return nil
}

// catchupLoop periodically pulls blocks this node is missing from its
// peers (spec.md §4.7 step 3 "catchup()"), validating each before append.
func (l *Ledger) catchupLoop() {
	ticker := time.NewTicker(l.cfg.CatchupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dispatch(l.catchupOnceLocked)
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Ledger) catchupOnceLocked() {
	l.peersMu.Lock()
	peers := make([]PeerSource, len(l.peers))
	copy(peers, l.peers)
	l.peersMu.Unlock()

	for _, p := range peers {
		peerHeight, err := p.GetBlockHeight(l.ctx)
		if err != nil || peerHeight <= l.Height() {
			continue
		}
		blocks, err := p.GetBlocksFrom(l.ctx, l.Height()+1, peerHeight-l.Height())
		if err != nil {
			l.logger.Warn().Err(err).Msg("catchup: fetch blocks")
			continue
		}
		for _, blk := range blocks {
			if blk.Header.Height != l.Height()+1 {
				break
			}
			if err := l.appendBlockLocked(blk); err != nil {
				l.logger.Warn().Err(err).Uint64("height", blk.Header.Height).Msg("catchup: append peer block")
				break
			}
		}
	}
}
