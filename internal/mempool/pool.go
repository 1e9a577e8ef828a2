// Package mempool holds transactions that have been accepted against the
// current UTXO snapshot but not yet externalized in a block (spec.md §4.2,
// "Transaction Pool").
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Pool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
)

// entry wraps a transaction with the sequence number it was admitted at,
// preserving insertion order for nomination fairness (spec.md §4.2).
type entry struct {
	tx  *tx.Transaction
	seq uint64
}

// Pool is a set of pending transactions keyed by hash, insertion-ordered.
// A secondary ever-accepted set survives Remove so gossip can suppress
// re-relaying transactions this node has already seen once.
type Pool struct {
	mu           sync.RWMutex
	txs          map[types.Hash]*entry
	spends       map[types.Outpoint]types.Hash // outpoint -> txHash, in-pool conflict index
	everAccepted map[types.Hash]struct{}
	nextSeq      uint64
	maxSize      int

	set         utxo.Set
	engine      script.Engine
	heightFn    func() uint64
	cycleLength uint64
	minFee      uint64
}

// New creates a Pool that validates admissions against set using engine.
// heightFn reports the chain's current tip height for maturity checks.
func New(set utxo.Set, engine script.Engine, heightFn func() uint64, maxSize int, minFee uint64) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &Pool{
		txs:          make(map[types.Hash]*entry),
		spends:       make(map[types.Outpoint]types.Hash),
		everAccepted: make(map[types.Hash]struct{}),
		maxSize:      maxSize,
		set:          set,
		engine:       engine,
		heightFn:     heightFn,
		minFee:       minFee,
	}
}

// SetCycleLength records the validator cycle length on the pool. The
// stored value is not read by the pool's validation.
func (p *Pool) SetCycleLength(cycleLength uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycleLength = cycleLength
}

// Add validates transaction against the current UTXO snapshot and, if
// accepted, inserts it into the pool. Rejects duplicates, double-spends
// against other pooled transactions, and anything ValidateSpend rejects.
func (p *Pool) Add(transaction *tx.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := transaction.Hash()
	if _, exists := p.txs[txHash]; exists {
		return ErrAlreadyExists
	}

	for _, in := range transaction.Inputs {
		if in.PrevOut.IsZero() {
			continue
		}
		if conflictHash, exists := p.spends[in.PrevOut]; exists {
			return fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.PrevOut, conflictHash)
		}
	}

	height := uint64(0)
	if p.heightFn != nil {
		height = p.heightFn()
	}
	if err := utxo.ValidateSpend(transaction, p.set, p.engine, height, p.minFee); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if len(p.txs) >= p.maxSize {
		return ErrPoolFull
	}

	p.txs[txHash] = &entry{tx: transaction, seq: p.nextSeq}
	p.nextSeq++
	p.everAccepted[txHash] = struct{}{}
	for _, in := range transaction.Inputs {
		if !in.PrevOut.IsZero() {
			p.spends[in.PrevOut] = txHash
		}
	}

	return nil
}

// Remove removes a transaction from the pool by hash. It stays recorded
// in the ever-accepted set.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	for _, in := range e.tx.Inputs {
		if !in.PrevOut.IsZero() {
			delete(p.spends, in.PrevOut)
		}
	}
	delete(p.txs, txHash)
}

// RemoveExternalized removes every transaction of an externalized block
// from the pool.
func (p *Pool) RemoveExternalized(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		p.removeLocked(t.Hash())
	}
}

// Has reports whether a transaction is currently pooled.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// EverAccepted reports whether a transaction was ever admitted to this
// pool, even if it has since been removed — used to suppress re-relaying
// a transaction this node has already seen (spec.md §4.2).
func (p *Pool) EverAccepted(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.everAccepted[txHash]
	return ok
}

// Get retrieves a pooled transaction by hash, or nil if absent.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the hashes of all pooled transactions, in no particular
// order. Use SelectForNomination for insertion-ordered selection.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// SelectForNomination returns up to limit pooled transactions in the
// order they were admitted, the candidate set a nomination round offers
// to the consensus driver (spec.md §4.2, "insertion-ordered for
// nomination fairness").
func (p *Pool) SelectForNomination(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	if limit > len(entries) || limit <= 0 {
		limit = len(entries)
	}
	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}
