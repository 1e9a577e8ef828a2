package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fbanet/ledgercore/internal/blockstore"
	"github.com/fbanet/ledgercore/internal/enrollment"
	"github.com/fbanet/ledgercore/internal/fba"
	klog "github.com/fbanet/ledgercore/internal/log"
	"github.com/fbanet/ledgercore/internal/mempool"
	"github.com/fbanet/ledgercore/internal/quorum"
	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/rs/zerolog"
)

// PeerSource is the subset of a Peer RPC client the coordinator needs for
// catchup (spec.md §4.7 "catchup()"). Satisfied by *internal/netrpc.Client.
type PeerSource interface {
	GetBlockHeight(ctx context.Context) (uint64, error)
	GetBlocksFrom(ctx context.Context, height, max uint64) ([]*block.Block, error)
}

// validatorIdentity holds this node's signing key and enrolled UTXO, nil
// if this node does not run as a validator.
type validatorIdentity struct {
	signer  *crypto.PrivateKey
	utxoKey types.Outpoint
}

// Ledger is the single-goroutine orchestrator described in spec.md §4.7.
// All mutation of the UTXO set, pool, block store, and validator set
// happens only from within its event loop (spec.md §5 "Shared
// resources"), grounded on the teacher's internal/node.Node
// ctx/cancel/WaitGroup lifecycle.
type Ledger struct {
	cfg Config

	db     storage.DB
	utxos  *utxo.Store
	pool   *mempool.Pool
	blocks *blockstore.Store
	enroll *enrollment.Manager
	script script.Engine

	driver    *fba.Driver
	transport fba.Transport

	validator *validatorIdentity

	quorumMu     sync.Mutex
	quorumByHash map[types.Hash]quorum.Set
	selfQuorum   quorum.Set

	peersMu sync.Mutex
	peers   []PeerSource

	logger zerolog.Logger

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Ledger. If validatorSigner is non-nil, the node
// participates in consensus as a validator enrolled under
// validatorUTXOKey; otherwise it runs as a non-voting observer that
// still tracks and relays blocks.
func New(
	cfg Config,
	db storage.DB,
	utxos *utxo.Store,
	pool *mempool.Pool,
	blocks *blockstore.Store,
	enrollMgr *enrollment.Manager,
	engine script.Engine,
	transport fba.Transport,
	validatorSigner *crypto.PrivateKey,
	validatorUTXOKey types.Outpoint,
) *Ledger {
	l := &Ledger{
		cfg:          cfg,
		db:           db,
		utxos:        utxos,
		pool:         pool,
		blocks:       blocks,
		enroll:       enrollMgr,
		script:       engine,
		transport:    transport,
		quorumByHash: make(map[types.Hash]quorum.Set),
		logger:       klog.WithComponent("ledger"),
		events:       make(chan func(), 256),
	}
	if validatorSigner != nil {
		l.validator = &validatorIdentity{signer: validatorSigner, utxoKey: validatorUTXOKey}
	}
	return l
}

// AddPeer registers a peer client catchup may pull blocks from.
func (l *Ledger) AddPeer(p PeerSource) {
	l.peersMu.Lock()
	defer l.peersMu.Unlock()
	l.peers = append(l.peers, p)
}

// SetTransport wires the envelope broadcaster after construction — the
// transport (internal/netrpc's gossip topic) is itself built from this
// Ledger's Handlers implementation, so it cannot exist at New() time. Must
// be called before Start().
func (l *Ledger) SetTransport(t fba.Transport) {
	l.transport = t
}

// Start launches the event loop and background timers (catchup, block
// proposal). It does not block.
func (l *Ledger) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	if err := l.initQuorum(); err != nil {
		return fmt.Errorf("ledger: init quorum: %w", err)
	}
	l.initDriver()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run()
	}()

	if l.cfg.CatchupInterval > 0 {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.catchupLoop()
		}()
	}

	if l.cfg.BlockIntervalSec > 0 {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.nominationLoop()
		}()
	}

	return nil
}

// Stop cancels all timers and in-flight work and waits for the event
// loop and background goroutines to exit (spec.md §5 "Cancellation &
// timeouts": "Task cancellation on node shutdown is cooperative").
func (l *Ledger) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

func (l *Ledger) run() {
	for {
		select {
		case fn := <-l.events:
			fn()
		case <-l.ctx.Done():
			if l.driver != nil {
				l.driver.CancelAll()
			}
			return
		}
	}
}

// dispatch runs fn on the event-loop goroutine and blocks until it
// completes. Used by entry points reached from other goroutines (Peer
// RPC stream handlers, timers) — never called from code already running
// on the event loop, which would deadlock against a full events channel.
func (l *Ledger) dispatch(fn func()) {
	done := make(chan struct{})
	select {
	case l.events <- func() { fn(); close(done) }:
	case <-l.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-l.ctx.Done():
	}
}

// Height returns the current chain tip height.
func (l *Ledger) Height() uint64 {
	return l.blocks.Height()
}

// tipHash returns the current chain tip's block hash, or the zero hash
// before genesis.
func (l *Ledger) tipHash() types.Hash {
	_, hash, err := l.blocks.Tip()
	if err != nil {
		return types.Hash{}
	}
	return hash
}

// AcceptTransaction validates t against the tip UTXO set and pool,
// admits it, gossips it, and opportunistically triggers nomination
// (spec.md §4.7 step 1).
func (l *Ledger) AcceptTransaction(t *tx.Transaction) error {
	var outErr error
	l.dispatch(func() {
		outErr = l.acceptTransactionLocked(t)
	})
	return outErr
}

func (l *Ledger) acceptTransactionLocked(t *tx.Transaction) error {
	if err := l.pool.Add(t); err != nil {
		// Anti-DoS: invalid transactions are dropped silently per
		// spec.md §4.7 "Failure semantics", surfaced to the direct
		// caller only so put_transaction can report why.
		return err
	}
	l.maybeNominateLocked()
	return nil
}

// maybeNominateLocked starts nomination for the next slot if this node
// is a validator and there is something to propose. Must run on the
// event loop.
func (l *Ledger) maybeNominateLocked() {
	if l.validator == nil {
		return
	}
	slot := l.Height() + 1
	value := l.buildCandidateValueLocked()
	if value.IsEmpty() {
		return
	}
	if err := l.driver.Nominate(slot, value); err != nil {
		l.logger.Warn().Err(err).Uint64("slot", slot).Msg("nominate failed")
	}
}

func (l *Ledger) buildCandidateValueLocked() *fba.Value {
	limit := l.cfg.TxsToNominate
	if limit <= 0 {
		limit = l.pool.Count()
	}
	txs := l.pool.SelectForNomination(limit)

	pending, err := l.enroll.PendingEnrollments()
	if err != nil {
		l.logger.Warn().Err(err).Msg("list pending enrollments")
		pending = nil
	}

	return &fba.Value{Transactions: txs, Enrollments: pending}
}

func (l *Ledger) nominationLoop() {
	interval := time.Duration(l.cfg.BlockIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dispatch(func() {
				l.maybeNominateLocked()
				l.checkAndEnrollLocked()
			})
		case <-l.ctx.Done():
			return
		}
	}
}
