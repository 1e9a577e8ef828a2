package netrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/fbanet/ledgercore/config"
	klog "github.com/fbanet/ledgercore/internal/log"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// peerConnectTimeout bounds how long a single seed dial may take, mirroring
// the teacher's internal/p2p.peerConnectTimeout.
const peerConnectTimeout = 5 * time.Second

// Host wraps a libp2p host plus the Peer RPC transport wired onto it:
// Handlers registered as stream handlers, a BanManager-backed connection
// gater, and the envelope GossipSub topic (spec.md §6.2). Grounded on the
// teacher's internal/p2p.Node Start/Stop lifecycle, reduced to this
// package's narrower scope (no DHT/mDNS discovery — spec.md names only
// the Peer RPC methods and configured seeds, not peer discovery).
type Host struct {
	host   host.Host
	ctx    context.Context
	cancel context.CancelFunc
	Bans   *BanManager
	Gossip *EnvelopeGossip
	cfg    config.NetRPCConfig
}

// Start builds a libp2p host from cfg, registers handlers' eleven Peer RPC
// methods, joins the envelope gossip topic, and dials configured seeds.
func Start(cfg config.NetRPCConfig, handlers Handlers) (*Host, error) {
	ctx, cancel := context.WithCancel(context.Background())
	bans := NewBanManager(cfg.MaxFailedRequests, time.Duration(cfg.BanDurationSec)*time.Second)

	addr := fmt.Sprintf("/ip4/%s/tcp/%d", cfg.ListenAddr, cfg.Port)
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(addr),
		libp2p.ConnectionGater(&Gater{Bans: bans}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	RegisterHandlers(h, handlers)

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("create pubsub: %w", err)
	}
	gossip, err := JoinEnvelopeGossip(ctx, ps)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("join envelope gossip: %w", err)
	}

	n := &Host{host: h, ctx: ctx, cancel: cancel, Bans: bans, Gossip: gossip, cfg: cfg}
	n.connectSeeds()
	return n, nil
}

// Client returns a Client targeting remoteID over this host, using the
// configured per-call timeout (spec.md §6 "timeout").
func (n *Host) Client(remoteID peer.ID) *Client {
	return NewClientWithTimeout(n.host, remoteID, n.Bans, time.Duration(n.cfg.TimeoutMS)*time.Millisecond)
}

// ID returns this host's own peer ID.
func (n *Host) ID() peer.ID {
	return n.host.ID()
}

// Stop tears down the libp2p host and cancels the gossip read loop
// context (spec.md §5 "teardown routine that must run on all exit paths").
func (n *Host) Stop() error {
	n.cancel()
	return n.host.Close()
}

func (n *Host) connectSeeds() {
	logger := klog.WithComponent("netrpc")
	for _, s := range n.cfg.Seeds {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			logger.Warn().Err(err).Str("seed", s).Msg("invalid seed multiaddr")
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			logger.Warn().Err(err).Str("seed", s).Msg("invalid seed peer info")
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, peerConnectTimeout)
		if err := n.host.Connect(ctx, *info); err != nil {
			logger.Debug().Err(err).Str("seed", s).Msg("seed connect failed")
		}
		cancel()
	}
}
