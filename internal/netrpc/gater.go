package netrpc

import (
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Gater implements libp2p's ConnectionGater interface, rejecting
// connections to or from a banned peer at the transport level.
type Gater struct {
	Bans *BanManager
}

func (g *Gater) InterceptPeerDial(p peer.ID) bool {
	return !g.Bans.IsBanned(p)
}

func (g *Gater) InterceptAddrDial(_ peer.ID, _ ma.Multiaddr) bool {
	return true
}

func (g *Gater) InterceptAccept(_ network.ConnMultiaddrs) bool {
	return true
}

func (g *Gater) InterceptSecured(_ network.Direction, p peer.ID, _ network.ConnMultiaddrs) bool {
	return !g.Bans.IsBanned(p)
}

func (g *Gater) InterceptUpgraded(_ network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
