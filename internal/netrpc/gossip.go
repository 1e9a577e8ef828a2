package netrpc

import (
	"context"
	"encoding/json"

	"github.com/fbanet/ledgercore/internal/fba"
	klog "github.com/fbanet/ledgercore/internal/log"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// EnvelopeGossip publishes and receives signed consensus envelopes over a
// GossipSub topic, serving as the consensus driver's emit_envelope
// transport (spec.md §4.6) and the wire source for receive_envelope.
// Grounded on the teacher's BroadcastTx/BroadcastBlock topic-publish
// shape (internal/p2p/gossip.go), generalized from one fixed topic to the
// single envelope topic this node needs.
type EnvelopeGossip struct {
	ctx   context.Context
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// JoinEnvelopeGossip joins ps's envelope topic and begins receiving.
func JoinEnvelopeGossip(ctx context.Context, ps *pubsub.PubSub) (*EnvelopeGossip, error) {
	topic, err := ps.Join(EnvelopeTopic)
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, err
	}
	return &EnvelopeGossip{ctx: ctx, topic: topic, sub: sub}, nil
}

// Broadcast implements fba.Transport: it publishes env to the topic,
// fire-and-forget (spec.md §5 "Emitted envelopes to peers are fire-and-
// forget").
func (g *EnvelopeGossip) Broadcast(env *fba.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = g.topic.Publish(g.ctx, data)
}

var _ fba.Transport = (*EnvelopeGossip)(nil)

// ReadLoop delivers received envelopes to onEnvelope until ctx is
// cancelled, mirroring the teacher's readLoop message-pump pattern
// (internal/p2p/node.go "go n.readLoop(n.subTx, ...)").
func (g *EnvelopeGossip) ReadLoop(onEnvelope func(*fba.Envelope)) {
	logger := klog.WithComponent("netrpc")
	for {
		msg, err := g.sub.Next(g.ctx)
		if err != nil {
			return
		}
		var env fba.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			logger.Debug().Err(err).Msg("dropping malformed envelope from gossip")
			continue
		}
		onEnvelope(&env)
	}
}
