package netrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// Client calls the eleven Peer RPC methods against a specific remote peer
// over host's libp2p streams (spec.md §6.2).
type Client struct {
	host    host.Host
	peer    peer.ID
	bans    *BanManager
	timeout time.Duration
}

// NewClient returns a Client that targets remoteID over host. bans may be
// nil to disable failure tracking (e.g. in tests). Every call uses
// defaultCallTimeout as its RPC timeout.
func NewClient(h host.Host, remoteID peer.ID, bans *BanManager) *Client {
	return &Client{host: h, peer: remoteID, bans: bans, timeout: defaultCallTimeout}
}

// NewClientWithTimeout is NewClient with an explicit per-call timeout,
// used by Host to apply config.NetRPCConfig.TimeoutMS.
func NewClientWithTimeout(h host.Host, remoteID peer.ID, bans *BanManager, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Client{host: h, peer: remoteID, bans: bans, timeout: timeout}
}

// call opens a stream on proto, writes req (if non-nil) as JSON, closes
// the write side, and decodes the response into resp. A per-call timeout
// applies unless ctx already carries a shorter deadline (spec.md §5
// "Every peer RPC has a per-call timeout (default 5s)").
func (c *Client) call(ctx context.Context, proto protocol.ID, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.host.NewStream(ctx, c.peer, proto)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("open %s stream: %w", proto, err)
	}
	defer stream.Close()

	if req != nil {
		if err := json.NewEncoder(stream).Encode(req); err != nil {
			c.recordFailure()
			return fmt.Errorf("write %s request: %w", proto, err)
		}
	}
	stream.CloseWrite()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	if resp == nil {
		c.recordSuccess()
		return nil
	}

	var wireErr errorResponse
	body, err := io.ReadAll(io.LimitReader(stream, maxResponseBytes))
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("read %s response: %w", proto, err)
	}
	if json.Unmarshal(body, &wireErr) == nil && wireErr.Error != "" {
		c.recordFailure()
		return fmt.Errorf("%s: %s", proto, wireErr.Error)
	}
	if err := json.Unmarshal(body, resp); err != nil {
		c.recordFailure()
		return fmt.Errorf("decode %s response: %w", proto, err)
	}
	c.recordSuccess()
	return nil
}

func (c *Client) recordFailure() {
	if c.bans != nil {
		c.bans.RecordFailure(c.peer)
	}
}

func (c *Client) recordSuccess() {
	if c.bans != nil {
		c.bans.RecordSuccess(c.peer)
	}
}

// GetPublicKey calls get_public_key.
func (c *Client) GetPublicKey(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.call(ctx, ProtoGetPublicKey, nil, &id)
	return id, err
}

// GetNodeInfo calls get_node_info.
func (c *Client) GetNodeInfo(ctx context.Context) (NodeInfo, error) {
	var info NodeInfo
	err := c.call(ctx, ProtoGetNodeInfo, nil, &info)
	return info, err
}

// PutTransaction calls put_transaction.
func (c *Client) PutTransaction(ctx context.Context, t *tx.Transaction) error {
	return c.call(ctx, ProtoPutTransaction, t, &struct{}{})
}

// ReceiveEnvelope calls receive_envelope.
func (c *Client) ReceiveEnvelope(ctx context.Context, env *fba.Envelope) error {
	return c.call(ctx, ProtoReceiveEnvelope, env, &struct{}{})
}

// SendEnrollment calls send_enrollment.
func (c *Client) SendEnrollment(ctx context.Context, e enroll.Enrollment) error {
	return c.call(ctx, ProtoSendEnrollment, e, &struct{}{})
}

// SendPreimage calls send_preimage.
func (c *Client) SendPreimage(ctx context.Context, p enroll.PreImage) error {
	return c.call(ctx, ProtoSendPreimage, p, &struct{}{})
}

// GetBlockHeight calls get_block_height.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	var resp heightResponse
	err := c.call(ctx, ProtoGetBlockHeight, nil, &resp)
	return resp.Height, err
}

// GetBlocksFrom calls get_blocks_from. max is capped at 1000 regardless
// of the caller's request (spec.md §6).
func (c *Client) GetBlocksFrom(ctx context.Context, height, max uint64) ([]*block.Block, error) {
	if max == 0 || max > maxBlocksPerRequest {
		max = maxBlocksPerRequest
	}
	var blocks []*block.Block
	err := c.call(ctx, ProtoGetBlocksFrom, getBlocksFromRequest{Height: height, Max: max}, &blocks)
	return blocks, err
}

// GetPreimage calls get_preimage.
func (c *Client) GetPreimage(ctx context.Context, utxoKey types.Outpoint) (enroll.PreImage, error) {
	var p enroll.PreImage
	req := preimageKeyRequest{UTXOKeyTxID: utxoKey.TxID.String(), UTXOKeyIdx: utxoKey.Index}
	err := c.call(ctx, ProtoGetPreimage, req, &p)
	return p, err
}

// GetEnrollment calls get_enrollment. A nil result with no error means
// the peer has no enrollment for utxoKey (spec.md §6 "Option<Enrollment>").
func (c *Client) GetEnrollment(ctx context.Context, utxoKey types.Outpoint) (*enroll.Enrollment, error) {
	req := preimageKeyRequest{UTXOKeyTxID: utxoKey.TxID.String(), UTXOKeyIdx: utxoKey.Index}
	var resp enrollmentResponse
	if err := c.call(ctx, ProtoGetEnrollment, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	var e enroll.Enrollment
	if err := json.Unmarshal(resp.Enrollment, &e); err != nil {
		return nil, fmt.Errorf("decode enrollment: %w", err)
	}
	return &e, nil
}

// HasTransactionHash calls has_transaction_hash.
func (c *Client) HasTransactionHash(ctx context.Context, h types.Hash) (bool, error) {
	var resp boolResponse
	err := c.call(ctx, ProtoHasTransaction, hashRequest{Hash: h.String()}, &resp)
	return resp.Value, err
}
