// Package netrpc implements the Peer RPC transport (spec.md §6): eleven
// request/response methods carried over libp2p streams, one protocol ID
// per method, JSON-encoded bodies, plus the GossipSub topic the consensus
// driver publishes envelopes on.
package netrpc

import (
	"encoding/json"
	"time"

	"github.com/libp2p/go-libp2p/core/protocol"
)

// Peer RPC protocol IDs (spec.md §6 "Peer RPC (request/response)").
const (
	ProtoGetPublicKey    = protocol.ID("/ledgercore/rpc/get_public_key/1.0.0")
	ProtoGetNodeInfo     = protocol.ID("/ledgercore/rpc/get_node_info/1.0.0")
	ProtoPutTransaction  = protocol.ID("/ledgercore/rpc/put_transaction/1.0.0")
	ProtoReceiveEnvelope = protocol.ID("/ledgercore/rpc/receive_envelope/1.0.0")
	ProtoSendEnrollment  = protocol.ID("/ledgercore/rpc/send_enrollment/1.0.0")
	ProtoSendPreimage    = protocol.ID("/ledgercore/rpc/send_preimage/1.0.0")
	ProtoGetBlockHeight  = protocol.ID("/ledgercore/rpc/get_block_height/1.0.0")
	ProtoGetBlocksFrom   = protocol.ID("/ledgercore/rpc/get_blocks_from/1.0.0")
	ProtoGetPreimage     = protocol.ID("/ledgercore/rpc/get_preimage/1.0.0")
	ProtoGetEnrollment   = protocol.ID("/ledgercore/rpc/get_enrollment/1.0.0")
	ProtoHasTransaction  = protocol.ID("/ledgercore/rpc/has_transaction_hash/1.0.0")
)

// EnvelopeTopic is the GossipSub topic the consensus driver's
// emit_envelope callback publishes signed envelopes on.
const EnvelopeTopic = "/ledgercore/envelope/1.0.0"

// maxBlocksPerRequest caps get_blocks_from regardless of what the caller
// asks for (spec.md §6: "max capped at 1000").
const maxBlocksPerRequest = 1000

// defaultCallTimeout is the per-call peer RPC timeout (spec.md §5
// "Every peer RPC has a per-call timeout (default 5s)").
const defaultCallTimeout = 5 * time.Second

// maxResponseBytes bounds how much a single stream response may carry,
// guarding against a misbehaving or malicious peer streaming unbounded
// JSON at us.
const maxResponseBytes = 8 * 1024 * 1024

// errorResponse is the wire shape for any failed RPC call: the callee
// writes this instead of its normal response body (spec.md §7 "User-
// visible failures are strings").
type errorResponse struct {
	Error string `json:"error"`
}

// getBlocksFromRequest is get_blocks_from's request body.
type getBlocksFromRequest struct {
	Height uint64 `json:"height"`
	Max    uint64 `json:"max"`
}

// preimageKeyRequest is shared by get_preimage and get_enrollment, both
// keyed on the frozen-stake UTXO outpoint.
type preimageKeyRequest struct {
	UTXOKeyTxID string `json:"utxo_key_txid"`
	UTXOKeyIdx  uint32 `json:"utxo_key_index"`
}

// hashRequest is has_transaction_hash's request body.
type hashRequest struct {
	Hash string `json:"hash"`
}

// boolResponse wraps a single boolean result.
type boolResponse struct {
	Value bool `json:"value"`
}

// heightResponse wraps a single u64 result.
type heightResponse struct {
	Height uint64 `json:"height"`
}

// enrollmentResponse wraps an optional enrollment (get_enrollment → Option<Enrollment>).
type enrollmentResponse struct {
	Found      bool            `json:"found"`
	Enrollment json.RawMessage `json:"enrollment,omitempty"`
}
