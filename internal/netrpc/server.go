package netrpc

import (
	"encoding/json"
	"io"
	"time"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
)

// serverReadTimeout bounds how long a stream handler waits to read a
// request body before giving up on a slow or stalled caller.
const serverReadTimeout = 5 * time.Second

// RegisterHandlers wires h's eleven methods onto h's eponymous stream
// protocols on host (spec.md §6.2), mirroring the teacher's
// RegisterHeightHandler/RegisterHandler stream-handler idiom: decode
// request, call through, encode response or errorResponse.
func RegisterHandlers(h host.Host, handlers Handlers) {
	h.SetStreamHandler(ProtoGetPublicKey, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		id, err := handlers.GetPublicKey()
		writeResult(s, id, err)
	})

	h.SetStreamHandler(ProtoGetNodeInfo, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		info, err := handlers.GetNodeInfo()
		writeResult(s, info, err)
	})

	h.SetStreamHandler(ProtoPutTransaction, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		var t tx.Transaction
		if err := decodeRequest(s, &t); err != nil {
			writeError(s, err)
			return
		}
		writeResult(s, struct{}{}, handlers.PutTransaction(&t))
	})

	h.SetStreamHandler(ProtoReceiveEnvelope, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		var env fba.Envelope
		if err := decodeRequest(s, &env); err != nil {
			writeError(s, err)
			return
		}
		writeResult(s, struct{}{}, handlers.ReceiveEnvelope(&env))
	})

	h.SetStreamHandler(ProtoSendEnrollment, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		var e enroll.Enrollment
		if err := decodeRequest(s, &e); err != nil {
			writeError(s, err)
			return
		}
		writeResult(s, struct{}{}, handlers.SendEnrollment(e))
	})

	h.SetStreamHandler(ProtoSendPreimage, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		var p enroll.PreImage
		if err := decodeRequest(s, &p); err != nil {
			writeError(s, err)
			return
		}
		writeResult(s, struct{}{}, handlers.SendPreimage(p))
	})

	h.SetStreamHandler(ProtoGetBlockHeight, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		height, err := handlers.GetBlockHeight()
		writeResult(s, heightResponse{Height: height}, err)
	})

	h.SetStreamHandler(ProtoGetBlocksFrom, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		var req getBlocksFromRequest
		if err := decodeRequest(s, &req); err != nil {
			writeError(s, err)
			return
		}
		max := req.Max
		if max == 0 || max > maxBlocksPerRequest {
			max = maxBlocksPerRequest
		}
		blocks, err := handlers.GetBlocksFrom(req.Height, max)
		writeResult(s, blocks, err)
	})

	h.SetStreamHandler(ProtoGetPreimage, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		key, err := decodeOutpoint(s)
		if err != nil {
			writeError(s, err)
			return
		}
		p, err := handlers.GetPreimage(key)
		writeResult(s, p, err)
	})

	h.SetStreamHandler(ProtoGetEnrollment, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		key, err := decodeOutpoint(s)
		if err != nil {
			writeError(s, err)
			return
		}
		e, err := handlers.GetEnrollment(key)
		if err != nil {
			writeError(s, err)
			return
		}
		if e == nil {
			writeResult(s, enrollmentResponse{Found: false}, nil)
			return
		}
		raw, err := json.Marshal(e)
		if err != nil {
			writeError(s, err)
			return
		}
		writeResult(s, enrollmentResponse{Found: true, Enrollment: raw}, nil)
	})

	h.SetStreamHandler(ProtoHasTransaction, func(s network.Stream) {
		defer s.Close()
		_ = s.SetReadDeadline(time.Now().Add(serverReadTimeout))
		var req hashRequest
		if err := decodeRequest(s, &req); err != nil {
			writeError(s, err)
			return
		}
		h, err := types.HexToHash(req.Hash)
		if err != nil {
			writeError(s, err)
			return
		}
		has, err := handlers.HasTransactionHash(h)
		writeResult(s, boolResponse{Value: has}, err)
	})
}

func decodeRequest(s network.Stream, v any) error {
	return json.NewDecoder(io.LimitReader(s, maxResponseBytes)).Decode(v)
}

func decodeOutpoint(s network.Stream) (types.Outpoint, error) {
	var req preimageKeyRequest
	if err := decodeRequest(s, &req); err != nil {
		return types.Outpoint{}, err
	}
	txid, err := types.HexToHash(req.UTXOKeyTxID)
	if err != nil {
		return types.Outpoint{}, err
	}
	return types.Outpoint{TxID: txid, Index: req.UTXOKeyIdx}, nil
}

func writeResult(s network.Stream, v any, err error) {
	if err != nil {
		writeError(s, err)
		return
	}
	_ = json.NewEncoder(s).Encode(v)
}

func writeError(s network.Stream, err error) {
	_ = json.NewEncoder(s).Encode(errorResponse{Error: err.Error()})
}
