package netrpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/pkg/block"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/tx"
	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"
)

// stubHandlers is an in-memory Handlers implementation for round-trip tests.
type stubHandlers struct {
	identity   Identity
	info       NodeInfo
	height     uint64
	blocks     []*block.Block
	enrollment *enroll.Enrollment
	preimage   enroll.PreImage
	hasTx      bool
	putErr     error
}

func (s *stubHandlers) GetPublicKey() (Identity, error)   { return s.identity, nil }
func (s *stubHandlers) GetNodeInfo() (NodeInfo, error)    { return s.info, nil }
func (s *stubHandlers) GetBlockHeight() (uint64, error)   { return s.height, nil }
func (s *stubHandlers) HasTransactionHash(types.Hash) (bool, error) {
	return s.hasTx, nil
}
func (s *stubHandlers) GetBlocksFrom(height, max uint64) ([]*block.Block, error) {
	return s.blocks, nil
}
func (s *stubHandlers) GetPreimage(types.Outpoint) (enroll.PreImage, error) {
	return s.preimage, nil
}
func (s *stubHandlers) GetEnrollment(types.Outpoint) (*enroll.Enrollment, error) {
	return s.enrollment, nil
}
func (s *stubHandlers) PutTransaction(t *tx.Transaction) error {
	return s.putErr
}
func (s *stubHandlers) ReceiveEnvelope(env *fba.Envelope) error {
	return nil
}
func (s *stubHandlers) SendEnrollment(enroll.Enrollment) error { return nil }
func (s *stubHandlers) SendPreimage(enroll.PreImage) error     { return nil }

func TestRPC_GetPublicKeyRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	id, err := SignIdentity(key)
	if err != nil {
		t.Fatalf("SignIdentity() error: %v", err)
	}
	if !id.Verify() {
		t.Fatal("SignIdentity() should produce a verifying Identity")
	}

	h1, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host1: %v", err)
	}
	defer h1.Close()
	h2, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host2: %v", err)
	}
	defer h2.Close()
	h2.Peerstore().AddAddrs(h1.ID(), h1.Addrs(), time.Hour)
	if err := h2.Connect(context.Background(), peer.AddrInfo{ID: h1.ID(), Addrs: h1.Addrs()}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	RegisterHandlers(h1, &stubHandlers{identity: id})
	client := NewClient(h2, h1.ID(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := client.GetPublicKey(ctx)
	if err != nil {
		t.Fatalf("GetPublicKey() error: %v", err)
	}
	if !got.Verify() {
		t.Fatal("round-tripped Identity should still verify")
	}
}

func TestRPC_PutTransactionPropagatesError(t *testing.T) {
	h1, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host1: %v", err)
	}
	defer h1.Close()
	h2, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host2: %v", err)
	}
	defer h2.Close()
	h2.Peerstore().AddAddrs(h1.ID(), h1.Addrs(), time.Hour)
	if err := h2.Connect(context.Background(), peer.AddrInfo{ID: h1.ID(), Addrs: h1.Addrs()}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	stub := &stubHandlers{putErr: errors.New("nope")}
	RegisterHandlers(h1, stub)
	client := NewClient(h2, h1.ID(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	txn := &tx.Transaction{}
	if err := client.PutTransaction(ctx, txn); err == nil {
		t.Fatal("PutTransaction() should surface the handler's error")
	}
}

func TestRPC_GetEnrollmentAbsent(t *testing.T) {
	h1, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host1: %v", err)
	}
	defer h1.Close()
	h2, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create host2: %v", err)
	}
	defer h2.Close()
	h2.Peerstore().AddAddrs(h1.ID(), h1.Addrs(), time.Hour)
	if err := h2.Connect(context.Background(), peer.AddrInfo{ID: h1.ID(), Addrs: h1.Addrs()}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	RegisterHandlers(h1, &stubHandlers{enrollment: nil})
	client := NewClient(h2, h1.ID(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e, err := client.GetEnrollment(ctx, types.Outpoint{})
	if err != nil {
		t.Fatalf("GetEnrollment() error: %v", err)
	}
	if e != nil {
		t.Fatal("GetEnrollment() should return nil for an absent enrollment")
	}
}

func TestBanManager_BansAfterConsecutiveFailures(t *testing.T) {
	bm := NewBanManager(3, time.Hour)
	p := peer.ID("test-peer")

	for i := 0; i < 2; i++ {
		bm.RecordFailure(p)
	}
	if bm.IsBanned(p) {
		t.Fatal("peer should not be banned before reaching maxFailedRequests")
	}
	bm.RecordFailure(p)
	if !bm.IsBanned(p) {
		t.Fatal("peer should be banned after maxFailedRequests consecutive failures")
	}
}

func TestBanManager_SuccessResetsCounter(t *testing.T) {
	bm := NewBanManager(3, time.Hour)
	p := peer.ID("test-peer")

	bm.RecordFailure(p)
	bm.RecordFailure(p)
	bm.RecordSuccess(p)
	bm.RecordFailure(p)
	bm.RecordFailure(p)
	if bm.IsBanned(p) {
		t.Fatal("a success should reset the consecutive-failure counter")
	}
}

func TestBanManager_Unban(t *testing.T) {
	bm := NewBanManager(1, time.Hour)
	p := peer.ID("test-peer")
	bm.RecordFailure(p)
	if !bm.IsBanned(p) {
		t.Fatal("peer should be banned")
	}
	bm.Unban(p)
	if bm.IsBanned(p) {
		t.Fatal("Unban() should lift the ban")
	}
}
