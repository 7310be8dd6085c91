// Package node glues identifier, store, routing, lookup, and stabilize
// into a single running Chord node, exposing the api_put/api_get entry
// points the northbound API drives.
package node

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Benestar/go-chord/internal/config"
	"github.com/Benestar/go-chord/internal/identifier"
	"github.com/Benestar/go-chord/internal/lookup"
	"github.com/Benestar/go-chord/internal/peer"
	"github.com/Benestar/go-chord/internal/routing"
	"github.com/Benestar/go-chord/internal/stabilize"
	"github.com/Benestar/go-chord/internal/store"
)

// ErrPutFailed and ErrGetMiss cover the two user-visible api_put/api_get
// failure modes: the ring could not satisfy the request within the
// effective deadline, or no replica held the key.
var (
	ErrPutFailed = fmt.Errorf("node: put failed on all replication indices")
	ErrGetMiss   = fmt.Errorf("node: key not found on any replication index")
)

// eventJoin identifies a successful ring join to a Broadcaster. Kept as an
// unexported string rather than importing internal/api's Event vocabulary,
// since internal/api already depends on this package.
const eventJoin = "join"

// Broadcaster receives ring-topology notifications as they happen. It lets
// Join report attaching to a ring without this package depending on
// internal/api, which already depends on internal/node.
type Broadcaster interface {
	Broadcast(eventType, nodeID, message string)
}

// Node is one running Chord participant: its routing state, local
// storage, outbound RPC client, peer-connection server, and stabilizer.
type Node struct {
	Self netip.AddrPort

	Routing *routing.Table
	Store   *store.Store

	client   *lookup.Client
	retrying *lookup.RetryingClient

	Peer       *peer.Server
	Stabilizer *stabilize.Stabilizer

	stabilizationInterval time.Duration

	events Broadcaster

	log zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New constructs a Node bound to cfg.ListenAddress, with an empty routing
// table seeded with cfg.Fingers finger slots. The node starts as a
// singleton (successor = self, predecessor = none); call Join to attach
// to an existing ring instead.
func New(cfg *config.Config, log zerolog.Logger) *Node {
	self := routing.Peer{
		ID:   identifier.HashAddr(cfg.ListenAddress),
		Addr: cfg.ListenAddress,
	}
	rt := routing.New(self, cfg.Fingers)
	st := store.New()

	client := lookup.NewClient(cfg.Timeout)
	retrying := lookup.WrapRetrying(client, 3, 200*time.Millisecond)

	handler := &peer.Handler{Routing: rt, Store: st}
	srv := peer.NewServer(handler, int64(cfg.WorkerThreads), cfg.Timeout, log)
	stab := stabilize.NewStabilizer(rt, client, log)

	return &Node{
		Self:                  cfg.ListenAddress,
		Routing:               rt,
		Store:                 st,
		client:                client,
		retrying:              retrying,
		Peer:                  srv,
		Stabilizer:            stab,
		stabilizationInterval: cfg.StabilizationInterval,
		log:                   log,
	}
}

// Join attaches this node to the ring reachable through bootstrap: it
// resolves who owns this node's own id by querying the bootstrap peer
// directly, per spec §4.7's bootstrap procedure, then lets stabilization
// fill in the rest.
func (n *Node) Join(ctx context.Context, bootstrap netip.AddrPort) error {
	self := n.Routing.Self()
	owner, err := lookup.FindSuccessorVia(ctx, n.client, bootstrap, self.Addr, self.ID, lookup.DefaultHopBudget)
	if err != nil {
		return fmt.Errorf("node: join via %s: %w", bootstrap, err)
	}
	n.Routing.SetSuccessor(owner)
	n.emit(eventJoin, fmt.Sprintf("joined ring via %s", bootstrap))
	return nil
}

// SetEvents wires b as the destination for ring-topology notifications
// this node and its stabilizer report. Nil, the default, means events are
// simply not emitted.
func (n *Node) SetEvents(b Broadcaster) {
	n.events = b
	n.Stabilizer.Events = b
}

func (n *Node) emit(eventType, message string) {
	if n.events == nil {
		return
	}
	n.events.Broadcast(eventType, n.Routing.Self().String(), message)
}

// Run starts the peer listener and stabilizer, blocking until ctx is
// canceled.
func (n *Node) Run(ctx context.Context, listenAddr string) error {
	if err := n.Peer.Listen(listenAddr); err != nil {
		return fmt.Errorf("node: listen %s: %w", listenAddr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.Stabilizer.Run(ctx, n.stabilizationInterval)
	}()

	err := n.Peer.Serve(ctx)
	cancel()
	wg.Wait()
	return err
}

// Shutdown stops the stabilizer and peer listener, letting in-flight RPCs
// finish or time out on their own, per spec §5's cancellation model.
func (n *Node) Shutdown() error {
	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return n.Peer.Close()
}

func storageID(rawKey [32]byte, index uint8) *big.Int {
	var buf [33]byte
	copy(buf[:32], rawKey[:])
	buf[32] = index
	sum := sha256.Sum256(buf[:])
	return new(big.Int).SetBytes(sum[:])
}

// Put implements api_put: for r in 0..replication, resolve the owner of
// H(raw_key||r) and send it a STORAGE PUT, retrying each with exponential
// backoff per spec §4.8/§7.
func (n *Node) Put(ctx context.Context, rawKey [32]byte, ttl uint16, replication uint8, value []byte) error {
	for r := uint8(0); r < replication; r++ {
		id := storageID(rawKey, r)
		owner, err := lookup.FindSuccessor(ctx, n.Routing, n.retrying, id, lookup.DefaultHopBudget)
		if err != nil {
			return fmt.Errorf("%w: resolving replica %d: %v", ErrPutFailed, r, err)
		}

		accepted, err := n.retrying.StoragePut(ctx, owner.Addr, rawKey, r, ttl, value)
		if err != nil {
			return fmt.Errorf("%w: storing replica %d: %v", ErrPutFailed, r, err)
		}
		if !accepted {
			return fmt.Errorf("%w: replica %d rejected", ErrPutFailed, r)
		}
	}
	return nil
}

// Get implements api_get: it searches replication indices starting at 0
// until a value is found or the search space is exhausted, matching the
// northbound protocol's key-only GET (no replication count on the wire).
func (n *Node) Get(ctx context.Context, rawKey [32]byte) ([]byte, error) {
	for r := 0; r < 256; r++ {
		index := uint8(r)
		id := storageID(rawKey, index)

		owner, err := lookup.FindSuccessor(ctx, n.Routing, n.retrying, id, lookup.DefaultHopBudget)
		if err != nil {
			n.log.Debug().Err(err).Uint8("replica", index).Msg("node: get lookup failed")
			continue
		}

		value, found, err := n.retrying.StorageGet(ctx, owner.Addr, rawKey, index)
		if err != nil {
			n.log.Debug().Err(err).Uint8("replica", index).Msg("node: get storage rpc failed")
			continue
		}
		if found {
			return value, nil
		}
	}
	return nil, ErrGetMiss
}
