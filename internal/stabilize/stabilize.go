// Package stabilize implements the periodic stabilization task: on each
// tick it stabilizes the successor pointer and advances one finger table
// entry.
package stabilize

import (
	"context"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/Benestar/go-chord/internal/identifier"
	"github.com/Benestar/go-chord/internal/lookup"
	"github.com/Benestar/go-chord/internal/routing"
)

// eventStabilize identifies a successor-pointer change to a Broadcaster.
const eventStabilize = "stabilize"

// Broadcaster receives ring-topology notifications as they happen. It lets
// Stabilizer report successor changes without this package depending on
// internal/api.
type Broadcaster interface {
	Broadcast(eventType, nodeID, message string)
}

// Notifier is the PREDECESSOR NOTIFY round trip the stabilizer depends on.
type Notifier interface {
	PredecessorNotify(ctx context.Context, addr netip.AddrPort, self netip.AddrPort) (netip.AddrPort, error)
}

// Client is everything the stabilizer needs from an outbound RPC client:
// PEER FIND for fixing fingers, PREDECESSOR NOTIFY for stabilizing the
// successor.
type Client interface {
	lookup.PeerFinder
	Notifier
}

// Stabilizer runs the periodic tick described in spec §4.7: stabilize the
// successor, then advance one finger. It holds no lock of its own — all
// shared state lives in the routing table, which is already safe for
// concurrent use.
type Stabilizer struct {
	Routing *routing.Table
	Client  Client
	Log     zerolog.Logger

	// Events, if set, is notified of successor changes. Nil means events
	// are simply not emitted.
	Events Broadcaster

	nextFinger int
}

// NewStabilizer creates a Stabilizer over rt using client for outbound
// RPCs.
func NewStabilizer(rt *routing.Table, client Client, log zerolog.Logger) *Stabilizer {
	return &Stabilizer{Routing: rt, Client: client, Log: log}
}

// Tick performs one stabilization pass: stabilize-successor then
// fix-one-finger, in that order, exactly as spec §4.7 requires.
func (s *Stabilizer) Tick(ctx context.Context) {
	s.stabilizeSuccessor(ctx)
	s.fixNextFinger(ctx)
}

// Run ticks every interval until ctx is canceled.
func (s *Stabilizer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Stabilizer) stabilizeSuccessor(ctx context.Context) {
	self := s.Routing.Self()
	successor := s.Routing.Successor()

	if successor.Equal(self) {
		// Successor still points at self, which only happens before any
		// other node has joined through us. If one has — meaning we now
		// have a predecessor — promote it to successor so the ring closes;
		// otherwise there is truly nothing to stabilize against yet.
		if pred, ok := s.Routing.Predecessor(); ok {
			s.Routing.SetSuccessor(pred)
			s.emit(self, "successor promoted from predecessor "+pred.String())
		}
		return
	}

	replyAddr, err := s.Client.PredecessorNotify(ctx, successor.Addr, self.Addr)
	if err != nil {
		s.Log.Debug().Err(err).Str("successor", successor.String()).Msg("stabilize: PREDECESSOR NOTIFY failed")
		return
	}

	candidate := routing.Peer{ID: identifier.HashAddr(replyAddr), Addr: replyAddr}
	if identifier.InOpenOpen(candidate.ID, self.ID, successor.ID) {
		s.Routing.SetSuccessor(candidate)
		s.emit(self, "successor advanced to "+candidate.String())
	}
}

func (s *Stabilizer) emit(self routing.Peer, message string) {
	if s.Events == nil {
		return
	}
	s.Events.Broadcast(eventStabilize, self.String(), message)
}

func (s *Stabilizer) fixNextFinger(ctx context.Context) {
	bits := s.Routing.NumFingers()
	if bits == 0 {
		return
	}

	idx := s.nextFinger
	s.nextFinger = (s.nextFinger + 1) % bits

	self := s.Routing.Self()
	target := identifier.AddPow2(self.ID, idx)

	owner, err := lookup.FindSuccessor(ctx, s.Routing, s.Client, target, lookup.DefaultHopBudget)
	if err != nil {
		s.Log.Debug().Err(err).Int("finger", idx).Msg("stabilize: fix finger lookup failed")
		return
	}
	s.Routing.SetFinger(idx, owner)
}
