package lookup

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/netip"

	"github.com/Benestar/go-chord/internal/identifier"
	"github.com/Benestar/go-chord/internal/routing"
)

// DefaultHopBudget bounds how many hops an iterative lookup may take
// before giving up, guarding against routing-table divergence.
const DefaultHopBudget = 256

// ErrDivergence is returned when a lookup exhausts its hop budget without
// converging on an answer.
var ErrDivergence = errors.New("lookup: exceeded hop budget without converging")

// PeerFinder is the subset of Client (or RetryingClient) the iterative
// lookup depends on.
type PeerFinder interface {
	PeerFind(ctx context.Context, addr netip.AddrPort, id *big.Int) (routing.Peer, error)
}

// FindSuccessor resolves the node responsible for id, starting from the
// local routing table and hopping across the ring via PEER FIND/PEER FOUND
// exchanges. It implements the iterative algorithm exactly: self is
// consulted first without any RPC, then each subsequent hop is a
// synchronous round trip to the current candidate.
func FindSuccessor(ctx context.Context, rt *routing.Table, client PeerFinder, id *big.Int, hopBudget int) (routing.Peer, error) {
	self := rt.Self()
	successor := rt.Successor()

	if identifier.InOpenClosed(id, self.ID, successor.ID) {
		return successor, nil
	}

	current := rt.ClosestPrecedingNode(id)
	if current.Equal(self) {
		return self, nil
	}

	visited := map[netip.AddrPort]bool{self.Addr: true}

	for hop := 0; hop < hopBudget; hop++ {
		next, err := client.PeerFind(ctx, current.Addr, id)
		if err != nil {
			return routing.Peer{}, fmt.Errorf("lookup: PEER FIND to %s: %w", current, err)
		}

		if next.Equal(current) {
			return current, nil
		}
		if next.Equal(self) || visited[next.Addr] {
			return current, nil
		}

		visited[current.Addr] = true
		current = next
	}

	return routing.Peer{}, ErrDivergence
}

// FindSuccessorVia resolves id by starting the iterative hop sequence at a
// known peer (typically a bootstrap peer) rather than the local routing
// table, for the join-time lookup of "who owns my own id" described in
// spec §4.7's bootstrap procedure.
func FindSuccessorVia(ctx context.Context, client PeerFinder, start netip.AddrPort, self netip.AddrPort, id *big.Int, hopBudget int) (routing.Peer, error) {
	current := routing.Peer{ID: identifier.HashAddr(start), Addr: start}
	visited := map[netip.AddrPort]bool{}

	for hop := 0; hop < hopBudget; hop++ {
		next, err := client.PeerFind(ctx, current.Addr, id)
		if err != nil {
			return routing.Peer{}, fmt.Errorf("lookup: PEER FIND to %s: %w", current, err)
		}

		if next.Equal(current) {
			return current, nil
		}
		if next.Addr == self || visited[next.Addr] {
			return current, nil
		}

		visited[current.Addr] = true
		current = next
	}

	return routing.Peer{}, ErrDivergence
}
