// Package routing holds a node's view of the ring: its predecessor,
// immediate successor, and finger table, behind a single lock.
package routing

import (
	"fmt"
	"math/big"
	"net/netip"
	"sync"

	"github.com/Benestar/go-chord/internal/identifier"
)

// Peer identifies a remote (or local) node on the ring: its identifier and
// the address other nodes dial to reach it.
type Peer struct {
	ID   *big.Int
	Addr netip.AddrPort
}

// IsZero reports whether p is the zero Peer (no ID, no address).
func (p Peer) IsZero() bool {
	return p.ID == nil && !p.Addr.IsValid()
}

// Equal reports whether p and other name the same node. A peer's id is
// always a deterministic function of its address (see
// identifier.HashAddr), so address equality alone is sufficient and
// avoids false negatives when one side's id was never computed.
func (p Peer) Equal(other Peer) bool {
	return p.Addr == other.Addr
}

func (p Peer) String() string {
	if p.ID == nil {
		return "<nil peer>"
	}
	return fmt.Sprintf("%x@%s", p.ID, p.Addr)
}

// FingerEntry is one row of the finger table: the start of the interval
// this finger covers, and the peer currently believed to own it.
type FingerEntry struct {
	Start *big.Int
	Peer  Peer
}

// Table is a node's routing state: predecessor, successor, and finger
// table, all behind one RWMutex. A single lock, rather than one per field,
// is deliberate: stabilization touches several fields together and the
// workload does not justify finer-grained contention management.
type Table struct {
	mu sync.RWMutex

	self        Peer
	predecessor Peer
	hasPred     bool
	successor   Peer
	fingers     []FingerEntry
}

// New creates a routing table for self with bits finger slots, each
// pre-seeded with its start value (self + 2^i) mod 2^256 and no known
// owner.
func New(self Peer, bits int) *Table {
	fingers := make([]FingerEntry, bits)
	for i := range fingers {
		fingers[i] = FingerEntry{Start: identifier.AddPow2(self.ID, i)}
	}
	return &Table{
		self:      self,
		successor: self,
		fingers:   fingers,
	}
}

// Self returns this node's own peer record.
func (t *Table) Self() Peer {
	return t.self
}

// Predecessor returns the current predecessor and whether one is known.
func (t *Table) Predecessor() (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.predecessor, t.hasPred
}

// SetPredecessor unconditionally sets the predecessor.
func (t *Table) SetPredecessor(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.predecessor = p
	t.hasPred = true
}

// ClearPredecessor forgets the current predecessor. Nothing in this module
// calls it: the node has no failure detector.
func (t *Table) ClearPredecessor() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.predecessor = Peer{}
	t.hasPred = false
}

// MaybeUpdatePredecessor sets candidate as the predecessor if there is none
// yet, or if candidate lies strictly between the current predecessor and
// self. Reports whether the predecessor changed.
func (t *Table) MaybeUpdatePredecessor(candidate Peer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasPred || identifier.InOpenOpen(candidate.ID, t.predecessor.ID, t.self.ID) {
		t.predecessor = candidate
		t.hasPred = true
		return true
	}
	return false
}

// Successor returns the current successor. It defaults to self when no
// other node has been learned, matching the single-node ring case.
func (t *Table) Successor() Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successor
}

// SetSuccessor sets the successor and mirrors it into finger[0], the
// convention the stabilizer and lookup both rely on.
func (t *Table) SetSuccessor(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successor = p
	if len(t.fingers) > 0 {
		t.fingers[0].Peer = p
	}
}

// Finger returns a copy of finger table row i.
func (t *Table) Finger(i int) FingerEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fingers[i]
}

// SetFinger sets the owner of finger table row i.
func (t *Table) SetFinger(i int, p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fingers[i].Peer = p
	if i == 0 {
		t.successor = p
	}
}

// NumFingers returns the number of rows in the finger table.
func (t *Table) NumFingers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fingers)
}

// ClosestPrecedingNode scans the finger table from the widest reach down to
// the narrowest, returning the furthest known peer that still lies
// strictly between self and id. Falls back to self when no finger
// qualifies, terminating the iterative lookup's recursion at the caller.
func (t *Table) ClosestPrecedingNode(id *big.Int) Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.fingers) - 1; i >= 0; i-- {
		f := t.fingers[i]
		if f.Peer.ID == nil {
			continue
		}
		if identifier.InOpenOpen(f.Peer.ID, t.self.ID, id) {
			return f.Peer
		}
	}
	return t.self
}

// Responsible reports whether storageID falls within (predecessor, self],
// the arc this node currently owns. With no known predecessor, a
// single-node ring owns the entire circle.
func (t *Table) Responsible(storageID *big.Int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.hasPred {
		return true
	}
	return identifier.InOpenClosed(storageID, t.predecessor.ID, t.self.ID)
}
