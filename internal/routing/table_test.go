package routing

import (
	"math/big"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peerAt(id int64) Peer {
	return Peer{
		ID:   big.NewInt(id),
		Addr: netip.MustParseAddrPort("127.0.0.1:9000"),
	}
}

func TestNewSelfIsOwnSuccessor(t *testing.T) {
	self := peerAt(10)
	tbl := New(self, 8)

	assert.True(t, tbl.Successor().Equal(self))
	_, ok := tbl.Predecessor()
	assert.False(t, ok)
}

func TestSetSuccessorMirrorsFingerZero(t *testing.T) {
	self := peerAt(10)
	tbl := New(self, 8)

	succ := peerAt(20)
	tbl.SetSuccessor(succ)

	assert.True(t, tbl.Successor().Equal(succ))
	assert.True(t, tbl.Finger(0).Peer.Equal(succ))
}

func TestMaybeUpdatePredecessorFirstTime(t *testing.T) {
	self := peerAt(10)
	tbl := New(self, 8)

	changed := tbl.MaybeUpdatePredecessor(peerAt(5))
	assert.True(t, changed)

	pred, ok := tbl.Predecessor()
	require.True(t, ok)
	assert.Equal(t, int64(5), pred.ID.Int64())
}

func TestMaybeUpdatePredecessorOnlyCloser(t *testing.T) {
	self := peerAt(100)
	tbl := New(self, 8)
	tbl.SetPredecessor(peerAt(50))

	// candidate closer to self than current predecessor: accepted
	assert.True(t, tbl.MaybeUpdatePredecessor(peerAt(80)))

	pred, _ := tbl.Predecessor()
	assert.Equal(t, int64(80), pred.ID.Int64())

	// candidate further away (wraps past self): rejected
	assert.False(t, tbl.MaybeUpdatePredecessor(peerAt(10)))
}

func TestClosestPrecedingNodeFallsBackToSelf(t *testing.T) {
	self := peerAt(10)
	tbl := New(self, 8)

	assert.True(t, tbl.ClosestPrecedingNode(big.NewInt(200)).Equal(self))
}

func TestClosestPrecedingNodePicksWidestQualifyingFinger(t *testing.T) {
	self := peerAt(0)
	tbl := New(self, 4) // starts: 1, 2, 4, 8

	near := peerAt(3)
	far := peerAt(6)
	tbl.SetFinger(0, near)
	tbl.SetFinger(2, far)

	// looking for id=10: finger[2] (far=6) is in (0, 10) and wider than finger[0]
	got := tbl.ClosestPrecedingNode(big.NewInt(10))
	assert.Equal(t, int64(6), got.ID.Int64())
}

func TestResponsibleSingleNodeOwnsWholeRing(t *testing.T) {
	self := peerAt(10)
	tbl := New(self, 8)

	assert.True(t, tbl.Responsible(big.NewInt(999)))
}

func TestResponsibleGatedByPredecessor(t *testing.T) {
	self := peerAt(100)
	tbl := New(self, 8)
	tbl.SetPredecessor(peerAt(50))

	assert.True(t, tbl.Responsible(big.NewInt(75)))  // in (50, 100]
	assert.True(t, tbl.Responsible(big.NewInt(100))) // inclusive end
	assert.False(t, tbl.Responsible(big.NewInt(50))) // exclusive start
	assert.False(t, tbl.Responsible(big.NewInt(200)))
}

func TestClearPredecessor(t *testing.T) {
	self := peerAt(10)
	tbl := New(self, 8)
	tbl.SetPredecessor(peerAt(5))

	tbl.ClearPredecessor()

	_, ok := tbl.Predecessor()
	assert.False(t, ok)
}
