package stabilize

import (
	"context"
	"math/big"
	"net/netip"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Benestar/go-chord/internal/identifier"
	"github.com/Benestar/go-chord/internal/routing"
)

type fakeClient struct {
	notifyReply netip.AddrPort
	notifyErr   error
	peerFound   routing.Peer
	peerFindErr error
}

func (f *fakeClient) PredecessorNotify(_ context.Context, _ netip.AddrPort, _ netip.AddrPort) (netip.AddrPort, error) {
	return f.notifyReply, f.notifyErr
}

func (f *fakeClient) PeerFind(_ context.Context, _ netip.AddrPort, _ *big.Int) (routing.Peer, error) {
	return f.peerFound, f.peerFindErr
}

func peerAt(id int64, port uint16) routing.Peer {
	return routing.Peer{
		ID:   big.NewInt(id),
		Addr: netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port),
	}
}

func TestTickSingletonSkipsStabilization(t *testing.T) {
	self := peerAt(0, 9000)
	rt := routing.New(self, 8)

	s := NewStabilizer(rt, &fakeClient{}, zerolog.Nop())
	s.Tick(context.Background())

	assert.True(t, rt.Successor().Equal(self))
}

func TestStabilizeSuccessorPromotesPredecessorWhenSelfIsSuccessor(t *testing.T) {
	self := peerAt(0, 9000)
	rt := routing.New(self, 8)

	joiner := peerAt(50, 9001)
	rt.SetPredecessor(joiner)

	s := NewStabilizer(rt, &fakeClient{}, zerolog.Nop())
	s.stabilizeSuccessor(context.Background())

	assert.True(t, rt.Successor().Equal(joiner))
}

func TestStabilizeSuccessorAdoptsCloserCandidate(t *testing.T) {
	self := peerAt(0, 9000)
	rt := routing.New(self, 8)
	// the candidate's id is derived by hashing its address, so the successor
	// sits at the top of the ring to make (self, successor) contain it
	succ := routing.Peer{ID: identifier.MaxID(), Addr: netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 9001)}
	rt.SetSuccessor(succ)

	candidateAddr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 9002)
	client := &fakeClient{notifyReply: candidateAddr}

	s := NewStabilizer(rt, client, zerolog.Nop())
	s.stabilizeSuccessor(context.Background())

	newSucc := rt.Successor()
	assert.Equal(t, candidateAddr, newSucc.Addr)
}

func TestStabilizeSuccessorIgnoresFartherCandidate(t *testing.T) {
	self := peerAt(100, 9000)
	rt := routing.New(self, 8)
	succ := peerAt(150, 9001)
	rt.SetSuccessor(succ)

	// candidate's hashed id is overwhelmingly unlikely to land in the tiny
	// (100, 150) sliver of the 256-bit ring, so it should be rejected
	client := &fakeClient{notifyReply: netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 9003)}

	s := NewStabilizer(rt, client, zerolog.Nop())
	s.stabilizeSuccessor(context.Background())

	assert.True(t, rt.Successor().Equal(succ))
}

func TestFixNextFingerAdvancesIndex(t *testing.T) {
	self := peerAt(0, 9000)
	rt := routing.New(self, 4)
	// the successor's arc (0, 42] contains every finger target (1, 2, 4, 8),
	// so find_successor's self-shortcut resolves each to it without any RPC
	target := peerAt(42, 9005)
	rt.SetSuccessor(target)

	s := NewStabilizer(rt, &fakeClient{}, zerolog.Nop())

	s.fixNextFinger(context.Background())
	assert.Equal(t, 1, s.nextFinger)
	assert.True(t, rt.Finger(0).Peer.Equal(target))

	s.fixNextFinger(context.Background())
	assert.Equal(t, 2, s.nextFinger)
}
