package node

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benestar/go-chord/internal/config"
	"github.com/Benestar/go-chord/internal/routing"
)

func testConfig(t *testing.T, addr string) *config.Config {
	t.Helper()
	ap, err := netip.ParseAddrPort(addr)
	require.NoError(t, err)
	return &config.Config{
		ListenAddress:         ap,
		APIAddress:            ap,
		WorkerThreads:         2,
		Timeout:               50 * time.Millisecond,
		Fingers:               8,
		StabilizationInterval: time.Second,
	}
}

func TestNewSingletonDefaults(t *testing.T) {
	n := New(testConfig(t, "127.0.0.1:9001"), zerolog.Nop())

	self := n.Routing.Self()
	successor := n.Routing.Successor()
	assert.True(t, self.Equal(successor))

	_, hasPred := n.Routing.Predecessor()
	assert.False(t, hasPred)

	assert.True(t, n.Routing.Responsible(self.ID))
}

func TestStorageIDDeterministicAndDistinctByIndex(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("some raw key padded with zeroes"))

	a := storageID(key, 0)
	b := storageID(key, 0)
	c := storageID(key, 1)

	assert.Equal(t, 0, a.Cmp(b))
	assert.NotEqual(t, 0, a.Cmp(c))
}

func TestGetMissOnEmptySingletonNode(t *testing.T) {
	n := New(testConfig(t, "127.0.0.1:9002"), zerolog.Nop())

	// An already-expired context makes every outbound dial fail
	// immediately, so the 256-index search completes quickly instead of
	// waiting out the retrying client's backoff on a connection nothing is
	// listening on.
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()

	var key [32]byte
	copy(key[:], []byte("unknown-key"))

	_, err := n.Get(ctx, key)
	assert.ErrorIs(t, err, ErrGetMiss)
}

// TestTwoNodeJoinConvergesSuccessorAndPredecessor drives spec §8 scenario
// 2 end to end: two real nodes, each with its own peer listener, joined
// over actual TCP and stabilized until the ring closes.
func TestTwoNodeJoinConvergesSuccessorAndPredecessor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := New(testConfig(t, "127.0.0.1:19010"), zerolog.Nop())
	b := New(testConfig(t, "127.0.0.1:19011"), zerolog.Nop())

	require.NoError(t, a.Peer.Listen(a.Self.String()))
	require.NoError(t, b.Peer.Listen(b.Self.String()))
	go a.Peer.Serve(ctx)
	go b.Peer.Serve(ctx)
	t.Cleanup(func() {
		_ = a.Peer.Close()
		_ = b.Peer.Close()
	})

	require.NoError(t, b.Join(ctx, a.Self))

	// A few stabilization rounds are enough for the predecessor/successor
	// notify exchange to close the ring in both directions: B discovers A
	// as its successor at join time, A learns B as its predecessor on B's
	// first notify, A promotes B to successor on its own next tick, and B
	// learns A as its predecessor once A's successor is no longer itself.
	for i := 0; i < 5; i++ {
		a.Stabilizer.Tick(ctx)
		b.Stabilizer.Tick(ctx)
	}

	assert.True(t, a.Routing.Successor().Equal(routing.Peer{Addr: b.Self}))

	predOfB, hasPred := b.Routing.Predecessor()
	require.True(t, hasPred)
	assert.True(t, predOfB.Equal(routing.Peer{Addr: a.Self}))
}
