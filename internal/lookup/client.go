// Package lookup implements outbound peer RPCs and the iterative
// find_successor lookup built on top of them.
package lookup

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"time"

	"github.com/Benestar/go-chord/internal/identifier"
	"github.com/Benestar/go-chord/internal/routing"
	"github.com/Benestar/go-chord/internal/wire"
)

// Client dials short-lived TCP connections to peers and performs one
// request/reply exchange per call, matching the protocol's strictly
// request/reply, no-multiplexing contract (spec §4.5).
type Client struct {
	Timeout time.Duration
}

// NewClient creates a Client with the given per-RPC timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{Timeout: timeout}
}

func (c *Client) roundTrip(ctx context.Context, addr netip.AddrPort, msg wire.Message) (wire.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("lookup: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	frame, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(conn, frame); err != nil {
		return nil, fmt.Errorf("lookup: write to %s: %w", addr, err)
	}

	reply, err := wire.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("lookup: read from %s: %w", addr, err)
	}
	return wire.Decode(reply)
}

// PeerFind sends PEER FIND(id) to addr and returns the best next hop.
func (c *Client) PeerFind(ctx context.Context, addr netip.AddrPort, id *big.Int) (routing.Peer, error) {
	reply, err := c.roundTrip(ctx, addr, wire.PeerFindMsg{Identifier: identifier.Bytes(id)})
	if err != nil {
		return routing.Peer{}, err
	}

	found, ok := reply.(wire.PeerFoundMsg)
	if !ok {
		return routing.Peer{}, fmt.Errorf("lookup: unexpected reply type to PEER FIND: %T", reply)
	}
	// PEER FOUND's identifier field echoes the id we asked about, not the
	// replying hop's own id; a peer's id is always its address hashed, so
	// it is derived here rather than trusted off the wire.
	return routing.Peer{
		ID:   identifier.HashAddr(found.Addr),
		Addr: found.Addr,
	}, nil
}

// PredecessorNotify sends PREDECESSOR NOTIFY(self) to addr and returns the
// predecessor the remote peer reports back.
func (c *Client) PredecessorNotify(ctx context.Context, addr netip.AddrPort, self netip.AddrPort) (netip.AddrPort, error) {
	reply, err := c.roundTrip(ctx, addr, wire.PredecessorNotifyMsg{Addr: self})
	if err != nil {
		return netip.AddrPort{}, err
	}

	got, ok := reply.(wire.PredecessorReplyMsg)
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("lookup: unexpected reply type to PREDECESSOR NOTIFY: %T", reply)
	}
	return got.Addr, nil
}

// StorageGet sends STORAGE GET to addr. The bool return reports a hit; a
// STORAGE FAILURE reply surfaces as found=false with a nil error, while a
// dial, I/O or framing problem, or an unexpected reply type, is returned
// as an error.
func (c *Client) StorageGet(ctx context.Context, addr netip.AddrPort, rawKey [32]byte, index uint8) (value []byte, found bool, err error) {
	reply, err := c.roundTrip(ctx, addr, wire.StorageGetMsg{ReplicationIndex: index, RawKey: rawKey})
	if err != nil {
		return nil, false, err
	}

	switch m := reply.(type) {
	case wire.StorageGetSuccessMsg:
		return m.Value, true, nil
	case wire.StorageFailureMsg:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("lookup: unexpected reply type to STORAGE GET: %T", reply)
	}
}

// StoragePut sends STORAGE PUT to addr and reports whether it was accepted.
func (c *Client) StoragePut(ctx context.Context, addr netip.AddrPort, rawKey [32]byte, index uint8, ttl uint16, value []byte) (accepted bool, err error) {
	reply, err := c.roundTrip(ctx, addr, wire.StoragePutMsg{
		TTL:              ttl,
		ReplicationIndex: index,
		RawKey:           rawKey,
		Value:            value,
	})
	if err != nil {
		return false, err
	}

	switch reply.(type) {
	case wire.StoragePutSuccessMsg:
		return true, nil
	case wire.StorageFailureMsg:
		return false, nil
	default:
		return false, fmt.Errorf("lookup: unexpected reply type to STORAGE PUT: %T", reply)
	}
}
