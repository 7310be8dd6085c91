package lookup

import (
	"context"
	"math/big"
	"net/netip"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/Benestar/go-chord/internal/routing"
)

// RetryingClient wraps a Client with exponential backoff, for the
// api_put/api_get callers that spec §4.8/§7 allow to retry on lookup
// failure. Stabilization and the peer connection handler talk to the
// unwrapped Client directly, so a single transient RPC failure there
// surfaces immediately rather than stalling a tick.
type RetryingClient struct {
	inner    *Client
	attempts uint
	delay    time.Duration
}

// WrapRetrying decorates client so each call is tried up to attempts times
// in total, waiting delay before the first retry and backing off
// exponentially after that.
func WrapRetrying(client *Client, attempts uint, delay time.Duration) *RetryingClient {
	return &RetryingClient{inner: client, attempts: attempts, delay: delay}
}

func (r *RetryingClient) options(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
}

func (r *RetryingClient) PeerFind(ctx context.Context, addr netip.AddrPort, id *big.Int) (routing.Peer, error) {
	return retry.DoWithData(func() (routing.Peer, error) {
		return r.inner.PeerFind(ctx, addr, id)
	}, r.options(ctx)...)
}

func (r *RetryingClient) StorageGet(ctx context.Context, addr netip.AddrPort, rawKey [32]byte, index uint8) ([]byte, bool, error) {
	type result struct {
		value []byte
		found bool
	}
	res, err := retry.DoWithData(func() (result, error) {
		value, found, err := r.inner.StorageGet(ctx, addr, rawKey, index)
		return result{value, found}, err
	}, r.options(ctx)...)
	return res.value, res.found, err
}

func (r *RetryingClient) StoragePut(ctx context.Context, addr netip.AddrPort, rawKey [32]byte, index uint8, ttl uint16, value []byte) (bool, error) {
	return retry.DoWithData(func() (bool, error) {
		return r.inner.StoragePut(ctx, addr, rawKey, index, ttl, value)
	}, r.options(ctx)...)
}
