// Package apiproto implements the northbound API frame format: local
// clients send DHT PUT/GET and receive DHT SUCCESS/FAILURE, reusing the
// peer protocol's 4-byte frame header.
package apiproto

import "github.com/Benestar/go-chord/internal/wire"

// Type identifies a northbound API message's wire type.
type Type uint16

const (
	DhtPut     Type = 650
	DhtGet     Type = 651
	DhtSuccess Type = 652
	DhtFailure Type = 653
)

// HeaderSize matches the peer protocol's frame header; both protocols
// share one framing convention.
const HeaderSize = wire.HeaderSize

// Message is one of the four northbound API message bodies.
type Message interface {
	Type() Type
}

// DhtPutMsg asks the node to store Value under Key with replication
// spread across Replication distinct storage identifiers.
type DhtPutMsg struct {
	TTL         uint16
	Replication uint8
	Key         [32]byte
	Value       []byte
}

func (DhtPutMsg) Type() Type { return DhtPut }

// DhtGetMsg asks the node to resolve Key. The node searches replication
// indices starting at 0 until a value is found or the search is
// exhausted; the request itself carries no replication count.
type DhtGetMsg struct {
	Key [32]byte
}

func (DhtGetMsg) Type() Type { return DhtGet }

// DhtSuccessMsg answers a DHT GET with the value found, or acknowledges a
// DHT PUT by echoing Key with an empty Value.
type DhtSuccessMsg struct {
	Key   [32]byte
	Value []byte
}

func (DhtSuccessMsg) Type() Type { return DhtSuccess }

// DhtFailureMsg reports that a PUT or GET could not be satisfied within
// the effective deadline.
type DhtFailureMsg struct {
	Key [32]byte
}

func (DhtFailureMsg) Type() Type { return DhtFailure }
