// Package wire implements the peer-to-peer frame format: a 4-byte header
// followed by one of nine fixed message bodies, all integers in network
// byte order.
package wire

import "net/netip"

// Type identifies a peer-to-peer message's wire type.
type Type uint16

const (
	StorageGet         Type = 1000
	StoragePut         Type = 1001
	StorageGetSuccess  Type = 1002
	StoragePutSuccess  Type = 1003
	StorageFailure     Type = 1004
	PeerFind           Type = 1050
	PeerFound          Type = 1051
	PredecessorNotify  Type = 1052
	PredecessorReply   Type = 1053
)

// HeaderSize is the size in bytes of the size+type frame header.
const HeaderSize = 4

// Message is any of the nine peer-to-peer message bodies.
type Message interface {
	Type() Type
}

// StorageGetMsg requests the value stored under (RawKey, ReplicationIndex).
type StorageGetMsg struct {
	ReplicationIndex uint8
	RawKey           [32]byte
}

func (StorageGetMsg) Type() Type { return StorageGet }

// StoragePutMsg asks the receiver to store Value under (RawKey,
// ReplicationIndex), with an advisory TTL.
type StoragePutMsg struct {
	TTL              uint16
	ReplicationIndex uint8
	RawKey           [32]byte
	Value            []byte
}

func (StoragePutMsg) Type() Type { return StoragePut }

// StorageGetSuccessMsg carries the value found for a prior STORAGE GET.
type StorageGetSuccessMsg struct {
	RawKey [32]byte
	Value  []byte
}

func (StorageGetSuccessMsg) Type() Type { return StorageGetSuccess }

// StoragePutSuccessMsg acknowledges a prior STORAGE PUT.
type StoragePutSuccessMsg struct {
	RawKey [32]byte
}

func (StoragePutSuccessMsg) Type() Type { return StoragePutSuccess }

// StorageFailureMsg reports that a STORAGE GET missed, or a STORAGE PUT (or
// GET) was rejected as not-responsible. It is advisory: peers need not send
// it.
type StorageFailureMsg struct {
	RawKey [32]byte
}

func (StorageFailureMsg) Type() Type { return StorageFailure }

// PeerFindMsg asks the receiver to resolve Identifier, one hop at a time.
type PeerFindMsg struct {
	Identifier [32]byte
}

func (PeerFindMsg) Type() Type { return PeerFind }

// PeerFoundMsg replies to a PEER FIND with the best next hop known for
// Identifier — not necessarily the final owner.
type PeerFoundMsg struct {
	Identifier [32]byte
	Addr       netip.AddrPort
}

func (PeerFoundMsg) Type() Type { return PeerFound }

// PredecessorNotifyMsg announces the sender's address to its believed
// successor, driving both stabilization and predecessor discovery.
type PredecessorNotifyMsg struct {
	Addr netip.AddrPort
}

func (PredecessorNotifyMsg) Type() Type { return PredecessorNotify }

// PredecessorReplyMsg answers a PREDECESSOR NOTIFY with the replier's
// current predecessor (or itself, if none is known yet).
type PredecessorReplyMsg struct {
	Addr netip.AddrPort
}

func (PredecessorReplyMsg) Type() Type { return PredecessorReply }
