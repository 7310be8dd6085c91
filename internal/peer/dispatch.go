// Package peer implements the peer-to-peer connection handler: a TCP
// accept loop feeding a bounded worker pool, dispatching framed requests
// per the wire protocol's request/reply contract.
package peer

import (
	"crypto/sha256"
	"math/big"
	"time"

	"github.com/Benestar/go-chord/internal/identifier"
	"github.com/Benestar/go-chord/internal/routing"
	"github.com/Benestar/go-chord/internal/store"
	"github.com/Benestar/go-chord/internal/wire"
)

// Handler dispatches one inbound peer message to the node's routing table
// and local store, producing the reply message.
type Handler struct {
	Routing *routing.Table
	Store   *store.Store
}

// storageID computes H(raw_key || replication_index), the identifier under
// which a given (raw_key, index) pair lives on the circle.
func storageID(rawKey [32]byte, index uint8) *big.Int {
	var buf [33]byte
	copy(buf[:32], rawKey[:])
	buf[32] = index
	sum := sha256.Sum256(buf[:])
	return new(big.Int).SetBytes(sum[:])
}

// Dispatch handles one decoded inbound message and returns the reply to
// send back on the same connection.
func (h *Handler) Dispatch(msg wire.Message) (wire.Message, error) {
	switch m := msg.(type) {
	case wire.StorageGetMsg:
		return h.handleStorageGet(m), nil

	case wire.StoragePutMsg:
		return h.handleStoragePut(m), nil

	case wire.PeerFindMsg:
		return h.handlePeerFind(m), nil

	case wire.PredecessorNotifyMsg:
		return h.handlePredecessorNotify(m), nil

	default:
		return nil, wire.ErrUnknownType
	}
}

func (h *Handler) handleStorageGet(m wire.StorageGetMsg) wire.Message {
	id := storageID(m.RawKey, m.ReplicationIndex)
	value, err := h.Store.Get(id.Bytes(), h.responsible, store.RawKey(m.RawKey), m.ReplicationIndex)
	if err != nil {
		return wire.StorageFailureMsg{RawKey: m.RawKey}
	}
	return wire.StorageGetSuccessMsg{RawKey: m.RawKey, Value: value}
}

func (h *Handler) handleStoragePut(m wire.StoragePutMsg) wire.Message {
	id := storageID(m.RawKey, m.ReplicationIndex)
	ttl := time.Duration(m.TTL) * time.Second
	err := h.Store.Put(id.Bytes(), h.responsible, store.RawKey(m.RawKey), m.ReplicationIndex, ttl, m.Value)
	if err != nil {
		return wire.StorageFailureMsg{RawKey: m.RawKey}
	}
	return wire.StoragePutSuccessMsg{RawKey: m.RawKey}
}

// handlePeerFind answers with the successor when this node is responsible
// for id, otherwise with the closest preceding node as the next hop. Per
// spec, the reply always carries the best next hop, letting the caller
// detect convergence by comparing against what it just queried.
func (h *Handler) handlePeerFind(m wire.PeerFindMsg) wire.Message {
	id := identifier.FromBytes(m.Identifier[:])
	self := h.Routing.Self()
	successor := h.Routing.Successor()

	if identifier.InOpenClosed(id, self.ID, successor.ID) {
		return wire.PeerFoundMsg{Identifier: m.Identifier, Addr: successor.Addr}
	}

	next := h.Routing.ClosestPrecedingNode(id)
	return wire.PeerFoundMsg{Identifier: m.Identifier, Addr: next.Addr}
}

func (h *Handler) handlePredecessorNotify(m wire.PredecessorNotifyMsg) wire.Message {
	candidateID := identifier.HashAddr(m.Addr)
	h.Routing.MaybeUpdatePredecessor(routing.Peer{ID: candidateID, Addr: m.Addr})

	pred, ok := h.Routing.Predecessor()
	if !ok {
		pred = h.Routing.Self()
	}
	return wire.PredecessorReplyMsg{Addr: pred.Addr}
}

// responsible gates storage ops by the current (predecessor, self] arc.
func (h *Handler) responsible(storageID []byte) bool {
	return h.Routing.Responsible(new(big.Int).SetBytes(storageID))
}
