package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/netip"
)

// ErrFraming covers any malformed frame: a size field that doesn't match
// what was read, a body too short for its declared type, or an addr field
// that fails to decode. Per the wire contract, the connection is
// terminated on a framing error.
var ErrFraming = errors.New("wire: framing error")

// ErrUnknownType is returned by Decode for a message_type with no known
// body layout.
var ErrUnknownType = errors.New("wire: unknown message type")

const addrBytes = 16 + 2 // ipv6 + port

// Encode renders msg as a complete frame: header followed by body.
func Encode(msg Message) ([]byte, error) {
	body, err := encodeBody(msg)
	if err != nil {
		return nil, err
	}

	size := HeaderSize + len(body)
	if size > 0xFFFF {
		return nil, fmt.Errorf("wire: frame too large: %d bytes", size)
	}

	frame := make([]byte, size)
	binary.BigEndian.PutUint16(frame[0:2], uint16(size))
	binary.BigEndian.PutUint16(frame[2:4], uint16(msg.Type()))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

func encodeBody(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case StorageGetMsg:
		body := make([]byte, 4+32)
		body[0] = m.ReplicationIndex
		copy(body[4:], m.RawKey[:])
		return body, nil

	case StoragePutMsg:
		body := make([]byte, 4+32+len(m.Value))
		binary.BigEndian.PutUint16(body[0:2], m.TTL)
		body[2] = m.ReplicationIndex
		copy(body[4:36], m.RawKey[:])
		copy(body[36:], m.Value)
		return body, nil

	case StorageGetSuccessMsg:
		body := make([]byte, 32+len(m.Value))
		copy(body[:32], m.RawKey[:])
		copy(body[32:], m.Value)
		return body, nil

	case StoragePutSuccessMsg:
		return append([]byte(nil), m.RawKey[:]...), nil

	case StorageFailureMsg:
		return append([]byte(nil), m.RawKey[:]...), nil

	case PeerFindMsg:
		return append([]byte(nil), m.Identifier[:]...), nil

	case PeerFoundMsg:
		body := make([]byte, 32+addrBytes)
		copy(body[:32], m.Identifier[:])
		putAddr(body[32:], m.Addr)
		return body, nil

	case PredecessorNotifyMsg:
		body := make([]byte, addrBytes)
		putAddr(body, m.Addr)
		return body, nil

	case PredecessorReplyMsg:
		body := make([]byte, addrBytes)
		putAddr(body, m.Addr)
		return body, nil

	default:
		return nil, fmt.Errorf("wire: %w: %T", ErrUnknownType, msg)
	}
}

// Decode parses a complete frame (header included) into its Message.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", ErrFraming)
	}

	size := binary.BigEndian.Uint16(frame[0:2])
	if int(size) != len(frame) {
		return nil, fmt.Errorf("%w: declared size %d, got %d bytes", ErrFraming, size, len(frame))
	}

	typ := Type(binary.BigEndian.Uint16(frame[2:4]))
	body := frame[HeaderSize:]

	switch typ {
	case StorageGet:
		if len(body) != 4+32 {
			return nil, fmt.Errorf("%w: short STORAGE GET body", ErrFraming)
		}
		var m StorageGetMsg
		m.ReplicationIndex = body[0]
		copy(m.RawKey[:], body[4:36])
		return m, nil

	case StoragePut:
		if len(body) < 4+32 {
			return nil, fmt.Errorf("%w: short STORAGE PUT body", ErrFraming)
		}
		var m StoragePutMsg
		m.TTL = binary.BigEndian.Uint16(body[0:2])
		m.ReplicationIndex = body[2]
		copy(m.RawKey[:], body[4:36])
		m.Value = append([]byte(nil), body[36:]...)
		return m, nil

	case StorageGetSuccess:
		if len(body) < 32 {
			return nil, fmt.Errorf("%w: short STORAGE GET SUCCESS body", ErrFraming)
		}
		var m StorageGetSuccessMsg
		copy(m.RawKey[:], body[:32])
		m.Value = append([]byte(nil), body[32:]...)
		return m, nil

	case StoragePutSuccess:
		if len(body) != 32 {
			return nil, fmt.Errorf("%w: short STORAGE PUT SUCCESS body", ErrFraming)
		}
		var m StoragePutSuccessMsg
		copy(m.RawKey[:], body)
		return m, nil

	case StorageFailure:
		if len(body) != 32 {
			return nil, fmt.Errorf("%w: short STORAGE FAILURE body", ErrFraming)
		}
		var m StorageFailureMsg
		copy(m.RawKey[:], body)
		return m, nil

	case PeerFind:
		if len(body) != 32 {
			return nil, fmt.Errorf("%w: short PEER FIND body", ErrFraming)
		}
		var m PeerFindMsg
		copy(m.Identifier[:], body)
		return m, nil

	case PeerFound:
		if len(body) != 32+addrBytes {
			return nil, fmt.Errorf("%w: short PEER FOUND body", ErrFraming)
		}
		var m PeerFoundMsg
		copy(m.Identifier[:], body[:32])
		addr, err := getAddr(body[32:])
		if err != nil {
			return nil, err
		}
		m.Addr = addr
		return m, nil

	case PredecessorNotify:
		if len(body) != addrBytes {
			return nil, fmt.Errorf("%w: short PREDECESSOR NOTIFY body", ErrFraming)
		}
		addr, err := getAddr(body)
		if err != nil {
			return nil, err
		}
		return PredecessorNotifyMsg{Addr: addr}, nil

	case PredecessorReply:
		if len(body) != addrBytes {
			return nil, fmt.Errorf("%w: short PREDECESSOR REPLY body", ErrFraming)
		}
		addr, err := getAddr(body)
		if err != nil {
			return nil, err
		}
		return PredecessorReplyMsg{Addr: addr}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// putAddr encodes addr as 16 IPv4-mapped-or-native IPv6 bytes followed by a
// big-endian port, into dst (which must be addrBytes long).
func putAddr(dst []byte, addr netip.AddrPort) {
	ip16 := addr.Addr().As16()
	copy(dst[:16], ip16[:])
	binary.BigEndian.PutUint16(dst[16:18], addr.Port())
}

// getAddr decodes the 16-byte-IPv6-plus-port layout, unmapping IPv4-mapped
// addresses back to their 4-byte form.
func getAddr(src []byte) (netip.AddrPort, error) {
	if len(src) != addrBytes {
		return netip.AddrPort{}, fmt.Errorf("%w: bad address field length", ErrFraming)
	}
	var raw [16]byte
	copy(raw[:], src[:16])
	addr := netip.AddrFrom16(raw).Unmap()
	port := binary.BigEndian.Uint16(src[16:18])
	return netip.AddrPortFrom(addr, port), nil
}

// ReadFrame reads one complete frame from r: the 4-byte header, then
// exactly size-HeaderSize more bytes. Returns the full frame including the
// header, ready for Decode.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint16(header[0:2])
	if int(size) < HeaderSize {
		return nil, fmt.Errorf("%w: size %d smaller than header", ErrFraming, size)
	}

	frame := make([]byte, size)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes a complete, already-encoded frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	_, err := w.Write(frame)
	return err
}
