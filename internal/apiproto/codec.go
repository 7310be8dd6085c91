package apiproto

import (
	"encoding/binary"
	"fmt"

	"github.com/Benestar/go-chord/internal/wire"
)

// Encode renders msg as a complete frame: header followed by body, sharing
// the peer protocol's header layout.
func Encode(msg Message) ([]byte, error) {
	body, err := encodeBody(msg)
	if err != nil {
		return nil, err
	}

	size := HeaderSize + len(body)
	if size > 0xFFFF {
		return nil, fmt.Errorf("apiproto: frame too large: %d bytes", size)
	}

	frame := make([]byte, size)
	binary.BigEndian.PutUint16(frame[0:2], uint16(size))
	binary.BigEndian.PutUint16(frame[2:4], uint16(msg.Type()))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

func encodeBody(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case DhtPutMsg:
		body := make([]byte, 4+32+len(m.Value))
		binary.BigEndian.PutUint16(body[0:2], m.TTL)
		body[2] = m.Replication
		copy(body[4:36], m.Key[:])
		copy(body[36:], m.Value)
		return body, nil

	case DhtGetMsg:
		return append([]byte(nil), m.Key[:]...), nil

	case DhtSuccessMsg:
		body := make([]byte, 32+len(m.Value))
		copy(body[:32], m.Key[:])
		copy(body[32:], m.Value)
		return body, nil

	case DhtFailureMsg:
		return append([]byte(nil), m.Key[:]...), nil

	default:
		return nil, fmt.Errorf("apiproto: %w: %T", wire.ErrUnknownType, msg)
	}
}

// Decode parses a complete frame (header included) into its Message.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", wire.ErrFraming)
	}

	size := binary.BigEndian.Uint16(frame[0:2])
	if int(size) != len(frame) {
		return nil, fmt.Errorf("%w: declared size %d, got %d bytes", wire.ErrFraming, size, len(frame))
	}

	typ := Type(binary.BigEndian.Uint16(frame[2:4]))
	body := frame[HeaderSize:]

	switch typ {
	case DhtPut:
		if len(body) < 4+32 {
			return nil, fmt.Errorf("%w: short DHT PUT body", wire.ErrFraming)
		}
		var m DhtPutMsg
		m.TTL = binary.BigEndian.Uint16(body[0:2])
		m.Replication = body[2]
		copy(m.Key[:], body[4:36])
		m.Value = append([]byte(nil), body[36:]...)
		return m, nil

	case DhtGet:
		if len(body) != 32 {
			return nil, fmt.Errorf("%w: short DHT GET body", wire.ErrFraming)
		}
		var m DhtGetMsg
		copy(m.Key[:], body)
		return m, nil

	case DhtSuccess:
		if len(body) < 32 {
			return nil, fmt.Errorf("%w: short DHT SUCCESS body", wire.ErrFraming)
		}
		var m DhtSuccessMsg
		copy(m.Key[:], body[:32])
		m.Value = append([]byte(nil), body[32:]...)
		return m, nil

	case DhtFailure:
		if len(body) != 32 {
			return nil, fmt.Errorf("%w: short DHT FAILURE body", wire.ErrFraming)
		}
		var m DhtFailureMsg
		copy(m.Key[:], body)
		return m, nil

	default:
		return nil, fmt.Errorf("%w: %d", wire.ErrUnknownType, typ)
	}
}

// ReadFrame and WriteFrame reuse the peer protocol's generic frame I/O,
// since both protocols share the same 4-byte header convention.
var (
	ReadFrame  = wire.ReadFrame
	WriteFrame = wire.WriteFrame
)
