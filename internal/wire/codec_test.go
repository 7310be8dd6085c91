package wire

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawKey(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	return k
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	addr := netip.MustParseAddrPort("203.0.113.5:4000")

	msgs := []Message{
		StorageGetMsg{ReplicationIndex: 2, RawKey: rawKey(1)},
		StoragePutMsg{TTL: 60, ReplicationIndex: 1, RawKey: rawKey(2), Value: []byte("hello")},
		StorageGetSuccessMsg{RawKey: rawKey(3), Value: []byte("world")},
		StoragePutSuccessMsg{RawKey: rawKey(4)},
		StorageFailureMsg{RawKey: rawKey(5)},
		PeerFindMsg{Identifier: rawKey(6)},
		PeerFoundMsg{Identifier: rawKey(7), Addr: addr},
		PredecessorNotifyMsg{Addr: addr},
		PredecessorReplyMsg{Addr: addr},
	}

	for _, m := range msgs {
		frame, err := Encode(m)
		require.NoError(t, err)

		decoded, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, m, decoded)
	}
}

func TestEncodeHeaderFields(t *testing.T) {
	frame, err := Encode(StorageGetMsg{ReplicationIndex: 0, RawKey: rawKey(1)})
	require.NoError(t, err)

	assert.Len(t, frame, HeaderSize+4+32)
	assert.Equal(t, byte(0), frame[0])
	assert.Equal(t, byte(HeaderSize+4+32), frame[1])
	assert.Equal(t, byte(0x03), frame[2]) // 1000 >> 8
	assert.Equal(t, byte(0xE8), frame[3]) // 1000 & 0xFF
}

func TestDecodeRejectsBadSize(t *testing.T) {
	frame, err := Encode(StoragePutSuccessMsg{RawKey: rawKey(1)})
	require.NoError(t, err)

	frame[0] = 0xFF // corrupt declared size
	_, err = Decode(frame)
	assert.ErrorIs(t, err, ErrFraming)
}

func TestDecodeRejectsShortBody(t *testing.T) {
	frame, err := Encode(StoragePutSuccessMsg{RawKey: rawKey(1)})
	require.NoError(t, err)

	truncated := frame[:len(frame)-1]
	// fix up the declared size to match the truncated length so the size
	// check passes and the body-length check is what fails
	truncated = append([]byte{}, truncated...)
	truncated[1] = byte(len(truncated))

	_, err = Decode(truncated)
	assert.ErrorIs(t, err, ErrFraming)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	frame := make([]byte, HeaderSize)
	frame[1] = HeaderSize
	frame[2], frame[3] = 0x00, 0x01 // type 1, not a known message

	_, err := Decode(frame)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestReadWriteFrame(t *testing.T) {
	frame, err := Encode(PeerFindMsg{Identifier: rawKey(9)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, frame))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestIPv4MappedRoundTrip(t *testing.T) {
	addr := netip.MustParseAddrPort("192.0.2.1:80")

	msg := PeerFoundMsg{Identifier: rawKey(1), Addr: addr}
	frame, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(frame)
	require.NoError(t, err)

	got := decoded.(PeerFoundMsg)
	assert.True(t, got.Addr.Addr().Is4())
	assert.Equal(t, addr, got.Addr)
}
