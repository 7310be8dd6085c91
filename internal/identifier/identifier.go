// Package identifier implements arithmetic and comparison over the 256-bit
// identifier circle used to place nodes and keys on the Chord ring.
package identifier

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"net/netip"
)

const (
	// Bits is the width of the identifier space in bits (2^256).
	Bits = 256

	// ByteLen is Bits/8, the fixed-width encoding used on the wire.
	ByteLen = Bits / 8
)

var (
	ringSize = new(big.Int).Lsh(big.NewInt(1), Bits)
	zero     = big.NewInt(0)
	one      = big.NewInt(1)
)

// Hash hashes arbitrary data to a 256-bit identifier using the full SHA-256
// digest directly, without truncation.
func Hash(data []byte) *big.Int {
	sum := sha256.Sum256(data)
	return new(big.Int).SetBytes(sum[:])
}

// HashAddr derives a node's identifier from its socket address: SHA-256
// over the canonical 18-byte encoding (16-byte IPv4-mapped-or-native IPv6
// address followed by a big-endian port) used throughout the wire
// protocol, so every component that turns an address into an identifier
// agrees on the same bytes.
func HashAddr(addr netip.AddrPort) *big.Int {
	var buf [18]byte
	ip16 := addr.Addr().As16()
	copy(buf[:16], ip16[:])
	binary.BigEndian.PutUint16(buf[16:18], addr.Port())
	return Hash(buf[:])
}

// Mod reduces x into [0, 2^256), wrapping negative values around the ring.
func Mod(x *big.Int) *big.Int {
	result := new(big.Int).Mod(x, ringSize)
	if result.Sign() < 0 {
		result.Add(result, ringSize)
	}
	return result
}

// Add returns (a + b) mod 2^256.
func Add(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Add(a, b))
}

// Sub returns (a - b) mod 2^256.
func Sub(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Sub(a, b))
}

// PowerOfTwo returns 2^exponent.
func PowerOfTwo(exponent int) *big.Int {
	if exponent < 0 {
		return new(big.Int)
	}
	return new(big.Int).Lsh(one, uint(exponent))
}

// AddPow2 returns (n + 2^exponent) mod 2^256, used to compute finger table
// start values: finger[i].start = (n + 2^i) mod 2^256.
func AddPow2(n *big.Int, exponent int) *big.Int {
	return Add(Mod(n), PowerOfTwo(exponent))
}

// InOpenClosed reports whether id falls in the arc (a, b], wrapping around
// the ring when a >= b. This is the predecessor-exclusive, successor-
// inclusive responsibility arc used throughout the routing and storage
// logic.
func InOpenClosed(id, a, b *big.Int) bool {
	if id == nil || a == nil || b == nil {
		return false
	}
	id, a, b = Mod(id), Mod(a), Mod(b)

	switch a.Cmp(b) {
	case -1:
		return id.Cmp(a) > 0 && id.Cmp(b) <= 0
	case 1:
		return id.Cmp(a) > 0 || id.Cmp(b) <= 0
	default:
		// a == b: the arc spans the whole circle, including a itself.
		return true
	}
}

// InOpenOpen reports whether id falls in the arc (a, b), exclusive on both
// ends, wrapping around the ring when a >= b.
func InOpenOpen(id, a, b *big.Int) bool {
	if id == nil || a == nil || b == nil {
		return false
	}
	id, a, b = Mod(id), Mod(a), Mod(b)

	switch a.Cmp(b) {
	case -1:
		return id.Cmp(a) > 0 && id.Cmp(b) < 0
	case 1:
		return id.Cmp(a) > 0 || id.Cmp(b) < 0
	default:
		return id.Cmp(a) != 0
	}
}

// InClosedOpen reports whether id falls in the arc [a, b), inclusive on the
// start, wrapping around the ring when a >= b.
func InClosedOpen(id, a, b *big.Int) bool {
	if id == nil || a == nil || b == nil {
		return false
	}
	id, a, b = Mod(id), Mod(a), Mod(b)

	switch a.Cmp(b) {
	case -1:
		return id.Cmp(a) >= 0 && id.Cmp(b) < 0
	case 1:
		return id.Cmp(a) >= 0 || id.Cmp(b) < 0
	default:
		return id.Cmp(a) != 0
	}
}

// RingSize returns 2^256, the size of the identifier circle.
func RingSize() *big.Int {
	return new(big.Int).Set(ringSize)
}

// MaxID returns the maximum valid identifier on the ring (2^256 - 1).
func MaxID() *big.Int {
	return new(big.Int).Sub(ringSize, one)
}

// Valid reports whether id lies within the valid range [0, 2^256).
func Valid(id *big.Int) bool {
	if id == nil {
		return false
	}
	return id.Cmp(zero) >= 0 && id.Cmp(ringSize) < 0
}

// Bytes encodes id as a fixed ByteLen-byte big-endian array, zero-padded on
// the left, matching the wire representation of an identifier field.
func Bytes(id *big.Int) [ByteLen]byte {
	var out [ByteLen]byte
	Mod(id).FillBytes(out[:])
	return out
}

// FromBytes decodes a fixed-width big-endian identifier, as produced by
// Bytes.
func FromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
