package identifier

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		check func(*testing.T, *big.Int)
	}{
		{
			name: "deterministic",
			data: []byte("test"),
			check: func(t *testing.T, id *big.Int) {
				id2 := Hash([]byte("test"))
				assert.Equal(t, id, id2, "same input should produce same hash")
			},
		},
		{
			name: "different inputs produce different hashes",
			data: []byte("test1"),
			check: func(t *testing.T, id *big.Int) {
				id2 := Hash([]byte("test2"))
				assert.NotEqual(t, id, id2)
			},
		},
		{
			name: "valid range",
			data: []byte("test"),
			check: func(t *testing.T, id *big.Int) {
				assert.True(t, Valid(id))
				assert.True(t, id.Cmp(zero) >= 0)
				assert.True(t, id.Cmp(ringSize) < 0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Hash(tt.data)
			require.NotNil(t, id)
			tt.check(t, id)
		})
	}
}

func TestInOpenClosed(t *testing.T) {
	tests := []struct {
		name     string
		id, a, b int64
		expected bool
	}{
		{"inside, no wrap", 5, 3, 7, true},
		{"equals start excluded", 3, 3, 7, false},
		{"equals end included", 7, 3, 7, true},
		{"wraparound inside", 1, 8, 3, true},
		{"wraparound at end", 9, 8, 3, true},
		{"wraparound at start excluded", 8, 8, 3, false},
		{"whole circle when a equals b", 4, 5, 5, true},
		{"whole circle when a equals b includes a itself", 5, 5, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InOpenClosed(big.NewInt(tt.id), big.NewInt(tt.a), big.NewInt(tt.b))
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.False(t, InOpenClosed(nil, big.NewInt(1), big.NewInt(2)))
}

func TestInOpenOpen(t *testing.T) {
	tests := []struct {
		name     string
		id, a, b int64
		expected bool
	}{
		{"inside, no wrap", 5, 3, 7, true},
		{"equals start excluded", 3, 3, 7, false},
		{"equals end excluded", 7, 3, 7, false},
		{"wraparound inside", 1, 8, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InOpenOpen(big.NewInt(tt.id), big.NewInt(tt.a), big.NewInt(tt.b))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInClosedOpen(t *testing.T) {
	tests := []struct {
		name     string
		id, a, b int64
		expected bool
	}{
		{"equals start included", 3, 3, 7, true},
		{"equals end excluded", 7, 3, 7, false},
		{"wraparound start included", 8, 8, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InClosedOpen(big.NewInt(tt.id), big.NewInt(tt.a), big.NewInt(tt.b))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAddPow2(t *testing.T) {
	n := big.NewInt(10)
	got := AddPow2(n, 2) // 10 + 4 = 14
	assert.Equal(t, big.NewInt(14), got)

	// wraps around the ring
	max := MaxID()
	wrapped := AddPow2(max, 0) // max + 1 = 0
	assert.Equal(t, int64(0), wrapped.Int64())
}

func TestBytesRoundTrip(t *testing.T) {
	id := Hash([]byte("round-trip"))
	b := Bytes(id)
	assert.Len(t, b, ByteLen)

	got := FromBytes(b[:])
	assert.Equal(t, id, got)
}

func TestBytesZeroPadded(t *testing.T) {
	id := big.NewInt(1)
	b := Bytes(id)
	for i := 0; i < ByteLen-1; i++ {
		assert.Equal(t, byte(0), b[i])
	}
	assert.Equal(t, byte(1), b[ByteLen-1])
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(nil))
	assert.True(t, Valid(big.NewInt(0)))
	assert.True(t, Valid(MaxID()))
	assert.False(t, Valid(RingSize()))
}
