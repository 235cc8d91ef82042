package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMagnitude16(t *testing.T) {
	assert.Equal(t, 3, signMagnitude16(0x0003))
	assert.Equal(t, -3, signMagnitude16(0x8003))
	assert.Equal(t, 0, signMagnitude16(0x0000))
	assert.Equal(t, 0, signMagnitude16(0x8000))
	assert.Equal(t, 32767, signMagnitude16(0x7fff))
	assert.Equal(t, -32767, signMagnitude16(0xffff))
}

func TestBitReader(t *testing.T) {
	// 10110011 01000000
	r := &bitReader{data: []byte{0xb3, 0x40}}

	v, err := r.read(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b101), v)

	v, err = r.read(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b10011), v)

	// Crosses the byte boundary.
	v, err = r.read(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b01), v)

	_, err = r.read(10)
	assert.Error(t, err, "reading past the buffer must fail")
}

func TestBitReader_RejectsBadWidths(t *testing.T) {
	r := &bitReader{data: []byte{0xff}}
	_, err := r.read(0)
	assert.Error(t, err)
	_, err = r.read(33)
	assert.Error(t, err)
}

func TestCountSetBits(t *testing.T) {
	bitmap := []byte{0b10100000, 0b11000000}

	assert.Equal(t, 0, countSetBits(bitmap, 0))
	assert.Equal(t, 1, countSetBits(bitmap, 1))
	assert.Equal(t, 2, countSetBits(bitmap, 4))
	assert.Equal(t, 4, countSetBits(bitmap, 16))
}

func TestCurrentCycle(t *testing.T) {
	day := func(h, m int) time.Time {
		return time.Date(2025, 1, 15, h, m, 0, 0, time.UTC)
	}

	// 14:30 falls in the 12z cycle but that run is under three hours old.
	assert.Equal(t, day(6, 0), currentCycle(day(14, 30)))

	// By 16:00 the 12z run has published.
	assert.Equal(t, day(12, 0), currentCycle(day(16, 0)))

	// Just after midnight the freshest usable run is yesterday's 18z.
	assert.Equal(t,
		time.Date(2025, 1, 14, 18, 0, 0, 0, time.UTC),
		currentCycle(day(1, 0)),
	)
}
