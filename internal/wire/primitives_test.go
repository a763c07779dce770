package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// String
// ============================================================================

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "a", "abc", "the quick brown fox"}

	for _, s := range cases {
		buf := PutString(nil, s)
		got, pos, err := String(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Equal(t, len(buf), pos)
	}
}

func TestStringTruncatedWhenBodyShort(t *testing.T) {
	buf := PutString(nil, "abc")
	_, _, err := String(buf[:len(buf)-1], 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}

func TestStringTruncatedWhenLengthPrefixMissing(t *testing.T) {
	_, _, err := String(nil, 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}

// ============================================================================
// Raw
// ============================================================================

func TestRawRoundTrip(t *testing.T) {
	data := []byte{0x01, 0x02, 0xFF, 0x00}
	buf := PutRaw(nil, data)
	got, pos, err := Raw(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, len(buf), pos)
}

func TestRawEmpty(t *testing.T) {
	buf := PutRaw(nil, nil)
	got, pos, err := Raw(buf, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, len(buf), pos)
}

// ============================================================================
// Bool
// ============================================================================

func TestBoolRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		buf := PutBool(nil, v)
		got, pos, err := Bool(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, 1, pos)
	}
}

func TestBoolTruncated(t *testing.T) {
	_, _, err := Bool(nil, 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}

// ============================================================================
// Double
// ============================================================================

func TestDoubleRoundTrip(t *testing.T) {
	cases := []float64{0, 1, -1, 3.14159, -273.15, 1e300}

	for _, v := range cases {
		buf := PutDouble(nil, v)
		got, pos, err := Double(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, 8, pos)
	}
}

func TestDoubleTruncated(t *testing.T) {
	buf := PutDouble(nil, 1.5)
	_, _, err := Double(buf[:7], 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}

// ============================================================================
// Fixed-width integers
// ============================================================================

func TestUint8RoundTrip(t *testing.T) {
	buf := PutUint8(nil, 200)
	got, pos, err := Uint8(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), got)
	assert.Equal(t, 1, pos)
}

func TestUint16RoundTrip(t *testing.T) {
	buf := PutUint16(nil, 0xABCD)
	got, pos, err := Uint16(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), got)
	assert.Equal(t, 2, pos)
	// big-endian on the wire
	assert.Equal(t, []byte{0xAB, 0xCD}, buf)
}

func TestUint32RoundTrip(t *testing.T) {
	buf := PutUint32(nil, 0xD06CB27A)
	got, pos, err := Uint32(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xD06CB27A), got)
	assert.Equal(t, 4, pos)
	assert.Equal(t, []byte{0xD0, 0x6C, 0xB2, 0x7A}, buf)
}

func TestFixedWidthTruncated(t *testing.T) {
	_, _, err := Uint16(nil, 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))

	_, _, err = Uint32(nil, 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}
