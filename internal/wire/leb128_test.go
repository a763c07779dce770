package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PutUvarint / Uvarint round-trip
// ============================================================================

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 42, 127, 128, 255, 300, 16384, 1 << 20, 1 << 40, ^uint64(0),
	}

	for _, v := range cases {
		buf := PutUvarint(nil, v)
		got, pos, err := Uvarint(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), pos)
	}
}

func TestUvarintSingleByteForSmallValues(t *testing.T) {
	buf := PutUvarint(nil, 42)
	assert.Equal(t, []byte{42}, buf)
}

func TestUvarintOffsetWithinLargerBuffer(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	buf = PutUvarint(buf, 300)

	v, pos, err := Uvarint(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
	assert.Equal(t, len(buf), pos)
}

// ============================================================================
// Truncation vs malformation
// ============================================================================

func TestUvarintTruncatedOnShortBuffer(t *testing.T) {
	full := PutUvarint(nil, 300)
	_, pos, err := Uvarint(full[:len(full)-1], 0)

	require.Error(t, err)
	assert.True(t, IsTruncated(err))
	assert.Equal(t, 0, pos)
}

func TestUvarintMalformedOnTooManyGroups(t *testing.T) {
	buf := make([]byte, maxLEB128Groups+1)
	for i := range buf {
		buf[i] = 0x80
	}
	buf[len(buf)-1] = 0x00

	_, pos, err := Uvarint(buf, 0)
	require.Error(t, err)
	assert.False(t, IsTruncated(err))

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, Malformed, wireErr.Kind)
	assert.Equal(t, 0, pos)
}

func TestUvarintEmptyBufferIsTruncated(t *testing.T) {
	_, _, err := Uvarint(nil, 0)
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}
