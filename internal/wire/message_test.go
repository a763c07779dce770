package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLookup is a minimal RPCDefLookup for tests exercising RPC_EXECUTE /
// RPC_RESPONSE framing without a real entry table.
type stubLookup map[uint16]*RPCDefinition

func (s stubLookup) LookupRPCDefinition(id uint16) (*RPCDefinition, bool) {
	d, ok := s[id]
	return d, ok
}

// ============================================================================
// S1: handshake byte sequences
// ============================================================================

func TestClientHelloWireBytes(t *testing.T) {
	msg := ClientHello("")
	buf, err := Encode(nil, msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00}, buf)
}

func TestServerHelloWireBytes(t *testing.T) {
	msg := ServerHello(false, "ABC")
	buf, err := Encode(nil, msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x00, 0x03, 'A', 'B', 'C'}, buf)
}

func TestServerHelloCompleteWireBytes(t *testing.T) {
	buf, err := Encode(nil, ServerHelloComplete())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, buf)
}

func TestClientHelloCompleteWireBytes(t *testing.T) {
	buf, err := Encode(nil, ClientHelloComplete())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, buf)
}

func TestHandshakeRoundTrip(t *testing.T) {
	for _, msg := range []Message{
		ClientHello("studio-pc"),
		ServerHello(true, "roboRIO"),
		ServerHelloComplete(),
		ClientHelloComplete(),
		ProtoVersionUnsupported(4, 0),
		KeepAlive(),
	} {
		buf, err := Encode(nil, msg)
		require.NoError(t, err)

		got, pos, result, err := TryParse(buf, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, Parsed, result)
		assert.Equal(t, len(buf), pos)
		assert.Equal(t, msg, got)
	}
}

// ============================================================================
// S2: ENTRY_ASSIGNMENT decode
// ============================================================================

func TestEntryAssignmentWireBytes(t *testing.T) {
	raw := []byte{0x10, 0x03, 'a', 'b', 'c', 0x00, 0x00, 0x2A, 0x00, 0x01, 0x00, 0x01}

	got, pos, result, err := TryParse(raw, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(raw), pos)

	assert.Equal(t, "abc", got.EntryName)
	assert.Equal(t, TypeBoolean, got.EntryType)
	assert.Equal(t, uint16(42), got.EntryID)
	assert.Equal(t, uint16(1), got.EntrySeq)
	assert.False(t, got.EntryFlags.Persistent())
	assert.True(t, got.EntryValue.Bool)
}

func TestEntryAssignmentRoundTrip(t *testing.T) {
	msg := EntryAssignment("temperature", TypeDouble, 7, 1, NewEntryFlags(true), DoubleValue(21.5))
	buf, err := Encode(nil, msg)
	require.NoError(t, err)

	got, pos, result, err := TryParse(buf, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, msg, got)
}

// ============================================================================
// Incremental parse safety: prefixes return NeedMore, exact length Parsed,
// and extra trailing bytes are left untouched.
// ============================================================================

func TestTryParseIncrementalSafety(t *testing.T) {
	msg := EntryUpdate(9, 2, TypeString, StringValue("hello"))
	full, err := Encode(nil, msg)
	require.NoError(t, err)

	for n := 0; n < len(full); n++ {
		_, pos, result, err := TryParse(full[:n], 0, nil)
		require.NoError(t, err, "prefix length %d", n)
		assert.Equal(t, NeedMore, result, "prefix length %d", n)
		assert.Equal(t, 0, pos, "prefix length %d", n)
	}

	got, pos, result, err := TryParse(full, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(full), pos)
	assert.Equal(t, msg, got)

	extra := append(append([]byte{}, full...), 0xAA, 0xBB, 0xCC)
	got2, pos2, result2, err2 := TryParse(extra, 0, nil)
	require.NoError(t, err2)
	assert.Equal(t, Parsed, result2)
	assert.Equal(t, len(full), pos2)
	assert.Equal(t, msg, got2)
	// remainder untouched: a second parse at pos2 sees the trailing bytes
	// and rejects 0xAA as an unknown message type
	_, _, result3, _ := TryParse(extra, pos2, nil)
	assert.Equal(t, Invalid, result3)
}

// ============================================================================
// CLEAR_ALL_ENTRIES magic
// ============================================================================

func TestClearAllEntriesRejectsBadMagic(t *testing.T) {
	buf := []byte{0x14, 0x00, 0x00, 0x00, 0x00}
	_, _, result, err := TryParse(buf, 0, nil)
	assert.Equal(t, Invalid, result)
	require.Error(t, err)

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, InvalidMagic, wireErr.Kind)
}

func TestClearAllEntriesRoundTrip(t *testing.T) {
	buf, err := Encode(nil, ClearAllEntries())
	require.NoError(t, err)

	got, pos, result, err := TryParse(buf, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, MsgClearAllEntries, got.Type)
}

// ============================================================================
// S6: RPC arity mismatch
// ============================================================================

func TestRPCExecuteArityMismatchIsInvalid(t *testing.T) {
	def := &RPCDefinition{
		Name:   "addNumbers",
		Params: []ParamSpec{{Type: TypeDouble, Name: "a", Default: DoubleValue(0)}},
	}
	lookup := stubLookup{5: def}

	// Declares 2 params but the definition only has 1.
	msg := RPCExecute(5, 1, []Value{DoubleValue(1), DoubleValue(2)})
	buf, err := Encode(nil, msg)
	require.NoError(t, err)

	_, _, result, err := TryParse(buf, 0, lookup)
	assert.Equal(t, Invalid, result)
	require.Error(t, err)

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, RpcArityMismatch, wireErr.Kind)
}

func TestRPCExecuteRoundTripWithLookup(t *testing.T) {
	def := &RPCDefinition{
		Name: "addNumbers",
		Params: []ParamSpec{
			{Type: TypeDouble, Name: "a", Default: DoubleValue(0)},
			{Type: TypeDouble, Name: "b", Default: DoubleValue(0)},
		},
		Results: []ResultSpec{{Type: TypeDouble, Name: "sum"}},
	}
	lookup := stubLookup{5: def}

	call := RPCExecute(5, 100, []Value{DoubleValue(2), DoubleValue(3)})
	buf, err := Encode(nil, call)
	require.NoError(t, err)

	got, pos, result, err := TryParse(buf, 0, lookup)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, call, got)

	resp := RPCResponse(5, 100, []Value{DoubleValue(5)})
	buf2, err := Encode(nil, resp)
	require.NoError(t, err)

	got2, pos2, result2, err2 := TryParse(buf2, 0, lookup)
	require.NoError(t, err2)
	assert.Equal(t, Parsed, result2)
	assert.Equal(t, len(buf2), pos2)
	assert.Equal(t, resp, got2)
}

func TestRPCExecuteUnknownDefinitionIsInvalid(t *testing.T) {
	lookup := stubLookup{}
	msg := RPCExecute(99, 1, nil)
	buf, err := Encode(nil, msg)
	require.NoError(t, err)

	_, _, result, err := TryParse(buf, 0, lookup)
	assert.Equal(t, Invalid, result)
	require.Error(t, err)

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, UnknownRpcDefinition, wireErr.Kind)
}

// ============================================================================
// Entry delete / flags update
// ============================================================================

func TestEntryDeleteRoundTrip(t *testing.T) {
	msg := EntryDelete(17)
	buf, err := Encode(nil, msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x13, 0x00, 0x11}, buf)

	got, pos, result, err := TryParse(buf, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, msg, got)
}

func TestEntryFlagsUpdateRoundTrip(t *testing.T) {
	msg := EntryFlagsUpdate(3, NewEntryFlags(true))
	buf, err := Encode(nil, msg)
	require.NoError(t, err)

	got, pos, result, err := TryParse(buf, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed, result)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, msg, got)
	assert.True(t, got.EntryFlags.Persistent())
}

func TestUnknownMessageTypeIsInvalid(t *testing.T) {
	buf := []byte{0x7F}
	_, _, result, err := TryParse(buf, 0, nil)
	assert.Equal(t, Invalid, result)
	require.Error(t, err)
}
