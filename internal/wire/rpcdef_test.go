package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Recursive RPC-definition round-trip
// ============================================================================

func TestRPCDefinitionRoundTrip(t *testing.T) {
	def := &RPCDefinition{
		Name: "getCameraFeed",
		Params: []ParamSpec{
			{Type: TypeString, Name: "cameraName", Default: StringValue("front")},
			{Type: TypeDouble, Name: "quality", Default: DoubleValue(0.5)},
			{Type: TypeBoolean, Name: "grayscale", Default: BoolValue(false)},
		},
		Results: []ResultSpec{
			{Type: TypeRaw, Name: "jpeg"},
			{Type: TypeBoolean, Name: "ok"},
		},
	}

	buf, err := EncodeRPCDefinition(nil, def)
	require.NoError(t, err)

	got, pos, err := DecodeRPCDefinition(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Params, got.Params)
	assert.Equal(t, def.Results, got.Results)
}

func TestRPCDefinitionNoParamsOrResults(t *testing.T) {
	def := &RPCDefinition{Name: "ping"}

	buf, err := EncodeRPCDefinition(nil, def)
	require.NoError(t, err)

	got, pos, err := DecodeRPCDefinition(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), pos)
	assert.Equal(t, "ping", got.Name)
	assert.Empty(t, got.Params)
	assert.Empty(t, got.Results)
}

func TestRPCDefinitionVersionByte(t *testing.T) {
	def := &RPCDefinition{Name: "x"}
	buf, err := EncodeRPCDefinition(nil, def)
	require.NoError(t, err)
	assert.Equal(t, uint8(RPCDefinitionVersion), buf[0])
}

func TestRPCDefinitionUnsupportedVersionRejected(t *testing.T) {
	def := &RPCDefinition{Name: "x"}
	buf, err := EncodeRPCDefinition(nil, def)
	require.NoError(t, err)
	buf[0] = 0x02

	_, _, err = DecodeRPCDefinition(buf, 0)
	require.Error(t, err)

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, UnsupportedRpcVersion, wireErr.Kind)
}

func TestRPCDefinitionRejectsInvalidParamType(t *testing.T) {
	def := &RPCDefinition{
		Params: []ParamSpec{{Type: TypeBoolean, Name: "p", Default: BoolValue(true)}},
	}
	buf, err := EncodeRPCDefinition(nil, def)
	require.NoError(t, err)

	// corrupt the param type byte (version, empty-name length, param count, then type)
	buf[3] = 0xFF

	_, _, err = DecodeRPCDefinition(buf, 0)
	require.Error(t, err)

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, InvalidType, wireErr.Kind)
}

// TestRPCDefinitionResultHasNoDefault documents that a decoded ResultSpec
// never carries a default value field, matching the encode format.
func TestRPCDefinitionResultHasNoDefault(t *testing.T) {
	def := &RPCDefinition{
		Results: []ResultSpec{{Type: TypeDouble, Name: "out"}},
	}
	buf, err := EncodeRPCDefinition(nil, def)
	require.NoError(t, err)

	got, _, err := DecodeRPCDefinition(buf, 0)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "out", got.Results[0].Name)
	assert.Equal(t, TypeDouble, got.Results[0].Type)
}
