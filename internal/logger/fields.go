package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so aggregation/querying stays stable as the
// client evolves.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeySessionID     = "session_id"
	KeySessionState  = "session_state"
	KeyRemoteAddr    = "remote_addr"
	KeyClientIdent   = "client_ident"
	KeyServerIdent   = "server_ident"
	KeyBytesFramed   = "bytes_framed"
	KeyPreviouslySeen = "previously_seen"

	// ========================================================================
	// Entry table
	// ========================================================================
	KeyEntryID   = "entry_id"
	KeyEntryName = "entry_name"
	KeyEntryType = "entry_type"
	KeySeq       = "seq"
	KeyFlags     = "flags"

	// ========================================================================
	// RPC
	// ========================================================================
	KeyDefinitionID = "definition_id"
	KeyUniqueID     = "unique_id"
	KeyRPCName      = "rpc_name"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyOperation  = "operation"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for an OpenTelemetry-style trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for an OpenTelemetry-style span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// SessionID returns a slog.Attr for the connection's correlation id.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// SessionState returns a slog.Attr for the session state machine's current state.
func SessionState(state fmt.Stringer) slog.Attr { return slog.String(KeySessionState, state.String()) }

// RemoteAddr returns a slog.Attr for the server's network address.
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }

// ClientIdent returns a slog.Attr for the client identity string sent in CLIENT_HELLO.
func ClientIdent(ident string) slog.Attr { return slog.String(KeyClientIdent, ident) }

// ServerIdent returns a slog.Attr for the server identity string received in SERVER_HELLO.
func ServerIdent(ident string) slog.Attr { return slog.String(KeyServerIdent, ident) }

// BytesFramed returns a slog.Attr for the byte length of an encoded message.
func BytesFramed(n int) slog.Attr { return slog.Int(KeyBytesFramed, n) }

// PreviouslySeen returns a slog.Attr for the SERVER_HELLO clientPreviouslySeen bit.
func PreviouslySeen(seen bool) slog.Attr { return slog.Bool(KeyPreviouslySeen, seen) }

// EntryID returns a slog.Attr for a 16-bit entry id.
func EntryID(id uint16) slog.Attr { return slog.Int(KeyEntryID, int(id)) }

// EntryName returns a slog.Attr for an entry's name.
func EntryName(name string) slog.Attr { return slog.String(KeyEntryName, name) }

// EntryType returns a slog.Attr for an entry's type, given its String() form.
func EntryType(t fmt.Stringer) slog.Attr { return slog.String(KeyEntryType, t.String()) }

// Seq returns a slog.Attr for a 16-bit entry sequence number.
func Seq(seq uint16) slog.Attr { return slog.Int(KeySeq, int(seq)) }

// Flags returns a slog.Attr for an entry's raw flags byte.
func Flags(flags uint8) slog.Attr { return slog.Int(KeyFlags, int(flags)) }

// DefinitionID returns a slog.Attr for the entry id of an RPC definition.
func DefinitionID(id uint16) slog.Attr { return slog.Int(KeyDefinitionID, int(id)) }

// UniqueID returns a slog.Attr for a client-chosen RPC invocation id.
func UniqueID(id uint16) slog.Attr { return slog.Int(KeyUniqueID, int(id)) }

// RPCName returns a slog.Attr for an RPC definition's procedure name.
func RPCName(name string) slog.Attr { return slog.String(KeyRPCName, name) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero-value Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric/categorical error code.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Operation returns a slog.Attr for a sub-operation label.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Attempt returns a slog.Attr for a reconnect attempt counter.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for a configured retry ceiling (0 = unbounded).
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }
