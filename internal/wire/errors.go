// Package wire implements the binary codec for the ntcore telemetry
// protocol: LEB128 and primitive encoding, the eight entry-value variants,
// the recursive RPC-definition format, and the thirteen framed message types.
//
// Reference: protocol version 3.0. All multi-byte integers outside of
// LEB128-encoded lengths are big-endian. Strings are length-prefixed UTF-8.
package wire

import "fmt"

// Kind classifies a codec failure so callers can distinguish recoverable
// truncation from a fatal, connection-ending malformation.
type Kind int

const (
	// Truncated means the buffer ended before a complete value/message
	// could be read. Recoverable: the caller should wait for more bytes.
	Truncated Kind = iota
	// Malformed means the bytes present are structurally invalid (e.g. a
	// LEB128 group count overrun). Fatal to the connection.
	Malformed
	// InvalidType means a type tag byte did not match one of the eight
	// recognized entry-value variants.
	InvalidType
	// InvalidMagic means a CLEAR_ALL_ENTRIES magic did not match
	// 0xD06CB27A.
	InvalidMagic
	// TypeMismatch means an encoder was asked to serialize a value whose
	// Go type does not match the declared entry type.
	TypeMismatch
	// UnknownRpcDefinition means an RPC_EXECUTE/RPC_RESPONSE referenced a
	// definition id absent from the entry table.
	UnknownRpcDefinition
	// RpcArityMismatch means the encoded parameter/result count did not
	// match the referenced RPC definition's arity.
	RpcArityMismatch
	// UnsupportedRpcVersion means the RPC definition version byte was not
	// 0x01.
	UnsupportedRpcVersion
	// UnsupportedProtocolVersion means the server rejected our handshake
	// with PROTO_VERSION_UNSUPPORTED.
	UnsupportedProtocolVersion
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "Truncated"
	case Malformed:
		return "Malformed"
	case InvalidType:
		return "InvalidType"
	case InvalidMagic:
		return "InvalidMagic"
	case TypeMismatch:
		return "TypeMismatch"
	case UnknownRpcDefinition:
		return "UnknownRpcDefinition"
	case RpcArityMismatch:
		return "RpcArityMismatch"
	case UnsupportedRpcVersion:
		return "UnsupportedRpcVersion"
	case UnsupportedProtocolVersion:
		return "UnsupportedProtocolVersion"
	default:
		return "Unknown"
	}
}

// Error is the structured failure threaded through every decode/encode
// path in this package. Codec calls never swallow a truncation into a
// malformation; the two are distinguished by Kind.
type Error struct {
	Kind Kind
	Op   string // short description of what was being decoded/encoded
	Err  error  // wrapped low-level cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("wire: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, wire.Truncated) style checks via a sentinel
// built from newErr(Truncated, "", nil).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// IsTruncated reports whether err signals recoverable truncation.
func IsTruncated(err error) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == Truncated
}
