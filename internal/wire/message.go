package wire

// MessageType is the single leading byte that tags every framed message.
// Values are fixed by wire compatibility and must never be renumbered.
type MessageType uint8

const (
	MsgKeepAlive                 MessageType = 0x00
	MsgClientHello               MessageType = 0x01
	MsgProtoVersionUnsupported   MessageType = 0x02
	MsgServerHelloComplete       MessageType = 0x03
	MsgServerHello               MessageType = 0x04
	MsgClientHelloComplete       MessageType = 0x05
	MsgEntryAssignment           MessageType = 0x10
	MsgEntryUpdate               MessageType = 0x11
	MsgEntryFlagsUpdate          MessageType = 0x12
	MsgEntryDelete               MessageType = 0x13
	MsgClearAllEntries           MessageType = 0x14
	MsgRPCExecute                MessageType = 0x20
	MsgRPCResponse               MessageType = 0x21
)

// ClearAllEntriesMagic guards CLEAR_ALL_ENTRIES against accidental
// emission; any other 32-bit value on the wire is InvalidMagic.
const ClearAllEntriesMagic uint32 = 0xD06CB27A

// UnassignedID is the sentinel entry id meaning "no server id yet".
const UnassignedID uint16 = 0xFFFF

// ProtocolMajor and ProtocolMinor are the version this client speaks.
const (
	ProtocolMajor uint8 = 3
	ProtocolMinor uint8 = 0
)

// flagPersistent is bit 0 of an entry flags byte.
const flagPersistent uint8 = 1 << 0

// EntryFlags wraps the single-bit flags byte defined by §3.
type EntryFlags uint8

func (f EntryFlags) Persistent() bool { return f&EntryFlags(flagPersistent) != 0 }

func NewEntryFlags(persistent bool) EntryFlags {
	if persistent {
		return EntryFlags(flagPersistent)
	}
	return 0
}

// serverHelloFlagPreviouslySeen is bit 0 of the SERVER_HELLO flags byte.
const serverHelloFlagPreviouslySeen uint8 = 1 << 0

// Message is a tagged union over the thirteen framed message variants.
// Exactly the fields relevant to Type are meaningful; use the typed
// constructors below to build one rather than setting fields by hand.
type Message struct {
	Type MessageType

	// CLIENT_HELLO
	ClientMajor, ClientMinor uint8
	ClientIdentity           string

	// PROTO_VERSION_UNSUPPORTED
	ServerMajor, ServerMinor uint8

	// SERVER_HELLO
	ServerHelloFlags uint8
	ServerIdentity   string

	// ENTRY_ASSIGNMENT / ENTRY_UPDATE / ENTRY_FLAGS_UPDATE / ENTRY_DELETE
	EntryName  string
	EntryType  EntryType
	EntryID    uint16
	EntrySeq   uint16
	EntryFlags EntryFlags
	EntryValue Value

	// RPC_EXECUTE / RPC_RESPONSE
	RPCDefID    uint16
	RPCUniqueID uint16
	RPCValues   []Value
}

// ClientPreviouslySeen reports bit 0 of a SERVER_HELLO's flags byte.
func (m Message) ClientPreviouslySeen() bool {
	return m.ServerHelloFlags&serverHelloFlagPreviouslySeen != 0
}

func KeepAlive() Message { return Message{Type: MsgKeepAlive} }

func ClientHello(identity string) Message {
	return Message{Type: MsgClientHello, ClientMajor: ProtocolMajor, ClientMinor: ProtocolMinor, ClientIdentity: identity}
}

func ProtoVersionUnsupported(major, minor uint8) Message {
	return Message{Type: MsgProtoVersionUnsupported, ServerMajor: major, ServerMinor: minor}
}

func ServerHelloComplete() Message { return Message{Type: MsgServerHelloComplete} }

func ServerHello(previouslySeen bool, identity string) Message {
	var flags uint8
	if previouslySeen {
		flags = serverHelloFlagPreviouslySeen
	}
	return Message{Type: MsgServerHello, ServerHelloFlags: flags, ServerIdentity: identity}
}

func ClientHelloComplete() Message { return Message{Type: MsgClientHelloComplete} }

func EntryAssignment(name string, typ EntryType, id, seq uint16, flags EntryFlags, value Value) Message {
	return Message{Type: MsgEntryAssignment, EntryName: name, EntryType: typ, EntryID: id, EntrySeq: seq, EntryFlags: flags, EntryValue: value}
}

func EntryUpdate(id, seq uint16, typ EntryType, value Value) Message {
	return Message{Type: MsgEntryUpdate, EntryID: id, EntrySeq: seq, EntryType: typ, EntryValue: value}
}

func EntryFlagsUpdate(id uint16, flags EntryFlags) Message {
	return Message{Type: MsgEntryFlagsUpdate, EntryID: id, EntryFlags: flags}
}

func EntryDelete(id uint16) Message {
	return Message{Type: MsgEntryDelete, EntryID: id}
}

func ClearAllEntries() Message { return Message{Type: MsgClearAllEntries} }

func RPCExecute(defID, uniqueID uint16, params []Value) Message {
	return Message{Type: MsgRPCExecute, RPCDefID: defID, RPCUniqueID: uniqueID, RPCValues: params}
}

func RPCResponse(defID, uniqueID uint16, results []Value) Message {
	return Message{Type: MsgRPCResponse, RPCDefID: defID, RPCUniqueID: uniqueID, RPCValues: results}
}

// RPCDefLookup is consulted by the decoder to type RPC_EXECUTE parameters
// and RPC_RESPONSE results against the referenced definition's arity. The
// entry table satisfies this interface; wire itself never imports table to
// avoid a cycle.
type RPCDefLookup interface {
	LookupRPCDefinition(defID uint16) (*RPCDefinition, bool)
}

// Encode appends the wire encoding of m to buf, including its leading
// type byte.
func Encode(buf []byte, m Message) ([]byte, error) {
	buf = append(buf, byte(m.Type))

	switch m.Type {
	case MsgKeepAlive, MsgServerHelloComplete, MsgClientHelloComplete, MsgClearAllEntries:
		if m.Type == MsgClearAllEntries {
			buf = PutUint32(buf, ClearAllEntriesMagic)
		}
		return buf, nil

	case MsgClientHello:
		buf = PutUint8(buf, m.ClientMajor)
		buf = PutUint8(buf, m.ClientMinor)
		buf = PutString(buf, m.ClientIdentity)
		return buf, nil

	case MsgProtoVersionUnsupported:
		buf = PutUint8(buf, m.ServerMajor)
		buf = PutUint8(buf, m.ServerMinor)
		return buf, nil

	case MsgServerHello:
		buf = PutUint8(buf, m.ServerHelloFlags)
		buf = PutString(buf, m.ServerIdentity)
		return buf, nil

	case MsgEntryAssignment:
		buf = PutString(buf, m.EntryName)
		buf = PutUint8(buf, uint8(m.EntryType))
		buf = PutUint16(buf, m.EntryID)
		buf = PutUint16(buf, m.EntrySeq)
		buf = PutUint8(buf, uint8(m.EntryFlags))
		return EncodeValue(buf, m.EntryValue)

	case MsgEntryUpdate:
		buf = PutUint16(buf, m.EntryID)
		buf = PutUint16(buf, m.EntrySeq)
		buf = PutUint8(buf, uint8(m.EntryType))
		return EncodeValue(buf, m.EntryValue)

	case MsgEntryFlagsUpdate:
		buf = PutUint16(buf, m.EntryID)
		buf = PutUint8(buf, uint8(m.EntryFlags))
		return buf, nil

	case MsgEntryDelete:
		buf = PutUint16(buf, m.EntryID)
		return buf, nil

	case MsgRPCExecute, MsgRPCResponse:
		buf = PutUint16(buf, m.RPCDefID)
		buf = PutUint16(buf, m.RPCUniqueID)
		buf = PutUvarint(buf, uint64(len(m.RPCValues)))
		for _, v := range m.RPCValues {
			var err error
			buf, err = EncodeValue(buf, v)
			if err != nil {
				return buf, err
			}
		}
		return buf, nil

	default:
		return buf, newErr(TypeMismatch, "message", nil)
	}
}

// ParseResult reports the outcome of TryParse.
type ParseResult int

const (
	// Parsed means a complete message was decoded; consult the returned
	// Message and newOffset.
	Parsed ParseResult = iota
	// NeedMore means buf is truncated mid-message; wait for more bytes
	// and retry at the same offset.
	NeedMore
	// Invalid means the bytes are malformed; the connection must close.
	Invalid
)

// TryParse attempts to decode one message from buf starting at offset. It
// never consumes bytes on NeedMore or Invalid — callers should retry at
// the same offset once more bytes arrive, and must not retry at all on
// Invalid. lookup resolves RPC definitions for RPC_EXECUTE/RPC_RESPONSE;
// it may be nil for tests that don't exercise those two message types.
func TryParse(buf []byte, offset int, lookup RPCDefLookup) (Message, int, ParseResult, error) {
	if offset >= len(buf) {
		return Message{}, offset, NeedMore, nil
	}

	typ := MessageType(buf[offset])
	pos := offset + 1
	m := Message{Type: typ}

	var err error
	switch typ {
	case MsgKeepAlive, MsgServerHelloComplete, MsgClientHelloComplete:
		// empty body

	case MsgClearAllEntries:
		var magic uint32
		magic, pos, err = Uint32(buf, pos)
		if err == nil && magic != ClearAllEntriesMagic {
			return Message{}, offset, Invalid, newErr(InvalidMagic, "clear_all_entries", nil)
		}

	case MsgClientHello:
		m.ClientMajor, pos, err = Uint8(buf, pos)
		if err == nil {
			m.ClientMinor, pos, err = Uint8(buf, pos)
		}
		if err == nil {
			m.ClientIdentity, pos, err = String(buf, pos)
		}

	case MsgProtoVersionUnsupported:
		m.ServerMajor, pos, err = Uint8(buf, pos)
		if err == nil {
			m.ServerMinor, pos, err = Uint8(buf, pos)
		}

	case MsgServerHello:
		m.ServerHelloFlags, pos, err = Uint8(buf, pos)
		if err == nil {
			m.ServerIdentity, pos, err = String(buf, pos)
		}

	case MsgEntryAssignment:
		m.EntryName, pos, err = String(buf, pos)
		if err != nil {
			break
		}
		var typByte uint8
		typByte, pos, err = Uint8(buf, pos)
		if err != nil {
			break
		}
		m.EntryType = EntryType(typByte)
		if !m.EntryType.Valid() {
			return Message{}, offset, Invalid, newErr(InvalidType, "entry_assignment", nil)
		}
		m.EntryID, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		m.EntrySeq, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		var flagByte uint8
		flagByte, pos, err = Uint8(buf, pos)
		if err != nil {
			break
		}
		m.EntryFlags = EntryFlags(flagByte)
		m.EntryValue, pos, err = DecodeValue(buf, pos, m.EntryType)

	case MsgEntryUpdate:
		m.EntryID, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		m.EntrySeq, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		var typByte uint8
		typByte, pos, err = Uint8(buf, pos)
		if err != nil {
			break
		}
		m.EntryType = EntryType(typByte)
		if !m.EntryType.Valid() {
			return Message{}, offset, Invalid, newErr(InvalidType, "entry_update", nil)
		}
		m.EntryValue, pos, err = DecodeValue(buf, pos, m.EntryType)

	case MsgEntryFlagsUpdate:
		m.EntryID, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		var flagByte uint8
		flagByte, pos, err = Uint8(buf, pos)
		m.EntryFlags = EntryFlags(flagByte)

	case MsgEntryDelete:
		m.EntryID, pos, err = Uint16(buf, pos)

	case MsgRPCExecute, MsgRPCResponse:
		m.RPCDefID, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		m.RPCUniqueID, pos, err = Uint16(buf, pos)
		if err != nil {
			break
		}
		var count uint64
		count, pos, err = Uvarint(buf, pos)
		if err != nil {
			break
		}

		var def *RPCDefinition
		if lookup != nil {
			var ok bool
			def, ok = lookup.LookupRPCDefinition(m.RPCDefID)
			if !ok {
				return Message{}, offset, Invalid, newErr(UnknownRpcDefinition, "rpc", nil)
			}
		}

		var arity []EntryType
		if def != nil {
			if typ == MsgRPCExecute {
				arity = make([]EntryType, len(def.Params))
				for i, p := range def.Params {
					arity[i] = p.Type
				}
			} else {
				arity = make([]EntryType, len(def.Results))
				for i, r := range def.Results {
					arity[i] = r.Type
				}
			}
			if int(count) != len(arity) {
				return Message{}, offset, Invalid, newErr(RpcArityMismatch, "rpc", nil)
			}
		}

		values := make([]Value, count)
		for i := range values {
			var elemType EntryType
			if arity != nil {
				elemType = arity[i]
			} else {
				// No lookup available (e.g. unit tests exercising the
				// codec in isolation): fall back to decoding each
				// value as opaque raw bytes is not possible without a
				// type, so treat absence of lookup for these two
				// message types as a caller error.
				return Message{}, offset, Invalid, newErr(UnknownRpcDefinition, "rpc", nil)
			}
			values[i], pos, err = DecodeValue(buf, pos, elemType)
			if err != nil {
				break
			}
		}
		m.RPCValues = values

	default:
		return Message{}, offset, Invalid, newErr(InvalidType, "message_type", nil)
	}

	if err != nil {
		if wireErr, ok := err.(*Error); ok && wireErr.Kind == Truncated {
			return Message{}, offset, NeedMore, nil
		}
		return Message{}, offset, Invalid, err
	}

	return m, pos, Parsed, nil
}
