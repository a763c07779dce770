package wire

// RPCDefinitionVersion is the only version byte this client understands.
const RPCDefinitionVersion = 0x01

// ParamSpec describes one RPC parameter: its type, name, and default
// value (used by the server to pre-populate a call form; always of Type).
type ParamSpec struct {
	Type    EntryType
	Name    string
	Default Value
}

// ResultSpec describes one RPC result slot: type and name only. Per
// §4.3/§4.9, result specs never carry a default, so ResultSpec has no
// value field — results are typed, not valued, in the definition itself.
type ResultSpec struct {
	Type EntryType
	Name string
}

// RPCDefinition is the recursive value embedded by a TypeRPC entry: a
// named procedure signature with ordered parameter and result specs.
type RPCDefinition struct {
	Name    string
	Params  []ParamSpec
	Results []ResultSpec
}

// EncodeRPCDefinition appends the serialized definition body (§4.3,
// points 1-6) to buf: version byte, name, parameter specs each with a
// default value, result specs without defaults.
func EncodeRPCDefinition(buf []byte, def *RPCDefinition) ([]byte, error) {
	if len(def.Params) > 255 || len(def.Results) > 255 {
		return buf, newErr(TypeMismatch, "rpc_definition_arity", nil)
	}

	buf = PutUint8(buf, RPCDefinitionVersion)
	buf = PutString(buf, def.Name)

	buf = PutUint8(buf, uint8(len(def.Params)))
	for _, p := range def.Params {
		buf = PutUint8(buf, uint8(p.Type))
		buf = PutString(buf, p.Name)
		var err error
		buf, err = EncodeValue(buf, p.Default)
		if err != nil {
			return buf, err
		}
	}

	buf = PutUint8(buf, uint8(len(def.Results)))
	for _, r := range def.Results {
		buf = PutUint8(buf, uint8(r.Type))
		buf = PutString(buf, r.Name)
	}

	return buf, nil
}

// DecodeRPCDefinition decodes a definition body at offset, returning the
// definition and the offset just past it. buf is expected to be bounded
// exactly to the definition's declared length by the caller (the enclosing
// TypeRPC value framing); this function still checks each field against
// buf's actual length as a second line of defense.
func DecodeRPCDefinition(buf []byte, offset int) (*RPCDefinition, int, error) {
	version, pos, err := Uint8(buf, offset)
	if err != nil {
		return nil, offset, err
	}
	if version != RPCDefinitionVersion {
		return nil, offset, newErr(UnsupportedRpcVersion, "rpc_definition", nil)
	}

	name, pos, err := String(buf, pos)
	if err != nil {
		return nil, offset, err
	}

	paramCount, pos, err := Uint8(buf, pos)
	if err != nil {
		return nil, offset, err
	}

	params := make([]ParamSpec, paramCount)
	for i := range params {
		var typByte uint8
		typByte, pos, err = Uint8(buf, pos)
		if err != nil {
			return nil, offset, err
		}
		typ := EntryType(typByte)
		if !typ.Valid() {
			return nil, offset, newErr(InvalidType, "rpc_param_type", nil)
		}

		var pname string
		pname, pos, err = String(buf, pos)
		if err != nil {
			return nil, offset, err
		}

		var def Value
		def, pos, err = DecodeValue(buf, pos, typ)
		if err != nil {
			return nil, offset, err
		}

		params[i] = ParamSpec{Type: typ, Name: pname, Default: def}
	}

	resultCount, pos, err := Uint8(buf, pos)
	if err != nil {
		return nil, offset, err
	}

	results := make([]ResultSpec, resultCount)
	for i := range results {
		var typByte uint8
		typByte, pos, err = Uint8(buf, pos)
		if err != nil {
			return nil, offset, err
		}
		typ := EntryType(typByte)
		if !typ.Valid() {
			return nil, offset, newErr(InvalidType, "rpc_result_type", nil)
		}

		var rname string
		rname, pos, err = String(buf, pos)
		if err != nil {
			return nil, offset, err
		}

		results[i] = ResultSpec{Type: typ, Name: rname}
	}

	return &RPCDefinition{Name: name, Params: params, Results: results}, pos, nil
}
