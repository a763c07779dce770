package wire

// EntryType tags the eight value variants an entry can carry.
type EntryType uint8

const (
	TypeBoolean EntryType = iota
	TypeDouble
	TypeString
	TypeRaw
	TypeBooleanArray
	TypeDoubleArray
	TypeStringArray
	TypeRPC
)

func (t EntryType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDouble:
		return "DOUBLE"
	case TypeString:
		return "STRING"
	case TypeRaw:
		return "RAW"
	case TypeBooleanArray:
		return "BOOLEAN_ARRAY"
	case TypeDoubleArray:
		return "DOUBLE_ARRAY"
	case TypeStringArray:
		return "STRING_ARRAY"
	case TypeRPC:
		return "RPC"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the eight recognized entry types.
func (t EntryType) Valid() bool { return t <= TypeRPC }

// maxArrayLen is the maximum element count for the three array variants:
// the count is a single unsigned byte on the wire.
const maxArrayLen = 255

// Value is a tagged union over the eight entry-value variants. Exactly one
// field is meaningful for a given Type; callers should use the typed
// constructors (BoolValue, DoubleValue, ...) rather than populating fields
// directly to keep Type and payload consistent.
type Value struct {
	Type EntryType

	Bool         bool
	DoubleVal    float64
	Str          string
	RawBytes     []byte
	BoolArray    []bool
	DoubleArray  []float64
	StringArray  []string
	RPCDef       *RPCDefinition
}

func BoolValue(v bool) Value                { return Value{Type: TypeBoolean, Bool: v} }
func DoubleValue(v float64) Value           { return Value{Type: TypeDouble, DoubleVal: v} }
func StringValue(v string) Value            { return Value{Type: TypeString, Str: v} }
func RawValue(v []byte) Value               { return Value{Type: TypeRaw, RawBytes: v} }
func BoolArrayValue(v []bool) Value         { return Value{Type: TypeBooleanArray, BoolArray: v} }
func DoubleArrayValue(v []float64) Value    { return Value{Type: TypeDoubleArray, DoubleArray: v} }
func StringArrayValue(v []string) Value     { return Value{Type: TypeStringArray, StringArray: v} }
func RPCValue(def *RPCDefinition) Value     { return Value{Type: TypeRPC, RPCDef: def} }

// EncodeValue appends the wire encoding of v (assumed to already carry the
// correct Type) to buf. It fails with TypeMismatch if v.Type is not one of
// the eight variants, if an array holds more than 255 elements, or if a
// TypeRPC value has a nil RPCDef. It does not check which payload field is
// populated: the field named by v.Type is encoded and the others are ignored.
func EncodeValue(buf []byte, v Value) ([]byte, error) {
	switch v.Type {
	case TypeBoolean:
		return PutBool(buf, v.Bool), nil
	case TypeDouble:
		return PutDouble(buf, v.DoubleVal), nil
	case TypeString:
		return PutString(buf, v.Str), nil
	case TypeRaw:
		return PutRaw(buf, v.RawBytes), nil
	case TypeBooleanArray:
		if len(v.BoolArray) > maxArrayLen {
			return buf, newErr(TypeMismatch, "boolean_array", nil)
		}
		buf = PutUint8(buf, uint8(len(v.BoolArray)))
		for _, b := range v.BoolArray {
			buf = PutBool(buf, b)
		}
		return buf, nil
	case TypeDoubleArray:
		if len(v.DoubleArray) > maxArrayLen {
			return buf, newErr(TypeMismatch, "double_array", nil)
		}
		buf = PutUint8(buf, uint8(len(v.DoubleArray)))
		for _, d := range v.DoubleArray {
			buf = PutDouble(buf, d)
		}
		return buf, nil
	case TypeStringArray:
		if len(v.StringArray) > maxArrayLen {
			return buf, newErr(TypeMismatch, "string_array", nil)
		}
		buf = PutUint8(buf, uint8(len(v.StringArray)))
		for _, s := range v.StringArray {
			buf = PutString(buf, s)
		}
		return buf, nil
	case TypeRPC:
		if v.RPCDef == nil {
			return buf, newErr(TypeMismatch, "rpc", nil)
		}
		def, err := EncodeRPCDefinition(nil, v.RPCDef)
		if err != nil {
			return buf, err
		}
		buf = PutUvarint(buf, uint64(len(def)))
		return append(buf, def...), nil
	default:
		return buf, newErr(TypeMismatch, "value", nil)
	}
}

// DecodeValue decodes a value of the given type at offset. typ must
// already be validated by the caller (framing layer); an invalid typ
// produces InvalidType here as a second line of defense.
func DecodeValue(buf []byte, offset int, typ EntryType) (Value, int, error) {
	switch typ {
	case TypeBoolean:
		b, pos, err := Bool(buf, offset)
		return Value{Type: typ, Bool: b}, pos, err
	case TypeDouble:
		d, pos, err := Double(buf, offset)
		return Value{Type: typ, DoubleVal: d}, pos, err
	case TypeString:
		s, pos, err := String(buf, offset)
		return Value{Type: typ, Str: s}, pos, err
	case TypeRaw:
		r, pos, err := Raw(buf, offset)
		return Value{Type: typ, RawBytes: r}, pos, err
	case TypeBooleanArray:
		n, pos, err := Uint8(buf, offset)
		if err != nil {
			return Value{}, offset, err
		}
		arr := make([]bool, n)
		for i := range arr {
			var b bool
			b, pos, err = Bool(buf, pos)
			if err != nil {
				return Value{}, offset, err
			}
			arr[i] = b
		}
		return Value{Type: typ, BoolArray: arr}, pos, nil
	case TypeDoubleArray:
		n, pos, err := Uint8(buf, offset)
		if err != nil {
			return Value{}, offset, err
		}
		arr := make([]float64, n)
		for i := range arr {
			var d float64
			d, pos, err = Double(buf, pos)
			if err != nil {
				return Value{}, offset, err
			}
			arr[i] = d
		}
		return Value{Type: typ, DoubleArray: arr}, pos, nil
	case TypeStringArray:
		n, pos, err := Uint8(buf, offset)
		if err != nil {
			return Value{}, offset, err
		}
		arr := make([]string, n)
		for i := range arr {
			var s string
			s, pos, err = String(buf, pos)
			if err != nil {
				return Value{}, offset, err
			}
			arr[i] = s
		}
		return Value{Type: typ, StringArray: arr}, pos, nil
	case TypeRPC:
		declLen, pos, err := Uvarint(buf, offset)
		if err != nil {
			return Value{}, offset, err
		}
		end := pos + int(declLen)
		if end < pos || end > len(buf) {
			return Value{}, offset, newErr(Truncated, "rpc", nil)
		}
		def, _, err := DecodeRPCDefinition(buf[:end], pos)
		if err != nil {
			return Value{}, offset, err
		}
		return Value{Type: typ, RPCDef: def}, end, nil
	default:
		return Value{}, offset, newErr(InvalidType, "value", nil)
	}
}
