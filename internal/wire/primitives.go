package wire

import (
	"encoding/binary"
	"math"
)

// PutString appends a length-prefixed UTF-8 string: LEB128(byteLen) || bytes.
func PutString(buf []byte, s string) []byte {
	buf = PutUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// String decodes a length-prefixed UTF-8 string at offset. Fails with
// Truncated if the declared length would run past the end of buf.
func String(buf []byte, offset int) (string, int, error) {
	n, pos, err := Uvarint(buf, offset)
	if err != nil {
		return "", offset, err
	}
	end := pos + int(n)
	if end < pos || end > len(buf) {
		return "", offset, newErr(Truncated, "string", nil)
	}
	return string(buf[pos:end]), end, nil
}

// PutRaw appends opaque bytes: LEB128(len) || bytes.
func PutRaw(buf []byte, data []byte) []byte {
	buf = PutUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// Raw decodes an opaque byte string at offset, per PutRaw.
func Raw(buf []byte, offset int) ([]byte, int, error) {
	n, pos, err := Uvarint(buf, offset)
	if err != nil {
		return nil, offset, err
	}
	end := pos + int(n)
	if end < pos || end > len(buf) {
		return nil, offset, newErr(Truncated, "raw", nil)
	}
	out := make([]byte, n)
	copy(out, buf[pos:end])
	return out, end, nil
}

// PutBool appends a single byte: 0x01 for true, 0x00 for false.
func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 0x01)
	}
	return append(buf, 0x00)
}

// Bool decodes a single boolean byte at offset.
func Bool(buf []byte, offset int) (bool, int, error) {
	if offset >= len(buf) {
		return false, offset, newErr(Truncated, "bool", nil)
	}
	return buf[offset] != 0, offset + 1, nil
}

// PutDouble appends 8 bytes of IEEE-754 binary64, big-endian.
func PutDouble(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

// Double decodes an 8-byte big-endian IEEE-754 binary64 at offset.
func Double(buf []byte, offset int) (float64, int, error) {
	if offset+8 > len(buf) {
		return 0, offset, newErr(Truncated, "double", nil)
	}
	bits := binary.BigEndian.Uint64(buf[offset : offset+8])
	return math.Float64frombits(bits), offset + 8, nil
}

// PutUint8 appends a single byte.
func PutUint8(buf []byte, v uint8) []byte { return append(buf, v) }

// Uint8 decodes a single byte at offset.
func Uint8(buf []byte, offset int) (uint8, int, error) {
	if offset >= len(buf) {
		return 0, offset, newErr(Truncated, "u8", nil)
	}
	return buf[offset], offset + 1, nil
}

// PutUint16 appends a big-endian 16-bit integer.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Uint16 decodes a big-endian 16-bit integer at offset.
func Uint16(buf []byte, offset int) (uint16, int, error) {
	if offset+2 > len(buf) {
		return 0, offset, newErr(Truncated, "u16", nil)
	}
	return binary.BigEndian.Uint16(buf[offset : offset+2]), offset + 2, nil
}

// PutUint32 appends a big-endian 32-bit integer.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Uint32 decodes a big-endian 32-bit integer at offset.
func Uint32(buf []byte, offset int) (uint32, int, error) {
	if offset+4 > len(buf) {
		return 0, offset, newErr(Truncated, "u32", nil)
	}
	return binary.BigEndian.Uint32(buf[offset : offset+4]), offset + 4, nil
}
