package wire

// maxLEB128Groups bounds the number of 7-bit groups accepted when decoding
// an unsigned LEB128 integer. 10 groups cover a full uint64 (70 bits of
// room for 64 bits of payload); anything longer is malformed rather than
// merely truncated.
const maxLEB128Groups = 10

// PutUvarint appends the unsigned LEB128 encoding of v to buf and returns
// the extended slice. Zero encodes as a single 0x00 byte.
func PutUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// Uvarint decodes an unsigned LEB128 integer from buf starting at offset.
// On success it returns the value and the offset just past the encoded
// bytes. On failure it returns a *Error with Kind Truncated (buffer ended
// before a terminating byte) or Malformed (more than maxLEB128Groups
// groups were seen) and leaves offset semantics up to the caller — no
// bytes are considered consumed on failure.
func Uvarint(buf []byte, offset int) (uint64, int, error) {
	var result uint64
	var shift uint
	pos := offset

	for groups := 0; ; groups++ {
		if pos >= len(buf) {
			return 0, offset, newErr(Truncated, "leb128", nil)
		}
		if groups >= maxLEB128Groups {
			return 0, offset, newErr(Malformed, "leb128", nil)
		}

		b := buf[pos]
		pos++
		result |= uint64(b&0x7f) << shift

		if b&0x80 == 0 {
			return result, pos, nil
		}
		shift += 7
	}
}
