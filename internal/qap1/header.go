package qap1

import "encoding/binary"

// largeBit marks both DT_LARGE (frame parameter headers) and XT_LARGE
// (value node headers) — the spec uses the same bit position and
// extension rule for both, so both are parsed by this one routine (Design
// Notes: "Variable-length encoding... best modeled as a single Header").
const largeBit = 0x40

// maxSmallLength is the largest body length written in the 4-byte small
// header form; anything above it uses the 8-byte large form.
const maxSmallLength = 0xfffff0

// header is the generic 4- or 8-byte TLV header shared by frame
// parameters and value-tree nodes: a little-endian 32-bit word whose high
// 8 bits carry the type (plus any caller-defined flag bits such as
// XT_HAS_ATTR, which the caller masks in/out) and whose low 24 bits carry
// the length, extended by a second little-endian 32-bit word when the
// length exceeds maxSmallLength.
type header struct {
	TypeByte uint8
	Length   uint64
	Large    bool
}

// useLarge reports whether a body of the given length must use the large
// header form, per spec §3: large iff body length is strictly greater
// than 0xfffff0 bytes.
func useLarge(bodyLen uint64) bool {
	return bodyLen > maxSmallLength
}

// encodeHeader serializes typeByte/length, automatically choosing the
// large form when required.
func encodeHeader(typeByte uint8, length uint64) []byte {
	if useLarge(length) {
		buf := make([]byte, 8)
		word0 := uint32(typeByte|largeBit)<<24 | uint32(length&0xffffff)
		binary.LittleEndian.PutUint32(buf[0:4], word0)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(length>>24))
		return buf
	}
	buf := make([]byte, 4)
	word0 := uint32(typeByte)<<24 | uint32(length&0xffffff)
	binary.LittleEndian.PutUint32(buf, word0)
	return buf
}

// decodeHeader parses a header from the front of buf, returning the
// number of bytes it consumed.
func decodeHeader(buf []byte) (h header, consumed int, err error) {
	if len(buf) < 4 {
		return header{}, 0, ErrTruncated
	}
	word0 := binary.LittleEndian.Uint32(buf[0:4])
	typeByte := uint8(word0 >> 24)
	length := uint64(word0 & 0xffffff)
	if typeByte&largeBit == 0 {
		return header{TypeByte: typeByte, Length: length}, 4, nil
	}
	if len(buf) < 8 {
		return header{}, 0, ErrTruncated
	}
	word1 := binary.LittleEndian.Uint32(buf[4:8])
	length |= uint64(word1) << 24
	typeByte &^= largeBit
	return header{TypeByte: typeByte, Length: length, Large: true}, 8, nil
}

func roundUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}
