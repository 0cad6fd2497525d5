package qap1

import (
	"bytes"
	"encoding/binary"
)

// Param is one TLV parameter from a frame payload (spec §3 "Payload
// parameter").
type Param struct {
	Type  uint8
	Data  []byte
	Large bool
}

// maxParams bounds how many parameters IterParams will emit from a single
// payload (spec §4.1).
const maxParams = 16

// IterParams scans payload starting at offset dof, emitting at most 16
// parameters. The scan stops early on a zero-valued header word. If
// requireAligned is set, any parameter following one whose length was not
// a multiple of 4 is refused with ErrUnaligned, matching spec §4.1's
// architecture-dependent alignment requirement.
func IterParams(payload []byte, dof uint32, requireAligned bool) ([]Param, error) {
	if uint64(dof) > uint64(len(payload)) {
		return nil, ErrInvalidParam
	}
	buf := payload[dof:]
	var params []Param
	unaligned := false
	for len(buf) > 0 && len(params) < maxParams {
		if len(buf) >= 4 && binary.LittleEndian.Uint32(buf[0:4]) == 0 {
			break
		}
		hdr, consumed, err := decodeHeader(buf)
		if err != nil {
			return nil, ErrInvalidParam
		}
		if uint64(len(buf)-consumed) < hdr.Length {
			return nil, ErrInvalidParam
		}
		if unaligned && requireAligned {
			return nil, ErrUnaligned
		}
		data := buf[consumed : consumed+int(hdr.Length)]
		params = append(params, Param{Type: hdr.TypeByte, Data: data, Large: hdr.Large})
		if hdr.Length%4 != 0 {
			unaligned = true
		}
		buf = buf[consumed+int(hdr.Length):]
	}
	return params, nil
}

// EncodeParam serializes one TLV parameter, choosing the large header
// form automatically.
func EncodeParam(typeByte uint8, data []byte) []byte {
	return append(encodeHeader(typeByte, uint64(len(data))), data...)
}

// EncodeStringParam builds a DT_STRING parameter: a NUL-terminated string
// padded to a 4-byte boundary.
func EncodeStringParam(s string) []byte {
	buf := make([]byte, roundUp4(uint64(len(s))+1))
	copy(buf, s)
	return EncodeParam(DTString, buf)
}

// DecodeStringParam extracts the NUL-terminated string from a DT_STRING
// parameter's data.
func DecodeStringParam(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// EncodeIntParam builds a DT_INT parameter.
func EncodeIntParam(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return EncodeParam(DTInt, buf)
}

// DecodeIntParam parses a DT_INT parameter's data.
func DecodeIntParam(data []byte) (int32, error) {
	if len(data) < 4 {
		return 0, ErrInvalidParam
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// EncodeBytestreamParam builds a DT_BYTESTREAM parameter.
func EncodeBytestreamParam(b []byte) []byte {
	return EncodeParam(DTBytestream, b)
}

// EncodeSEXPParam builds a DT_SEXP parameter wrapping an encoded value
// tree.
func EncodeSEXPParam(n *Node) []byte {
	return EncodeParam(DTSEXP, Encode(n))
}

// DecodeSEXPParam decodes a DT_SEXP parameter's data into a value tree.
func DecodeSEXPParam(data []byte) (*Node, error) {
	n, _, err := Decode(data)
	return n, err
}
