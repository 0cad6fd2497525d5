package qap1

import (
	"bytes"
	"encoding/binary"
	"math"
)

// maxDecodeDepth bounds value-tree recursion so a malicious or corrupt
// peer cannot drive the decoder into a stack overflow (Design Notes,
// "untrusted input handling").
const maxDecodeDepth = 64

// Encode serializes a value-tree node, including its header, per spec §3.
func Encode(n *Node) []byte {
	body := encodeBody(n)
	typeByte := uint8(n.effectiveType())
	if n.Attr != nil {
		typeByte |= XtHasAttr
		attrBuf := Encode(n.Attr)
		full := make([]byte, 0, len(attrBuf)+len(body))
		full = append(full, attrBuf...)
		full = append(full, body...)
		body = full
	}
	return append(encodeHeader(typeByte, uint64(len(body))), body...)
}

// StorageSize reports the exact on-wire size of n, including its header.
// It is defined as len(Encode(n)) rather than a parallel size computation
// so the storage-size invariant (spec §8, Testable Property 3) holds by
// construction and the two paths cannot drift apart.
func StorageSize(n *Node) uint64 {
	return uint64(len(Encode(n)))
}

func encodeBody(n *Node) []byte {
	switch n.Type {
	case XtNull:
		return nil
	case XtInt:
		buf := make([]byte, 4)
		v := int32(0)
		if len(n.Ints) > 0 {
			v = n.Ints[0]
		}
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return buf
	case XtArrayInt:
		buf := make([]byte, 4*len(n.Ints))
		for i, v := range n.Ints {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
		}
		return buf
	case XtDouble:
		buf := make([]byte, 8)
		v := 0.0
		if len(n.Doubles) > 0 {
			v = n.Doubles[0]
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return buf
	case XtArrayDouble:
		buf := make([]byte, 8*len(n.Doubles))
		for i, v := range n.Doubles {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		return buf
	case XtBool:
		b := BoolNA
		if len(n.Bools) > 0 {
			b = n.Bools[0]
		}
		padded := make([]byte, 4)
		padded[0] = byte(b)
		return padded
	case XtArrayBool:
		body := make([]byte, 0, roundUp4(uint64(len(n.Bools))+4))
		countBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(countBuf, uint32(len(n.Bools)))
		body = append(body, countBuf...)
		for _, b := range n.Bools {
			body = append(body, byte(b))
		}
		for uint64(len(body)) < roundUp4(uint64(len(body))) {
			body = append(body, 0xff)
		}
		return body
	case XtStr:
		buf := make([]byte, roundUp4(uint64(len(n.Str))+1))
		copy(buf, n.Str)
		return buf
	case XtArrayStr:
		var body []byte
		for _, s := range n.Strs {
			body = append(body, []byte(s)...)
			body = append(body, 0)
		}
		for uint64(len(body)) < roundUp4(uint64(len(body))) {
			body = append(body, 0)
		}
		return body
	case XtRaw:
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(n.Raw)))
		body := append(lenBuf, n.Raw...)
		for uint64(len(body)) < roundUp4(uint64(len(body))) {
			body = append(body, 0)
		}
		return body
	case XtVector, XtList, XtLang, XtClos, XtSym:
		var body []byte
		for _, c := range n.Children {
			body = append(body, Encode(c)...)
		}
		return body
	case XtUnknown:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, n.Unknown)
		return buf
	default:
		return nil
	}
}

// Decode parses one value-tree node from the front of buf, returning the
// number of bytes consumed. It delegates to decodeAt with depth 0.
func Decode(buf []byte) (*Node, int, error) {
	return decodeAt(buf, 0)
}

func decodeAt(buf []byte, depth int) (*Node, int, error) {
	if depth > maxDecodeDepth {
		return nil, 0, ErrMaxDepth
	}
	h, consumed, err := decodeHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(buf)-consumed) < h.Length {
		return nil, 0, ErrTruncated
	}
	body := buf[consumed : consumed+int(h.Length)]
	total := consumed + int(h.Length)

	var attr *Node
	typeByte := h.TypeByte
	if typeByte&XtHasAttr != 0 {
		typeByte &^= XtHasAttr
		a, n, err := decodeAt(body, depth+1)
		if err != nil {
			return nil, 0, err
		}
		attr = a
		body = body[n:]
	}

	n := &Node{Type: NodeType(typeByte), Attr: attr}
	if err := decodeBody(n, body, depth); err != nil {
		return nil, 0, err
	}
	return n, total, nil
}

func decodeBody(n *Node, body []byte, depth int) error {
	switch n.Type {
	case XtNull:
		return nil
	case XtInt:
		if len(body) < 4 {
			return ErrTruncated
		}
		n.Ints = []int32{int32(binary.LittleEndian.Uint32(body))}
		return nil
	case XtArrayInt:
		if len(body)%4 != 0 {
			return ErrTruncated
		}
		n.Ints = make([]int32, len(body)/4)
		for i := range n.Ints {
			n.Ints[i] = int32(binary.LittleEndian.Uint32(body[i*4:]))
		}
		return nil
	case XtDouble:
		if len(body) < 8 {
			return ErrTruncated
		}
		n.Doubles = []float64{math.Float64frombits(binary.LittleEndian.Uint64(body))}
		return nil
	case XtArrayDouble:
		if len(body)%8 != 0 {
			return ErrTruncated
		}
		n.Doubles = make([]float64, len(body)/8)
		for i := range n.Doubles {
			n.Doubles[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
		}
		return nil
	case XtBool:
		if len(body) < 1 {
			return ErrTruncated
		}
		n.Bools = []Bool{Bool(body[0])}
		return nil
	case XtArrayBool:
		if len(body) < 4 {
			return ErrTruncated
		}
		count := binary.LittleEndian.Uint32(body[0:4])
		if uint64(len(body)-4) < uint64(count) {
			return ErrTruncated
		}
		n.Bools = make([]Bool, count)
		for i := range n.Bools {
			n.Bools[i] = Bool(body[4+i])
		}
		return nil
	case XtStr:
		n.Str = DecodeStringParam(body)
		return nil
	case XtArrayStr:
		n.Strs = splitCStrings(body)
		return nil
	case XtRaw:
		if len(body) < 4 {
			return ErrTruncated
		}
		rawLen := binary.LittleEndian.Uint32(body[0:4])
		if uint64(len(body)-4) < uint64(rawLen) {
			return ErrTruncated
		}
		n.Raw = append([]byte(nil), body[4:4+rawLen]...)
		return nil
	case XtVector, XtList, XtLang, XtClos, XtSym:
		want := expectedChildren(n.Type)
		children, err := decodeChildren(body, want, depth)
		if err != nil {
			return err
		}
		n.Children = children
		return nil
	case XtUnknown:
		if len(body) < 4 {
			return ErrTruncated
		}
		n.Unknown = binary.LittleEndian.Uint32(body)
		return nil
	default:
		n.Unknown = uint32(n.Type)
		n.Type = XtUnknown
		return nil
	}
}

// expectedChildren reports how many children a composite node type
// requires, or -1 for XT_VECTOR's unbounded child list (spec §3).
func expectedChildren(t NodeType) int {
	switch t {
	case XtList, XtLang:
		return 3
	case XtClos:
		return 2
	case XtSym:
		return 1
	default:
		return -1
	}
}

func decodeChildren(body []byte, want int, depth int) ([]*Node, error) {
	var children []*Node
	for len(body) > 0 {
		if want >= 0 && len(children) >= want {
			break
		}
		c, n, err := decodeAt(body, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
		body = body[n:]
	}
	if want >= 0 && len(children) != want {
		return nil, ErrInvalidParam
	}
	return children, nil
}

// splitCStrings splits an XT_ARRAY_STR body on NUL bytes and drops the
// trailing empty tokens produced by 4-byte padding, per spec §3: the body
// is a run of NUL-terminated strings padded with additional NUL bytes to
// reach a 4-byte boundary, and that padding must not be read back as
// extra empty-string elements.
func splitCStrings(body []byte) []string {
	parts := bytes.Split(body, []byte{0})
	// bytes.Split on a NUL-terminated, NUL-padded body always yields a
	// trailing empty element for the final terminator, plus one more per
	// padding byte; trim all of them.
	for len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}
