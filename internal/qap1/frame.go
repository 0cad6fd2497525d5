package qap1

import (
	"encoding/binary"
	"io"
)

// HeaderSize is the fixed frame header length (spec §3).
const HeaderSize = 16

// Header is a frame's fixed 16-byte header.
type Header struct {
	Cmd uint32
	Len uint32
	Dof uint32
	Res uint32
}

// PayloadLen reassembles the full 48-bit-capable payload length from Len
// (low 32 bits) and Res (high 32 bits).
func (h Header) PayloadLen() uint64 {
	return uint64(h.Len) | (uint64(h.Res) << 32)
}

// EncodeFrame builds a complete frame: header followed by payload, with
// Dof always 0 and Len/Res derived from the payload size, per spec §4.1.
func EncodeFrame(cmd uint32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	n := uint64(len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], cmd)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n))
	binary.LittleEndian.PutUint32(buf[8:12], 0)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(n>>32))
	copy(buf[HeaderSize:], payload)
	return buf
}

// ReadHeader reads exactly 16 header bytes from r. Per spec §4.1, any
// short read — including a clean zero-byte close — is treated as the
// connection being closed, not as a distinct protocol error.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, ErrConnClosed
	}
	return Header{
		Cmd: binary.LittleEndian.Uint32(buf[0:4]),
		Len: binary.LittleEndian.Uint32(buf[4:8]),
		Dof: binary.LittleEndian.Uint32(buf[8:12]),
		Res: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// ReadPayload reads exactly n bytes following a header read with
// ReadHeader.
func ReadPayload(r io.Reader, n uint64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrConnClosed
	}
	return buf, nil
}

// DrainPayload reads and discards n bytes without retaining them, used
// when a frame's declared payload exceeds the session's configured input
// buffer limit (spec §4.5).
func DrainPayload(r io.Reader, n uint64) error {
	if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
		return ErrConnClosed
	}
	return nil
}

// ReadFrame composes ReadHeader and ReadPayload for callers that don't
// need the session state machine's elastic-buffer and overflow handling
// (tests, the demo client).
func ReadFrame(r io.Reader) (cmd uint32, dof uint32, payload []byte, err error) {
	h, err := ReadHeader(r)
	if err != nil {
		return 0, 0, nil, err
	}
	payload, err = ReadPayload(r, h.PayloadLen())
	if err != nil {
		return 0, 0, nil, err
	}
	return h.Cmd, h.Dof, payload, nil
}
