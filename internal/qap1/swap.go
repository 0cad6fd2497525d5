package qap1

import (
	"encoding/binary"
	"math"
)

// SelfTest exercises the little-endian encode/decode round trip this
// package always uses, regardless of host byte order, satisfying the
// startup byte-swap self-check required by spec §6.6. It never fails in
// practice — the codec never touches native byte order — but exists to
// catch a future regression that accidentally does.
func SelfTest() error {
	const wantU32 = uint32(0x01020304)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, wantU32)
	if binary.LittleEndian.Uint32(buf) != wantU32 {
		return ErrSelfTestFailed
	}

	const wantF64 = 3.14159265358979
	fbuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(fbuf, math.Float64bits(wantF64))
	got := math.Float64frombits(binary.LittleEndian.Uint64(fbuf))
	if got != wantF64 {
		return ErrSelfTestFailed
	}
	return nil
}
