package qap1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("hello, world")
	raw := EncodeFrame(CmdEval, payload)
	require.Len(t, raw, HeaderSize+len(payload))

	cmd, dof, got, err := ReadFrame(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, CmdEval, cmd)
	require.Equal(t, uint32(0), dof)
	require.Equal(t, payload, got)
}

func TestFrameEmptyPayload(t *testing.T) {
	raw := EncodeFrame(CmdVoidEval, nil)
	require.Len(t, raw, HeaderSize)
	cmd, _, got, err := ReadFrame(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, CmdVoidEval, cmd)
	require.Empty(t, got)
}

func TestReadHeaderOnCleanClose(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrConnClosed)
}

func TestReadHeaderOnTruncatedHeader(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrConnClosed)
}

func TestDrainPayload(t *testing.T) {
	r := bytes.NewReader([]byte("ignored-bytes-here"))
	require.NoError(t, DrainPayload(r, 7))
	rest, _ := ReadPayload(r, uint64(r.Len()))
	require.Equal(t, "bytes-here", string(rest))
}
