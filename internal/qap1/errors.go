package qap1

import "errors"

// Sentinel errors returned by the codec. Session-layer code maps these
// onto wire error codes (see internal/session) rather than the codec
// knowing about QAP1 response framing itself.
var (
	ErrConnClosed     = errors.New("qap1: connection closed")
	ErrTruncated      = errors.New("qap1: truncated header")
	ErrInvalidParam   = errors.New("qap1: invalid parameter")
	ErrUnaligned      = errors.New("qap1: unaligned parameter")
	ErrMaxDepth       = errors.New("qap1: value tree exceeds maximum depth")
	ErrSelfTestFailed = errors.New("qap1: byte-swap self-test failed")
)
