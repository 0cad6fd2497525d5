package qap1

// CmdRESP marks a response cmd word, ORed with the response code (spec
// §3/§6.2). RespOK and RespERR below already embed it.
const CmdRESP = 0x10000

// Command codes (spec §6.3).
const (
	CmdLogin            uint32 = 0x01
	CmdVoidEval         uint32 = 0x02
	CmdEval             uint32 = 0x03
	CmdShutdown         uint32 = 0x04
	CmdOpenFile         uint32 = 0x10
	CmdCreateFile       uint32 = 0x11
	CmdCloseFile        uint32 = 0x12
	CmdReadFile         uint32 = 0x13
	CmdWriteFile        uint32 = 0x14
	CmdRemoveFile       uint32 = 0x15
	CmdSetSEXP          uint32 = 0x20
	CmdAssignSEXP       uint32 = 0x21
	CmdDetachSession    uint32 = 0x30
	CmdDetachedVoidEval uint32 = 0x31
	CmdSetBufferSize    uint32 = 0x81
)

// Response codes (spec §6.3); both already embed CmdRESP.
const (
	RespOK  uint32 = 0x10001
	RespERR uint32 = 0x10002
)

// ErrCode occupies the high byte of an ERR response (spec §6.4).
type ErrCode uint32

const (
	ErrAuthFailed   ErrCode = 0x41
	ErrConnBroken   ErrCode = 0x42
	ErrInvCmd       ErrCode = 0x43
	ErrInvPar       ErrCode = 0x44
	ErrIOError      ErrCode = 0x4d
	ErrNotOpen      ErrCode = 0x4e
	ErrAccessDenied ErrCode = 0x4f
	ErrDetachFailed ErrCode = 0x52
	ErrDataOverflow ErrCode = 0x58
	ErrObjectTooBig ErrCode = 0x59
	ErrOutOfMem     ErrCode = 0x5a
)

// RespErrCmd builds the cmd field of an error reply carrying code in its
// status byte: cmd = RESP_ERR | (code << 24), per spec §6.2.
func RespErrCmd(code ErrCode) uint32 {
	return RespERR | (uint32(code) << 24)
}

// RespCode extracts the status byte from a response cmd word built by
// RespErrCmd.
func RespCode(cmd uint32) ErrCode {
	return ErrCode(cmd >> 24)
}

// DT_* parameter type codes (spec §3).
const (
	DTInt        uint8 = 1
	DTChar       uint8 = 2
	DTDouble     uint8 = 3
	DTString     uint8 = 4
	DTBytestream uint8 = 5
	DTSEXP       uint8 = 10
	DTArray      uint8 = 11
	DTLarge      uint8 = largeBit
)

// NodeType identifies a value-tree node's kind (the XT_* codes).
type NodeType uint8

// XT_* value node type codes (spec §3 "Typed value tree").
const (
	XtNull        NodeType = 0
	XtInt         NodeType = 1
	XtDouble      NodeType = 2
	XtStr         NodeType = 3
	XtLang        NodeType = 4
	XtSym         NodeType = 5
	XtBool        NodeType = 6
	XtVector      NodeType = 16
	XtList        NodeType = 17
	XtClos        NodeType = 18
	XtArrayInt    NodeType = 32
	XtArrayDouble NodeType = 33
	XtArrayStr    NodeType = 34
	XtArrayBool   NodeType = 36
	XtRaw         NodeType = 37
	XtUnknown     NodeType = 48
)

// Flag bits ORed into a value node's type byte on the wire.
const (
	XtLarge   uint8 = largeBit
	XtHasAttr uint8 = 0x80
)
