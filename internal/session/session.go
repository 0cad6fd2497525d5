// Package session implements the per-connection state machine (spec
// §4.5): greeting, optional authentication, command dispatch, evaluation,
// and buffer elasticity, driving one isolated connection end to end.
package session

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/op/go-logging"

	"github.com/cran/rserve-go/internal/auth"
	"github.com/cran/rserve-go/internal/engine"
	"github.com/cran/rserve-go/internal/filehandle"
	"github.com/cran/rserve-go/internal/qap1"
	"github.com/cran/rserve-go/internal/workdir"
)

// state is the session's position in Greet -> (Unauth | Dispatch) ->
// Terminated (spec §4.5).
type state int

const (
	stateGreet state = iota
	stateUnauth
	stateDispatch
	stateTerminated
)

// Config bundles everything a Session needs that comes from the
// listener's configuration rather than from the connection itself.
type Config struct {
	AuthRequired bool
	Plaintext    bool
	FileIO       bool
	MaxInBuf     int
	MaxSendBuf   int
	Authr        *auth.Authenticator
	AuthMode     auth.Mode
	Engine       engine.Engine
}

const (
	defaultSendBufSize = 2 << 20 // 2 MiB, spec §3
	minSendBufSize     = 32 * 1024
	initialInBufSize   = 32 * 1024
)

// Session drives one connection's read-dispatch-write loop. Every field
// here is connection-local; per the isolation decision in DESIGN.md, no
// package-level mutable state exists anywhere in this package.
type Session struct {
	id     uint64
	corrID string
	conn   net.Conn
	cfg    Config
	log    *logging.Logger

	state       state
	salt        string
	sendBufSize int
	inBufSize   int

	env     *engine.Env
	fh      *filehandle.Handle
	sandbox *workdir.Sandbox

	active bool // CMD_shutdown sets this false; the listener checks it
}

// New constructs a Session for a freshly accepted connection. id is the
// listener's monotonically increasing connection index (spec §3).
func New(conn net.Conn, id uint64, cfg Config, sandbox *workdir.Sandbox, log *logging.Logger) *Session {
	return &Session{
		id:          id,
		conn:        conn,
		cfg:         cfg,
		log:         log,
		sendBufSize: defaultSendBufSize,
		inBufSize:   initialInBufSize,
		env:         engine.NewEnv(),
		fh:          filehandle.New(sandbox.Path()),
		sandbox:     sandbox,
		active:      true,
	}
}

// Active reports whether CMD_shutdown has been received on this session.
func (s *Session) Active() bool { return s.active }

// SetCorrelationID attaches an external correlation identifier (generated
// by the listener) that is folded into every log line this session emits,
// independent of the sequential connection index used for workdir naming.
func (s *Session) SetCorrelationID(id string) { s.corrID = id }

// logPrefix renders the connection identity shared by every log line: the
// sequential index plus, when set, the external correlation ID.
func (s *Session) logPrefix() string {
	if s.corrID == "" {
		return fmt.Sprintf("conn %d", s.id)
	}
	return fmt.Sprintf("conn %d [%s]", s.id, s.corrID)
}

// Run drives the session to completion: greeting, then the dispatch
// loop, until the connection closes or a terminal command is handled.
func (s *Session) Run() {
	defer s.sandbox.Close()
	defer s.fh.Close()
	// Not defer s.conn.Close(): detach() swaps s.conn mid-session, and a
	// bound method value would capture the pre-swap connection.
	defer func() { s.conn.Close() }()

	if err := s.greet(); err != nil {
		s.log.Debugf("%s: greet: %v", s.logPrefix(), err)
		return
	}

	for s.state != stateTerminated {
		if err := s.step(); err != nil {
			if !errors.Is(err, qap1.ErrConnClosed) && !errors.Is(err, io.EOF) {
				s.log.Debugf("%s: %v", s.logPrefix(), err)
			}
			return
		}
	}
}

// greet sends the 32-byte handshake (spec §6.1) and sets the initial
// state.
func (s *Session) greet() error {
	buf := make([]byte, 32)
	copy(buf[0:12], "Rsrv0102QAP1")
	copy(buf[12:16], "\r\n\r\n")
	for i := 16; i < 32; i++ {
		buf[i] = '-'
	}
	buf[30], buf[31] = '\r', '\n'

	if s.cfg.AuthRequired {
		salt, err := auth.NewSalt()
		if err != nil {
			return err
		}
		s.salt = salt
		copy(buf[16:], capabilityTokens(salt, s.cfg.Plaintext))
		s.state = stateUnauth
	} else {
		s.state = stateDispatch
	}
	_, err := s.conn.Write(buf)
	return err
}

// capabilityTokens renders the 16-byte capability area of the handshake
// when auth is required (spec §6.1): "ARuc" + "K" <salt1> <salt2> " "
// (8 bytes), optionally followed by "ARpt" + a 4-byte pad (8 bytes).
func capabilityTokens(salt string, plaintext bool) []byte {
	tok := []byte("ARuc")
	tok = append(tok, 'K', salt[0], salt[1], ' ')
	if plaintext {
		tok = append(tok, []byte("ARpt\x00\x00\x00\x00")...)
	}
	return tok
}

// step reads one frame and dispatches it.
func (s *Session) step() error {
	hdr, err := qap1.ReadHeader(s.conn)
	if err != nil {
		return err
	}
	payloadLen := hdr.PayloadLen()

	if int(payloadLen) >= s.inBufSize {
		s.inBufSize = int((payloadLen | 0x1fff) + 1)
	}
	if s.cfg.MaxInBuf > 0 && payloadLen >= uint64(s.cfg.MaxInBuf) {
		if err := qap1.DrainPayload(s.conn, payloadLen); err != nil {
			return err
		}
		return s.replyErr(qap1.ErrDataOverflow)
	}

	payload, err := qap1.ReadPayload(s.conn, payloadLen)
	if err != nil {
		return err
	}
	if s.log.IsEnabledFor(logging.DEBUG) {
		s.log.Debugf("%s: cmd=0x%x dof=%d payload=%s", s.logPrefix(), hdr.Cmd, hdr.Dof, hex.EncodeToString(payload))
	}

	if s.state == stateUnauth && hdr.Cmd != qap1.CmdLogin && hdr.Cmd != qap1.CmdShutdown {
		if err := s.replyErr(qap1.ErrAuthFailed); err != nil {
			return err
		}
		s.state = stateTerminated
		return nil
	}

	return s.dispatch(hdr, payload)
}

func (s *Session) dispatch(hdr qap1.Header, payload []byte) error {
	params, err := qap1.IterParams(payload, hdr.Dof, true)
	if err != nil {
		return s.replyErr(qap1.ErrInvPar)
	}

	switch hdr.Cmd {
	case qap1.CmdLogin:
		return s.handleLogin(params)
	case qap1.CmdVoidEval:
		return s.handleEval(params, false)
	case qap1.CmdEval:
		return s.handleEval(params, true)
	case qap1.CmdDetachedVoidEval:
		return s.handleDetachedVoidEval(params)
	case qap1.CmdSetSEXP:
		return s.handleSetSEXP(params, false)
	case qap1.CmdAssignSEXP:
		return s.handleSetSEXP(params, true)
	case qap1.CmdOpenFile:
		return s.handleFileOpen(params, false)
	case qap1.CmdCreateFile:
		return s.handleFileOpen(params, true)
	case qap1.CmdCloseFile:
		return s.handleFileClose()
	case qap1.CmdReadFile:
		return s.handleFileRead(params)
	case qap1.CmdWriteFile:
		return s.handleFileWrite(params)
	case qap1.CmdRemoveFile:
		return s.handleFileRemove(params)
	case qap1.CmdSetBufferSize:
		return s.handleSetBufferSize(params)
	case qap1.CmdDetachSession:
		return s.handleDetachSession()
	case qap1.CmdShutdown:
		s.active = false
		s.state = stateTerminated
		return s.replyOK(nil)
	default:
		return s.replyErr(qap1.ErrInvCmd)
	}
}

func (s *Session) replyOK(payload []byte) error {
	_, err := s.conn.Write(qap1.EncodeFrame(qap1.RespOK, payload))
	return err
}

func (s *Session) replyErr(code qap1.ErrCode) error {
	_, err := s.conn.Write(qap1.EncodeFrame(qap1.RespErrCmd(code), nil))
	return err
}

// replyObjectTooBig builds the ERR_object_too_big reply body: the
// attempted size, clamped to 0xffffffff (spec §4.5, §9).
func (s *Session) replyObjectTooBig(attempted uint64) error {
	if attempted > 0xffffffff {
		attempted = 0xffffffff
	}
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, uint32(attempted))
	_, err := s.conn.Write(qap1.EncodeFrame(qap1.RespErrCmd(qap1.ErrObjectTooBig), body))
	return err
}
