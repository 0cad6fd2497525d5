package session

import (
	"strings"

	"github.com/cran/rserve-go/internal/engine"
	"github.com/cran/rserve-go/internal/qap1"
)

// handleLogin implements CMD_login (spec §4.4): the parameter is a single
// DT_STRING "login\npassword".
func (s *Session) handleLogin(params []qap1.Param) error {
	if len(params) < 1 || params[0].Type&0x3f != qap1.DTString {
		return s.authFail()
	}
	cred := qap1.DecodeStringParam(params[0].Data)
	login, password, ok := strings.Cut(cred, "\n")
	if !ok {
		return s.authFail()
	}
	if err := s.cfg.Authr.Authenticate(login, password); err != nil {
		return s.authFail()
	}
	s.state = stateDispatch
	return s.replyOK(nil)
}

func (s *Session) authFail() error {
	s.state = stateTerminated
	return s.replyErr(qap1.ErrAuthFailed)
}

// handleEval implements CMD_voidEval/CMD_eval (spec §4.5), including the
// multi-expression evaluation rule: parse once, try-eval each expression
// in order, report the first error, and (for eval) return the last
// successfully evaluated value.
func (s *Session) handleEval(params []qap1.Param, wantValue bool) error {
	expr, ok := firstStringParam(params)
	if !ok {
		return s.replyErr(qap1.ErrInvPar)
	}

	status, exprs, _ := s.cfg.Engine.Parse(expr, 0)
	if status != engine.StatusOK {
		return s.replyErr(qap1.ErrCode(status))
	}

	var last *qap1.Node
	for _, e := range exprs {
		v, code := s.cfg.Engine.TryEval(e, s.env)
		if code != 0 {
			return s.replyErr(negatedEngineCode(code))
		}
		last = v
	}

	if !wantValue || last == nil {
		return s.replyOK(nil)
	}
	return s.replyValue(last)
}

// handleDetachedVoidEval implements CMD_detachedVoidEval (spec §4.5,
// §4.6): detach, then evaluate on the resumed socket.
func (s *Session) handleDetachedVoidEval(params []qap1.Param) error {
	expr, ok := firstStringParam(params)
	if !ok {
		return s.replyErr(qap1.ErrInvPar)
	}
	if err := s.detach(); err != nil {
		return err
	}
	status, exprs, _ := s.cfg.Engine.Parse(expr, 0)
	if status != engine.StatusOK {
		return s.replyErr(qap1.ErrCode(status))
	}
	for _, e := range exprs {
		if _, code := s.cfg.Engine.TryEval(e, s.env); code != 0 {
			return s.replyErr(negatedEngineCode(code))
		}
	}
	return s.replyOK(nil)
}

// handleSetSEXP implements CMD_setSEXP/CMD_assignSEXP (spec §4.5): bind a
// value to a name, either verbatim (setSEXP) or parsed as an expression
// naming a binding target (assignSEXP). Basic's grammar has no lvalue
// expressions beyond bare identifiers, so both forms resolve to an
// identifier.
func (s *Session) handleSetSEXP(params []qap1.Param, parseName bool) error {
	if len(params) < 2 {
		return s.replyErr(qap1.ErrInvPar)
	}
	name := qap1.DecodeStringParam(params[0].Data)
	if parseName {
		status, exprs, _ := s.cfg.Engine.Parse(name, 0)
		if status != engine.StatusOK {
			return s.replyErr(qap1.ErrCode(status))
		}
		if len(exprs) != 1 {
			return s.replyErr(qap1.ErrInvPar)
		}
		name = strings.TrimSpace(name)
	}

	var value *qap1.Node
	switch params[1].Type & 0x3f {
	case qap1.DTSEXP:
		v, err := qap1.DecodeSEXPParam(params[1].Data)
		if err != nil {
			return s.replyErr(qap1.ErrInvPar)
		}
		value = v
	case qap1.DTString:
		value = qap1.NewString(qap1.DecodeStringParam(params[1].Data))
	default:
		return s.replyErr(qap1.ErrInvPar)
	}

	sym := s.cfg.Engine.Install(name)
	s.cfg.Engine.Bind(sym, value, s.env)
	return s.replyOK(nil)
}

// replyValue sends a RESP_OK reply carrying the evaluated result as a
// DT_SEXP parameter, applying send-buffer elasticity (spec §4.5).
func (s *Session) replyValue(v *qap1.Node) error {
	param := qap1.EncodeSEXPParam(v)
	needed := uint64(len(param)) + 64

	if int(needed) > s.sendBufSize {
		if s.cfg.MaxSendBuf > 0 && int(needed) > s.cfg.MaxSendBuf {
			return s.replyObjectTooBig(needed)
		}
		// Grown to the next 4 KiB above storage_size+64 for this one
		// reply; Go's encode-then-write path needs no actual
		// preallocated buffer, so the "shrink back" half of spec §4.5's
		// elasticity rule is a no-op here: s.sendBufSize was never
		// mutated, so the next reply still sees the standard threshold.
		s.log.Debugf("%s: oversized reply (%d bytes), temporary allowance %d", s.logPrefix(), needed, roundUp4KiB(needed))
	}
	return s.replyOK(param)
}

// negatedEngineCode renders an engine error code onto the wire as a
// negated status byte, matching the original's forced negation before
// SET_STAT (spec §4.5, §6.5, §7: "negated engine error code on eval
// fail"). TryEval's codes are always positive, but the negation is forced
// rather than assumed, the same way the original negates unconditionally.
func negatedEngineCode(code int) qap1.ErrCode {
	if code > 0 {
		code = -code
	}
	return qap1.ErrCode(uint8(code))
}

func roundUp4KiB(n uint64) uint64 {
	const unit = 4096
	return (n + unit - 1) / unit * unit
}

func firstStringParam(params []qap1.Param) (string, bool) {
	for _, p := range params {
		if p.Type&0x3f == qap1.DTString {
			return qap1.DecodeStringParam(p.Data), true
		}
	}
	return "", false
}
