package session

import (
	"github.com/cran/rserve-go/internal/detach"
	"github.com/cran/rserve-go/internal/qap1"
)

// handleDetachSession implements CMD_detachSession (spec §4.6).
func (s *Session) handleDetachSession() error {
	if err := s.detach(); err != nil {
		return err
	}
	return s.replyOK(nil)
}

// detach parks the session on a fresh listener, replies to the current
// connection with the resumption ticket, closes that connection, and
// swaps s.conn for the resumed connection once a matching client
// reconnects. If the listener cannot be opened it replies
// ERR_detach_failed and keeps the current connection. Once the ticket has
// been sent, a failed resume returns the error, which ends the session.
func (s *Session) detach() error {
	ticket, ln, err := detach.Begin(s.conn, s.log)
	if err != nil {
		return s.replyErr(qap1.ErrDetachFailed)
	}

	payload := append(qap1.EncodeIntParam(int32(ticket.Port)), qap1.EncodeBytestreamParam(ticket.Key[:])...)
	if err := s.replyOK(payload); err != nil {
		ln.Close()
		return err
	}

	orig := s.conn
	orig.Close()
	resumed, err := detach.Resume(ln, orig, ticket, s.log)
	if err != nil {
		return err
	}
	s.conn = resumed
	return nil
}
