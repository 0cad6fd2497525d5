// Package detach implements the session detach/resume subsystem (spec
// §4.6): parking an authenticated session on a fresh listening socket and
// validating the client that reconnects to resume it.
package detach

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"

	"github.com/op/go-logging"
)

// KeySize is the length, in bytes, of a session resumption key.
const KeySize = 32

// portLow/portHigh bound the random port range a detach listener binds
// to (spec §4.6 step 3).
const (
	portLow  = 32768
	portHigh = 65000
)

// listenBacklog matches the spec's LISTENQ constant (§4.6 step 3, §4.7).
const listenBacklog = 16

// ErrDetachFailed is wrapped into the error returned when every port
// attempt hits EADDRINUSE and when Resume's Accept fails. Other bind
// errors are returned without it, and a resume attempt from the wrong IP
// or with the wrong key is rejected without returning an error.
var ErrDetachFailed = errors.New("detach: failed")

// Ticket is what the client needs to resume a detached session.
type Ticket struct {
	Port uint16
	Key  [KeySize]byte
}

// bindRandomPort opens a TCP listener on a random port in
// [portLow, portHigh], retrying on EADDRINUSE, per spec §4.6 step 3.
func bindRandomPort() (net.Listener, error) {
	const maxAttempts = 64
	for attempt := 0; attempt < maxAttempts; attempt++ {
		port := portLow + int(randUint32()%uint32(portHigh-portLow+1))
		lc := net.ListenConfig{}
		ln, err := lc.Listen(nil, "tcp", "0.0.0.0:"+strconv.Itoa(port))
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			// Non-EADDRINUSE errors (permission, out of descriptors) are
			// not worth retrying.
			return nil, fmt.Errorf("detach: bind: %w", err)
		}
	}
	return nil, fmt.Errorf("detach: %w: exhausted port attempts", ErrDetachFailed)
}

func randUint32() uint32 {
	var b [4]byte
	_, _ = io.ReadFull(rand.Reader, b[:])
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Begin opens a fresh listener and ticket for detaching the session on
// conn. The caller is responsible for encoding and sending the ticket to
// the client, then closing conn, before calling Resume.
func Begin(conn net.Conn, log *logging.Logger) (*Ticket, net.Listener, error) {
	ln, err := bindRandomPort()
	if err != nil {
		return nil, nil, err
	}
	var key [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		ln.Close()
		return nil, nil, fmt.Errorf("detach: generate session key: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	log.Debugf("detach: parked session on port %d", port)
	return &Ticket{Port: uint16(port), Key: key}, ln, nil
}

// peerIP extracts the IP (without port) from a net.Conn's RemoteAddr.
func peerIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// Resume blocks on ln, accepting connections in order, rejecting any
// whose source IP differs from originalPeer and any that fail to present
// the session key within KeySize bytes, per spec §4.6 step 5. It returns
// the first connection that presents a matching key.
func Resume(ln net.Listener, originalPeer net.Conn, ticket *Ticket, log *logging.Logger) (net.Conn, error) {
	wantIP := peerIP(originalPeer)
	defer ln.Close()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil, fmt.Errorf("detach: %w: accept: %v", ErrDetachFailed, err)
		}
		if peerIP(conn) != wantIP {
			log.Warningf("detach: rejecting resume attempt from %s (expected %s)", peerIP(conn), wantIP)
			conn.Close()
			continue
		}
		got := make([]byte, KeySize)
		if _, err := io.ReadFull(conn, got); err != nil {
			conn.Close()
			continue
		}
		if !keysEqual(got, ticket.Key[:]) {
			log.Warningf("detach: rejecting resume attempt from %s: bad key", peerIP(conn))
			conn.Close()
			continue
		}
		return conn, nil
	}
}

func keysEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
