// Package listener implements the main accept loop: binding the
// configured socket, enforcing the IP allowlist, and handing each
// accepted connection to its own isolated goroutine running a session
// (spec §4.7).
package listener

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/rs/xid"

	"github.com/cran/rserve-go/internal/auth"
	"github.com/cran/rserve-go/internal/config"
	"github.com/cran/rserve-go/internal/engine"
	"github.com/cran/rserve-go/internal/session"
	"github.com/cran/rserve-go/internal/workdir"
)

// Listener owns the accept loop and per-connection dispatch. Its only
// mutable state is the monotonic connection counter and the shutdown
// flag — per the isolation decision in DESIGN.md, nothing here is shared
// with the per-connection Sessions it spawns.
type Listener struct {
	ln      net.Listener
	cfg     *config.Config
	log     *logging.Logger
	authr   *auth.Authenticator
	engine  engine.Engine
	nextID  uint64
	active  int32
	allowed []net.IP
	wg      sync.WaitGroup
}

// New binds the listening socket described by cfg (TCP or a filesystem
// socket) and returns a Listener ready to Serve.
func New(cfg *config.Config, authr *auth.Authenticator, log *logging.Logger) (*Listener, error) {
	ln, err := bind(cfg)
	if err != nil {
		return nil, err
	}
	allowed := make([]net.IP, 0, len(cfg.Allow))
	for _, a := range cfg.Allow {
		if ip := net.ParseIP(a); ip != nil {
			allowed = append(allowed, ip)
		}
	}
	l := &Listener{
		ln:      ln,
		cfg:     cfg,
		log:     log,
		authr:   authr,
		engine:  engine.NewBasic(),
		allowed: allowed,
	}
	atomic.StoreInt32(&l.active, 1)
	return l, nil
}

func bind(cfg *config.Config) (net.Listener, error) {
	if cfg.Socket != "" {
		ln, err := net.Listen("unix", cfg.Socket)
		if err != nil {
			return nil, fmt.Errorf("listener: bind unix socket %s: %w", cfg.Socket, err)
		}
		return ln, nil
	}
	addr := "127.0.0.1:" + strconv.Itoa(cfg.Port)
	if cfg.Remote {
		addr = "0.0.0.0:" + strconv.Itoa(cfg.Port)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listener: bind %s: %w", addr, err)
	}
	return ln, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Shutdown stops the accept loop and closes the listening socket.
// In-flight sessions are not interrupted (spec §5 "Cancellation").
func (l *Listener) Shutdown() {
	atomic.StoreInt32(&l.active, 0)
	l.ln.Close()
}

// Wait blocks until every spawned session goroutine has returned.
func (l *Listener) Wait() { l.wg.Wait() }

// Serve runs the accept loop until Shutdown is called or ctx is
// cancelled, handing each accepted connection to its own goroutine (spec
// §4.7, §5).
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.Shutdown()
	}()

	_, isTCP := l.ln.(*net.TCPListener)
	for atomic.LoadInt32(&l.active) == 1 {
		conn, err := l.ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&l.active) == 0 {
				return nil
			}
			l.log.Warningf("listener: accept: %v", err)
			continue
		}

		if isTCP && !l.cfg.Remote && !l.allow(conn.RemoteAddr()) {
			l.log.Warningf("listener: rejecting %s: not in allowlist", conn.RemoteAddr())
			conn.Close()
			continue
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		id := atomic.AddUint64(&l.nextID, 1)
		extID := xid.New().String()
		l.log.Infof("conn %d [%s]: accepted from %s", id, extID, conn.RemoteAddr())
		l.wg.Add(1)
		go l.serveConn(conn, id, uuid.New().String())
	}
	return nil
}

func (l *Listener) serveConn(conn net.Conn, id uint64, corrID string) {
	defer l.wg.Done()

	sb, err := workdir.Open(l.cfg.Workdir, id)
	if err != nil {
		l.log.Errorf("conn %d: workdir: %v", id, err)
		conn.Close()
		return
	}

	cfg := session.Config{
		AuthRequired: l.cfg.AuthReq,
		Plaintext:    l.cfg.Plaintext,
		FileIO:       l.cfg.FileIO,
		MaxInBuf:     l.cfg.MaxInBuf,
		MaxSendBuf:   l.cfg.MaxSendBuf,
		Authr:        l.authr,
		Engine:       l.engine,
	}
	sess := session.New(conn, id, cfg, sb, l.log)
	sess.SetCorrelationID(corrID)
	sess.Run()
	if !sess.Active() {
		l.Shutdown()
	}
}

// allow reports whether addr's IP is in the configured allowlist. An
// unparseable allowlist entry or remote address fails closed.
func (l *Listener) allow(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, a := range l.allowed {
		if a.Equal(ip) {
			return true
		}
	}
	return false
}
