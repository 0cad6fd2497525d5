package listener

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/require"

	"github.com/cran/rserve-go/internal/config"
	"github.com/cran/rserve-go/internal/engine"
)

func quietLog(t *testing.T) *logging.Logger {
	t.Helper()
	log := logging.MustGetLogger("listener-test")
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(logging.CRITICAL, "")
	logging.SetBackend(leveled)
	return log
}

func TestServeAcceptsAndGreets(t *testing.T) {
	cfg := config.Default()
	l, err := newOnEphemeralPort(t, cfg)
	require.NoError(t, err)
	defer l.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 32)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "Rsrv0102QAP1", string(buf[:12]))

}

// newOnEphemeralPort binds to 127.0.0.1:0 directly, bypassing
// listener.New's config-driven bind, since the package always binds
// eagerly in New and tests need a free port. The allowlist is filled from
// cfg.Allow the same way New does.
func newOnEphemeralPort(t *testing.T, cfg *config.Config) (*Listener, error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l := &Listener{ln: ln, cfg: cfg, log: quietLog(t), engine: engine.NewBasic()}
	for _, a := range cfg.Allow {
		if ip := net.ParseIP(a); ip != nil {
			l.allowed = append(l.allowed, ip)
		}
	}
	l.active = 1
	return l, nil
}

func TestAllowlistRejectsUnlistedIP(t *testing.T) {
	l := &Listener{allowed: []net.IP{net.ParseIP("10.0.0.1")}}
	require.False(t, l.allow(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1234}))
	require.True(t, l.allow(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1234}))
}

func TestShutdownStopsAcceptLoop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l := &Listener{ln: ln, cfg: config.Default(), log: quietLog(t)}
	l.active = 1

	done := make(chan error, 1)
	go func() { done <- l.Serve(context.Background()) }()

	l.Shutdown()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

