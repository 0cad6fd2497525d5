package detach

import (
	"net"
	"os"
	"testing"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/require"
)

func quietLog(t *testing.T) *logging.Logger {
	t.Helper()
	log := logging.MustGetLogger("detach-test")
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(logging.CRITICAL, "")
	logging.SetBackend(leveled)
	return log
}

func TestBeginReturnsTicketAndListener(t *testing.T) {
	log := quietLog(t)
	srv, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	clientConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := srv.Accept()
		if err == nil {
			clientConnCh <- conn
		}
	}()
	clientSide, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer clientSide.Close()
	serverSide := <-clientConnCh
	defer serverSide.Close()

	ticket, ln, err := Begin(serverSide, log)
	require.NoError(t, err)
	defer ln.Close()
	require.True(t, ticket.Port >= portLow && ticket.Port <= portHigh)
}

func TestResumeAcceptsMatchingKeyFromSameIP(t *testing.T) {
	log := quietLog(t)

	origSrv, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer origSrv.Close()
	origServerCh := make(chan net.Conn, 1)
	go func() {
		c, _ := origSrv.Accept()
		origServerCh <- c
	}()
	origClient, err := net.Dial("tcp", origSrv.Addr().String())
	require.NoError(t, err)
	defer origClient.Close()
	origServer := <-origServerCh
	defer origServer.Close()

	ticket, ln, err := Begin(origServer, log)
	require.NoError(t, err)

	resumedCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := Resume(ln, origServer, ticket, log)
		if err != nil {
			errCh <- err
			return
		}
		resumedCh <- conn
	}()

	resumeClient, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = resumeClient.Write(ticket.Key[:])
	require.NoError(t, err)

	select {
	case conn := <-resumedCh:
		conn.Close()
	case err := <-errCh:
		t.Fatalf("Resume failed: %v", err)
	}
	resumeClient.Close()
}

func TestResumeRejectsWrongKeyWithoutClosingListener(t *testing.T) {
	log := quietLog(t)

	origSrv, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer origSrv.Close()
	origServerCh := make(chan net.Conn, 1)
	go func() {
		c, _ := origSrv.Accept()
		origServerCh <- c
	}()
	origClient, err := net.Dial("tcp", origSrv.Addr().String())
	require.NoError(t, err)
	defer origClient.Close()
	origServer := <-origServerCh
	defer origServer.Close()

	ticket, ln, err := Begin(origServer, log)
	require.NoError(t, err)

	resumedCh := make(chan net.Conn, 1)
	go func() {
		conn, err := Resume(ln, origServer, ticket, log)
		if err == nil {
			resumedCh <- conn
		}
	}()

	bad, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, _ = bad.Write(make([]byte, KeySize)) // all-zero, wrong key
	bad.Close()

	good, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = good.Write(ticket.Key[:])
	require.NoError(t, err)
	defer good.Close()

	conn := <-resumedCh
	require.NotNil(t, conn)
	conn.Close()
}
