package rpcclient

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectFailsWhenNothingListening(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	_, err := Connect(sock)
	require.Error(t, err)
}

func TestConnectSucceedsAgainstListener(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := Connect(sock)
	require.NoError(t, err)
	conn.Close()
}

func TestEnsureDaemonReturnsExistingConnectionWithoutSpawning(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "daemon.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	conn, err := EnsureDaemon(sock, []string{"daemon", "run"})
	require.NoError(t, err)
	conn.Close()
}
