package client

import (
	"path/filepath"
	"testing"

	"github.com/loykin/overseerd/internal/projects"
	"github.com/loykin/overseerd/internal/registry"
	"github.com/loykin/overseerd/internal/rpc"
	"github.com/stretchr/testify/require"
)

func startTestDaemon(t *testing.T) string {
	t.Helper()
	reg := registry.New(t.TempDir(), nil)
	handler := rpc.NewHandler(reg, t.TempDir(), projects.ProcessDefaults{}, 0, nil)

	sock := filepath.Join(t.TempDir(), "daemon.sock")
	srv, err := rpc.Listen(sock, handler)
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })
	return sock
}

func TestPingAndStatus(t *testing.T) {
	sock := startTestDaemon(t)
	c, err := Connect(sock)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Ping())

	services, err := c.Status()
	require.NoError(t, err)
	require.Empty(t, services)
}

func TestStartUnknownServiceSurfacesMessage(t *testing.T) {
	sock := startTestDaemon(t)
	c, err := Connect(sock)
	require.NoError(t, err)
	defer c.Close()

	msg, err := c.Start([]string{"ghost"}, false, nil)
	require.NoError(t, err)
	require.Contains(t, msg, "unknown service")
}

func TestRestartUnknownReturnsError(t *testing.T) {
	sock := startTestDaemon(t)
	c, err := Connect(sock)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Restart("ghost", "web")
	require.Error(t, err)
}

func TestIsRunning(t *testing.T) {
	sock := startTestDaemon(t)
	require.True(t, IsRunning(sock))
	require.False(t, IsRunning(filepath.Join(t.TempDir(), "nope.sock")))
}
