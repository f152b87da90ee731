package paths

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateDirPrefersXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/srv/state")
	t.Setenv("HOME", "/home/dev")
	p := New("overseerd")
	require.Equal(t, "/srv/state/overseerd", p.StateDir())
}

func TestStateDirFallsBackToHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/dev")
	p := New("overseerd")
	require.Equal(t, "/home/dev/.local/state/overseerd", p.StateDir())
}

func TestStateDirFallsBackToTmp(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "")
	p := New("overseerd")
	require.Equal(t, "/tmp/overseerd", p.StateDir())
}

func TestSocketAndPIDPaths(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/srv/state")
	p := New("overseerd")
	require.Equal(t, "/srv/state/overseerd/daemon.sock", p.SocketPath())
	require.Equal(t, "/srv/state/overseerd/daemon.pid", p.PIDPath())
}

func TestServiceLogDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/srv/state")
	p := New("overseerd")
	require.Equal(t, "/srv/state/overseerd/logs/web", p.ServiceLogDir("web"))
}
