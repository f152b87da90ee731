package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loykin/overseerd/internal/procdef"
	"github.com/loykin/overseerd/internal/projects"
	"github.com/loykin/overseerd/internal/registry"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *registry.Registry) {
	t.Helper()
	reg := registry.New(t.TempDir(), nil)
	return NewRouter(reg, t.TempDir(), projects.ProcessDefaults{}), reg
}

func TestListServicesEmpty(t *testing.T) {
	rt, _ := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/services")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServiceDetailUnknownIs404(t *testing.T) {
	rt, _ := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/services/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartUnknownServiceIs404(t *testing.T) {
	rt, _ := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/services/ghost/start", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	rt, _ := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketSendsSnapshotFirst(t *testing.T) {
	rt, reg := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	defs := []procdef.Def{{Name: "echo", Command: "sh -c 'echo hello; sleep 5'", Kind: procdef.KindService, Autostart: true}}
	_, err := reg.StartService("test", t.TempDir(), defs, false, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var gotOutput bool
	for time.Now().Before(deadline) {
		out, err := reg.GetOutput("test", "echo")
		if err == nil && len(out.Snapshot()) > 0 {
			gotOutput = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, gotOutput)

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/test?process=echo"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")

	_, _ = reg.KillProcess("test", "echo")
}
