package rpc

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/overseerd/internal/projects"
	"github.com/loykin/overseerd/internal/registry"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (net.Conn, *Server) {
	t.Helper()
	reg := registry.New(t.TempDir(), nil)
	handler := NewHandler(reg, t.TempDir(), projects.ProcessDefaults{}, 0, nil)

	sockPath := filepath.Join(t.TempDir(), "daemon.sock")
	srv, err := Listen(sockPath, handler)
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, srv
}

func sendLine(t *testing.T, conn net.Conn, line string) Response {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(respLine), &resp))
	return resp
}

func TestPingReturnsPong(t *testing.T) {
	conn, _ := startTestServer(t)
	resp := sendLine(t, conn, `{"cmd":"ping"}`)
	require.Equal(t, RespPong, resp.Type)
}

func TestMalformedRequestErrorsButKeepsConnectionOpen(t *testing.T) {
	conn, _ := startTestServer(t)

	resp := sendLine(t, conn, "not json at all")
	require.Equal(t, RespError, resp.Type)
	require.NotEmpty(t, resp.Message)

	resp = sendLine(t, conn, `{"cmd":"ping"}`)
	require.Equal(t, RespPong, resp.Type)
}

func TestResponsesStayInOrderOnOneConnection(t *testing.T) {
	conn, _ := startTestServer(t)

	for i := 0; i < 5; i++ {
		resp := sendLine(t, conn, `{"cmd":"status"}`)
		require.Equal(t, RespStatus, resp.Type)
	}
}

func TestStartUnknownServiceReportsUnknownInOKResponse(t *testing.T) {
	conn, _ := startTestServer(t)
	resp := sendLine(t, conn, `{"cmd":"start","names":["ghost"]}`)
	require.Equal(t, RespOK, resp.Type)
	require.Contains(t, resp.Message, "unknown service")
}

func TestRestartUnknownServiceReturnsError(t *testing.T) {
	conn, _ := startTestServer(t)
	resp := sendLine(t, conn, `{"cmd":"restart","service":"ghost","process":"web"}`)
	require.Equal(t, RespError, resp.Type)
}

func TestUnknownCommandReturnsError(t *testing.T) {
	conn, _ := startTestServer(t)
	resp := sendLine(t, conn, `{"cmd":"bogus"}`)
	require.Equal(t, RespError, resp.Type)
}
