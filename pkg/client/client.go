// Package client is a typed Go client over internal/rpc's wire
// protocol, for programs embedding overseerd as a library dependency
// rather than shelling out to a CLI. It speaks the same
// newline-delimited JSON the daemon's own RPC server expects.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/loykin/overseerd/internal/registry"
	"github.com/loykin/overseerd/internal/rpc"
	"github.com/loykin/overseerd/internal/rpcclient"
)

// ErrNotRunning mirrors rpcclient.ErrNotRunning for callers that only
// import this package.
var ErrNotRunning = rpcclient.ErrNotRunning

// Client is a single connection to a daemon's control socket. It is
// not safe for concurrent use by multiple goroutines — open one
// Client per caller, the way a single original DaemonClient wraps one
// UnixStream.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Connect dials an already-running daemon.
func Connect(socketPath string) (*Client, error) {
	conn, err := rpcclient.Connect(socketPath)
	if err != nil {
		return nil, err
	}
	return wrap(conn), nil
}

// EnsureDaemon connects to a running daemon, or spawns one via args
// (conventionally ["daemon", "run"]) and waits for it to come up.
func EnsureDaemon(socketPath string, args []string) (*Client, error) {
	conn, err := rpcclient.EnsureDaemon(socketPath, args)
	if err != nil {
		return nil, err
	}
	return wrap(conn), nil
}

func wrap(conn net.Conn) *Client {
	return &Client{conn: conn, reader: bufio.NewReader(conn)}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// send writes req and reads back exactly one response, matching the
// protocol's one-request-one-response-per-line framing.
func (c *Client) send(req rpc.Request) (rpc.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return rpc.Response{}, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return rpc.Response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return rpc.Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp rpc.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return rpc.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// asError turns a Response of type error into a Go error, else nil.
func asError(resp rpc.Response) error {
	if resp.Type == rpc.RespError {
		return errors.New(resp.Message)
	}
	return nil
}

// Ping round-trips a ping request.
func (c *Client) Ping() error {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdPing})
	if err != nil {
		return err
	}
	if resp.Type != rpc.RespPong {
		return fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return nil
}

// Status fetches the full status snapshot.
func (c *Client) Status() ([]registry.ServiceStatus, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdStatus})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// Start invokes start_service for each name. all bypasses autostart
// filtering; processes restricts to the named process defs.
func (c *Client) Start(names []string, all bool, processes []string) (string, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdStart, Names: names, All: all, Processes: processes})
	return messageOrError(resp, err)
}

// Stop invokes stop_service for each name.
func (c *Client) Stop(names []string) (string, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdStop, Names: names})
	return messageOrError(resp, err)
}

// Reload invokes reload_service for each name.
func (c *Client) Reload(names []string, all bool, processes []string) (string, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdReload, Names: names, All: all, Processes: processes})
	return messageOrError(resp, err)
}

// Restart invokes restart_process on one (service, process) pair.
func (c *Client) Restart(service, process string) (string, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdRestart, Service: service, Process: process})
	return messageOrError(resp, err)
}

// Kill invokes kill_process on one (service, process) pair.
func (c *Client) Kill(service, process string) (string, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdKill, Service: service, Process: process})
	return messageOrError(resp, err)
}

// Logs returns a snapshot of the named process's ring buffer. follow
// is accepted for wire compatibility but always answered with a
// single snapshot; streaming output is the HTTP/WebSocket façade's
// job, not this socket's.
func (c *Client) Logs(service, process string, follow bool) (string, error) {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdLogs, Service: service, Process: process, Follow: follow})
	if err != nil {
		return "", err
	}
	if err := asError(resp); err != nil {
		return "", err
	}
	return resp.Line, nil
}

// Shutdown asks the daemon to exit shortly after replying.
func (c *Client) Shutdown() error {
	resp, err := c.send(rpc.Request{Cmd: rpc.CmdShutdown})
	if err != nil {
		return err
	}
	return asError(resp)
}

func messageOrError(resp rpc.Response, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if e := asError(resp); e != nil {
		return "", e
	}
	return resp.Message, nil
}

// IsRunning reports whether a daemon is reachable at socketPath,
// without sending any protocol traffic.
func IsRunning(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
