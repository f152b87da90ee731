// Package rpc implements the daemon's control plane: the
// newline-delimited JSON Request/Response wire types and the
// Unix-domain socket server that frames, decodes, dispatches, and
// replies to them. The type set is closed and dispatch is a compile-
// time switch, not open polymorphism — the spec is explicit that this
// set is stable.
package rpc

import "github.com/loykin/overseerd/internal/registry"

// Request is the closed sum of every command the daemon accepts, tagged
// by Cmd. Fields not relevant to a given Cmd are simply left zero.
type Request struct {
	Cmd string `json:"cmd"`

	Names     []string `json:"names,omitempty"`
	All       bool     `json:"all,omitempty"`
	Processes []string `json:"processes,omitempty"`

	Service string `json:"service,omitempty"`
	Process string `json:"process,omitempty"`
	Follow  bool   `json:"follow,omitempty"`
}

const (
	CmdPing     = "ping"
	CmdStatus   = "status"
	CmdStart    = "start"
	CmdStop     = "stop"
	CmdReload   = "reload"
	CmdRestart  = "restart"
	CmdKill     = "kill"
	CmdLogs     = "logs"
	CmdShutdown = "shutdown"
)

// Response is the closed sum of every reply the daemon sends, tagged
// by Type. Both `ok { message? }` and `error { message }` carry their
// text in the same Message field — they're mutually exclusive on Type,
// so there's no ambiguity, and it matches the wire schema's use of
// `message` for both rather than inventing a separate `error` key.
type Response struct {
	Type string `json:"type"`

	Message string `json:"message,omitempty"`

	Services []registry.ServiceStatus `json:"services,omitempty"`
	HTTPPort *int                     `json:"http_port,omitempty"`

	Line string `json:"line,omitempty"`
}

const (
	RespOK     = "ok"
	RespStatus = "status"
	RespLog    = "log"
	RespError  = "error"
	RespPong   = "pong"
)

func okResponse(message string) Response {
	return Response{Type: RespOK, Message: message}
}

func errorResponse(message string) Response {
	return Response{Type: RespError, Message: message}
}

func pongResponse() Response {
	return Response{Type: RespPong}
}
