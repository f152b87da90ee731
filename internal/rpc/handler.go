package rpc

import (
	"errors"
	"time"

	"github.com/loykin/overseerd/internal/projects"
	"github.com/loykin/overseerd/internal/registry"
)

// Handler is a pure function of the registry handle and the project
// registry: it carries no per-connection state and is safe to call
// concurrently from every connection's goroutine.
type Handler struct {
	reg       *registry.Registry
	configDir string
	defaults  projects.ProcessDefaults
	httpPort  int
	shutdown  func()
}

// NewHandler builds a Handler. shutdown is invoked (asynchronously,
// after the "ok" response is sent) when a shutdown request arrives;
// it is nil-safe to omit in tests that don't exercise CmdShutdown.
func NewHandler(reg *registry.Registry, configDir string, defaults projects.ProcessDefaults, httpPort int, shutdown func()) *Handler {
	return &Handler{reg: reg, configDir: configDir, defaults: defaults, httpPort: httpPort, shutdown: shutdown}
}

// Dispatch runs one request to completion and returns its response.
// It never panics on an unrecognized Cmd; unknown commands get an
// error response like any other failure.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Cmd {
	case CmdPing:
		return pongResponse()
	case CmdStatus:
		return Response{Type: RespStatus, Services: h.reg.Status(), HTTPPort: h.httpPortPtr()}
	case CmdStart:
		return h.startOrReload(req, false)
	case CmdStop:
		return h.stopMany(req.Names)
	case CmdReload:
		return h.startOrReload(req, true)
	case CmdRestart:
		return h.singleProcessOp(req, h.reg.RestartProcess)
	case CmdKill:
		return h.singleProcessOp(req, h.reg.KillProcess)
	case CmdLogs:
		return h.logs(req)
	case CmdShutdown:
		if h.shutdown != nil {
			go func() {
				time.Sleep(100 * time.Millisecond)
				h.shutdown()
			}()
		}
		return okResponse("shutting down")
	default:
		return errorResponse("unknown command: " + req.Cmd)
	}
}

func (h *Handler) httpPortPtr() *int {
	if h.httpPort == 0 {
		return nil
	}
	p := h.httpPort
	return &p
}

// startOrReload resolves each named service's definitions through the
// project registry and invokes StartService or ReloadService. A name
// with no registered project is reported as unknown without aborting
// the rest of the batch.
func (h *Handler) startOrReload(req Request, reload bool) Response {
	entries, _ := projects.LoadServiceEntries(h.configDir)
	var messages []string
	for _, name := range req.Names {
		entry, ok := entries[name]
		if !ok {
			messages = append(messages, name+": "+registry.ErrUnknownService.Error())
			continue
		}
		dir, defs, err := projects.LoadService(entry, h.defaults)
		if err != nil {
			messages = append(messages, name+": "+err.Error())
			continue
		}
		var msg string
		if reload {
			msg, err = h.reg.ReloadService(name, dir, defs, req.All, req.Processes)
		} else {
			msg, err = h.reg.StartService(name, dir, defs, req.All, req.Processes)
		}
		if err != nil {
			messages = append(messages, name+": "+err.Error())
			continue
		}
		messages = append(messages, name+": "+msg)
	}
	return okResponse(joinMessages(messages))
}

func (h *Handler) stopMany(names []string) Response {
	var messages []string
	for _, name := range names {
		msg, err := h.reg.StopService(name)
		if err != nil {
			messages = append(messages, name+": "+err.Error())
			continue
		}
		messages = append(messages, name+": "+msg)
	}
	return okResponse(joinMessages(messages))
}

func (h *Handler) singleProcessOp(req Request, op func(service, process string) (string, error)) Response {
	msg, err := op(req.Service, req.Process)
	if err != nil {
		return mapError(err)
	}
	return okResponse(msg)
}

func (h *Handler) logs(req Request) Response {
	cap, err := h.reg.GetOutput(req.Service, req.Process)
	if err != nil {
		return mapError(err)
	}
	return Response{Type: RespLog, Line: string(cap.Snapshot())}
}

func mapError(err error) Response {
	switch {
	case errors.Is(err, registry.ErrUnknownService):
		return errorResponse(registry.ErrUnknownService.Error())
	case errors.Is(err, registry.ErrProcessNotFound):
		return errorResponse(registry.ErrProcessNotFound.Error())
	case errors.Is(err, registry.ErrNotRunning):
		return errorResponse(registry.ErrNotRunning.Error())
	case errors.Is(err, registry.ErrNoProcessesDefined):
		return errorResponse(registry.ErrNoProcessesDefined.Error())
	default:
		return errorResponse(err.Error())
	}
}

func joinMessages(messages []string) string {
	out := ""
	for i, m := range messages {
		if i > 0 {
			out += "; "
		}
		out += m
	}
	return out
}
