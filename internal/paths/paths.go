// Package paths resolves the daemon's well-known filesystem locations
// from the environment: the state directory, the config directory, the
// RPC socket, and the PID file. All of it is a pure function of the
// environment at process start; none of it is reconfigurable at runtime.
package paths

import (
	"os"
	"path/filepath"
)

// Paths scopes every well-known location under a single application name.
type Paths struct {
	AppName string
}

// New returns a Paths resolver for the given application name.
func New(appName string) Paths {
	return Paths{AppName: appName}
}

// StateDir returns $XDG_STATE_HOME/{app}, else $HOME/.local/state/{app},
// else /tmp/{app}.
func (p Paths) StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, p.AppName)
	}
	if home, ok := os.LookupEnv("HOME"); ok && home != "" {
		return filepath.Join(home, ".local", "state", p.AppName)
	}
	return filepath.Join("/tmp", p.AppName)
}

// ConfigDir returns $XDG_CONFIG_HOME/{app}, else $HOME/.config/{app},
// else /tmp/{app}/config.
func (p Paths) ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, p.AppName)
	}
	if home, ok := os.LookupEnv("HOME"); ok && home != "" {
		return filepath.Join(home, ".config", p.AppName)
	}
	return filepath.Join("/tmp", p.AppName, "config")
}

// SocketPath is the Unix-domain RPC endpoint: {state_dir}/daemon.sock.
func (p Paths) SocketPath() string {
	return filepath.Join(p.StateDir(), "daemon.sock")
}

// PIDPath is {state_dir}/daemon.pid.
func (p Paths) PIDPath() string {
	return filepath.Join(p.StateDir(), "daemon.pid")
}

// LogDir is {state_dir}/logs.
func (p Paths) LogDir() string {
	return filepath.Join(p.StateDir(), "logs")
}

// ServiceLogDir is {state_dir}/logs/{service}.
func (p Paths) ServiceLogDir(service string) string {
	return filepath.Join(p.LogDir(), service)
}

// EnsureStateDir creates the state directory if it doesn't already exist.
func (p Paths) EnsureStateDir() error {
	return os.MkdirAll(p.StateDir(), 0o750)
}
