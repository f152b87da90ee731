//go:build !windows

package supervisor

import (
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup places the child in its own new process group so its
// PID equals its PGID, making group signaling safe — sh -c frequently
// spawns children of its own, and signaling only the direct child
// leaks them.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGTERM to the process group led by pid, then
// after killGrace sends SIGKILL to the same group. Both sends are
// fire-and-forget; no error is surfaced to the caller.
func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		slog.Debug("SIGTERM to process group failed", "pid", pid, "error", err)
	}
	go func() {
		time.Sleep(killGrace)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			slog.Debug("SIGKILL to process group failed", "pid", pid, "error", err)
		}
	}()
}
