//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup creates a new Windows process group so the tree can
// be signaled together. Full job-object based tree-kill is out of
// scope here; see DESIGN.md.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: 0x00000200}
}

// killProcessGroup on Windows runs `taskkill /pid <pid> /T /F`, which
// force-kills the process and its child tree, when taskkill is found on
// PATH; otherwise it does nothing. No Job Object is used, and there is
// no graceful first signal (see DESIGN.md on the Windows counterpart).
func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	if p, err := exec.LookPath("taskkill"); err == nil {
		_ = exec.Command(p, "/pid", itoa(pid), "/T", "/F").Run()
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
