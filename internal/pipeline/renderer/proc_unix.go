//go:build !windows

package renderer

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the renderer in its own process group so that
// cancellation kills helpers it spawned, not only the direct child.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
