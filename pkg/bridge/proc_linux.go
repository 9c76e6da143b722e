//go:build linux

package bridge

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setDieWithParent asks the kernel to deliver SIGKILL to the child when
// the parent dies, covering crashes that never reach Stop.
func setDieWithParent(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = unix.SIGKILL
}

func terminate(cmd *exec.Cmd) {
	cmd.Process.Signal(unix.SIGTERM)
}
