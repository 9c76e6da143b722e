//go:build !linux

package bridge

import "os/exec"

// setDieWithParent is a no-op where the kernel offers no parent-death
// signal; Stop remains the only teardown path.
func setDieWithParent(*exec.Cmd) {}

func terminate(cmd *exec.Cmd) {
	cmd.Process.Kill()
}
