//go:build !windows

package load

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in a new process group so that it and any
// workers it forks can be signaled together.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pgid int) error {
	return syscall.Kill(-pgid, syscall.SIGTERM)
}

func killGroup(pgid int) error {
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
