//go:build windows

package load

import (
	"errors"
	"os"
	"os/exec"
)

// Windows has no process groups to signal; only the leader is stopped.
func setProcessGroup(_ *exec.Cmd) {}

func terminateGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	return p.Kill()
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
