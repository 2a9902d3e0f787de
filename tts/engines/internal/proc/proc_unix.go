//go:build unix

package proc

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var errFinished = unix.ESRCH

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	// A negative pid signals the whole group.
	return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
