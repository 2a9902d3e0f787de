//go:build !unix

package proc

import (
	"os"
	"os/exec"
)

var errFinished = os.ErrProcessDone

func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
