// Package proc runs speech synthesizer subprocesses that can be killed
// together with any children they spawn.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on pipes after the process is killed.
const waitDelay = 500 * time.Millisecond

// Command returns a command that is killed with its process group when ctx
// is done.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return Kill(cmd) }
	cmd.WaitDelay = waitDelay
	return cmd
}

// Run feeds input on stdin and returns stdout. Errors include the tail of
// stderr.
func Run(cmd *exec.Cmd, input string) ([]byte, error) {
	wait, err := Start(cmd, input)
	if err != nil {
		return nil, err
	}
	return wait()
}

// Start starts cmd with input on stdin. The returned function waits for it
// to exit and returns stdout, like Run.
func Start(cmd *exec.Cmd, input string) (func() ([]byte, error), error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Path, err)
	}

	return func() ([]byte, error) {
		if err := cmd.Wait(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if len(msg) > 200 {
				msg = "..." + msg[len(msg)-200:]
			}
			if msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", cmd.Path, err, msg)
			}
			return nil, fmt.Errorf("%s: %w", cmd.Path, err)
		}
		return stdout.Bytes(), nil
	}, nil
}

// Kill stops a started command and its process group. Commands that never
// started or already exited are ignored.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := killProcessGroup(cmd); err != nil && !errors.Is(err, errFinished) {
		return err
	}
	return nil
}

// Find returns the first candidate found on PATH or as a file path.
func Find(candidates ...string) (string, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %v found", candidates)
}
