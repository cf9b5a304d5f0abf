package detector

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a detector command; /status runs detectors inline.
const DefaultCommandTimeout = 5 * time.Second

// CommandDetector reports alive when Command exits 0, e.g. `pgrep -f app_advanced.py`.
type CommandDetector struct {
	Command string
	Timeout time.Duration
}

// shellCommand runs through the platform shell only when cmdStr needs one.
func shellCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		if runtime.GOOS == "windows" {
			// #nosec G204
			return exec.CommandContext(ctx, "cmd", "/C", cmdStr)
		}
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

func (d CommandDetector) Alive() (bool, error) {
	cmdStr := strings.TrimSpace(d.Command)
	if cmdStr == "" {
		return false, errors.New("empty detector command")
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := shellCommand(ctx, cmdStr).Run()
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, fmt.Errorf("detector command timed out after %s", timeout)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return false, nil
	}
	return false, err
}

func (d CommandDetector) Describe() string { return "cmd:" + d.Command }
