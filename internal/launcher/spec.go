package launcher

import (
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/loykin/krishid/internal/detector"
	"github.com/loykin/krishid/internal/logger"
)

// Spec describes how to run the disease-prediction backend.
type Spec struct {
	Name          string            `json:"name" mapstructure:"name"`
	Command       string            `json:"command" mapstructure:"command"`   // e.g. "python app_advanced.py"
	WorkDir       string            `json:"work_dir" mapstructure:"work_dir"` // optional working dir
	Env           []string          `json:"env" mapstructure:"env"`           // extra KEY=VALUE pairs
	PIDFile       string            `json:"pid_file" mapstructure:"pid_file"` // optional; enables PID file detection
	URL           string            `json:"url" mapstructure:"url"`           // reported back to callers of /start
	StartDuration time.Duration     `json:"start_duration" mapstructure:"start_duration"`
	Detectors     []detector.Config `json:"detectors" mapstructure:"detectors"`
	Log           logger.Config     `json:"log" mapstructure:"log"`
}

// BuildCommand constructs an *exec.Cmd for s.Command without a shell unless
// the string needs one or explicitly invokes one ("sh -c '...'").
func (s Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if runtime.GOOS == "windows" {
		// #nosec G204
		return exec.Command("cmd", "/C", cmdStr)
	}
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if script, ok := explicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", script)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// explicitShell returns the script after "sh -c " with one pair of outer quotes removed.
func explicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}

func (s Spec) detectors() []detector.Detector {
	dets := make([]detector.Detector, 0, len(s.Detectors)+1)
	if s.PIDFile != "" {
		dets = append(dets, detector.PIDFileDetector{PIDFile: s.PIDFile})
	}
	for _, c := range s.Detectors {
		if d, err := c.Build(); err == nil {
			dets = append(dets, d)
		}
	}
	return dets
}
