package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// PIDFileDetector detects a process via a PID file written by WritePIDFile.
// When Match is set the process command line must also contain it, which
// guards against PID reuse by an unrelated program.
type PIDFileDetector struct {
	PIDFile string
	Match   string
}

type pidMeta struct {
	StartUnixMilli int64 `json:"start_unix_ms"`
}

func (d PIDFileDetector) Alive() (bool, error) {
	pid, meta, err := ReadPIDFile(d.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false, nil
	}
	if meta > 0 {
		if created, err := p.CreateTime(); err == nil && created > 0 && created != meta {
			return false, nil // PID reused; not our process
		}
	}
	if d.Match != "" {
		cmdline, err := p.Cmdline()
		if err != nil || !strings.Contains(cmdline, d.Match) {
			return false, nil
		}
	}
	if running, err := p.IsRunning(); err != nil || !running {
		return false, nil
	}
	return !isZombie(p), nil
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.PIDFile }

// WritePIDFile records pid and its creation time so a later Alive can detect reuse.
func WritePIDFile(path string, pid int) error {
	if path == "" || pid <= 0 {
		return nil
	}
	var meta pidMeta
	if p, err := gopsproc.NewProcess(int32(pid)); err == nil {
		meta.StartUnixMilli, _ = p.CreateTime()
	}
	b, _ := json.Marshal(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"+string(b)+"\n"), 0o600)
}

// ReadPIDFile returns the PID and, when present, the recorded creation time in ms.
func ReadPIDFile(path string) (int, int64, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, 0, err
	}
	pidLine, rest, _ := strings.Cut(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil || pid <= 0 {
		return 0, 0, fmt.Errorf("invalid pid in %s", path)
	}
	var m pidMeta
	if rest = strings.TrimSpace(rest); rest != "" {
		_ = json.Unmarshal([]byte(rest), &m)
	}
	return pid, m.StartUnixMilli, nil
}

// PIDDetector detects by a provided PID number.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) {
	if d.PID <= 0 {
		return false, nil
	}
	ok, err := gopsproc.PidExists(int32(d.PID))
	if err != nil || !ok {
		return false, err
	}
	if p, err := gopsproc.NewProcess(int32(d.PID)); err == nil && isZombie(p) {
		return false, nil
	}
	return true, nil
}

func (d PIDDetector) Describe() string { return fmt.Sprintf("pid:%d", d.PID) }

func isZombie(p *gopsproc.Process) bool {
	st, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range st {
		if s == gopsproc.Zombie {
			return true
		}
	}
	return false
}
