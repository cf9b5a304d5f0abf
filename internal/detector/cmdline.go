package detector

import (
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// CmdlineDetector reports alive when any process's command line contains Match,
// e.g. "app_advanced.py" for a backend started by hand.
type CmdlineDetector struct{ Match string }

func (d CmdlineDetector) Alive() (bool, error) {
	procs, err := gopsproc.Processes()
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, d.Match) && !isZombie(p) {
			return true, nil
		}
	}
	return false, nil
}

func (d CmdlineDetector) Describe() string { return "cmdline:" + d.Match }
