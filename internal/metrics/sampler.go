package metrics

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Usage is a single resource sample of the launched backend process.
type Usage struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// SampleProcess reads CPU and resident memory for pid and publishes them to the
// service gauges. A pid <= 0 clears the gauges.
func SampleProcess(pid int) (Usage, error) {
	if pid <= 0 {
		SetServiceUsage(0, 0)
		return Usage{}, nil
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		SetServiceUsage(0, 0)
		return Usage{}, fmt.Errorf("inspect pid %d: %w", pid, err)
	}
	u := Usage{PID: p.Pid}
	if cpu, err := p.CPUPercent(); err == nil {
		u.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		u.RSSBytes = mem.RSS
	}
	SetServiceUsage(u.CPUPercent, u.RSSBytes)
	return u, nil
}
