// Package detector decides whether the backend service is already running,
// independently of who started it.
package detector

import "fmt"

// Detector is a strategy that determines if the service process is running.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the process is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// Config is the file representation of a detector.
type Config struct {
	Type    string `json:"type" mapstructure:"type"` // pidfile, cmdline, command
	Path    string `json:"path" mapstructure:"path"`
	Match   string `json:"match" mapstructure:"match"`
	Command string `json:"command" mapstructure:"command"`
}

// Build turns a Config into a Detector.
func (c Config) Build() (Detector, error) {
	switch c.Type {
	case "pidfile":
		if c.Path == "" {
			return nil, fmt.Errorf("detector pidfile requires path")
		}
		return PIDFileDetector{PIDFile: c.Path, Match: c.Match}, nil
	case "cmdline":
		if c.Match == "" {
			return nil, fmt.Errorf("detector cmdline requires match")
		}
		return CmdlineDetector{Match: c.Match}, nil
	case "command":
		if c.Command == "" {
			return nil, fmt.Errorf("detector command requires command")
		}
		return CommandDetector{Command: c.Command}, nil
	}
	return nil, fmt.Errorf("unknown detector type %q", c.Type)
}

// Any returns the description of the first detector reporting alive.
func Any(dets []Detector) (bool, string) {
	for _, d := range dets {
		if ok, _ := d.Alive(); ok {
			return true, d.Describe()
		}
	}
	return false, ""
}
