package status

import (
	"errors"
	"fmt"
	"strings"
)

// EndpointStatus is the last observed availability of the monitored endpoint.
type EndpointStatus int

const (
	Unknown EndpointStatus = iota
	Running
	Stopped
	Error
)

var names = [...]string{"unknown", "running", "stopped", "error"}

func (s EndpointStatus) String() string {
	if s < Unknown || s > Error {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return names[s]
}

// Running reports whether the endpoint answered with a 2xx on the last check.
func (s EndpointStatus) Running() bool { return s == Running }

func (s EndpointStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *EndpointStatus) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// Parse converts a status name back into an EndpointStatus.
func Parse(v string) (EndpointStatus, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, n := range names {
		if n == v {
			return EndpointStatus(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown endpoint status %q", v)
}

// All returns every status value in declaration order.
func All() []EndpointStatus { return []EndpointStatus{Unknown, Running, Stopped, Error} }

// Error taxonomy. None of these escape the monitor; they are downgraded to false
// and exist so logs, history and tests can tell the failure kinds apart.
var (
	ErrNetworkUnreachable = errors.New("endpoint unreachable")
	ErrTimeout            = errors.New("timed out")
	ErrStrategyExhausted  = errors.New("all start strategies failed")
	ErrNotApplicable      = errors.New("strategy not applicable")
)

// StrategyResult is the outcome of one pass through the start chain.
type StrategyResult struct {
	Succeeded  bool   `json:"succeeded"`
	StrategyID string `json:"strategy_id"`
}

// StrategyExhausted is the id reported when no strategy succeeded.
const StrategyExhausted = "exhausted"

// AttemptState is a snapshot of the monitor's start bookkeeping.
type AttemptState struct {
	AttemptsMade int  `json:"attempts_made"`
	MaxAttempts  int  `json:"max_attempts"`
	InProgress   bool `json:"in_progress"`
}

// Exhausted reports whether automatic attempts are used up.
func (a AttemptState) Exhausted() bool { return a.AttemptsMade >= a.MaxAttempts }
