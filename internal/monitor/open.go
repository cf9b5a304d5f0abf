package monitor

import (
	"context"

	"github.com/loykin/krishid/internal/guidance"
)

// Action is what the caller should do with an intercepted link.
type Action string

const (
	ActionOpen     Action = "open"     // navigate to URL
	ActionGuidance Action = "guidance" // show manual-start guidance
	ActionBusy     Action = "starting" // a start is in flight elsewhere
)

// OpenDecision is the outcome of Open.
type OpenDecision struct {
	Action  Action `json:"action"`
	URL     string `json:"url"`
	Started bool   `json:"started"`
}

// Open handles a click on a link to the service: open it when running,
// otherwise try to start it while attempts remain, otherwise guide.
func (m *Monitor) Open(ctx context.Context) OpenDecision {
	url := m.cfg.Endpoint
	if m.CheckAvailability(ctx) {
		return OpenDecision{Action: ActionOpen, URL: url}
	}

	st := m.Attempts()
	if st.Exhausted() {
		m.guide(ctx, guidance.Manual(url))
		return OpenDecision{Action: ActionGuidance, URL: url}
	}
	if st.InProgress || m.guard.Busy() {
		return OpenDecision{Action: ActionBusy, URL: url}
	}
	started, busy := m.attemptStart(ctx)
	if busy {
		return OpenDecision{Action: ActionBusy, URL: url}
	}
	if !started {
		// attemptStart already rendered guidance when it ran
		return OpenDecision{Action: ActionGuidance, URL: url}
	}
	if !sleep(ctx, m.cfg.SettleDelay) {
		return OpenDecision{Action: ActionGuidance, URL: url, Started: true}
	}
	return OpenDecision{Action: ActionOpen, URL: url, Started: true}
}
