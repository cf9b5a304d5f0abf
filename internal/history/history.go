// Package history exports monitor events to analytics stores. Delivery is
// best-effort: a slow or failing sink never affects monitor results.
package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// EventType defines the kind of monitor event.
type EventType string

const (
	EventCheck        EventType = "check"
	EventStartAttempt EventType = "start_attempt"
	EventStatusChange EventType = "status_change"
	EventGuidance     EventType = "guidance"
)

// Event is one monitor observation.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Endpoint   string    `json:"endpoint"`
	Status     string    `json:"status,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Success    bool      `json:"success"`
	Attempt    int       `json:"attempt,omitempty"`
	LatencyMS  float64   `json:"latency_ms,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// DefaultBuffer is the recorder queue length.
const DefaultBuffer = 256

const sendTimeout = 5 * time.Second

// Recorder queues events and delivers them to every sink from one goroutine.
// When the queue is full new events are dropped.
type Recorder struct {
	sinks  []Sink
	ch     chan Event
	logger *slog.Logger
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sinks:  sinks,
		ch:     make(chan Event, DefaultBuffer),
		logger: logger.With("component", "history"),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record enqueues e. It never blocks. A nil Recorder discards events.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- e:
	default:
		r.logger.Debug("history queue full, dropping event", "type", e.Type)
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for e := range r.ch {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			if err := s.Send(ctx, e); err != nil {
				r.logger.Warn("history sink send failed", "type", e.Type, "error", err)
			}
			cancel()
		}
	}
}

// Close drains queued events and closes sinks that implement io.Closer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done

	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
