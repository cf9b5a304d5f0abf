package client

import "time"

// ActionResponse is returned by /start, /stop and POST /service for start|stop|restart.
// Success is the only field the start strategy trusts.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServiceRequest is the body of POST /service.
type ServiceRequest struct {
	Action string `json:"action"` // start, stop, restart, status
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
}

// ServiceStatus describes the launched backend process.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MonitorInfo is the availability monitor's view of the endpoint.
type MonitorInfo struct {
	Endpoint      string    `json:"endpoint"`
	Status        string    `json:"status"`
	State         string    `json:"state"`
	AttemptsMade  int       `json:"attempts_made"`
	MaxAttempts   int       `json:"max_attempts"`
	InProgress    bool      `json:"in_progress"`
	LastStrategy  string    `json:"last_strategy,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at,omitempty"`
}

// StatusResponse is returned by /status.
type StatusResponse struct {
	Service   ServiceStatus `json:"service"`
	Monitor   *MonitorInfo  `json:"monitor,omitempty"`
	Timestamp float64       `json:"timestamp"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
