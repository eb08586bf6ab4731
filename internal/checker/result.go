package checker

import "time"

// Outcome classifies a single probe.
type Outcome string

const (
	// OutcomeHealthy means the endpoint answered with HTTP 200.
	OutcomeHealthy Outcome = "healthy"
	// OutcomeUnhealthy means the endpoint answered with any other status.
	OutcomeUnhealthy Outcome = "unhealthy"
	// OutcomeUnreachable means the connection failed or timed out.
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomeError means the probe failed for an unexpected reason.
	OutcomeError Outcome = "error"
)

// Healthy reports whether o is OutcomeHealthy.
func (o Outcome) Healthy() bool {
	return o == OutcomeHealthy
}

// Result is the outcome of a single probe. StatusCode is zero and Latency is
// meaningless unless the endpoint responded.
type Result struct {
	ServiceName string
	Outcome     Outcome
	StatusCode  int
	Latency     time.Duration
	Error       string
	CheckedAt   time.Time
}

// Responded reports whether an HTTP response was received.
func (r Result) Responded() bool {
	return r.StatusCode != 0
}
