package checker

import "time"

// Status represents the health state of a target.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// ReasonTimeout is the failure reason recorded when no complete response
// arrived before the probe deadline.
const ReasonTimeout = "request-timeout"

// Result is the outcome of a single probe.
type Result struct {
	Target  string
	Success bool
	// StatusCode is zero when no response was received.
	StatusCode int
	// Responded reports whether a complete response arrived. Latency is
	// only meaningful when it is true.
	Responded bool
	Latency   time.Duration
	Error     string
}

// Status maps the result onto up/down.
func (r Result) Status() Status {
	if r.Success {
		return StatusUp
	}
	return StatusDown
}
