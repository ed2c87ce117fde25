// Package metrics defines the payment gate's instrumentation surface with a
// Prometheus implementation and a no-op default.
package metrics

// Recorder observes payment gate activity. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ChallengeIssued counts a 402 challenge sent for a route.
	ChallengeIssued(network string)

	// PaymentVerified counts a facilitator verification verdict.
	PaymentVerified(network string, valid bool)

	// PaymentSettled counts a settlement attempt outcome.
	PaymentSettled(network string, success bool)
}

// Noop discards all observations.
type Noop struct{}

// NewNoop returns a Recorder that records nothing.
func NewNoop() Noop { return Noop{} }

func (Noop) ChallengeIssued(string)       {}
func (Noop) PaymentVerified(string, bool) {}
func (Noop) PaymentSettled(string, bool)  {}
