package x402kit

import "time"

// PaymentEventType distinguishes payment lifecycle events.
type PaymentEventType string

const (
	PaymentEventAttempt PaymentEventType = "payment_attempt"
	PaymentEventSuccess PaymentEventType = "payment_success"
	PaymentEventFailure PaymentEventType = "payment_failure"
)

// PaymentEvent describes one payment lifecycle event emitted by the client
// pipeline. Amount, Asset and Recipient come from the selected requirement;
// Transaction and Payer are filled from the settlement on success.
type PaymentEvent struct {
	Type      PaymentEventType
	Timestamp time.Time
	URL       string

	Network   string
	Scheme    string
	Amount    string
	Asset     string
	Recipient string

	Transaction string
	Payer       string

	Error    error
	Duration time.Duration
}

// PaymentCallback observes payment lifecycle events. Callbacks run
// synchronously on the request path and should return quickly.
type PaymentCallback func(event PaymentEvent)
