package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	x402kit "github.com/aeither/x402-starter-kit"
	"github.com/aeither/x402-starter-kit/encoding"
)

// Shared building blocks for the stdlib, Gin and Chi middlewares.

// ParsePaymentHeader decodes and version-checks the X-PAYMENT header of a
// request.
//
// Returns x402kit.ErrMalformedHeader for a missing or undecodable header and
// x402kit.ErrUnsupportedVersion for a protocol version other than 1.
func ParsePaymentHeader(r *http.Request) (x402kit.PaymentPayload, error) {
	var payment x402kit.PaymentPayload

	header := r.Header.Get(x402kit.PaymentHeader)
	if header == "" {
		return payment, x402kit.ErrMalformedHeader
	}

	payment, err := encoding.DecodePayment(header)
	if err != nil {
		return payment, fmt.Errorf("%w: %v", x402kit.ErrMalformedHeader, err)
	}

	if payment.X402Version != x402kit.X402Version {
		return payment, x402kit.ErrUnsupportedVersion
	}

	return payment, nil
}

// FindMatchingRequirement returns the configured requirement matching the
// payment's scheme and network, or x402kit.ErrUnsupportedScheme.
func FindMatchingRequirement(payment x402kit.PaymentPayload, requirements []x402kit.PaymentRequirement) (x402kit.PaymentRequirement, error) {
	for _, req := range requirements {
		if req.Scheme == payment.Scheme && req.Network == payment.Network {
			return req, nil
		}
	}
	return x402kit.PaymentRequirement{}, fmt.Errorf("%w: %s on %s", x402kit.ErrUnsupportedScheme, payment.Scheme, payment.Network)
}

// SendPaymentRequired writes a 402 challenge with the given payment options.
func SendPaymentRequired(w http.ResponseWriter, requirements []x402kit.PaymentRequirement) {
	challenge := x402kit.PaymentRequirementsResponse{
		X402Version: x402kit.X402Version,
		Error:       "Payment required for this resource",
		Accepts:     requirements,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	// The status line is already out; an encode failure only truncates the
	// body the client sees.
	_ = json.NewEncoder(w).Encode(challenge)
}

// WriteSettlementHeader sets the X-PAYMENT-RESPONSE header from a
// settlement.
func WriteSettlementHeader(w http.ResponseWriter, settlement *x402kit.SettlementResponse) error {
	encoded, err := encoding.EncodeSettlement(*settlement)
	if err != nil {
		return err
	}
	w.Header().Set(x402kit.SettlementHeader, encoded)
	return nil
}
