// Package encoding implements the header codecs of the x402 protocol:
// payment payloads, settlement responses, and requirement lists travel as
// base64-encoded JSON in the X-PAYMENT and X-PAYMENT-RESPONSE headers.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402kit "github.com/aeither/x402-starter-kit"
)

func encode(v any, what string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", what, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decode(encoded string, v any, what string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode %s base64: %w", what, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return nil
}

// EncodePayment encodes a payment payload for the X-PAYMENT header.
func EncodePayment(payment x402kit.PaymentPayload) (string, error) {
	return encode(payment, "payment")
}

// DecodePayment decodes an X-PAYMENT header value.
func DecodePayment(encoded string) (x402kit.PaymentPayload, error) {
	var payment x402kit.PaymentPayload
	err := decode(encoded, &payment, "payment")
	return payment, err
}

// EncodeSettlement encodes a settlement for the X-PAYMENT-RESPONSE header.
func EncodeSettlement(settlement x402kit.SettlementResponse) (string, error) {
	return encode(settlement, "settlement")
}

// DecodeSettlement decodes an X-PAYMENT-RESPONSE header value.
func DecodeSettlement(encoded string) (x402kit.SettlementResponse, error) {
	var settlement x402kit.SettlementResponse
	err := decode(encoded, &settlement, "settlement")
	return settlement, err
}

// EncodeRequirements encodes a full 402 challenge body.
func EncodeRequirements(requirements x402kit.PaymentRequirementsResponse) (string, error) {
	return encode(requirements, "requirements")
}

// DecodeRequirements decodes an encoded 402 challenge body.
func DecodeRequirements(encoded string) (x402kit.PaymentRequirementsResponse, error) {
	var requirements x402kit.PaymentRequirementsResponse
	err := decode(encoded, &requirements, "requirements")
	return requirements, err
}
