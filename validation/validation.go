// Package validation checks payment requirements and payloads before they
// cross a trust boundary: the client validates challenge options before
// signing, the server validates submitted payments before verification.
package validation

import (
	"fmt"
	"math/big"
	"regexp"

	x402kit "github.com/aeither/x402-starter-kit"
)

var (
	// evmAddressRegex matches 0x plus 40 hex chars.
	evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	// solanaAddressRegex matches base58 addresses of 32 to 44 chars.
	solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// ValidateAmount checks that amount is a positive base-10 integer.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount format: %s", amount)
	}
	if amt.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0, got: %s", amount)
	}
	return nil
}

// ValidateAddress checks an address against the format of the network's
// family.
func ValidateAddress(address, network string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	family, err := x402kit.NetworkFamily(network)
	if err != nil {
		return fmt.Errorf("cannot validate address: %w", err)
	}

	switch family {
	case x402kit.FamilyEVM:
		if !evmAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
		}
		return nil
	case x402kit.FamilySVM:
		if !solanaAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid Solana address format: %s (expected base58 string 32-44 chars)", address)
		}
		return nil
	default:
		return fmt.Errorf("unsupported network family for address validation: %s", family)
	}
}

// ValidatePaymentRequirement checks a payment option end to end: amount,
// network, addresses, scheme and timeout.
func ValidatePaymentRequirement(req x402kit.PaymentRequirement) error {
	if err := ValidateAmount(req.MaxAmountRequired); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	if req.Network == "" {
		return fmt.Errorf("invalid requirement: network cannot be empty")
	}
	family, err := x402kit.NetworkFamily(req.Network)
	if err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	if err := ValidateAddress(req.PayTo, req.Network); err != nil {
		return fmt.Errorf("invalid requirement: payTo %w", err)
	}

	if req.Asset == "" {
		return fmt.Errorf("invalid requirement: asset address cannot be empty")
	}
	if err := ValidateAddress(req.Asset, req.Network); err != nil {
		return fmt.Errorf("invalid requirement: asset %w", err)
	}

	switch req.Scheme {
	case x402kit.SchemeExact:
	case "":
		return fmt.Errorf("invalid requirement: scheme cannot be empty")
	default:
		return fmt.Errorf("invalid requirement: unsupported scheme %s", req.Scheme)
	}

	if req.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("invalid requirement: timeout cannot be negative: %d", req.MaxTimeoutSeconds)
	}

	// EIP-3009 domain parameters must not be present-but-empty.
	if family == x402kit.FamilyEVM && req.Extra != nil {
		if name, ok := req.Extra["name"].(string); ok && name == "" {
			return fmt.Errorf("invalid requirement: EIP-3009 name cannot be empty")
		}
		if version, ok := req.Extra["version"].(string); ok && version == "" {
			return fmt.Errorf("invalid requirement: EIP-3009 version cannot be empty")
		}
	}

	return nil
}

// ValidatePaymentPayload checks the envelope of a submitted payment.
func ValidatePaymentPayload(payment x402kit.PaymentPayload) error {
	if payment.X402Version != x402kit.X402Version {
		return fmt.Errorf("unsupported x402 version: %d", payment.X402Version)
	}
	if payment.Scheme == "" {
		return fmt.Errorf("scheme cannot be empty")
	}
	if payment.Network == "" {
		return fmt.Errorf("network cannot be empty")
	}
	if _, err := x402kit.NetworkFamily(payment.Network); err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}
	if payment.Payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}
	return nil
}
