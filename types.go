// Package x402kit contains the protocol types and the network signer registry
// used by the x402 starter kit. The wire format is x402 protocol version 1:
// servers answer unpaid requests with HTTP 402 and a JSON body listing the
// payment options they accept, clients retry once with a signed payment
// attached in the X-PAYMENT header.
package x402kit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// X402Version is the protocol version this module speaks.
const X402Version = 1

// SchemeExact is the only payment scheme the starter kit supports: the client
// authorizes a transfer of exactly the requested amount.
const SchemeExact = "exact"

// DefaultTimeoutSeconds is the payment validity window used when a
// requirement does not set one.
const DefaultTimeoutSeconds = 300

// PaymentHeader is the request header carrying the signed payment.
const PaymentHeader = "X-PAYMENT"

// SettlementHeader is the response header carrying the settlement result.
const SettlementHeader = "X-PAYMENT-RESPONSE"

// PaymentRequirement is a single payment option offered in a 402 challenge.
// Parsers must tolerate unknown extra fields; the protocol owner may extend
// the schema at any time.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier (currently always "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier, either a concrete id
	// ("base-sepolia", "solana-devnet") or a family id ("evm", "svm").
	Network string `json:"network"`

	// MaxAmountRequired is the amount in atomic units as a decimal string.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Asset is the token contract address (EVM) or mint address (Solana).
	Asset string `json:"asset"`

	// PayTo is the payment recipient address.
	PayTo string `json:"payTo"`

	// Resource is the URL of the protected resource.
	Resource string `json:"resource,omitempty"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType,omitempty"`

	// MaxTimeoutSeconds bounds the validity window of the authorization.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`

	// Nonce is an optional single-use challenge nonce issued by the gate.
	// When present the client must echo it on the payment payload.
	Nonce string `json:"nonce,omitempty"`

	// Extra carries scheme- or network-specific data (EIP-3009 domain
	// parameters, facilitator fee payer, ...).
	Extra map[string]any `json:"extra,omitempty"`
}

// PaymentRequirementsResponse is the body of a 402 challenge.
type PaymentRequirementsResponse struct {
	X402Version int                  `json:"x402Version"`
	Error       string               `json:"error"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// PaymentPayload is the signed payment the client attaches to the retried
// request. Payload holds the network-specific signed data: EVMPayload for
// EVM chains, SVMPayload for Solana.
type PaymentPayload struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`

	// Nonce echoes the challenge nonce when the gate issued one.
	Nonce string `json:"nonce,omitempty"`

	Payload any `json:"payload"`
}

// EVMPayload carries an EIP-3009 transferWithAuthorization signature.
type EVMPayload struct {
	// Signature is the hex-encoded ECDSA signature over the EIP-712 digest.
	Signature string `json:"signature"`

	// Authorization holds the transferWithAuthorization parameters.
	Authorization EVMAuthorization `json:"authorization"`
}

// EVMAuthorization mirrors the EIP-3009 transferWithAuthorization arguments.
// All numeric values are decimal strings; Nonce is a 32-byte hex string.
type EVMAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SVMPayload carries a base64-encoded, partially signed Solana transaction.
// The client signs as transfer authority; the facilitator adds the fee payer
// signature before submission.
type SVMPayload struct {
	Transaction string `json:"transaction"`
}

// SettlementResponse is the gate's settlement result, returned base64-encoded
// in the X-PAYMENT-RESPONSE header of the final response.
type SettlementResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`

	// Transaction is the on-chain transaction hash, the settlement reference
	// surfaced to callers.
	Transaction string `json:"transaction,omitempty"`

	Network string `json:"network"`
	Payer   string `json:"payer"`
}

// TokenConfig describes a token a signer is able to pay with.
type TokenConfig struct {
	// Address is the token contract address (EVM) or mint address (Solana).
	Address string

	// Symbol is the token symbol, e.g. "USDC".
	Symbol string

	// Decimals is the number of decimal places of the token.
	Decimals int
}

// AmountToAtomic converts a human-readable decimal amount ("1.5") to atomic
// units as *big.Int (1500000 with 6 decimals). Returns ErrInvalidAmount for
// malformed input, negative amounts, or precision beyond the token's decimals.
func AmountToAtomic(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if d.IsNegative() {
		return nil, ErrInvalidAmount
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, ErrInvalidAmount
	}
	return shifted.BigInt(), nil
}

// AtomicToAmount converts atomic units back to a decimal string, e.g.
// 1500000 with 6 decimals becomes "1.5".
func AtomicToAmount(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}
