package x402kit

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching.

var (
	// ErrChallengeParse indicates a 402 body that could not be parsed into
	// payment requirements.
	ErrChallengeParse = errors.New("malformed payment challenge")

	// ErrUnsupportedNetwork indicates no signer is registered for the
	// network a challenge demands payment on.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrAmbiguousNetwork indicates two signers were registered for the
	// same network id.
	ErrAmbiguousNetwork = errors.New("ambiguous signer registration")

	// ErrSigningFailed indicates local payment signing failed.
	ErrSigningFailed = errors.New("signing failed")

	// ErrPaymentRejected indicates the gate answered the paid retry with
	// another 402.
	ErrPaymentRejected = errors.New("payment rejected")

	// ErrTransport indicates a transport-level failure on the initial
	// request or the retry.
	ErrTransport = errors.New("transport failure")

	// ErrNoValidSigner indicates a signer exists for the network but cannot
	// satisfy the requirement (wrong token, amount over limit).
	ErrNoValidSigner = errors.New("no valid signer")

	// ErrInvalidRequirements indicates a requirement with missing or
	// malformed fields.
	ErrInvalidRequirements = errors.New("invalid payment requirements")

	// ErrInvalidAmount indicates a malformed or out-of-range amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountExceeded indicates the requested amount is above the
	// signer's per-call limit.
	ErrAmountExceeded = errors.New("amount exceeds per-call limit")

	// ErrInvalidKey indicates missing or malformed signing key material.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidKeystore indicates an unreadable or undecryptable keystore.
	ErrInvalidKeystore = errors.New("invalid keystore")

	// ErrInvalidMnemonic indicates an invalid BIP-39 mnemonic phrase.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidNetwork indicates a signer was configured without a usable
	// network id.
	ErrInvalidNetwork = errors.New("invalid network")

	// ErrNoTokens indicates a signer was configured without any token.
	ErrNoTokens = errors.New("no tokens configured")

	// ErrMalformedHeader indicates an unparseable X-PAYMENT header.
	ErrMalformedHeader = errors.New("malformed payment header")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("unsupported x402 version")

	// ErrUnsupportedScheme indicates no requirement matches the payment's
	// scheme and network.
	ErrUnsupportedScheme = errors.New("unsupported payment scheme")

	// ErrNonceMismatch indicates the payment's nonce echo does not match an
	// outstanding challenge nonce.
	ErrNonceMismatch = errors.New("challenge nonce mismatch")

	// ErrFacilitatorUnavailable indicates the facilitator could not be
	// reached.
	ErrFacilitatorUnavailable = errors.New("facilitator unavailable")

	// ErrVerificationFailed indicates the facilitator rejected the payment
	// during verification.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrSettlementFailed indicates on-chain settlement failed.
	ErrSettlementFailed = errors.New("settlement failed")
)

// ErrorCode classifies a PaymentError. The codes mirror the terminal outcomes
// of a payment-aware request: every failed round trip maps to exactly one.
type ErrorCode string

const (
	ErrCodeChallengeParse      ErrorCode = "CHALLENGE_PARSE"
	ErrCodeUnsupportedNetwork  ErrorCode = "UNSUPPORTED_NETWORK"
	ErrCodeAmbiguousNetwork    ErrorCode = "AMBIGUOUS_NETWORK"
	ErrCodeSigningFailed       ErrorCode = "SIGNING_FAILED"
	ErrCodePaymentRejected     ErrorCode = "PAYMENT_REJECTED"
	ErrCodeTransport           ErrorCode = "TRANSPORT"
	ErrCodeNoValidSigner       ErrorCode = "NO_VALID_SIGNER"
	ErrCodeInvalidRequirements ErrorCode = "INVALID_REQUIREMENTS"
)

// PaymentError is the typed error returned by the payment pipeline. It wraps
// the underlying cause and carries diagnostic details (offending network id,
// raw challenge snippet, upstream status) so callers can render a useful
// message without string matching.
type PaymentError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]any
}

// NewPaymentError creates a PaymentError wrapping err.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a diagnostic key/value pair and returns the error for
// chaining.
func (e *PaymentError) WithDetails(key string, value any) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
