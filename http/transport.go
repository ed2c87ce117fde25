package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	x402kit "github.com/aeither/x402-starter-kit"
	"github.com/aeither/x402-starter-kit/encoding"
	"github.com/aeither/x402-starter-kit/validation"
)

// challengeSnippetLimit bounds the raw challenge bytes carried in error
// details.
const challengeSnippetLimit = 256

// PaymentTransport is an http.RoundTripper that performs the x402 payment
// handshake: it issues the request as-is, and when the server answers with
// 402 Payment Required it signs a payment for the challenge and retries the
// request exactly once with the payment attached.
//
// The transport holds no mutable state between round trips; the signer
// registry is read-only, so a single PaymentTransport is safe for concurrent
// use.
type PaymentTransport struct {
	// Base is the underlying RoundTripper; http.DefaultTransport if nil.
	Base http.RoundTripper

	// Registry resolves challenge networks to signers.
	Registry *x402kit.SignerRegistry

	// Payment lifecycle callbacks, all optional.
	OnPaymentAttempt x402kit.PaymentCallback
	OnPaymentSuccess x402kit.PaymentCallback
	OnPaymentFailure x402kit.PaymentCallback
}

// RoundTrip implements http.RoundTripper.
//
// Outcomes are terminal for one call: a malformed challenge, an unresolvable
// network, a signing failure, a transport failure, or a second 402 after the
// paid retry each surface as a typed *x402kit.PaymentError. The caller's
// context governs both HTTP calls; cancellation during the first call
// suppresses the retry.
func (t *PaymentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req.Clone(req.Context()))
	if err != nil {
		return nil, x402kit.NewPaymentError(x402kit.ErrCodeTransport, "initial request failed", err).
			WithDetails("url", req.URL.String())
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	challenge, err := parseChallenge(resp)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	payment, requirement, err := t.Registry.SelectAndSign(challenge.Accepts)
	if err != nil {
		t.emitFailure(req, err, 0)
		return nil, err
	}

	startTime := time.Now()
	t.emit(t.OnPaymentAttempt, x402kit.PaymentEvent{
		Type:      x402kit.PaymentEventAttempt,
		Timestamp: startTime,
		URL:       req.URL.String(),
		Network:   payment.Network,
		Scheme:    payment.Scheme,
		Amount:    requirement.MaxAmountRequired,
		Asset:     requirement.Asset,
		Recipient: requirement.PayTo,
	})

	header, err := encoding.EncodePayment(*payment)
	if err != nil {
		err = x402kit.NewPaymentError(x402kit.ErrCodeSigningFailed, "failed to encode payment header", err)
		t.emitFailure(req, err, time.Since(startTime))
		return nil, err
	}

	// Cancellation during the first exchange must not trigger a paid retry.
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	retryReq := req.Clone(req.Context())
	retryReq.Header.Set(x402kit.PaymentHeader, header)

	retryResp, err := base.RoundTrip(retryReq)
	duration := time.Since(startTime)
	if err != nil {
		err = x402kit.NewPaymentError(x402kit.ErrCodeTransport, "paid retry failed", err).
			WithDetails("url", req.URL.String())
		t.emitFailure(req, err, duration)
		return nil, err
	}

	// A second 402 means the gate rejected the payment we just built. The
	// handshake is bounded at one retry, so surface it instead of looping.
	if retryResp.StatusCode == http.StatusPaymentRequired {
		reason := rejectionReason(retryResp)
		retryResp.Body.Close()
		err = x402kit.NewPaymentError(x402kit.ErrCodePaymentRejected, "payment rejected by gate", x402kit.ErrPaymentRejected).
			WithDetails("network", payment.Network).
			WithDetails("reason", reason)
		t.emitFailure(req, err, duration)
		return nil, err
	}

	if settlement := SettlementFromResponse(retryResp); settlement != nil && settlement.Success {
		t.emit(t.OnPaymentSuccess, x402kit.PaymentEvent{
			Type:        x402kit.PaymentEventSuccess,
			Timestamp:   time.Now(),
			URL:         req.URL.String(),
			Network:     requirement.Network,
			Scheme:      requirement.Scheme,
			Amount:      requirement.MaxAmountRequired,
			Asset:       requirement.Asset,
			Recipient:   requirement.PayTo,
			Transaction: settlement.Transaction,
			Payer:       settlement.Payer,
			Duration:    duration,
		})
	}

	return retryResp, nil
}

func (t *PaymentTransport) emit(cb x402kit.PaymentCallback, event x402kit.PaymentEvent) {
	if cb != nil {
		cb(event)
	}
}

func (t *PaymentTransport) emitFailure(req *http.Request, err error, duration time.Duration) {
	t.emit(t.OnPaymentFailure, x402kit.PaymentEvent{
		Type:      x402kit.PaymentEventFailure,
		Timestamp: time.Now(),
		URL:       req.URL.String(),
		Error:     err,
		Duration:  duration,
	})
}

// parseChallenge reads a 402 response body into the challenge structure.
// Unknown fields are ignored; a body without a usable accepts list is a
// parse failure, not a retry trigger.
func parseChallenge(resp *http.Response) (*x402kit.PaymentRequirementsResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, x402kit.NewPaymentError(x402kit.ErrCodeChallengeParse, "failed to read challenge body", err)
	}

	var challenge x402kit.PaymentRequirementsResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, x402kit.NewPaymentError(x402kit.ErrCodeChallengeParse, "failed to parse challenge JSON", err).
			WithDetails("body", snippet(body))
	}

	if len(challenge.Accepts) == 0 {
		return nil, x402kit.NewPaymentError(x402kit.ErrCodeChallengeParse, "challenge offers no payment options", x402kit.ErrChallengeParse).
			WithDetails("body", snippet(body))
	}

	for _, req := range challenge.Accepts {
		if req.Network == "" || req.Asset == "" || req.PayTo == "" || req.MaxAmountRequired == "" {
			return nil, x402kit.NewPaymentError(x402kit.ErrCodeChallengeParse, "challenge option missing required fields", x402kit.ErrChallengeParse).
				WithDetails("network", req.Network).
				WithDetails("body", snippet(body))
		}
		if err := validation.ValidateAmount(req.MaxAmountRequired); err != nil {
			return nil, x402kit.NewPaymentError(x402kit.ErrCodeChallengeParse, "challenge option has malformed amount", x402kit.ErrChallengeParse).
				WithDetails("network", req.Network).
				WithDetails("amount", req.MaxAmountRequired).
				WithDetails("body", snippet(body))
		}
	}

	return &challenge, nil
}

// rejectionReason extracts the error message from a rejected-payment 402, if
// any.
func rejectionReason(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	var challenge x402kit.PaymentRequirementsResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return snippet(body)
	}
	return challenge.Error
}

func snippet(body []byte) string {
	if len(body) > challengeSnippetLimit {
		return fmt.Sprintf("%s... (%d bytes)", body[:challengeSnippetLimit], len(body))
	}
	return string(body)
}

// SettlementFromResponse extracts the settlement from the
// X-PAYMENT-RESPONSE header, or nil when the header is absent or
// unparseable.
func SettlementFromResponse(resp *http.Response) *x402kit.SettlementResponse {
	header := resp.Header.Get(x402kit.SettlementHeader)
	if header == "" {
		return nil
	}
	settlement, err := encoding.DecodeSettlement(header)
	if err != nil {
		return nil
	}
	return &settlement
}
