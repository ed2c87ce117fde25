// Package http implements the client and server sides of the x402 payment
// handshake over HTTP: a payment-aware RoundTripper for callers and a
// payment-gating middleware for servers.
package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	x402kit "github.com/aeither/x402-starter-kit"
	"github.com/aeither/x402-starter-kit/metrics"
	"github.com/aeither/x402-starter-kit/validation"
)

// Config configures the payment gate middleware.
type Config struct {
	// FacilitatorURL is the facilitator endpoint used for verification and
	// settlement (required).
	FacilitatorURL string

	// FallbackFacilitatorURL is an optional backup facilitator tried when
	// the primary fails.
	FallbackFacilitatorURL string

	// PaymentRequirements lists the payment options the gate offers.
	PaymentRequirements []x402kit.PaymentRequirement

	// VerifyOnly skips settlement; payments are verified but never executed.
	VerifyOnly bool

	// FacilitatorAuthorization is a static Authorization header value for
	// the facilitator. FacilitatorAuthorizationProvider wins when both are
	// set.
	FacilitatorAuthorization         string
	FacilitatorAuthorizationProvider AuthorizationProvider

	// Metrics receives gate activity; defaults to a no-op recorder.
	Metrics metrics.Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// contextKey avoids collisions with other packages' context values.
type contextKey string

// PaymentContextKey holds the *VerifyResponse of the verified payment in the
// request context of gated handlers.
const PaymentContextKey = contextKey("x402_payment")

// ChallengeNonceTTL bounds how long an issued challenge nonce stays
// redeemable.
const ChallengeNonceTTL = DefaultSettleTimeout * 5

// NewPaymentMiddleware builds a net/http middleware that gates handlers
// behind an x402 payment.
//
// Unpaid requests receive a 402 challenge carrying the configured payment
// options, the concrete resource URL, and a single-use nonce. Paid requests
// are verified with the facilitator up front and settled at the moment the
// handler commits a success response, so a handler error never burns a
// payment.
func NewPaymentMiddleware(config *Config) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := config.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	facilitator := &FacilitatorClient{
		BaseURL:               config.FacilitatorURL,
		Client:                &http.Client{},
		Authorization:         config.FacilitatorAuthorization,
		AuthorizationProvider: config.FacilitatorAuthorizationProvider,
	}

	var fallback *FacilitatorClient
	if config.FallbackFacilitatorURL != "" {
		fallback = &FacilitatorClient{
			BaseURL: config.FallbackFacilitatorURL,
			Client:  &http.Client{},
		}
	}

	// Fetch network-specific extras (like the SVM feePayer) once at setup.
	ctx, cancel := context.WithTimeout(context.Background(), DefaultVerifyTimeout)
	defer cancel()
	requirements, err := facilitator.EnrichRequirements(ctx, config.PaymentRequirements)
	if err != nil {
		logger.Warn("failed to enrich payment requirements from facilitator", "error", err)
		requirements = config.PaymentRequirements
	}

	requirements = ValidRequirements(requirements, logger)

	nonces := NewChallengeNonces(ChallengeNonceTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			offered := requirementsForRequest(requirements, r)

			if r.Header.Get(x402kit.PaymentHeader) == "" {
				logger.Info("no payment header provided", "path", r.URL.Path)
				issueChallenge(w, offered, nonces, recorder, logger)
				return
			}

			payment, err := ParsePaymentHeader(r)
			if err != nil {
				logger.Warn("invalid payment header", "error", err)
				http.Error(w, "Invalid payment header", http.StatusBadRequest)
				return
			}

			requirement, err := FindMatchingRequirement(payment, offered)
			if err != nil {
				logger.Warn("no matching requirement", "error", err)
				issueChallenge(w, offered, nonces, recorder, logger)
				return
			}

			// A nonce echo must correspond to an outstanding challenge.
			// Payments without an echo are accepted for protocol
			// compatibility with clients that ignore the nonce field.
			if payment.Nonce != "" && !nonces.Consume(payment.Nonce) {
				logger.Warn("stale or unknown challenge nonce", "network", payment.Network)
				issueChallenge(w, offered, nonces, recorder, logger)
				return
			}

			logger.Info("verifying payment", "scheme", payment.Scheme, "network", payment.Network)
			verifyResp, err := facilitator.Verify(r.Context(), payment, requirement)
			if err != nil && fallback != nil {
				logger.Warn("primary facilitator failed, trying fallback", "error", err)
				verifyResp, err = fallback.Verify(r.Context(), payment, requirement)
			}
			if err != nil {
				logger.Error("facilitator verification failed", "error", err)
				http.Error(w, "Payment verification failed", http.StatusServiceUnavailable)
				return
			}

			recorder.PaymentVerified(payment.Network, verifyResp.IsValid)
			if !verifyResp.IsValid {
				logger.Warn("payment verification failed", "reason", verifyResp.InvalidReason)
				issueChallenge(w, offered, nonces, recorder, logger)
				return
			}

			logger.Info("payment verified", "payer", verifyResp.Payer)
			r = r.WithContext(context.WithValue(r.Context(), PaymentContextKey, verifyResp))

			interceptor := &settlementInterceptor{
				w: w,
				settleFunc: func() bool {
					if config.VerifyOnly {
						return true
					}

					logger.Info("settling payment", "payer", verifyResp.Payer)
					settlement, err := facilitator.Settle(r.Context(), payment, requirement)
					if err != nil && fallback != nil {
						logger.Warn("primary facilitator settlement failed, trying fallback", "error", err)
						settlement, err = fallback.Settle(r.Context(), payment, requirement)
					}
					if err != nil {
						logger.Error("settlement failed", "error", err)
						recorder.PaymentSettled(payment.Network, false)
						http.Error(w, "Payment settlement failed", http.StatusServiceUnavailable)
						return false
					}

					recorder.PaymentSettled(payment.Network, settlement.Success)
					if !settlement.Success {
						logger.Warn("settlement unsuccessful", "reason", settlement.ErrorReason)
						issueChallenge(w, offered, nonces, recorder, logger)
						return false
					}

					logger.Info("payment settled", "transaction", settlement.Transaction)
					if err := WriteSettlementHeader(w, settlement); err != nil {
						// Payment went through; the client just loses the
						// settlement reference.
						logger.Warn("failed to write settlement header", "error", err)
					}
					return true
				},
				onFailure: func(statusCode int) {
					logger.Warn("handler returned non-success, skipping settlement", "status", statusCode)
				},
			}
			next.ServeHTTP(interceptor, r)
		})
	}
}

// requirementsForRequest copies the configured requirements with the
// concrete resource URL and a default description filled in.
func requirementsForRequest(requirements []x402kit.PaymentRequirement, r *http.Request) []x402kit.PaymentRequirement {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	resourceURL := scheme + "://" + r.Host + r.RequestURI

	offered := make([]x402kit.PaymentRequirement, len(requirements))
	for i, req := range requirements {
		offered[i] = req
		offered[i].Resource = resourceURL
		if offered[i].Description == "" {
			offered[i].Description = "Payment required for " + r.URL.Path
		}
	}
	return offered
}

// ValidRequirements drops misconfigured payment options so the gate never
// offers a challenge the facilitator cannot verify. Each dropped option is
// logged with the validation failure.
func ValidRequirements(requirements []x402kit.PaymentRequirement, logger *slog.Logger) []x402kit.PaymentRequirement {
	checked := make([]x402kit.PaymentRequirement, 0, len(requirements))
	for _, req := range requirements {
		if err := validation.ValidatePaymentRequirement(req); err != nil {
			logger.Error("dropping invalid payment requirement", "network", req.Network, "error", err)
			continue
		}
		checked = append(checked, req)
	}
	return checked
}

// issueChallenge stamps a fresh nonce onto the offered requirements and
// writes the 402 response.
func issueChallenge(w http.ResponseWriter, offered []x402kit.PaymentRequirement, nonces *ChallengeNonces, recorder metrics.Recorder, logger *slog.Logger) {
	nonce, err := nonces.Issue()
	if err != nil {
		logger.Error("failed to issue challenge nonce", "error", err)
	}

	stamped := make([]x402kit.PaymentRequirement, len(offered))
	for i, req := range offered {
		stamped[i] = req
		stamped[i].Nonce = nonce
		recorder.ChallengeIssued(req.Network)
	}
	SendPaymentRequired(w, stamped)
}

// settlementInterceptor defers settlement until the handler commits a
// success status. Error responses pass through unsettled; a failed
// settlement replaces the handler's response entirely.
type settlementInterceptor struct {
	w          http.ResponseWriter
	settleFunc func() bool
	onFailure  func(statusCode int)
	committed  bool
	hijacked   bool
}

func (i *settlementInterceptor) Header() http.Header {
	return i.w.Header()
}

func (i *settlementInterceptor) Write(b []byte) (int, error) {
	// Write without WriteHeader implies 200 OK, so the settlement check
	// runs now.
	if !i.committed {
		i.WriteHeader(http.StatusOK)
	}

	// After a failed settlement the error response is already on the wire;
	// swallow the handler's payload to avoid a mixed body.
	if i.hijacked {
		return len(b), nil
	}

	return i.w.Write(b)
}

func (i *settlementInterceptor) WriteHeader(statusCode int) {
	if i.committed {
		return
	}
	i.committed = true

	// Handler errors pass through without settling.
	if statusCode >= 400 {
		if i.onFailure != nil {
			i.onFailure(statusCode)
		}
		i.w.WriteHeader(statusCode)
		return
	}

	if !i.settleFunc() {
		// settleFunc already wrote the error response.
		i.hijacked = true
		return
	}

	i.w.WriteHeader(statusCode)
}

// Flush implements http.Flusher for streaming handlers.
func (i *settlementInterceptor) Flush() {
	if flusher, ok := i.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker.
func (i *settlementInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := i.w.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

// Push implements http.Pusher.
func (i *settlementInterceptor) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := i.w.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}
