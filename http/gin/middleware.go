// Package gin adapts the x402 payment gate to Gin. It is a thin layer over
// the http package helpers; gin handlers write through c.Writer, so the
// payment is verified and settled before the handler chain runs.
package gin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	x402kit "github.com/aeither/x402-starter-kit"
	xhttp "github.com/aeither/x402-starter-kit/http"
	"github.com/aeither/x402-starter-kit/metrics"
)

// ContextKey is the gin context key holding the *xhttp.VerifyResponse of the
// verified payment.
const ContextKey = "x402_payment"

// NewPaymentMiddleware returns a gin.HandlerFunc gating handlers behind an
// x402 payment. Challenges carry a single-use nonce; a payment echoing a
// replayed or unknown nonce is re-challenged. On success the verification
// result is stored under ContextKey and under xhttp.PaymentContextKey in the
// request context; on failure the chain is aborted with a 402/400/503
// response.
func NewPaymentMiddleware(config *xhttp.Config) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := config.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	facilitator := &xhttp.FacilitatorClient{
		BaseURL:               config.FacilitatorURL,
		Client:                &http.Client{},
		Authorization:         config.FacilitatorAuthorization,
		AuthorizationProvider: config.FacilitatorAuthorizationProvider,
	}

	var fallback *xhttp.FacilitatorClient
	if config.FallbackFacilitatorURL != "" {
		fallback = &xhttp.FacilitatorClient{
			BaseURL: config.FallbackFacilitatorURL,
			Client:  &http.Client{},
		}
	}

	setupCtx, cancel := context.WithTimeout(context.Background(), xhttp.DefaultVerifyTimeout)
	defer cancel()
	requirements, err := facilitator.EnrichRequirements(setupCtx, config.PaymentRequirements)
	if err != nil {
		logger.Warn("failed to enrich payment requirements from facilitator", "error", err)
		requirements = config.PaymentRequirements
	}
	requirements = xhttp.ValidRequirements(requirements, logger)

	nonces := xhttp.NewChallengeNonces(xhttp.ChallengeNonceTTL)

	return func(c *gin.Context) {
		offered := offeredRequirements(requirements, c.Request)

		if c.GetHeader(x402kit.PaymentHeader) == "" {
			logger.Info("no payment header provided", "path", c.Request.URL.Path)
			abortPaymentRequired(c, offered, nonces, recorder, logger)
			return
		}

		payment, err := xhttp.ParsePaymentHeader(c.Request)
		if err != nil {
			logger.Warn("invalid payment header", "error", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"x402Version": x402kit.X402Version,
				"error":       "Invalid payment header",
			})
			return
		}

		requirement, err := xhttp.FindMatchingRequirement(payment, offered)
		if err != nil {
			logger.Warn("no matching requirement", "error", err)
			abortPaymentRequired(c, offered, nonces, recorder, logger)
			return
		}

		// A nonce echo must correspond to an outstanding challenge. Payments
		// without an echo are accepted for protocol compatibility with
		// clients that ignore the nonce field.
		if payment.Nonce != "" && !nonces.Consume(payment.Nonce) {
			logger.Warn("stale or unknown challenge nonce", "network", payment.Network)
			abortPaymentRequired(c, offered, nonces, recorder, logger)
			return
		}

		logger.Info("verifying payment", "scheme", payment.Scheme, "network", payment.Network)
		verifyResp, err := facilitator.Verify(c.Request.Context(), payment, requirement)
		if err != nil && fallback != nil {
			logger.Warn("primary facilitator failed, trying fallback", "error", err)
			verifyResp, err = fallback.Verify(c.Request.Context(), payment, requirement)
		}
		if err != nil {
			logger.Error("facilitator verification failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"x402Version": x402kit.X402Version,
				"error":       "Payment verification failed",
			})
			return
		}

		recorder.PaymentVerified(payment.Network, verifyResp.IsValid)
		if !verifyResp.IsValid {
			logger.Warn("payment verification failed", "reason", verifyResp.InvalidReason)
			abortPaymentRequired(c, offered, nonces, recorder, logger)
			return
		}

		logger.Info("payment verified", "payer", verifyResp.Payer)

		if !config.VerifyOnly {
			logger.Info("settling payment", "payer", verifyResp.Payer)
			settlement, err := facilitator.Settle(c.Request.Context(), payment, requirement)
			if err != nil && fallback != nil {
				logger.Warn("primary facilitator settlement failed, trying fallback", "error", err)
				settlement, err = fallback.Settle(c.Request.Context(), payment, requirement)
			}
			if err != nil {
				logger.Error("settlement failed", "error", err)
				recorder.PaymentSettled(payment.Network, false)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"x402Version": x402kit.X402Version,
					"error":       "Payment settlement failed",
				})
				return
			}

			recorder.PaymentSettled(payment.Network, settlement.Success)
			if !settlement.Success {
				logger.Warn("settlement unsuccessful", "reason", settlement.ErrorReason)
				abortPaymentRequired(c, offered, nonces, recorder, logger)
				return
			}

			logger.Info("payment settled", "transaction", settlement.Transaction)
			if err := xhttp.WriteSettlementHeader(c.Writer, settlement); err != nil {
				logger.Warn("failed to write settlement header", "error", err)
			}
		}

		c.Set(ContextKey, verifyResp)
		ctx := context.WithValue(c.Request.Context(), xhttp.PaymentContextKey, verifyResp)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// PaymentFromContext returns the verification result of the request's
// payment, if the gate let it through.
func PaymentFromContext(c *gin.Context) (*xhttp.VerifyResponse, bool) {
	value, ok := c.Get(ContextKey)
	if !ok {
		return nil, false
	}
	verify, ok := value.(*xhttp.VerifyResponse)
	return verify, ok
}

func offeredRequirements(requirements []x402kit.PaymentRequirement, r *http.Request) []x402kit.PaymentRequirement {
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

// abortPaymentRequired stamps a fresh single-use nonce onto the offered
// requirements and ends the chain with the 402 challenge.
func abortPaymentRequired(c *gin.Context, offered []x402kit.PaymentRequirement, nonces *xhttp.ChallengeNonces, recorder metrics.Recorder, logger *slog.Logger) {
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
	c.AbortWithStatusJSON(http.StatusPaymentRequired, x402kit.PaymentRequirementsResponse{
		X402Version: x402kit.X402Version,
		Error:       "Payment required for this resource",
		Accepts:     stamped,
	})
}
