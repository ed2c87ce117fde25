package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	x402kit "github.com/aeither/x402-starter-kit"
)

// Default facilitator operation timeouts. Verification is a signature check;
// settlement waits for a blockchain transaction.
const (
	DefaultVerifyTimeout = 5 * time.Second
	DefaultSettleTimeout = 60 * time.Second
)

// AuthorizationProvider returns an Authorization header value for a
// facilitator request. Used for tokens that need periodic refresh.
type AuthorizationProvider func() (string, error)

// FacilitatorClient talks to an x402 facilitator service, the component that
// verifies payment authorizations and settles them on-chain on the server's
// behalf.
type FacilitatorClient struct {
	BaseURL string
	Client  *http.Client

	// VerifyTimeout and SettleTimeout cap the respective operations; zero
	// values fall back to the package defaults.
	VerifyTimeout time.Duration
	SettleTimeout time.Duration

	// Authorization is a static Authorization header value, e.g. a Bearer
	// API key. AuthorizationProvider takes precedence when both are set.
	Authorization         string
	AuthorizationProvider AuthorizationProvider
}

// facilitatorRequest is the body POSTed to /verify and /settle.
type facilitatorRequest struct {
	X402Version         int                        `json:"x402Version"`
	PaymentPayload      x402kit.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402kit.PaymentRequirement `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator's verification verdict.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer"`
}

// SupportedKind is one payment type a facilitator supports.
type SupportedKind struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// SupportedResponse is the body of the facilitator /supported endpoint.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// Verify checks a payment authorization without executing it.
func (c *FacilitatorClient) Verify(ctx context.Context, payment x402kit.PaymentPayload, requirement x402kit.PaymentRequirement) (*VerifyResponse, error) {
	timeout := c.VerifyTimeout
	if timeout == 0 {
		timeout = DefaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.post(ctx, "/verify", payment, requirement)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", x402kit.ErrVerificationFailed, resp.StatusCode)
	}

	var verifyResp VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	return &verifyResp, nil
}

// Settle executes a verified payment on-chain.
func (c *FacilitatorClient) Settle(ctx context.Context, payment x402kit.PaymentPayload, requirement x402kit.PaymentRequirement) (*x402kit.SettlementResponse, error) {
	timeout := c.SettleTimeout
	if timeout == 0 {
		timeout = DefaultSettleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.post(ctx, "/settle", payment, requirement)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", x402kit.ErrSettlementFailed, resp.StatusCode)
	}

	var settlement x402kit.SettlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&settlement); err != nil {
		return nil, fmt.Errorf("failed to decode settlement response: %w", err)
	}
	return &settlement, nil
}

// Supported queries the payment types the facilitator accepts.
func (c *FacilitatorClient) Supported(ctx context.Context) (*SupportedResponse, error) {
	timeout := c.VerifyTimeout
	if timeout == 0 {
		timeout = DefaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.authorize(httpReq); err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402kit.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supported endpoint failed: status %d", resp.StatusCode)
	}

	var supported SupportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&supported); err != nil {
		return nil, fmt.Errorf("failed to decode supported response: %w", err)
	}
	return &supported, nil
}

// EnrichRequirements merges facilitator-provided extra data (notably the SVM
// feePayer) into the given requirements. User-specified values win.
func (c *FacilitatorClient) EnrichRequirements(ctx context.Context, requirements []x402kit.PaymentRequirement) ([]x402kit.PaymentRequirement, error) {
	supported, err := c.Supported(ctx)
	if err != nil {
		return requirements, fmt.Errorf("failed to fetch supported payment types: %w", err)
	}

	kindsByKey := make(map[string]SupportedKind, len(supported.Kinds))
	for _, kind := range supported.Kinds {
		kindsByKey[kind.Network+"-"+kind.Scheme] = kind
	}

	enriched := make([]x402kit.PaymentRequirement, len(requirements))
	for i, req := range requirements {
		enriched[i] = req
		kind, ok := kindsByKey[req.Network+"-"+req.Scheme]
		if !ok || kind.Extra == nil {
			continue
		}
		if enriched[i].Extra == nil {
			enriched[i].Extra = make(map[string]any, len(kind.Extra))
		}
		for k, v := range kind.Extra {
			if _, exists := enriched[i].Extra[k]; !exists {
				enriched[i].Extra[k] = v
			}
		}
	}

	return enriched, nil
}

func (c *FacilitatorClient) post(ctx context.Context, path string, payment x402kit.PaymentPayload, requirement x402kit.PaymentRequirement) (*http.Response, error) {
	body := facilitatorRequest{
		X402Version:         x402kit.X402Version,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.authorize(httpReq); err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402kit.ErrFacilitatorUnavailable, err)
	}
	return resp, nil
}

func (c *FacilitatorClient) authorize(req *http.Request) error {
	if c.AuthorizationProvider != nil {
		value, err := c.AuthorizationProvider()
		if err != nil {
			return fmt.Errorf("authorization provider: %w", err)
		}
		req.Header.Set("Authorization", value)
		return nil
	}
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}
	return nil
}

func (c *FacilitatorClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
