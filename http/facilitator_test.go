package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	x402kit "github.com/aeither/x402-starter-kit"
)

func testPayment() x402kit.PaymentPayload {
	return x402kit.PaymentPayload{
		X402Version: x402kit.X402Version,
		Scheme:      x402kit.SchemeExact,
		Network:     "base-sepolia",
		Payload:     x402kit.EVMPayload{Signature: "0xsig"},
	}
}

func TestFacilitatorVerify(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req facilitatorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("undecodable body: %v", err)
		}
		if req.X402Version != x402kit.X402Version {
			t.Errorf("expected version %d, got %d", x402kit.X402Version, req.X402Version)
		}

		json.NewEncoder(w).Encode(VerifyResponse{IsValid: true, Payer: "0xpayer"})
	}))
	defer server.Close()

	client := &FacilitatorClient{
		BaseURL:       server.URL,
		Authorization: "Bearer token",
	}

	verify, err := client.Verify(context.Background(), testPayment(), gateRequirement())
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verify.IsValid || verify.Payer != "0xpayer" {
		t.Errorf("unexpected verify response: %+v", verify)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("expected static authorization header, got %q", gotAuth)
	}
}

func TestFacilitatorAuthorizationProviderWins(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(VerifyResponse{IsValid: true})
	}))
	defer server.Close()

	client := &FacilitatorClient{
		BaseURL:       server.URL,
		Authorization: "Bearer static",
		AuthorizationProvider: func() (string, error) {
			return "Bearer minted", nil
		},
	}

	if _, err := client.Verify(context.Background(), testPayment(), gateRequirement()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if gotAuth != "Bearer minted" {
		t.Errorf("provider should override static value, got %q", gotAuth)
	}
}

func TestFacilitatorVerifyNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	_, err := client.Verify(context.Background(), testPayment(), gateRequirement())
	if !errors.Is(err, x402kit.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestFacilitatorSettle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(x402kit.SettlementResponse{
			Success:     true,
			Transaction: "0xhash",
			Network:     "base-sepolia",
		})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	settlement, err := client.Settle(context.Background(), testPayment(), gateRequirement())
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !settlement.Success || settlement.Transaction != "0xhash" {
		t.Errorf("unexpected settlement: %+v", settlement)
	}
}

func TestFacilitatorUnreachable(t *testing.T) {
	client := &FacilitatorClient{BaseURL: "http://127.0.0.1:1"}
	_, err := client.Verify(context.Background(), testPayment(), gateRequirement())
	if !errors.Is(err, x402kit.ErrFacilitatorUnavailable) {
		t.Fatalf("expected ErrFacilitatorUnavailable, got %v", err)
	}
}

func TestEnrichRequirements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/supported" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SupportedResponse{
			Kinds: []SupportedKind{
				{
					X402Version: x402kit.X402Version,
					Scheme:      x402kit.SchemeExact,
					Network:     "solana-devnet",
					Extra: map[string]any{
						"feePayer": "GsbwXfJraMomNxBcjYLcG3mxkBUiyWXAB32fGbSMQRdW",
						"name":     "facilitator-name",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}

	req := gateRequirement()
	req.Extra = map[string]any{"name": "user-name"}

	enriched, err := client.EnrichRequirements(context.Background(), []x402kit.PaymentRequirement{req})
	if err != nil {
		t.Fatalf("enrich failed: %v", err)
	}
	if len(enriched) != 1 {
		t.Fatalf("expected 1 requirement, got %d", len(enriched))
	}

	extra := enriched[0].Extra
	if extra["feePayer"] != "GsbwXfJraMomNxBcjYLcG3mxkBUiyWXAB32fGbSMQRdW" {
		t.Errorf("expected facilitator feePayer merged, got %v", extra["feePayer"])
	}
	// User-specified values are never overwritten.
	if extra["name"] != "user-name" {
		t.Errorf("expected user value to win, got %v", extra["name"])
	}
}
