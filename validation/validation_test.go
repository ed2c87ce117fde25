package validation

import (
	"strings"
	"testing"

	x402kit "github.com/aeither/x402-starter-kit"
)

const (
	validEVMAddress    = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	validSolanaAddress = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{name: "valid", amount: "10000"},
		{name: "one", amount: "1"},
		{name: "large", amount: "999999999999999999999999"},
		{name: "empty", amount: "", wantErr: true},
		{name: "zero", amount: "0", wantErr: true},
		{name: "negative", amount: "-5", wantErr: true},
		{name: "decimal", amount: "0.01", wantErr: true},
		{name: "hex", amount: "0x10", wantErr: true},
		{name: "not a number", amount: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount(%q) = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		network string
		wantErr bool
	}{
		{name: "valid EVM on base", address: validEVMAddress, network: "base"},
		{name: "valid EVM on family id", address: validEVMAddress, network: "evm"},
		{name: "valid Solana", address: validSolanaAddress, network: "solana"},
		{name: "valid Solana on family id", address: validSolanaAddress, network: "svm"},
		{name: "empty address", address: "", network: "base", wantErr: true},
		{name: "EVM address too short", address: "0x1234", network: "base", wantErr: true},
		{name: "EVM address missing prefix", address: strings.TrimPrefix(validEVMAddress, "0x"), network: "base", wantErr: true},
		{name: "EVM address on solana", address: validEVMAddress, network: "solana", wantErr: true},
		{name: "Solana address on base", address: validSolanaAddress, network: "base", wantErr: true},
		{name: "base58 with forbidden chars", address: "0OIl" + validSolanaAddress[4:], network: "solana", wantErr: true},
		{name: "unknown network", address: validEVMAddress, network: "bitcoin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address, tt.network)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q, %q) = %v, wantErr %v", tt.address, tt.network, err, tt.wantErr)
			}
		})
	}
}

func validRequirement() x402kit.PaymentRequirement {
	return x402kit.PaymentRequirement{
		Scheme:            x402kit.SchemeExact,
		Network:           "base-sepolia",
		MaxAmountRequired: "10000",
		Asset:             validEVMAddress,
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		MaxTimeoutSeconds: 300,
		Extra:             map[string]any{"name": "USDC", "version": "2"},
	}
}

func TestValidatePaymentRequirement(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*x402kit.PaymentRequirement)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *x402kit.PaymentRequirement) {}},
		{name: "valid without extra", mutate: func(r *x402kit.PaymentRequirement) { r.Extra = nil }},
		{
			name: "valid solana requirement",
			mutate: func(r *x402kit.PaymentRequirement) {
				r.Network = "solana-devnet"
				r.Asset = validSolanaAddress
				r.PayTo = "GsbwXfJraMomNxBcjYLcG3mxkBUiyWXAB32fGbSMQRdW"
				r.Extra = nil
			},
		},
		{name: "empty amount", mutate: func(r *x402kit.PaymentRequirement) { r.MaxAmountRequired = "" }, wantErr: true},
		{name: "empty network", mutate: func(r *x402kit.PaymentRequirement) { r.Network = "" }, wantErr: true},
		{name: "unknown network", mutate: func(r *x402kit.PaymentRequirement) { r.Network = "bitcoin" }, wantErr: true},
		{name: "empty payTo", mutate: func(r *x402kit.PaymentRequirement) { r.PayTo = "" }, wantErr: true},
		{name: "bad payTo", mutate: func(r *x402kit.PaymentRequirement) { r.PayTo = "0x1234" }, wantErr: true},
		{name: "empty asset", mutate: func(r *x402kit.PaymentRequirement) { r.Asset = "" }, wantErr: true},
		{name: "empty scheme", mutate: func(r *x402kit.PaymentRequirement) { r.Scheme = "" }, wantErr: true},
		{name: "unknown scheme", mutate: func(r *x402kit.PaymentRequirement) { r.Scheme = "upto" }, wantErr: true},
		{name: "negative timeout", mutate: func(r *x402kit.PaymentRequirement) { r.MaxTimeoutSeconds = -1 }, wantErr: true},
		{
			name:    "empty EIP-3009 name",
			mutate:  func(r *x402kit.PaymentRequirement) { r.Extra = map[string]any{"name": ""} },
			wantErr: true,
		},
		{
			name:    "empty EIP-3009 version",
			mutate:  func(r *x402kit.PaymentRequirement) { r.Extra = map[string]any{"version": ""} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequirement()
			tt.mutate(&req)
			err := ValidatePaymentRequirement(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePaymentRequirement() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePaymentPayload(t *testing.T) {
	valid := x402kit.PaymentPayload{
		X402Version: x402kit.X402Version,
		Scheme:      x402kit.SchemeExact,
		Network:     "base-sepolia",
		Payload:     x402kit.EVMPayload{Signature: "0xabc"},
	}

	tests := []struct {
		name    string
		mutate  func(*x402kit.PaymentPayload)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *x402kit.PaymentPayload) {}},
		{name: "wrong version", mutate: func(p *x402kit.PaymentPayload) { p.X402Version = 2 }, wantErr: true},
		{name: "empty scheme", mutate: func(p *x402kit.PaymentPayload) { p.Scheme = "" }, wantErr: true},
		{name: "empty network", mutate: func(p *x402kit.PaymentPayload) { p.Network = "" }, wantErr: true},
		{name: "unknown network", mutate: func(p *x402kit.PaymentPayload) { p.Network = "bitcoin" }, wantErr: true},
		{name: "nil payload", mutate: func(p *x402kit.PaymentPayload) { p.Payload = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payment := valid
			tt.mutate(&payment)
			err := ValidatePaymentPayload(payment)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePaymentPayload() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
