package x402kit

import (
	"testing"
)

func TestChainByNetwork(t *testing.T) {
	tests := []struct {
		network string
		chainID int64
		family  string
		found   bool
	}{
		{"base", 8453, FamilyEVM, true},
		{"base-sepolia", 84532, FamilyEVM, true},
		{"polygon", 137, FamilyEVM, true},
		{"polygon-amoy", 80002, FamilyEVM, true},
		{"avalanche", 43114, FamilyEVM, true},
		{"avalanche-fuji", 43113, FamilyEVM, true},
		{"solana", 0, FamilySVM, true},
		{"solana-devnet", 0, FamilySVM, true},
		{"unknown", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			chain, ok := ChainByNetwork(tt.network)
			if ok != tt.found {
				t.Fatalf("ChainByNetwork(%s) found = %v, want %v", tt.network, ok, tt.found)
			}
			if !tt.found {
				return
			}
			if chain.Family != tt.family {
				t.Errorf("expected family %s, got %s", tt.family, chain.Family)
			}
			if tt.family == FamilyEVM && chain.ChainID.Int64() != tt.chainID {
				t.Errorf("expected chain id %d, got %d", tt.chainID, chain.ChainID.Int64())
			}
			if chain.USDCAddress == "" {
				t.Error("expected USDC address to be set")
			}
			if chain.USDCDecimals != 6 {
				t.Errorf("expected 6 decimals, got %d", chain.USDCDecimals)
			}
		})
	}
}

func TestNetworkFamily(t *testing.T) {
	tests := []struct {
		network string
		family  string
		wantErr bool
	}{
		{"base", FamilyEVM, false},
		{"solana", FamilySVM, false},
		{"evm", FamilyEVM, false},
		{"svm", FamilySVM, false},
		{"near", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			family, err := NetworkFamily(tt.network)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if family != tt.family {
				t.Errorf("expected %s, got %s", tt.family, family)
			}
		})
	}
}

func TestNetworkMatches(t *testing.T) {
	tests := []struct {
		name        string
		signer      string
		requirement string
		want        bool
	}{
		{"exact match", "base", "base", true},
		{"family covers member", "evm", "base-sepolia", true},
		{"svm family covers devnet", "svm", "solana-devnet", true},
		{"wrong family", "evm", "solana", false},
		{"different concrete networks", "base", "polygon", false},
		{"unknown requirement network", "evm", "near", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NetworkMatches(tt.signer, tt.requirement); got != tt.want {
				t.Errorf("NetworkMatches(%s, %s) = %v, want %v", tt.signer, tt.requirement, got, tt.want)
			}
		})
	}
}

func TestUSDCTokensForFamily(t *testing.T) {
	evmTokens := USDCTokensForFamily(FamilyEVM)
	if len(evmTokens) != 6 {
		t.Errorf("expected 6 EVM USDC deployments, got %d", len(evmTokens))
	}
	for _, token := range evmTokens {
		if token.Symbol != "USDC" || token.Decimals != 6 {
			t.Errorf("unexpected token config: %+v", token)
		}
	}

	svmTokens := USDCTokensForFamily(FamilySVM)
	if len(svmTokens) != 2 {
		t.Errorf("expected 2 SVM USDC mints, got %d", len(svmTokens))
	}
}

func TestNewUSDCRequirement(t *testing.T) {
	tests := []struct {
		name    string
		config  USDCRequirementConfig
		want    string
		wantErr bool
	}{
		{
			name: "whole amount",
			config: USDCRequirementConfig{
				Chain:            BaseSepolia,
				Amount:           "1",
				RecipientAddress: "0x1234567890123456789012345678901234567890",
			},
			want: "1000000",
		},
		{
			name: "fractional amount",
			config: USDCRequirementConfig{
				Chain:            Base,
				Amount:           "0.05",
				RecipientAddress: "0x1234567890123456789012345678901234567890",
			},
			want: "50000",
		},
		{
			name: "full precision",
			config: USDCRequirementConfig{
				Chain:            Base,
				Amount:           "0.000001",
				RecipientAddress: "0x1234567890123456789012345678901234567890",
			},
			want: "1",
		},
		{
			name: "excess precision rejected",
			config: USDCRequirementConfig{
				Chain:            Base,
				Amount:           "0.0000001",
				RecipientAddress: "0x1234567890123456789012345678901234567890",
			},
			wantErr: true,
		},
		{
			name: "negative amount rejected",
			config: USDCRequirementConfig{
				Chain:            Base,
				Amount:           "-1",
				RecipientAddress: "0x1234567890123456789012345678901234567890",
			},
			wantErr: true,
		},
		{
			name: "missing recipient",
			config: USDCRequirementConfig{
				Chain:  Base,
				Amount: "1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewUSDCRequirement(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if req.MaxAmountRequired != tt.want {
				t.Errorf("expected amount %s, got %s", tt.want, req.MaxAmountRequired)
			}
			if req.Scheme != SchemeExact {
				t.Errorf("expected scheme exact, got %s", req.Scheme)
			}
			if req.Network != tt.config.Chain.NetworkID {
				t.Errorf("expected network %s, got %s", tt.config.Chain.NetworkID, req.Network)
			}
			if req.Asset != tt.config.Chain.USDCAddress {
				t.Errorf("expected asset %s, got %s", tt.config.Chain.USDCAddress, req.Asset)
			}
			if req.MaxTimeoutSeconds != DefaultTimeoutSeconds {
				t.Errorf("expected default timeout, got %d", req.MaxTimeoutSeconds)
			}
			if tt.config.Chain.Family == FamilyEVM {
				if req.Extra["name"] != tt.config.Chain.EIP3009Name {
					t.Errorf("expected EIP-3009 name in extra, got %v", req.Extra["name"])
				}
			}
		})
	}
}
