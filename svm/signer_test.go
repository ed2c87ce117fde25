package svm

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"

	x402kit "github.com/aeither/x402-starter-kit"
)

const (
	devnetUSDCMint = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	testRecipient  = "GsbwXfJraMomNxBcjYLcG3mxkBUiyWXAB32fGbSMQRdW"
)

func testWallet(t *testing.T) *solana.Wallet {
	t.Helper()
	return solana.NewWallet()
}

func newTestSigner(t *testing.T, opts ...SignerOption) *Signer {
	t.Helper()
	wallet := testWallet(t)
	base := []SignerOption{
		WithPrivateKey(wallet.PrivateKey.String()),
		WithNetwork("solana-devnet"),
		WithUSDC(),
	}
	signer, err := NewSigner(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

func TestNewSigner(t *testing.T) {
	wallet := solana.NewWallet()
	key := wallet.PrivateKey.String()

	tests := []struct {
		name    string
		opts    []SignerOption
		wantErr error
	}{
		{
			name: "valid devnet signer",
			opts: []SignerOption{WithPrivateKey(key), WithNetwork("solana-devnet"), WithUSDC()},
		},
		{
			name: "valid family signer",
			opts: []SignerOption{WithPrivateKey(key), WithNetwork("svm"), WithUSDC()},
		},
		{
			name:    "missing key",
			opts:    []SignerOption{WithNetwork("solana"), WithUSDC()},
			wantErr: x402kit.ErrInvalidKey,
		},
		{
			name:    "invalid base58 key",
			opts:    []SignerOption{WithPrivateKey("not-base58!!"), WithNetwork("solana"), WithUSDC()},
			wantErr: x402kit.ErrInvalidKey,
		},
		{
			name:    "missing network",
			opts:    []SignerOption{WithPrivateKey(key), WithUSDC()},
			wantErr: x402kit.ErrInvalidNetwork,
		},
		{
			name:    "evm network rejected",
			opts:    []SignerOption{WithPrivateKey(key), WithNetwork("base"), WithUSDC()},
			wantErr: x402kit.ErrInvalidNetwork,
		},
		{
			name:    "no tokens",
			opts:    []SignerOption{WithPrivateKey(key), WithNetwork("solana")},
			wantErr: x402kit.ErrNoTokens,
		},
		{
			name:    "invalid max amount",
			opts:    []SignerOption{WithPrivateKey(key), WithNetwork("solana"), WithUSDC(), WithMaxAmountPerCall("abc")},
			wantErr: x402kit.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(tt.opts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if signer.Address() != wallet.PublicKey().String() {
				t.Errorf("expected address %s, got %s", wallet.PublicKey(), signer.Address())
			}
		})
	}
}

func TestWithKeygenFile(t *testing.T) {
	wallet := solana.NewWallet()
	keyBytes := []byte(wallet.PrivateKey)

	data, err := json.Marshal(keyBytes)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write keygen file: %v", err)
	}

	signer, err := NewSigner(
		WithKeygenFile(path),
		WithNetwork("solana-devnet"),
		WithUSDC(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signer.Address() != wallet.PublicKey().String() {
		t.Errorf("expected address %s, got %s", wallet.PublicKey(), signer.Address())
	}
}

func TestWithKeygenFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	badJSON := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(badJSON, []byte("not json"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	shortKey := filepath.Join(tmpDir, "short.json")
	if err := os.WriteFile(shortKey, []byte("[1,2,3]"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(tmpDir, "nonexistent.json")},
		{name: "invalid JSON", path: badJSON},
		{name: "wrong key length", path: shortKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(
				WithKeygenFile(tt.path),
				WithNetwork("solana"),
				WithUSDC(),
			)
			if !errors.Is(err, x402kit.ErrInvalidKeystore) {
				t.Fatalf("expected ErrInvalidKeystore, got %v", err)
			}
		})
	}
}

func TestCanSign(t *testing.T) {
	devnetSigner := newTestSigner(t)
	familySigner := newTestSigner(t, WithNetwork("svm"))

	tests := []struct {
		name        string
		signer      *Signer
		requirement x402kit.PaymentRequirement
		want        bool
	}{
		{
			name:        "matching devnet requirement",
			signer:      devnetSigner,
			requirement: x402kit.PaymentRequirement{Scheme: x402kit.SchemeExact, Network: "solana-devnet", Asset: devnetUSDCMint},
			want:        true,
		},
		{
			name:        "family covers mainnet",
			signer:      familySigner,
			requirement: x402kit.PaymentRequirement{Scheme: x402kit.SchemeExact, Network: "solana", Asset: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
			want:        true,
		},
		{
			name:        "wrong network",
			signer:      devnetSigner,
			requirement: x402kit.PaymentRequirement{Scheme: x402kit.SchemeExact, Network: "solana", Asset: devnetUSDCMint},
			want:        false,
		},
		{
			name:        "evm requirement",
			signer:      familySigner,
			requirement: x402kit.PaymentRequirement{Scheme: x402kit.SchemeExact, Network: "base", Asset: devnetUSDCMint},
			want:        false,
		},
		{
			name:        "unknown mint",
			signer:      devnetSigner,
			requirement: x402kit.PaymentRequirement{Scheme: x402kit.SchemeExact, Network: "solana-devnet", Asset: testRecipient},
			want:        false,
		},
		{
			name:        "wrong scheme",
			signer:      devnetSigner,
			requirement: x402kit.PaymentRequirement{Scheme: "upto", Network: "solana-devnet", Asset: devnetUSDCMint},
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.signer.CanSign(&tt.requirement); got != tt.want {
				t.Errorf("CanSign() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignRejectsBeforeRPC(t *testing.T) {
	signer := newTestSigner(t, WithMaxAmountPerCall("1000"))

	requirement := func() x402kit.PaymentRequirement {
		return x402kit.PaymentRequirement{
			Scheme:            x402kit.SchemeExact,
			Network:           "solana-devnet",
			Asset:             devnetUSDCMint,
			PayTo:             testRecipient,
			MaxAmountRequired: "500",
			Extra:             map[string]any{"feePayer": testRecipient},
		}
	}

	t.Run("wrong network", func(t *testing.T) {
		req := requirement()
		req.Network = "solana"
		if _, err := signer.Sign(&req); !errors.Is(err, x402kit.ErrNoValidSigner) {
			t.Fatalf("expected ErrNoValidSigner, got %v", err)
		}
	})

	t.Run("amount over limit", func(t *testing.T) {
		req := requirement()
		req.MaxAmountRequired = "1001"
		if _, err := signer.Sign(&req); !errors.Is(err, x402kit.ErrAmountExceeded) {
			t.Fatalf("expected ErrAmountExceeded, got %v", err)
		}
	})

	t.Run("malformed amount", func(t *testing.T) {
		req := requirement()
		req.MaxAmountRequired = "0.5"
		if _, err := signer.Sign(&req); !errors.Is(err, x402kit.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("amount beyond u64", func(t *testing.T) {
		req := requirement()
		req.MaxAmountRequired = "18446744073709551616"
		if _, err := signer.Sign(&req); !errors.Is(err, x402kit.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("missing fee payer", func(t *testing.T) {
		req := requirement()
		req.Extra = nil
		if _, err := signer.Sign(&req); err == nil {
			t.Fatal("expected error for missing fee payer")
		}
	})

	t.Run("fee payer not base58", func(t *testing.T) {
		req := requirement()
		req.Extra = map[string]any{"feePayer": "not-an-address"}
		if _, err := signer.Sign(&req); err == nil {
			t.Fatal("expected error for invalid fee payer")
		}
	})
}

func TestBuildPartiallySignedTransfer(t *testing.T) {
	owner := solana.NewWallet()
	feePayer := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58(devnetUSDCMint)
	recipient := solana.MustPublicKeyFromBase58(testRecipient)
	blockhash := solana.MustHashFromBase58("GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W")

	txBase64, err := BuildPartiallySignedTransfer(
		owner.PrivateKey,
		owner.PublicKey(),
		mint,
		recipient,
		10000,
		6,
		feePayer,
		blockhash,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, err := solana.TransactionFromBase64(txBase64)
	if err != nil {
		t.Fatalf("failed to decode transaction: %v", err)
	}

	if !tx.Message.AccountKeys[0].Equals(feePayer) {
		t.Errorf("expected fee payer %s first, got %s", feePayer, tx.Message.AccountKeys[0])
	}
	if len(tx.Signatures) != 2 {
		t.Fatalf("expected 2 signature slots, got %d", len(tx.Signatures))
	}
	if tx.Signatures[0] != (solana.Signature{}) {
		t.Error("fee payer signature slot should be empty")
	}
	if tx.Signatures[1] == (solana.Signature{}) {
		t.Error("owner signature should be present")
	}
	if len(tx.Message.Instructions) != 3 {
		t.Errorf("expected compute budget and transfer instructions, got %d", len(tx.Message.Instructions))
	}
	if tx.Message.RecentBlockhash != blockhash {
		t.Errorf("unexpected blockhash: %s", tx.Message.RecentBlockhash)
	}
}
