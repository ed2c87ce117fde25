package evm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"

	x402kit "github.com/aeither/x402-starter-kit"
)

// Valid BIP39 test mnemonic (DO NOT use in production)
const testMnemonic = "test test test test test test test test test test test junk"

func TestWithMnemonic(t *testing.T) {
	tests := []struct {
		name         string
		mnemonic     string
		accountIndex uint32
		wantErr      error
	}{
		{name: "valid mnemonic account 0", mnemonic: testMnemonic, accountIndex: 0},
		{name: "valid mnemonic account 1", mnemonic: testMnemonic, accountIndex: 1},
		{name: "invalid mnemonic", mnemonic: "invalid mnemonic phrase", wantErr: x402kit.ErrInvalidMnemonic},
		{name: "empty mnemonic", mnemonic: "", wantErr: x402kit.ErrInvalidMnemonic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(
				WithMnemonic(tt.mnemonic, tt.accountIndex),
				WithNetwork("base"),
				WithUSDC(),
			)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if signer.privateKey == nil {
				t.Fatal("expected private key to be derived")
			}
		})
	}
}

func TestWithMnemonicDeterministic(t *testing.T) {
	newSigner := func(index uint32) *Signer {
		signer, err := NewSigner(
			WithMnemonic(testMnemonic, index),
			WithNetwork("base"),
			WithUSDC(),
		)
		if err != nil {
			t.Fatalf("failed to create signer for account %d: %v", index, err)
		}
		return signer
	}

	if newSigner(0).Address() != newSigner(0).Address() {
		t.Error("same mnemonic and index should produce the same address")
	}
	if newSigner(0).Address() == newSigner(1).Address() {
		t.Error("different account indices should produce different addresses")
	}
}

func TestWithKeystore(t *testing.T) {
	tmpDir := t.TempDir()
	password := "testpassword123"

	privateKey, err := crypto.HexToECDSA(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("failed to parse test private key: %v", err)
	}

	ks := keystore.NewKeyStore(tmpDir, keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.ImportECDSA(privateKey, password)
	if err != nil {
		t.Fatalf("failed to create keystore: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		password string
		wantErr  bool
	}{
		{name: "correct password", path: account.URL.Path, password: password},
		{name: "wrong password", path: account.URL.Path, password: "wrongpassword", wantErr: true},
		{name: "missing file", path: filepath.Join(tmpDir, "nonexistent.json"), password: password, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(
				WithKeystore(tt.path, tt.password),
				WithNetwork("base"),
				WithUSDC(),
			)
			if tt.wantErr {
				if !errors.Is(err, x402kit.ErrInvalidKeystore) {
					t.Fatalf("expected ErrInvalidKeystore, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if signer.Address() != account.Address {
				t.Errorf("expected address %s, got %s", account.Address.Hex(), signer.Address().Hex())
			}
		})
	}
}

func TestWithKeystoreInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(path, []byte("not valid json"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := NewSigner(
		WithKeystore(path, "password"),
		WithNetwork("base"),
		WithUSDC(),
	)
	if !errors.Is(err, x402kit.ErrInvalidKeystore) {
		t.Fatalf("expected ErrInvalidKeystore, got %v", err)
	}
}

func TestDeriveEthereumKey(t *testing.T) {
	seed := []byte("deterministic test seed long enough for BIP32 master key input")

	key0, err := deriveEthereumKey(seed, 0)
	if err != nil {
		t.Fatalf("failed to derive key 0: %v", err)
	}
	key1, err := deriveEthereumKey(seed, 1)
	if err != nil {
		t.Fatalf("failed to derive key 1: %v", err)
	}

	addr0 := crypto.PubkeyToAddress(key0.PublicKey)
	addr1 := crypto.PubkeyToAddress(key1.PublicKey)
	if addr0 == addr1 {
		t.Error("different indices should produce different keys")
	}

	key0Again, err := deriveEthereumKey(seed, 0)
	if err != nil {
		t.Fatalf("failed to derive key 0 again: %v", err)
	}
	if addr0 != crypto.PubkeyToAddress(key0Again.PublicKey) {
		t.Error("same seed and index should produce the same key")
	}
}
