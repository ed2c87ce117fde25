package evm

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	x402kit "github.com/aeither/x402-starter-kit"
)

// WithKeystore loads the signing key from a go-ethereum (Web3 Secret
// Storage) keystore file.
func WithKeystore(path, password string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402kit.ErrInvalidKeystore, err)
		}

		key, err := keystore.DecryptKey(data, password)
		if err != nil {
			return fmt.Errorf("%w: %v", x402kit.ErrInvalidKeystore, err)
		}

		s.privateKey = key.PrivateKey
		return nil
	}
}

// WithMnemonic derives the signing key from a BIP-39 mnemonic at the
// standard Ethereum path m/44'/60'/0'/0/{accountIndex}.
func WithMnemonic(mnemonic string, accountIndex uint32) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return x402kit.ErrInvalidMnemonic
		}

		seed := bip39.NewSeed(mnemonic, "")
		privateKey, err := deriveEthereumKey(seed, accountIndex)
		if err != nil {
			return fmt.Errorf("%w: %v", x402kit.ErrInvalidMnemonic, err)
		}

		s.privateKey = privateKey
		return nil
	}
}

// deriveEthereumKey walks the BIP-32 path m/44'/60'/0'/0/{index} from the
// given seed.
func deriveEthereumKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44, // purpose
		bip32.FirstHardenedChild + 60, // coin type (ETH)
		bip32.FirstHardenedChild + 0,  // account
		0,                             // change
		index,                         // address index
	}

	key := masterKey
	for _, segment := range path {
		key, err = key.NewChildKey(segment)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %w", err)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to convert derived key: %w", err)
	}
	return privateKey, nil
}
