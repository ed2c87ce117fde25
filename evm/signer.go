// Package evm signs x402 payments on EVM networks using EIP-3009
// transferWithAuthorization. The signer never broadcasts anything; it
// produces a signed authorization the facilitator submits on-chain.
//
// A signer is bound either to one concrete network:
//
//	signer, err := evm.NewSigner(
//		evm.WithPrivateKey(os.Getenv("EVM_PRIVATE_KEY")),
//		evm.WithNetwork("base"),
//		evm.WithUSDC(),
//	)
//
// or to the whole EVM family, in which case the chain parameters are
// resolved from the payment requirement at signing time:
//
//	signer, err := evm.NewSigner(
//		evm.WithPrivateKey(os.Getenv("EVM_PRIVATE_KEY")),
//		evm.WithNetwork("evm"),
//		evm.WithUSDC(),
//	)
package evm

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402kit "github.com/aeither/x402-starter-kit"
)

// Signer implements x402kit.Signer for EVM networks.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	network    string
	tokens     []x402kit.TokenConfig
	maxAmount  *big.Int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates an EVM signer from the given options. It fails if no
// key is configured, the network is neither a known EVM network nor the
// "evm" family id, or no tokens are configured.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, x402kit.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402kit.ErrInvalidNetwork
	}
	if family, err := x402kit.NetworkFamily(s.network); err != nil || family != x402kit.FamilyEVM {
		return nil, x402kit.ErrInvalidNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402kit.ErrNoTokens
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	return s, nil
}

// WithPrivateKey sets the signing key from a hex string, with or without a
// 0x prefix.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")
		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return x402kit.ErrInvalidKey
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithNetwork binds the signer to a concrete network id like "base", or to
// the "evm" family to cover every EVM network the catalog knows.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithToken adds a payable token by contract address.
func WithToken(address, symbol string, decimals int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402kit.TokenConfig{
			Address:  address,
			Symbol:   symbol,
			Decimals: decimals,
		})
		return nil
	}
}

// WithUSDC adds the USDC deployments of all cataloged EVM networks, the
// usual configuration for a family-wide signer.
func WithUSDC() SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402kit.USDCTokensForFamily(x402kit.FamilyEVM)...)
		return nil
	}
}

// WithMaxAmountPerCall caps the atomic amount the signer will authorize for
// a single payment.
func WithMaxAmountPerCall(amount string) SignerOption {
	return func(s *Signer) error {
		maxAmount, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return x402kit.ErrInvalidAmount
		}
		s.maxAmount = maxAmount
		return nil
	}
}

// Network implements x402kit.Signer.
func (s *Signer) Network() string {
	return s.network
}

// Scheme implements x402kit.Signer.
func (s *Signer) Scheme() string {
	return x402kit.SchemeExact
}

// CanSign implements x402kit.Signer.
func (s *Signer) CanSign(requirement *x402kit.PaymentRequirement) bool {
	if !x402kit.NetworkMatches(s.network, requirement.Network) {
		return false
	}
	if family, err := x402kit.NetworkFamily(requirement.Network); err != nil || family != x402kit.FamilyEVM {
		return false
	}
	if requirement.Scheme != x402kit.SchemeExact {
		return false
	}

	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, requirement.Asset) {
			return true
		}
	}
	return false
}

// Sign implements x402kit.Signer. It builds an EIP-3009 authorization for
// the exact required amount and signs it with EIP-712.
func (s *Signer) Sign(requirement *x402kit.PaymentRequirement) (*x402kit.PaymentPayload, error) {
	if !s.CanSign(requirement) {
		return nil, x402kit.ErrNoValidSigner
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(requirement.MaxAmountRequired, 10); !ok {
		return nil, x402kit.ErrInvalidAmount
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402kit.ErrAmountExceeded
	}

	chain, ok := x402kit.ChainByNetwork(requirement.Network)
	if !ok {
		return nil, x402kit.ErrInvalidNetwork
	}

	recipient := common.HexToAddress(requirement.PayTo)
	tokenAddress := common.HexToAddress(requirement.Asset)

	timeout := requirement.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = x402kit.DefaultTimeoutSeconds
	}

	auth, err := NewAuthorization(s.address, recipient, amount, timeout)
	if err != nil {
		return nil, x402kit.NewPaymentError(x402kit.ErrCodeSigningFailed, "failed to create authorization", err)
	}

	name, version := domainParams(requirement, chain)
	signature, err := SignTransferAuthorization(s.privateKey, tokenAddress, chain.ChainID, auth, name, version)
	if err != nil {
		return nil, err
	}

	return &x402kit.PaymentPayload{
		X402Version: x402kit.X402Version,
		Scheme:      x402kit.SchemeExact,
		Network:     requirement.Network,
		Payload: x402kit.EVMPayload{
			Signature: signature,
			Authorization: x402kit.EVMAuthorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       auth.Nonce.Hex(),
			},
		},
	}, nil
}

// GetTokens implements x402kit.Signer.
func (s *Signer) GetTokens() []x402kit.TokenConfig {
	return s.tokens
}

// GetMaxAmount implements x402kit.Signer.
func (s *Signer) GetMaxAmount() *big.Int {
	return s.maxAmount
}

// Address returns the signer's account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// domainParams picks the EIP-712 domain name and version for the token.
// Server-provided values in the requirement's extra field win over the
// chain catalog defaults.
func domainParams(requirement *x402kit.PaymentRequirement, chain x402kit.ChainConfig) (string, string) {
	name := chain.EIP3009Name
	version := chain.EIP3009Version

	if requirement.Extra != nil {
		if v, ok := requirement.Extra["name"].(string); ok && v != "" {
			name = v
		}
		if v, ok := requirement.Extra["version"].(string); ok && v != "" {
			version = v
		}
	}
	return name, version
}
