package x402kit

import (
	"fmt"
	"math/big"
)

// Network family identifiers. A signer registered under a family id serves
// every chain of that family unless a more specific signer is registered.
const (
	FamilyEVM = "evm"
	FamilySVM = "svm"
)

// ChainConfig describes one supported network: its family, chain id (EVM
// only), official Circle USDC address and the EIP-3009 domain parameters
// needed to sign transferWithAuthorization against that USDC deployment.
type ChainConfig struct {
	// NetworkID is the x402 network identifier, e.g. "base-sepolia".
	NetworkID string

	// Family is FamilyEVM or FamilySVM.
	Family string

	// ChainID is the EVM chain id; nil for SVM networks.
	ChainID *big.Int

	// USDCAddress is the USDC contract address (EVM) or mint (Solana).
	USDCAddress string

	// USDCDecimals is always 6 for USDC but kept explicit.
	USDCDecimals int

	// EIP3009Name and EIP3009Version are the EIP-712 domain parameters of
	// the USDC deployment; empty for SVM networks.
	EIP3009Name    string
	EIP3009Version string
}

// Supported chains. USDC addresses are the official Circle deployments.
var (
	Base = ChainConfig{
		NetworkID:      "base",
		Family:         FamilyEVM,
		ChainID:        big.NewInt(8453),
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		USDCDecimals:   6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	BaseSepolia = ChainConfig{
		NetworkID:      "base-sepolia",
		Family:         FamilyEVM,
		ChainID:        big.NewInt(84532),
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		USDCDecimals:   6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	Polygon = ChainConfig{
		NetworkID:      "polygon",
		Family:         FamilyEVM,
		ChainID:        big.NewInt(137),
		USDCAddress:    "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		USDCDecimals:   6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	PolygonAmoy = ChainConfig{
		NetworkID:      "polygon-amoy",
		Family:         FamilyEVM,
		ChainID:        big.NewInt(80002),
		USDCAddress:    "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		USDCDecimals:   6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	Avalanche = ChainConfig{
		NetworkID:      "avalanche",
		Family:         FamilyEVM,
		ChainID:        big.NewInt(43114),
		USDCAddress:    "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		USDCDecimals:   6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	AvalancheFuji = ChainConfig{
		NetworkID:      "avalanche-fuji",
		Family:         FamilyEVM,
		ChainID:        big.NewInt(43113),
		USDCAddress:    "0x5425890298aed601595a70AB815c96711a31Bc65",
		USDCDecimals:   6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	Solana = ChainConfig{
		NetworkID:    "solana",
		Family:       FamilySVM,
		USDCAddress:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		USDCDecimals: 6,
	}

	SolanaDevnet = ChainConfig{
		NetworkID:    "solana-devnet",
		Family:       FamilySVM,
		USDCAddress:  "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		USDCDecimals: 6,
	}
)

// chainCatalog indexes the supported chains by network id.
var chainCatalog = map[string]ChainConfig{
	Base.NetworkID:          Base,
	BaseSepolia.NetworkID:   BaseSepolia,
	Polygon.NetworkID:       Polygon,
	PolygonAmoy.NetworkID:   PolygonAmoy,
	Avalanche.NetworkID:     Avalanche,
	AvalancheFuji.NetworkID: AvalancheFuji,
	Solana.NetworkID:        Solana,
	SolanaDevnet.NetworkID:  SolanaDevnet,
}

// ChainByNetwork returns the chain configuration for a network id.
func ChainByNetwork(networkID string) (ChainConfig, bool) {
	c, ok := chainCatalog[networkID]
	return c, ok
}

// NetworkFamily returns the family of a network id. Family ids map to
// themselves, so NetworkFamily("evm") == "evm".
func NetworkFamily(networkID string) (string, error) {
	switch networkID {
	case FamilyEVM, FamilySVM:
		return networkID, nil
	}
	if c, ok := chainCatalog[networkID]; ok {
		return c.Family, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidNetwork, networkID)
}

// NetworkMatches reports whether a signer bound to signerNetwork serves
// requirementNetwork: either the ids are equal, or signerNetwork is the
// family of requirementNetwork.
func NetworkMatches(signerNetwork, requirementNetwork string) bool {
	if signerNetwork == requirementNetwork {
		return true
	}
	family, err := NetworkFamily(requirementNetwork)
	if err != nil {
		return false
	}
	return signerNetwork == family
}

// USDCToken returns a TokenConfig for USDC on the given chain.
func USDCToken(chain ChainConfig) TokenConfig {
	return TokenConfig{
		Address:  chain.USDCAddress,
		Symbol:   "USDC",
		Decimals: chain.USDCDecimals,
	}
}

// USDCTokensForFamily returns the USDC deployments of every cataloged chain
// in the given family, for signers that serve a whole family.
func USDCTokensForFamily(family string) []TokenConfig {
	var tokens []TokenConfig
	for _, chain := range chainCatalog {
		if chain.Family == family {
			tokens = append(tokens, USDCToken(chain))
		}
	}
	return tokens
}

// USDCRequirementConfig configures NewUSDCRequirement.
type USDCRequirementConfig struct {
	// Chain selects the network and USDC deployment (required).
	Chain ChainConfig

	// Amount is the human-readable USDC amount, e.g. "0.05". Zero is
	// allowed for free-with-signature flows.
	Amount string

	// RecipientAddress receives the payment (required).
	RecipientAddress string

	// MaxTimeoutSeconds defaults to 300.
	MaxTimeoutSeconds int

	// Description is optional.
	Description string
}

// NewUSDCRequirement builds a PaymentRequirement for a USDC payment on the
// configured chain. The amount is converted exactly; fractional input beyond
// 6 decimals is rejected rather than rounded.
func NewUSDCRequirement(config USDCRequirementConfig) (PaymentRequirement, error) {
	if config.RecipientAddress == "" {
		return PaymentRequirement{}, fmt.Errorf("recipientAddress: cannot be empty")
	}
	if config.Chain.NetworkID == "" {
		return PaymentRequirement{}, fmt.Errorf("chain: cannot be empty")
	}

	atomic, err := AmountToAtomic(config.Amount, config.Chain.USDCDecimals)
	if err != nil {
		return PaymentRequirement{}, fmt.Errorf("amount: %w", err)
	}

	timeout := config.MaxTimeoutSeconds
	if timeout == 0 {
		timeout = DefaultTimeoutSeconds
	}

	req := PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           config.Chain.NetworkID,
		MaxAmountRequired: atomic.String(),
		Asset:             config.Chain.USDCAddress,
		PayTo:             config.RecipientAddress,
		MimeType:          "application/json",
		MaxTimeoutSeconds: timeout,
		Description:       config.Description,
	}

	if config.Chain.EIP3009Name != "" {
		req.Extra = map[string]any{
			"name":    config.Chain.EIP3009Name,
			"version": config.Chain.EIP3009Version,
		}
	}

	return req, nil
}
