// Package svm signs x402 payments on Solana networks as partially signed
// SPL token transfers. The client signs as token owner only; the
// facilitator adds the fee payer signature and submits the transaction.
//
//	signer, err := svm.NewSigner(
//		svm.WithPrivateKey(os.Getenv("SVM_PRIVATE_KEY")),
//		svm.WithNetwork("solana-devnet"),
//		svm.WithUSDC(),
//	)
//
// Signing needs a Solana RPC endpoint for the recent blockhash. The
// endpoint is derived from the requirement's network and can be overridden
// with WithRPCEndpoint or the SOLANA_RPC_ENDPOINT environment variable.
package svm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	x402kit "github.com/aeither/x402-starter-kit"
)

// Signer implements x402kit.Signer for Solana (SVM) networks.
type Signer struct {
	privateKey  solana.PrivateKey
	publicKey   solana.PublicKey
	network     string
	tokens      []x402kit.TokenConfig
	maxAmount   *big.Int
	rpcEndpoint string
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a Solana signer from the given options. It fails if no
// key is configured, the network is neither a known SVM network nor the
// "svm" family id, or no tokens are configured.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if len(s.privateKey) == 0 {
		return nil, x402kit.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402kit.ErrInvalidNetwork
	}
	if family, err := x402kit.NetworkFamily(s.network); err != nil || family != x402kit.FamilySVM {
		return nil, x402kit.ErrInvalidNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402kit.ErrNoTokens
	}

	s.publicKey = s.privateKey.PublicKey()
	return s, nil
}

// WithPrivateKey sets the signing key from a base58 string.
func WithPrivateKey(base58Key string) SignerOption {
	return func(s *Signer) error {
		privateKey, err := solana.PrivateKeyFromBase58(base58Key)
		if err != nil {
			return x402kit.ErrInvalidKey
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithKeygenFile loads the signing key from a Solana CLI keygen file, a
// JSON array of 64 bytes.
func WithKeygenFile(path string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402kit.ErrInvalidKeystore, err)
		}

		var keyBytes []byte
		if err := json.Unmarshal(data, &keyBytes); err != nil {
			return fmt.Errorf("%w: invalid JSON format", x402kit.ErrInvalidKeystore)
		}
		if len(keyBytes) != 64 {
			return fmt.Errorf("%w: invalid key length", x402kit.ErrInvalidKeystore)
		}

		s.privateKey = solana.PrivateKey(keyBytes)
		return nil
	}
}

// WithNetwork binds the signer to a concrete network id like "solana", or
// to the "svm" family to cover every Solana network the catalog knows.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithToken adds a payable token by mint address.
func WithToken(mintAddress, symbol string, decimals int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402kit.TokenConfig{
			Address:  mintAddress,
			Symbol:   symbol,
			Decimals: decimals,
		})
		return nil
	}
}

// WithUSDC adds the USDC mints of all cataloged Solana networks.
func WithUSDC() SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402kit.USDCTokensForFamily(x402kit.FamilySVM)...)
		return nil
	}
}

// WithMaxAmountPerCall caps the atomic amount the signer will sign for a
// single payment.
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

// WithRPCEndpoint overrides the RPC endpoint used to fetch blockhashes.
func WithRPCEndpoint(url string) SignerOption {
	return func(s *Signer) error {
		s.rpcEndpoint = url
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
	if family, err := x402kit.NetworkFamily(requirement.Network); err != nil || family != x402kit.FamilySVM {
		return false
	}
	if requirement.Scheme != x402kit.SchemeExact {
		return false
	}

	for _, t := range s.tokens {
		if strings.EqualFold(t.Address, requirement.Asset) {
			return true
		}
	}
	return false
}

// Sign implements x402kit.Signer. It builds an SPL TransferChecked
// transaction for the exact required amount, signs it as token owner and
// leaves the fee payer slot for the facilitator.
func (s *Signer) Sign(requirement *x402kit.PaymentRequirement) (*x402kit.PaymentPayload, error) {
	if !s.CanSign(requirement) {
		return nil, x402kit.ErrNoValidSigner
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(requirement.MaxAmountRequired, 10); !ok {
		return nil, x402kit.ErrInvalidAmount
	}
	// SPL token amounts are u64; anything larger would silently truncate.
	if !amount.IsUint64() {
		return nil, fmt.Errorf("%w: amount %s exceeds the u64 token range", x402kit.ErrInvalidAmount, requirement.MaxAmountRequired)
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402kit.ErrAmountExceeded
	}

	mint, err := solana.PublicKeyFromBase58(requirement.Asset)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	recipient, err := solana.PublicKeyFromBase58(requirement.PayTo)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	var decimals uint8
	for _, t := range s.tokens {
		if strings.EqualFold(t.Address, requirement.Asset) {
			decimals = uint8(t.Decimals)
			break
		}
	}

	feePayer, err := extractFeePayer(requirement)
	if err != nil {
		return nil, fmt.Errorf("invalid fee payer: %w", err)
	}

	rpcURL, err := s.rpcURL(requirement.Network)
	if err != nil {
		return nil, err
	}

	client := rpc.New(rpcURL)
	recent, err := client.GetLatestBlockhash(context.Background(), rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash from %s: %w", rpcURL, err)
	}

	txBase64, err := BuildPartiallySignedTransfer(
		s.privateKey,
		s.publicKey,
		mint,
		recipient,
		amount.Uint64(),
		decimals,
		feePayer,
		recent.Value.Blockhash,
	)
	if err != nil {
		return nil, x402kit.NewPaymentError(x402kit.ErrCodeSigningFailed, "failed to build transaction", err)
	}

	return &x402kit.PaymentPayload{
		X402Version: x402kit.X402Version,
		Scheme:      x402kit.SchemeExact,
		Network:     requirement.Network,
		Payload: x402kit.SVMPayload{
			Transaction: txBase64,
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

// Address returns the signer's public key as a base58 string.
func (s *Signer) Address() string {
	return s.publicKey.String()
}

// rpcURL resolves the RPC endpoint for a network, preferring the explicit
// option, then SOLANA_RPC_ENDPOINT, then the public endpoint.
func (s *Signer) rpcURL(network string) (string, error) {
	if s.rpcEndpoint != "" {
		return s.rpcEndpoint, nil
	}
	if env := os.Getenv("SOLANA_RPC_ENDPOINT"); env != "" {
		return env, nil
	}

	switch network {
	case "solana":
		return rpc.MainNetBeta_RPC, nil
	case "solana-devnet":
		return rpc.DevNet_RPC, nil
	default:
		return "", fmt.Errorf("%w: %s", x402kit.ErrInvalidNetwork, network)
	}
}

// extractFeePayer reads the facilitator's fee payer address from the
// requirement's extra field.
func extractFeePayer(requirement *x402kit.PaymentRequirement) (solana.PublicKey, error) {
	if requirement.Extra == nil {
		return solana.PublicKey{}, fmt.Errorf("missing extra field in requirements")
	}

	feePayerStr, ok := requirement.Extra["feePayer"].(string)
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("feePayer not found in extra field")
	}

	feePayer, err := solana.PublicKeyFromBase58(feePayerStr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid feePayer address: %w", err)
	}
	return feePayer, nil
}

// ComputeBudgetProgramID is the Solana Compute Budget program id.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// BuildPartiallySignedTransfer creates an SPL TransferChecked transaction
// signed only by the token owner. The fee payer signature slot stays empty
// for the facilitator to fill.
func BuildPartiallySignedTransfer(
	ownerPrivateKey solana.PrivateKey,
	ownerPublicKey solana.PublicKey,
	mint solana.PublicKey,
	recipient solana.PublicKey,
	amount uint64,
	decimals uint8,
	feePayer solana.PublicKey,
	blockhash solana.Hash,
) (string, error) {
	sourceATA, _, err := solana.FindAssociatedTokenAddress(ownerPublicKey, mint)
	if err != nil {
		return "", fmt.Errorf("failed to find source token account: %w", err)
	}

	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return "", fmt.Errorf("failed to find destination token account: %w", err)
	}

	transferInst := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(decimals).
		SetSourceAccount(sourceATA).
		SetDestinationAccount(destATA).
		SetMintAccount(mint).
		SetOwnerAccount(ownerPublicKey).
		Build()

	instructions := []solana.Instruction{
		setComputeUnitLimit(200_000),
		setComputeUnitPrice(10_000),
		transferInst,
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(ownerPublicKey) {
			return &ownerPrivateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(txBytes), nil
}

// setComputeUnitLimit encodes [2, units (u32 LE)].
func setComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	data[1] = byte(units)
	data[2] = byte(units >> 8)
	data[3] = byte(units >> 16)
	data[4] = byte(units >> 24)

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// setComputeUnitPrice encodes [3, microlamports (u64 LE)].
func setComputeUnitPrice(microlamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	for i := 0; i < 8; i++ {
		data[i+1] = byte(microlamports >> (8 * i))
	}

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
