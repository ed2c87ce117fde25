package evm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	x402kit "github.com/aeither/x402-starter-kit"
)

// Authorization holds the parameters of an EIP-3009
// transferWithAuthorization call.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       common.Hash
}

// NewAuthorization builds an authorization valid from slightly in the past
// (10 seconds, to absorb clock drift against the settling server) until
// timeoutSeconds from now, with a random 32-byte nonce.
func NewAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*Authorization, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now().Unix()
	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(now - 10),
		ValidBefore: big.NewInt(now + int64(timeoutSeconds)),
		Nonce:       common.BytesToHash(nonce[:]),
	}, nil
}

// SignTransferAuthorization signs the authorization with EIP-712 for the
// token contract at tokenAddress on chainID. The domain name and version
// must match the token deployment, USDC uses different values per chain.
func SignTransferAuthorization(privateKey *ecdsa.PrivateKey, tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: tokenAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       auth.Nonce.Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct("TransferWithAuthorization", typedData.Message)
	if err != nil {
		return "", fmt.Errorf("failed to hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || messageHash)
	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", x402kit.NewPaymentError(x402kit.ErrCodeSigningFailed, "failed to sign authorization", err)
	}

	// Ethereum expects v in {27, 28}.
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
