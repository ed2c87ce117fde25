package x402kit

import "math/big"

// Signer produces a signed-but-unsubmitted payment for one network (or one
// network family). Implementations are built once at startup, are read-only
// afterwards, and must be safe for concurrent use.
type Signer interface {
	// Network returns the network this signer is bound to. It is either a
	// concrete network id ("base-sepolia", "solana-devnet") or a family id
	// ("evm", "svm") for signers willing to serve any chain of that family.
	Network() string

	// Scheme returns the payment scheme the signer implements.
	Scheme() string

	// CanSign reports whether the signer can satisfy the requirement:
	// matching network (exact or family), matching scheme, and a configured
	// token for the requested asset.
	CanSign(requirement *PaymentRequirement) bool

	// Sign builds and signs the payment for the requirement without
	// submitting anything on-chain. The returned payload is single-use.
	Sign(requirement *PaymentRequirement) (*PaymentPayload, error)

	// GetTokens returns the tokens the signer can pay with.
	GetTokens() []TokenConfig

	// GetMaxAmount returns the per-call spending limit in atomic units, or
	// nil if unlimited.
	GetMaxAmount() *big.Int
}
