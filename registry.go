package x402kit

import (
	"math/big"
	"sort"
)

// SignerRegistry maps network identifiers to signers. It is built once at
// startup and immutable afterwards, so concurrent lookups need no locking.
//
// Resolution prefers the most specific registration: a signer bound to
// "base-sepolia" wins over one bound to the "evm" family for a challenge
// naming "base-sepolia". Registering two signers for the same network id is
// rejected at construction time; the registry never guesses at runtime.
type SignerRegistry struct {
	byNetwork map[string]Signer
	byFamily  map[string]Signer
}

// NewSignerRegistry builds a registry from the given signers. It returns
// ErrAmbiguousNetwork (wrapped in a PaymentError) if two signers claim the
// same network id or the same family id.
func NewSignerRegistry(signers ...Signer) (*SignerRegistry, error) {
	r := &SignerRegistry{
		byNetwork: make(map[string]Signer),
		byFamily:  make(map[string]Signer),
	}

	for _, s := range signers {
		network := s.Network()
		if network == "" {
			return nil, NewPaymentError(ErrCodeInvalidRequirements, "signer has no network", ErrInvalidNetwork)
		}

		switch network {
		case FamilyEVM, FamilySVM:
			if _, dup := r.byFamily[network]; dup {
				return nil, NewPaymentError(ErrCodeAmbiguousNetwork, "duplicate family signer", ErrAmbiguousNetwork).
					WithDetails("network", network)
			}
			r.byFamily[network] = s
		default:
			if _, err := NetworkFamily(network); err != nil {
				return nil, NewPaymentError(ErrCodeInvalidRequirements, "unknown signer network", err).
					WithDetails("network", network)
			}
			if _, dup := r.byNetwork[network]; dup {
				return nil, NewPaymentError(ErrCodeAmbiguousNetwork, "duplicate network signer", ErrAmbiguousNetwork).
					WithDetails("network", network)
			}
			r.byNetwork[network] = s
		}
	}

	return r, nil
}

// Resolve returns the signer serving the given network id: the exact
// registration if present, otherwise the family-level one. A miss returns
// a PaymentError with code ErrCodeUnsupportedNetwork.
func (r *SignerRegistry) Resolve(networkID string) (Signer, error) {
	if s, ok := r.byNetwork[networkID]; ok {
		return s, nil
	}
	if family, err := NetworkFamily(networkID); err == nil {
		if s, ok := r.byFamily[family]; ok {
			return s, nil
		}
	}
	return nil, NewPaymentError(ErrCodeUnsupportedNetwork, "no signer for network", ErrUnsupportedNetwork).
		WithDetails("network", networkID)
}

// Networks lists the registered network and family ids, sorted.
func (r *SignerRegistry) Networks() []string {
	ids := make([]string, 0, len(r.byNetwork)+len(r.byFamily))
	for id := range r.byNetwork {
		ids = append(ids, id)
	}
	for id := range r.byFamily {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SelectAndSign walks the challenge's accepted payment options in order,
// resolves a signer for the first satisfiable one, and signs it. The
// challenge nonce, when present, is echoed onto the payload.
//
// Error classification: if no option's network resolves at all the result is
// ErrCodeUnsupportedNetwork; if a signer resolved but could not satisfy any
// option (token mismatch, amount over the per-call limit) the result is
// ErrCodeNoValidSigner; a failure inside the chosen signer is
// ErrCodeSigningFailed.
func (r *SignerRegistry) SelectAndSign(requirements []PaymentRequirement) (*PaymentPayload, *PaymentRequirement, error) {
	if len(requirements) == 0 {
		return nil, nil, NewPaymentError(ErrCodeInvalidRequirements, "empty requirements", ErrInvalidRequirements)
	}

	resolvedAny := false
	for i := range requirements {
		req := &requirements[i]

		amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
		if !ok {
			return nil, nil, NewPaymentError(ErrCodeInvalidRequirements, "invalid amount in requirements", ErrInvalidRequirements).
				WithDetails("amount", req.MaxAmountRequired)
		}

		signer, err := r.Resolve(req.Network)
		if err != nil {
			continue
		}
		resolvedAny = true

		if !signer.CanSign(req) {
			continue
		}
		if limit := signer.GetMaxAmount(); limit != nil && amount.Cmp(limit) > 0 {
			continue
		}

		payload, err := signer.Sign(req)
		if err != nil {
			return nil, nil, NewPaymentError(ErrCodeSigningFailed, "failed to sign payment", err).
				WithDetails("network", req.Network)
		}
		payload.Nonce = req.Nonce
		return payload, req, nil
	}

	if !resolvedAny {
		return nil, nil, NewPaymentError(ErrCodeUnsupportedNetwork, "no signer for any offered network", ErrUnsupportedNetwork).
			WithDetails("networks", offeredNetworks(requirements))
	}
	return nil, nil, NewPaymentError(ErrCodeNoValidSigner, "no signer can satisfy requirements", ErrNoValidSigner).
		WithDetails("networks", offeredNetworks(requirements))
}

func offeredNetworks(requirements []PaymentRequirement) []string {
	networks := make([]string, len(requirements))
	for i, req := range requirements {
		networks[i] = req.Network
	}
	return networks
}
