package http

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// jwtTokenLifetime keeps facilitator tokens short-lived; a fresh one is
// minted per request.
const jwtTokenLifetime = 2 * time.Minute

// NewJWTAuthorizationProvider returns an AuthorizationProvider that mints a
// short-lived ES256 Bearer token per facilitator request. Hosted
// facilitators that require authenticated callers typically accept this
// style of key-pair credential.
//
// keyID is the credential identifier registered with the facilitator;
// privateKeyPEM is the matching PEM-encoded ECDSA private key (SEC 1 or
// PKCS#8); audience names the facilitator service.
func NewJWTAuthorizationProvider(keyID, privateKeyPEM, audience string) (AuthorizationProvider, error) {
	if keyID == "" {
		return nil, fmt.Errorf("keyID must not be empty")
	}

	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block: invalid PEM format")
	}

	privateKey, err := parseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", keyID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT signer: %w", err)
	}

	return func() (string, error) {
		now := time.Now()
		claims := jwt.Claims{
			Issuer:    keyID,
			Subject:   keyID,
			Audience:  jwt.Audience{audience},
			NotBefore: jwt.NewNumericDate(now),
			Expiry:    jwt.NewNumericDate(now.Add(jwtTokenLifetime)),
		}

		token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
		if err != nil {
			return "", fmt.Errorf("failed to sign facilitator token: %w", err)
		}
		return "Bearer " + token, nil
	}, nil
}

func parseECPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T, expected ECDSA", parsed)
	}
	return key, nil
}
