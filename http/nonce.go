package http

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// ChallengeNonces tracks the single-use challenge nonces a gate has issued.
// Each nonce lives until its TTL expires or a payment consumes it, whichever
// comes first. Expired entries are swept lazily on issue.
//
// The net/http middleware creates one per gate; framework adapters share the
// same store so every gate flavor enforces the same replay protection.
type ChallengeNonces struct {
	mu     sync.Mutex
	issued map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewChallengeNonces creates an empty nonce store with the given TTL.
func NewChallengeNonces(ttl time.Duration) *ChallengeNonces {
	return &ChallengeNonces{
		issued: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates and records a fresh random nonce.
func (s *ChallengeNonces) Issue() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.issued[nonce] = s.now().Add(s.ttl)
	return nonce, nil
}

// Consume checks that a nonce is outstanding and removes it. A nonce can be
// consumed at most once.
func (s *ChallengeNonces) Consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.issued[nonce]
	if !ok {
		return false
	}
	delete(s.issued, nonce)
	return s.now().Before(expiry)
}

func (s *ChallengeNonces) sweepLocked() {
	now := s.now()
	for nonce, expiry := range s.issued {
		if now.After(expiry) {
			delete(s.issued, nonce)
		}
	}
}
