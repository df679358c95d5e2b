package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

const tokenBytes = 32

// Token is an issued bearer credential.
type Token struct {
	Value     string    `json:"access_token"`
	Subject   string    `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// tokenStore keeps issued tokens in process memory. Expired entries
// are evicted lazily when a lookup touches them.
type tokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
	ttl    time.Duration
	now    func() time.Time
}

func newTokenStore(ttl time.Duration) *tokenStore {
	return &tokenStore{
		tokens: make(map[string]Token),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *tokenStore) issue(subject string) (Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, err
	}
	now := s.now()
	t := Token{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.tokens[t.Value] = t
	s.mu.Unlock()
	return t, nil
}

func (s *tokenStore) validate(value string) (string, error) {
	if value == "" {
		return "", ErrMalformed
	}
	if _, err := base64.RawURLEncoding.DecodeString(value); err != nil {
		return "", ErrMalformed
	}

	s.mu.RLock()
	t, ok := s.tokens[value]
	s.mu.RUnlock()
	if !ok {
		return "", ErrUnknown
	}
	if s.now().After(t.ExpiresAt) {
		s.mu.Lock()
		delete(s.tokens, value)
		s.mu.Unlock()
		return "", ErrExpired
	}
	return t.Subject, nil
}

func (s *tokenStore) revokeSubject(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, t := range s.tokens {
		if t.Subject == subject {
			delete(s.tokens, value)
		}
	}
}
