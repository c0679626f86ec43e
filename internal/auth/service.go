package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long an issued access token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// dummyHash is compared against when the user is unknown, so both failure
// paths spend a bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("unknown-user-placeholder"), bcrypt.DefaultCost)
	return h
})

type Service struct {
	Creds  CredentialStore
	Tokens *TokenMaker
	TTL    time.Duration
}

func NewService(creds CredentialStore, tokens *TokenMaker, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{Creds: creds, Tokens: tokens, TTL: ttl}
}

// Authenticate returns the canonical username when password matches. Unknown
// users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	c, err := s.Creds.Lookup(ctx, username)
	if errors.Is(err, ErrUnknownUser) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(c.Hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return c.Username, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return s.Tokens.Issue(user, s.TTL)
}
