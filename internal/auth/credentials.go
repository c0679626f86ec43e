package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Credential is a username with its bcrypt password hash.
type Credential struct {
	Username string
	Hash     []byte
}

// CredentialStore resolves a username to its credential.
// Lookup returns ErrUnknownUser when the account does not exist.
type CredentialStore interface {
	Lookup(ctx context.Context, username string) (Credential, error)
}

// StaticCredentials is an immutable in-process account table.
type StaticCredentials struct {
	byName map[string]Credential
}

func NewStaticCredentials(creds ...Credential) *StaticCredentials {
	s := &StaticCredentials{byName: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		c.Username = normalizeUsername(c.Username)
		s.byName[c.Username] = c
	}
	return s
}

func (s *StaticCredentials) Lookup(_ context.Context, username string) (Credential, error) {
	c, ok := s.byName[normalizeUsername(username)]
	if !ok {
		return Credential{}, ErrUnknownUser
	}
	return c, nil
}

func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}
