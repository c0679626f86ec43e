package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// PostgresCredentials serves admin accounts from the admin_users table.
type PostgresCredentials struct {
	db *sql.DB
}

func NewPostgresCredentials(db *sql.DB) *PostgresCredentials {
	return &PostgresCredentials{db: db}
}

func (s *PostgresCredentials) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS admin_users (
				username   TEXT PRIMARY KEY,
				pass_hash  BYTEA NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`)
		return err
	})
}

func (s *PostgresCredentials) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresCredentials) Lookup(ctx context.Context, username string) (Credential, error) {
	username = normalizeUsername(username)

	var c Credential
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT username, pass_hash
			FROM admin_users
			WHERE username = $1
		`, username).Scan(&c.Username, &c.Hash)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrUnknownUser
	}
	if err != nil {
		return Credential{}, err
	}
	return c, nil
}

// Upsert hashes password and creates or replaces the account.
func (s *PostgresCredentials) Upsert(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO admin_users (username, pass_hash)
			VALUES ($1, $2)
			ON CONFLICT (username) DO UPDATE SET pass_hash = EXCLUDED.pass_hash
		`, normalizeUsername(username), hash)
		return err
	})
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
