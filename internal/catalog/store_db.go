package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	pgUndefinedTable = "42P01"
)

// PostgresStore keeps the same catalog document as FileStore in a single row.
// Mutations lock that row for the whole transaction, which serializes writers
// across processes as well as goroutines.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS catalog_document (
				id         SMALLINT PRIMARY KEY CHECK (id = 1),
				next_id    INTEGER NOT NULL,
				productos  JSONB NOT NULL DEFAULT '[]'::jsonb,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`)
		return err
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) List(ctx context.Context) ([]Product, error) {
	c, err := s.read(ctx, true)
	if err != nil {
		return nil, err
	}
	return c.Productos, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int) (Product, error) {
	c, err := s.read(ctx, true)
	if err != nil {
		return Product{}, err
	}
	return getIn(c, id)
}

func (s *PostgresStore) Snapshot(ctx context.Context) ([]Product, error) {
	c, err := s.read(ctx, false)
	if err != nil {
		return nil, err
	}
	return c.Productos, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Product) (Product, error) {
	var out Product
	err := s.mutate(ctx, func(c *Catalog) error {
		out = createIn(c, p)
		return nil
	})
	return out, err
}

func (s *PostgresStore) Update(ctx context.Context, id int, p Product) (Product, error) {
	var out Product
	err := s.mutate(ctx, func(c *Catalog) error {
		u, err := updateIn(c, id, p)
		out = u
		return err
	})
	return out, err
}

func (s *PostgresStore) Delete(ctx context.Context, id int) error {
	return s.mutate(ctx, func(c *Catalog) error { return deleteIn(c, id) })
}

func (s *PostgresStore) read(ctx context.Context, create bool) (Catalog, error) {
	var c Catalog
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if create {
			if err := ensureRow(ctx, s.db); err != nil {
				return err
			}
		}
		var err error
		c, err = scanCatalog(s.db.QueryRowContext(ctx, `
			SELECT next_id, productos FROM catalog_document WHERE id = 1
		`))
		return err
	})
	if !create && (errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err)) {
		return Catalog{}, ErrNoCatalog
	}
	return c, err
}

func (s *PostgresStore) mutate(ctx context.Context, fn func(c *Catalog) error) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := ensureRow(ctx, tx); err != nil {
			return err
		}

		c, err := scanCatalog(tx.QueryRowContext(ctx, `
			SELECT next_id, productos FROM catalog_document WHERE id = 1 FOR UPDATE
		`))
		if err != nil {
			return err
		}

		if err := fn(&c); err != nil {
			return err
		}

		raw, err := codec.Marshal(c.Productos)
		if err != nil {
			return fmt.Errorf("encode catalog: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE catalog_document
			SET next_id = $1, productos = $2, updated_at = now()
			WHERE id = 1
		`, c.NextID, string(raw)); err != nil {
			return err
		}

		return tx.Commit()
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureRow(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO catalog_document (id, next_id) VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, InitialNextID)
	return err
}

func scanCatalog(row *sql.Row) (Catalog, error) {
	var (
		c   Catalog
		raw []byte
	)
	if err := row.Scan(&c.NextID, &raw); err != nil {
		return Catalog{}, err
	}
	if err := codec.Unmarshal(raw, &c.Productos); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	c.repair()
	return c, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
