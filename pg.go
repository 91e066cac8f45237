package payto

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectory is a username directory shared through Postgres.
type PgDirectory struct {
	pool *pgxpool.Pool
}

const createUsernamesSQL = `
CREATE TABLE IF NOT EXISTS usernames (
    handle TEXT PRIMARY KEY,
    address TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPgDirectory connects using dsn and ensures the table exists.
func NewPgDirectory(ctx context.Context, dsn string) (*PgDirectory, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createUsernamesSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PgDirectory{pool: pool}, nil
}

func (p *PgDirectory) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgDirectory) ResolveName(ctx context.Context, handle string) (string, error) {
	var addr string
	err := p.pool.QueryRow(ctx, `
SELECT address FROM usernames WHERE handle = $1
`, normalizeHandle(handle)).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNameNotFound
	}
	return addr, err
}

func (p *PgDirectory) Register(ctx context.Context, handle, addr string) error {
	h := normalizeHandle(handle)
	if h == "" {
		return errors.New("empty handle")
	}
	if _, ok := AddressFamily(addr); !ok {
		return fmt.Errorf("invalid address for %s: %s", handle, addr)
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO usernames (handle, address, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (handle) DO UPDATE
SET address = EXCLUDED.address,
    updated_at = EXCLUDED.updated_at
`, h, normalizeAddress(addr))
	return err
}

func (p *PgDirectory) Remove(ctx context.Context, handle string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM usernames WHERE handle = $1`, normalizeHandle(handle))
	return err
}
