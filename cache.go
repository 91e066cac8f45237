package payto

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Cache remembers name resolutions. Only hits are stored.
type Cache interface {
	Get(ctx context.Context, kind Kind, name string) (string, bool, error)
	Put(ctx context.Context, kind Kind, name, address string, ttl time.Duration) error
}

// SQLCache keeps resolutions in the local store's resolutions table.
type SQLCache struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLCache(db *sql.DB) *SQLCache {
	return &SQLCache{db: db, now: time.Now}
}

func (c *SQLCache) Get(ctx context.Context, kind Kind, name string) (string, bool, error) {
	var addr string
	var expires int64
	err := c.db.QueryRowContext(ctx,
		`SELECT address, expires_at FROM resolutions WHERE kind = ? AND name = ?`,
		kind, name,
	).Scan(&addr, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if c.now().Unix() >= expires {
		return "", false, nil
	}
	return addr, true, nil
}

func (c *SQLCache) Put(ctx context.Context, kind Kind, name, address string, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resolutions (kind, name, address, expires_at) VALUES (?, ?, ?, ?)`,
		kind, name, address, c.now().Add(ttl).Unix(),
	)
	return err
}

// Purge drops expired entries and reports how many went.
func (c *SQLCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM resolutions WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
