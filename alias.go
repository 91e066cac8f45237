package payto

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Alias binds an app handle (lower-case, no @) to an address.
type Alias struct {
	Handle  string `json:"handle"`
	Address string `json:"address"`
}

// RegistryDirectory reads handles from the on-chain alias registry: one PDA
// per handle with seeds ["alias", handle] whose data holds an 8-byte
// discriminator followed by the owner key.
type RegistryDirectory struct {
	program  solana.PublicKey
	accounts AccountFetcher
}

func NewRegistryDirectory(programID string, accounts AccountFetcher) (*RegistryDirectory, error) {
	if programID == "" {
		return nil, fmt.Errorf("registry program not configured")
	}
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("registry program: %w", err)
	}
	return &RegistryDirectory{program: program, accounts: accounts}, nil
}

// AliasKey is the registry account for a handle.
func (d *RegistryDirectory) AliasKey(handle string) (solana.PublicKey, error) {
	h := normalizeHandle(handle)
	// seeds are capped at 32 bytes
	if h == "" || len(h) > 32 {
		return solana.PublicKey{}, fmt.Errorf("invalid handle: %s", handle)
	}
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("alias"), []byte(h)},
		d.program,
	)
	return pda, err
}

func (d *RegistryDirectory) ResolveName(ctx context.Context, handle string) (string, error) {
	pda, err := d.AliasKey(handle)
	if err != nil {
		return "", err
	}

	data, err := d.accounts.AccountData(ctx, pda)
	if err != nil {
		if errors.Is(err, ErrNameNotFound) {
			return "", ErrNameNotFound
		}
		return "", fmt.Errorf("alias account for %s: %w", handle, err)
	}
	if len(data) < 40 {
		return "", fmt.Errorf("alias account for %s: invalid account data", handle)
	}
	owner := solana.PublicKeyFromBytes(data[8:40])
	if owner.IsZero() {
		return "", ErrNameNotFound
	}
	return owner.String(), nil
}

// SQLDirectory serves handles from the local usernames table.
type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

func (d *SQLDirectory) ResolveName(ctx context.Context, handle string) (string, error) {
	var addr string
	err := d.db.QueryRowContext(ctx,
		`SELECT address FROM usernames WHERE handle = ?`, normalizeHandle(handle),
	).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNameNotFound
	}
	return addr, err
}

// Register binds handle to addr, replacing any earlier binding.
func (d *SQLDirectory) Register(ctx context.Context, handle, addr string) error {
	h := normalizeHandle(handle)
	if h == "" {
		return fmt.Errorf("empty handle")
	}
	if _, ok := AddressFamily(addr); !ok {
		return fmt.Errorf("invalid address for %s: %s", handle, addr)
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO usernames (handle, address) VALUES (?, ?)`,
		h, normalizeAddress(addr),
	)
	return err
}

func (d *SQLDirectory) List(ctx context.Context) ([]Alias, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT handle, address FROM usernames ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.Handle, &a.Address); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Directories asks each directory in turn and returns the first hit. If no
// directory knows the handle, the first failure is returned, or
// ErrNameNotFound when every directory missed cleanly.
type Directories []NameResolver

func (ds Directories) ResolveName(ctx context.Context, handle string) (string, error) {
	var firstErr error
	for _, d := range ds {
		addr, err := d.ResolveName(ctx, handle)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, ErrNameNotFound) && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if firstErr != nil {
		return "", firstErr
	}
	return "", ErrNameNotFound
}
