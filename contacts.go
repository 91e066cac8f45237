package payto

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

var ErrContactNotFound = errors.New("contact not found")

// ContactBook is the local address book.
type ContactBook struct {
	db *sql.DB
}

func NewContactBook(db *sql.DB) *ContactBook {
	return &ContactBook{db: db}
}

// Add validates c, assigns it an id and stores it.
func (b *ContactBook) Add(ctx context.Context, c Contact) (Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Handle = strings.TrimSpace(c.Handle)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)

	if err := validate.Struct(&c); err != nil {
		return Contact{}, fmt.Errorf("invalid contact: %w", err)
	}
	if c.Handle != "" && Match(c.Handle).Kind != KindUsername {
		return Contact{}, fmt.Errorf("invalid contact: %s is not a handle", c.Handle)
	}
	if c.Address != "" {
		if _, ok := AddressFamily(c.Address); !ok {
			return Contact{}, fmt.Errorf("invalid contact: %s is not an address", c.Address)
		}
		c.Address = normalizeAddress(c.Address)
	}

	if c.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return Contact{}, err
		}
		c.ID = id.String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO contacts (id, name, handle, address, phone, email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Handle, c.Address, c.Phone, c.Email, c.CreatedAt)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (b *ContactBook) Get(ctx context.Context, id string) (Contact, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT id, name, handle, address, phone, email, created_at
		FROM contacts WHERE id = ?
	`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

func (b *ContactBook) List(ctx context.Context) ([]Contact, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, name, handle, address, phone, email, created_at
		FROM contacts ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *ContactBook) Delete(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// Search returns contacts fuzzily matching input by name, handle or email,
// best match first. At most limit contacts are returned.
func (b *ContactBook) Search(ctx context.Context, input string, limit int) ([]Contact, error) {
	all, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	matches := fuzzy.FindFrom(strings.ToLower(strings.TrimSpace(input)), contactSource(all))

	var out []Contact
	for i, m := range matches {
		if limit > 0 && i >= limit {
			break
		}
		out = append(out, all[m.Index])
	}
	return out, nil
}

type contactSource []Contact

func (s contactSource) String(i int) string {
	c := s[i]
	return strings.ToLower(strings.Join([]string{c.Name, c.Handle, c.Email}, " "))
}

func (s contactSource) Len() int {
	return len(s)
}

// Target turns a contact into a recipient: the stored address first, then
// the handle, then an invite to the phone or email.
func (c Contact) Target() Target {
	switch fam, _ := AddressFamily(c.Address); fam {
	case FamilySolana:
		return Target{Kind: KindSol, Address: c.Address}
	case FamilyEVM:
		return Target{Kind: KindEVM, Address: normalizeAddress(c.Address)}
	}
	if c.Handle != "" {
		if t := Match(c.Handle); t.Kind == KindUsername {
			return t
		}
	}
	if c.Phone != "" || c.Email != "" {
		return Target{Kind: KindInvite, Phone: c.Phone, Email: c.Email}
	}
	return Target{Kind: KindUnknown}
}

func scanContact(row scanner) (Contact, error) {
	var c Contact
	var handle, address, phone, email sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &handle, &address, &phone, &email, &c.CreatedAt); err != nil {
		return Contact{}, err
	}
	c.Handle = handle.String
	c.Address = address.String
	c.Phone = phone.String
	c.Email = email.String
	return c, nil
}
