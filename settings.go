package payto

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const settingsVersion = 2

// Settings are the user's send preferences.
type Settings struct {
	Version      int       `json:"version"`
	DefaultToken TokenID   `json:"default_token"`
	HiddenTokens []TokenID `json:"hidden_tokens,omitempty"`
	// EVMAddress is this wallet's own EVM account, used to refuse
	// self-sends on EVM chains.
	EVMAddress string `json:"evm_address,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{Version: settingsVersion, DefaultToken: USDCCircle}
}

// Hidden reports whether id was hidden by the user.
func (s Settings) Hidden(id TokenID) bool {
	for _, h := range s.HiddenTokens {
		if strings.EqualFold(string(h), string(id)) {
			return true
		}
	}
	return false
}

// SettingsStore persists Settings as a single versioned JSON document and
// notifies subscribers on every successful Save.
type SettingsStore struct {
	db *sql.DB

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Settings)
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db, subs: map[int]func(Settings){}}
}

// Load returns the stored settings, upgraded to the current version, or the
// defaults when nothing has been saved yet.
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM settings WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return migrateSettings([]byte(doc))
}

func (s *SettingsStore) Save(ctx context.Context, st Settings) error {
	if st.EVMAddress != "" && !IsEVMAddress(st.EVMAddress) {
		return fmt.Errorf("invalid evm address: %s", st.EVMAddress)
	}
	st.Version = settingsVersion
	st.EVMAddress = strings.ToLower(st.EVMAddress)

	doc, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (id, doc) VALUES (1, ?)`, string(doc),
	); err != nil {
		return err
	}

	s.mu.Lock()
	subs := make([]func(Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return nil
}

// Subscribe registers fn to be called after each Save. The returned func
// removes the registration.
func (s *SettingsStore) Subscribe(fn func(Settings)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// settingsV1 is the first document layout: a bare lower-case token key.
type settingsV1 struct {
	Currency string `json:"currency"`
}

func migrateSettings(doc []byte) (Settings, error) {
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	switch head.Version {
	case 0, 1:
		var v1 settingsV1
		if err := json.Unmarshal(doc, &v1); err != nil {
			return Settings{}, fmt.Errorf("decode v1 settings: %w", err)
		}
		st := DefaultSettings()
		if v1.Currency != "" {
			tok, err := DefaultCatalog().Parse(v1.Currency)
			if err == nil {
				st.DefaultToken = tok.ID
			}
		}
		return st, nil
	case settingsVersion:
		var st Settings
		if err := json.Unmarshal(doc, &st); err != nil {
			return Settings{}, fmt.Errorf("decode settings: %w", err)
		}
		if st.DefaultToken == "" {
			st.DefaultToken = USDCCircle
		}
		return st, nil
	}
	return Settings{}, fmt.Errorf("settings version %d is newer than this build", head.Version)
}
