package payto

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenDBMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "payto.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != len(migrations) {
		t.Fatalf("schema version %d, want %d", v, len(migrations))
	}
	for _, table := range []string{"sends", "usernames", "resolutions", "contacts", "settings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
	db.Close()

	// reopening is a no-op
	db, err = OpenDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if v, _ := SchemaVersion(db); v != len(migrations) {
		t.Fatalf("schema version after reopen %d", v)
	}
}

func TestOpenDBRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payto.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := OpenDB(path); err == nil {
		t.Fatalf("expected error for a newer schema")
	}
}

func TestSends(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	older := Send{ID: "a1", Input: "@alice", Kind: KindUsername, Address: testSolAddr, Token: USDCCircle, Chain: Solana, Amount: "5", Time: 100, Status: StatusPlanned}
	newer := Send{ID: "b2", Input: "carol@example.com", Kind: KindInvite, Token: USDTTether, Chain: Polygon, Amount: "1.25", Time: 200, Status: StatusPlanned}
	for _, s := range []Send{older, newer} {
		if err := SaveSend(ctx, db, s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := LoadSend(ctx, db, "a1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != older {
		t.Fatalf("load = %+v, want %+v", got, older)
	}

	if _, err := LoadSend(ctx, db, "zz"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	list, err := ListSends(ctx, db, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b2" || list[1].ID != "a1" {
		t.Fatalf("expected newest first: %+v", list)
	}

	list, _ = ListSends(ctx, db, 1)
	if len(list) != 1 {
		t.Fatalf("limit ignored: %d", len(list))
	}
}
