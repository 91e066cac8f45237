package payto

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWalletRecoverMatchesGenerate(t *testing.T) {
	mnemonic, w, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if !IsSolanaAddress(w.Pubkey) {
		t.Fatalf("pubkey is not a solana address: %s", w.Pubkey)
	}
	if w.PrivateKey().PublicKey().String() != w.Pubkey {
		t.Fatalf("private key does not match pubkey")
	}

	again, err := RecoverWallet("  " + mnemonic + "\n")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if again.Pubkey != w.Pubkey {
		t.Fatalf("recovered %s, want %s", again.Pubkey, w.Pubkey)
	}

	if _, err := RecoverWallet("not a real mnemonic"); err == nil {
		t.Fatalf("expected invalid mnemonic error")
	}
}

func TestWalletKeystore(t *testing.T) {
	_, w, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "keypair.json")

	if err := SaveWallet(path, w, []byte("hunter2")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadWallet(path, []byte("hunter2"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Pubkey != w.Pubkey || string(got.Secret) != string(w.Secret) {
		t.Fatalf("loaded wallet differs")
	}

	if _, err := LoadWallet(path, []byte("wrong")); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}

	pub, err := WalletPubkey(path)
	if err != nil || pub != w.Pubkey {
		t.Fatalf("pubkey: %q %v", pub, err)
	}

	if _, err := WalletPubkey(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing keystore")
	}
}

func TestWalletKeystoreIsSalted(t *testing.T) {
	_, w, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")
	for _, path := range []string{a, b} {
		if err := SaveWallet(path, w, []byte("hunter2")); err != nil {
			t.Fatalf("save %s: %v", path, err)
		}
	}

	ka, err := readKeystore(a)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	kb, _ := readKeystore(b)
	if ka.Version != 2 || ka.KDF.N != 1<<15 || ka.KDF.R != 8 || ka.KDF.P != 1 {
		t.Fatalf("unexpected keystore header: %+v", ka)
	}
	if ka.KDF.Salt == "" || ka.KDF.Salt == kb.KDF.Salt {
		t.Fatalf("salts should be random: %q %q", ka.KDF.Salt, kb.KDF.Salt)
	}

	// Swapping in another file's salt must not decrypt.
	ka.KDF.Salt = kb.KDF.Salt
	data, _ := json.Marshal(ka)
	if err := os.WriteFile(a, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadWallet(a, []byte("hunter2")); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}

	ka.Version = 1
	data, _ = json.Marshal(ka)
	os.WriteFile(a, data, 0600)
	if _, err := LoadWallet(a, []byte("hunter2")); err == nil || errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}
