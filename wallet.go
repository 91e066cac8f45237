package payto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/scrypt"
)

var ErrBadPassword = errors.New("wrong password or corrupt keystore")

const keystoreVersion = 2

// kdfParams are the scrypt settings a keystore was sealed with.
type kdfParams struct {
	Salt string `json:"salt"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

var defaultKDF = kdfParams{N: 1 << 15, R: 8, P: 1}

// keystoreFile is the on-disk keystore layout.
type keystoreFile struct {
	Version int       `json:"version"`
	Pubkey  string    `json:"pubkey"`
	KDF     kdfParams `json:"kdf"`
	Keypair string    `json:"keypair"`
}

// NewWallet creates a fresh 24-word mnemonic and the Solana wallet it
// derives.
func NewWallet() (mnemonic string, w Wallet, err error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", Wallet{}, err
	}
	mnemonic, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", Wallet{}, err
	}
	return mnemonic, walletFromMnemonic(mnemonic), nil
}

// RecoverWallet rebuilds the wallet for an existing mnemonic.
func RecoverWallet(mnemonic string) (Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return Wallet{}, errors.New("invalid mnemonic")
	}
	return walletFromMnemonic(mnemonic), nil
}

func walletFromMnemonic(mnemonic string) Wallet {
	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:32])
	return Wallet{
		Pubkey: base58.Encode(priv.Public().(ed25519.PublicKey)),
		Secret: []byte(priv),
	}
}

// PrivateKey returns the wallet's key in solana-go form.
func (w Wallet) PrivateKey() solana.PrivateKey {
	return solana.PrivateKey(w.Secret)
}

// SaveWallet encrypts the wallet secret with password and writes it to path.
func SaveWallet(path string, w Wallet, password []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	kdf := defaultKDF
	kdf.Salt = hex.EncodeToString(salt)

	enc, err := seal(w.Secret, password, kdf)
	if err != nil {
		return err
	}

	data, err := json.Marshal(keystoreFile{
		Version: keystoreVersion,
		Pubkey:  w.Pubkey,
		KDF:     kdf,
		Keypair: hex.EncodeToString(enc),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadWallet decrypts the keystore at path.
func LoadWallet(path string, password []byte) (Wallet, error) {
	ks, err := readKeystore(path)
	if err != nil {
		return Wallet{}, err
	}
	if ks.Version != keystoreVersion {
		return Wallet{}, fmt.Errorf("keystore: unsupported version %d", ks.Version)
	}

	enc, err := hex.DecodeString(ks.Keypair)
	if err != nil {
		return Wallet{}, fmt.Errorf("keystore: %w", err)
	}
	secret, err := open(enc, password, ks.KDF)
	if errors.Is(err, errCipher) {
		return Wallet{}, ErrBadPassword
	}
	if err != nil {
		return Wallet{}, fmt.Errorf("keystore: %w", err)
	}
	if len(secret) != ed25519.PrivateKeySize {
		return Wallet{}, fmt.Errorf("keystore: bad key length %d", len(secret))
	}
	return Wallet{Pubkey: base58.Encode(secret[32:]), Secret: secret}, nil
}

// WalletPubkey reads the public key from the keystore without the password.
func WalletPubkey(path string) (string, error) {
	ks, err := readKeystore(path)
	if err != nil {
		return "", err
	}
	if !IsSolanaAddress(ks.Pubkey) {
		return "", fmt.Errorf("keystore: invalid pubkey %q", ks.Pubkey)
	}
	return ks.Pubkey, nil
}

func readKeystore(path string) (keystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return keystoreFile{}, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return keystoreFile{}, fmt.Errorf("keystore: %w", err)
	}
	return ks, nil
}

var errCipher = errors.New("decrypt failed")

func seal(data, password []byte, kdf kdfParams) ([]byte, error) {
	gcm, err := newGCM(password, kdf)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func open(data, password []byte, kdf kdfParams) ([]byte, error) {
	gcm, err := newGCM(password, kdf)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errCipher
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	out, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errCipher
	}
	return out, nil
}

// newGCM derives the AES-256 key from password with scrypt.
func newGCM(password []byte, kdf kdfParams) (cipher.AEAD, error) {
	salt, err := hex.DecodeString(kdf.Salt)
	if err != nil || len(salt) == 0 {
		return nil, errors.New("missing kdf salt")
	}
	key, err := scrypt.Key(password, salt, kdf.N, kdf.R, kdf.P, 32)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
