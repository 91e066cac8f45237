package payto

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	MainnetRPC = "https://api.mainnet-beta.solana.com"
	DevnetRPC  = "https://api.devnet.solana.com"
)

var (
	// NameProgramID is the SPL Name Service program.
	NameProgramID = solana.MustPublicKeyFromBase58("namesLPneVptA9Z5rqUDD9tMTWEJwofgaYwp8cawRkX")
	// SolRootKey is the parent of every .sol domain.
	SolRootKey = solana.MustPublicKeyFromBase58("58PwtjSE3CDwNfjBjpGfDLgMKXeXnWC5zoZAS1fHrFWj")
)

const nameHashPrefix = "SPL Name Service"

// AccountFetcher reads raw account data. A missing account is
// ErrNameNotFound.
type AccountFetcher interface {
	AccountData(ctx context.Context, key solana.PublicKey) ([]byte, error)
}

type rpcAccounts struct {
	client *rpc.Client
}

// NewRPCAccounts fetches accounts over Solana JSON-RPC.
func NewRPCAccounts(rpcURL string) AccountFetcher {
	return rpcAccounts{client: rpc.New(rpcURL)}
}

func (r rpcAccounts) AccountData(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	acct, err := r.client.GetAccountInfo(ctx, key)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrNameNotFound
	}
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Value == nil {
		return nil, ErrNameNotFound
	}
	return acct.Value.Data.GetBinary(), nil
}

// SNSResolver resolves .sol names to the owner of their name account.
type SNSResolver struct {
	accounts AccountFetcher
}

func NewSNSResolver(accounts AccountFetcher) *SNSResolver {
	return &SNSResolver{accounts: accounts}
}

func (r *SNSResolver) ResolveName(ctx context.Context, name string) (string, error) {
	key, err := DomainKey(name)
	if err != nil {
		return "", err
	}

	data, err := r.accounts.AccountData(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNameNotFound) {
			return "", ErrNameNotFound
		}
		return "", fmt.Errorf("sns account for %s: %w", name, err)
	}
	// header: parent, owner, class
	if len(data) < 96 {
		return "", fmt.Errorf("sns account for %s: invalid account data", name)
	}

	owner := solana.PublicKeyFromBytes(data[32:64])
	if owner.IsZero() {
		return "", ErrNameNotFound
	}
	return owner.String(), nil
}

// DomainKey derives the name account of a .sol domain. Subdomain labels are
// prefixed with a zero byte and parented on their domain.
func DomainKey(name string) (solana.PublicKey, error) {
	lower := strings.ToLower(name)
	trimmed := strings.TrimSuffix(lower, ".sol")
	if trimmed == "" || trimmed == lower {
		return solana.PublicKey{}, fmt.Errorf("not a .sol name: %s", name)
	}

	labels := strings.Split(trimmed, ".")
	parent := SolRootKey
	var key solana.PublicKey
	for i := len(labels) - 1; i >= 0; i-- {
		label := labels[i]
		if label == "" {
			return solana.PublicKey{}, fmt.Errorf("empty label in %s", name)
		}
		if i < len(labels)-1 {
			label = "\x00" + label
		}
		var err error
		key, err = nameAccountKey(label, parent)
		if err != nil {
			return solana.PublicKey{}, err
		}
		parent = key
	}
	return key, nil
}

func nameAccountKey(label string, parent solana.PublicKey) (solana.PublicKey, error) {
	hashed := sha256.Sum256([]byte(nameHashPrefix + label))
	class := make([]byte, 32)
	key, _, err := solana.FindProgramAddress(
		[][]byte{hashed[:], class, parent.Bytes()},
		NameProgramID,
	)
	return key, err
}
