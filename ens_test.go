package payto

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

func TestNamehash(t *testing.T) {
	tests := map[string]string{
		"":        "0x0000000000000000000000000000000000000000000000000000000000000000",
		"eth":     "0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae",
		"foo.eth": "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f",
		"FOO.eth": "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f",
	}
	for name, want := range tests {
		if got := Namehash(name).Hex(); got != want {
			t.Fatalf("Namehash(%q) = %s, want %s", name, got, want)
		}
	}
}

// fakeENS answers registry and resolver calls from in-memory tables.
type fakeENS struct {
	r         *ENSResolver
	resolvers map[common.Hash]common.Address
	addrs     map[common.Address]map[common.Hash]common.Address
	err       error
}

func (f *fakeENS) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	method, err := f.r.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	var node common.Hash
	copy(node[:], msg.Data[4:36])

	switch method.Name {
	case "resolver":
		if *msg.To != f.r.registry {
			return nil, errors.New("resolver() sent to a non-registry address")
		}
		return method.Outputs.Pack(f.resolvers[node])
	case "addr":
		table, ok := f.addrs[*msg.To]
		if !ok {
			// no contract deployed there
			return nil, nil
		}
		return method.Outputs.Pack(table[node])
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func newFakeENS(t *testing.T) (*ENSResolver, *fakeENS) {
	t.Helper()
	fake := &fakeENS{
		resolvers: map[common.Hash]common.Address{},
		addrs:     map[common.Address]map[common.Hash]common.Address{},
	}
	r, err := NewENSResolver(fake)
	if err != nil {
		t.Fatalf("new ens resolver: %v", err)
	}
	fake.r = r
	return r, fake
}

func TestENSResolveName(t *testing.T) {
	r, fake := newFakeENS(t)
	publicResolver := common.HexToAddress("0x231b0Ee14048e9dCcD1d247744d114a4EB5E8E63")
	node := Namehash("vitalik.eth")
	fake.resolvers[node] = publicResolver
	fake.addrs[publicResolver] = map[common.Hash]common.Address{
		node: common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"),
	}

	got, err := r.ResolveName(context.Background(), "vitalik.eth")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != testEVMAddr {
		t.Fatalf("got %s, want %s", got, testEVMAddr)
	}
}

func TestENSNotFound(t *testing.T) {
	r, fake := newFakeENS(t)

	// no resolver set in the registry
	if _, err := r.ResolveName(context.Background(), "nobody.eth"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}

	// resolver set but no address record
	publicResolver := common.HexToAddress("0x231b0Ee14048e9dCcD1d247744d114a4EB5E8E63")
	fake.resolvers[Namehash("empty.eth")] = publicResolver
	fake.addrs[publicResolver] = map[common.Hash]common.Address{}
	if _, err := r.ResolveName(context.Background(), "empty.eth"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}

	// resolver address without code
	fake.resolvers[Namehash("dead.eth")] = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	if _, err := r.ResolveName(context.Background(), "dead.eth"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}
}

func TestENSTransportError(t *testing.T) {
	r, fake := newFakeENS(t)
	fake.err = errors.New("connection refused")

	_, err := r.ResolveName(context.Background(), "vitalik.eth")
	if err == nil || errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
