package payto

import (
	"errors"
	"reflect"
	"testing"
)

func TestCatalogChains(t *testing.T) {
	cat := DefaultCatalog()
	tests := map[TokenID][]ChainID{
		USDCCircle: {Solana, Base, Polygon, Ethereum},
		USDTTether: {Solana, Polygon, Ethereum},
		ETHNative:  {Ethereum},
		SOLNative:  {Solana},
		POLNative:  {Polygon},
	}
	for id, want := range tests {
		if got := cat.Chains(id); !reflect.DeepEqual(got, want) {
			t.Fatalf("Chains(%s) = %v, want %v", id, got, want)
		}
	}
	if got := cat.Chains("DOGE.native"); got != nil {
		t.Fatalf("unknown token should have no chains, got %v", got)
	}
}

func TestCatalogParse(t *testing.T) {
	cat := DefaultCatalog()
	for _, in := range []string{"usdc", "USDC", "USDC.circle", "usdc.CIRCLE", " usdc "} {
		tok, err := cat.Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if tok.ID != USDCCircle {
			t.Fatalf("Parse(%q) = %s", in, tok.ID)
		}
	}
	if _, err := cat.Parse("btc"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestTokenContract(t *testing.T) {
	usdc, _ := DefaultCatalog().Lookup(USDCCircle)
	addr, ok := usdc.Contract(Base)
	if !ok || addr != "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913" {
		t.Fatalf("unexpected base contract %q %v", addr, ok)
	}
	eth, _ := DefaultCatalog().Lookup(ETHNative)
	if addr, ok := eth.Contract(Ethereum); !ok || addr != "" {
		t.Fatalf("native token should have no contract, got %q", addr)
	}
	if _, ok := eth.Contract(Base); ok {
		t.Fatalf("ETH.native is not listed on base")
	}
}

func TestNewCatalogRejects(t *testing.T) {
	tests := map[string][]Token{
		"no chains":         {{ID: "X.test", Key: "x"}},
		"native two chains": {{ID: "X.native", Key: "x", Native: true, On: []Deployment{{Chain: Solana}, {Chain: Base}}}},
		"unknown chain":     {{ID: "X.test", Key: "x", On: []Deployment{{Chain: "eip155:10"}}}},
		"duplicate chain":   {{ID: "X.test", Key: "x", On: []Deployment{{Chain: Base}, {Chain: Base}}}},
		"duplicate key": {
			{ID: "X.test", Key: "x", On: []Deployment{{Chain: Base}}},
			{ID: "Y.test", Key: "x", On: []Deployment{{Chain: Base}}},
		},
		"no id": {{Key: "x", On: []Deployment{{Chain: Base}}}},
	}
	for name, tokens := range tests {
		if _, err := NewCatalog(tokens...); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDefaultCatalogInvariants(t *testing.T) {
	for _, tok := range DefaultCatalog().Tokens() {
		if len(tok.On) == 0 {
			t.Fatalf("%s has no chains", tok.ID)
		}
		if tok.Native && len(tok.On) != 1 {
			t.Fatalf("native %s on %d chains", tok.ID, len(tok.On))
		}
		for _, d := range tok.On {
			if d.Chain.Family() == FamilyEVM && d.Contract != "" && !IsEVMAddress(d.Contract) {
				t.Fatalf("%s: bad contract %s on %s", tok.ID, d.Contract, d.Chain)
			}
			if d.Chain.Family() == FamilySolana && d.Contract != "" && !IsSolanaAddress(d.Contract) {
				t.Fatalf("%s: bad mint %s", tok.ID, d.Contract)
			}
		}
	}
}
