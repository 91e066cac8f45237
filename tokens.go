package payto

import (
	"fmt"
	"strings"
)

// TokenID identifies a currency as SYMBOL.issuer.
type TokenID string

const (
	USDCCircle TokenID = "USDC.circle"
	USDTTether TokenID = "USDT.tether"
	ETHNative  TokenID = "ETH.native"
	SOLNative  TokenID = "SOL.native"
	POLNative  TokenID = "POL.native"
)

type Deployment struct {
	Chain ChainID
	// Contract is the token contract or mint; empty for native currencies.
	Contract string
}

type Token struct {
	ID       TokenID
	Key      string
	Symbol   string
	Name     string
	Decimals int32
	Native   bool
	On       []Deployment
}

// Chains returns the chains the token is available on, in catalog order.
func (t Token) Chains() []ChainID {
	out := make([]ChainID, 0, len(t.On))
	for _, d := range t.On {
		out = append(out, d.Chain)
	}
	return out
}

func (t Token) Contract(chain ChainID) (string, bool) {
	for _, d := range t.On {
		if d.Chain == chain {
			return d.Contract, true
		}
	}
	return "", false
}

func (t Token) supports(chain ChainID) bool {
	_, ok := t.Contract(chain)
	return ok
}

var defaultTokens = []Token{
	{
		ID: USDCCircle, Key: "usdc", Symbol: "USDC", Name: "USD Coin", Decimals: 6,
		On: []Deployment{
			{Chain: Solana, Contract: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
			{Chain: Base, Contract: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"},
			{Chain: Polygon, Contract: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"},
			{Chain: Ethereum, Contract: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
		},
	},
	{
		ID: USDTTether, Key: "usdt", Symbol: "USDT", Name: "Tether USD", Decimals: 6,
		On: []Deployment{
			{Chain: Solana, Contract: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"},
			{Chain: Polygon, Contract: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f"},
			{Chain: Ethereum, Contract: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
		},
	},
	{
		ID: ETHNative, Key: "eth", Symbol: "ETH", Name: "Ether", Decimals: 18, Native: true,
		On: []Deployment{{Chain: Ethereum}},
	},
	{
		ID: SOLNative, Key: "sol", Symbol: "SOL", Name: "Solana", Decimals: 9, Native: true,
		On: []Deployment{{Chain: Solana}},
	},
	{
		ID: POLNative, Key: "pol", Symbol: "POL", Name: "Polygon Ecosystem Token", Decimals: 18, Native: true,
		On: []Deployment{{Chain: Polygon}},
	},
}

// Catalog is an ordered, immutable set of tokens.
type Catalog struct {
	tokens []Token
	byName map[string]int
}

// DefaultCatalog returns the built-in token catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTokens...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog checks every token is available on at least one known chain and
// that native tokens live on exactly one.
func NewCatalog(tokens ...Token) (*Catalog, error) {
	c := &Catalog{byName: map[string]int{}}
	for _, t := range tokens {
		if t.ID == "" {
			return nil, fmt.Errorf("token without id")
		}
		if len(t.On) == 0 {
			return nil, fmt.Errorf("token %s has no chains", t.ID)
		}
		if t.Native && len(t.On) != 1 {
			return nil, fmt.Errorf("native token %s must live on exactly one chain", t.ID)
		}
		seen := map[ChainID]bool{}
		for _, d := range t.On {
			if _, ok := LookupChain(d.Chain); !ok {
				return nil, fmt.Errorf("token %s: %w: %s", t.ID, ErrUnknownChain, d.Chain)
			}
			if seen[d.Chain] {
				return nil, fmt.Errorf("token %s listed twice on %s", t.ID, d.Chain)
			}
			seen[d.Chain] = true
		}
		for _, name := range []string{strings.ToLower(string(t.ID)), t.Key} {
			if name == "" {
				continue
			}
			if _, found := c.byName[name]; found {
				return nil, fmt.Errorf("token name '%s' already exists", name)
			}
			c.byName[name] = len(c.tokens)
		}
		c.tokens = append(c.tokens, t)
	}
	return c, nil
}

func (c *Catalog) Tokens() []Token {
	out := make([]Token, len(c.tokens))
	copy(out, c.tokens)
	return out
}

func (c *Catalog) Lookup(id TokenID) (Token, bool) {
	i, ok := c.byName[strings.ToLower(string(id))]
	if !ok {
		return Token{}, false
	}
	return c.tokens[i], true
}

// Parse accepts a token id or its short key, case-insensitively.
func (c *Catalog) Parse(s string) (Token, error) {
	t, ok := c.Lookup(TokenID(strings.TrimSpace(s)))
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, s)
	}
	return t, nil
}

// Chains returns the token's supported chains, or nil for an unknown token.
func (c *Catalog) Chains(id TokenID) []ChainID {
	t, ok := c.Lookup(id)
	if !ok {
		return nil
	}
	return t.Chains()
}
