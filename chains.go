package payto

import (
	"fmt"
	"strings"
)

// ChainID is a CAIP-2 chain identifier.
type ChainID string

const (
	Solana   ChainID = "solana:mainnet"
	Ethereum ChainID = "eip155:1"
	Base     ChainID = "eip155:8453"
	Polygon  ChainID = "eip155:137"
)

type Chain struct {
	ID               ChainID
	Name             string
	Family           Family
	NativeToken      TokenID
	AlternativeNames []string
}

var chainTable = []Chain{
	{ID: Solana, Name: "Solana", Family: FamilySolana, NativeToken: SOLNative, AlternativeNames: []string{"sol", "solana"}},
	{ID: Ethereum, Name: "Ethereum", Family: FamilyEVM, NativeToken: ETHNative, AlternativeNames: []string{"eth", "ethereum", "mainnet"}},
	{ID: Base, Name: "Base", Family: FamilyEVM, NativeToken: ETHNative, AlternativeNames: []string{"base"}},
	{ID: Polygon, Name: "Polygon", Family: FamilyEVM, NativeToken: POLNative, AlternativeNames: []string{"polygon", "matic", "pol"}},
}

// cheapest first
var costRank = []ChainID{Solana, Base, Polygon, Ethereum}

var (
	solanaFirst = []ChainID{Solana, Base, Polygon, Ethereum}
	evmFirst    = []ChainID{Base, Polygon, Ethereum, Solana}
)

var chainsByName = func() map[string]Chain {
	m := map[string]Chain{}
	for _, c := range chainTable {
		if _, found := m[string(c.ID)]; found {
			panic(fmt.Errorf("chain '%s' registered twice", c.ID))
		}
		m[string(c.ID)] = c
		for _, an := range c.AlternativeNames {
			if _, found := m[an]; found {
				panic(fmt.Errorf("chain alternative name '%s' already exists", an))
			}
			m[an] = c
		}
	}
	return m
}()

// Chains returns the supported chains in table order.
func Chains() []Chain {
	out := make([]Chain, len(chainTable))
	copy(out, chainTable)
	return out
}

func LookupChain(id ChainID) (Chain, bool) {
	c, ok := chainsByName[string(id)]
	if !ok || c.ID != id {
		return Chain{}, false
	}
	return c, true
}

// ParseChain accepts a CAIP-2 id or one of the chain's alternative names.
func ParseChain(s string) (ChainID, error) {
	c, ok := chainsByName[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownChain, s)
	}
	return c.ID, nil
}

func (id ChainID) Family() Family {
	c, _ := LookupChain(id)
	return c.Family
}

func (id ChainID) String() string {
	return string(id)
}

// PickCheapest returns the candidate that ranks first in the static cost
// order. If no candidate is ranked the first candidate is returned. It
// panics on an empty candidate list.
func PickCheapest(candidates []ChainID) ChainID {
	if len(candidates) == 0 {
		panic("payto: PickCheapest called with no candidate chains")
	}
	for _, id := range costRank {
		for _, c := range candidates {
			if c == id {
				return id
			}
		}
	}
	return candidates[0]
}
