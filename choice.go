package payto

// ChainOrder is the order chains are presented in for a recipient:
// Solana first when the recipient can receive on Solana, EVM first
// otherwise.
func ChainOrder(t Target) []ChainID {
	src := evmFirst
	if t.hasFamily(FamilySolana) {
		src = solanaFirst
	}
	out := make([]ChainID, len(src))
	copy(out, src)
	return out
}

// RecipientChains returns the chains the recipient can receive on, in
// presentation order.
func RecipientChains(t Target) []ChainID {
	var out []ChainID
	for _, id := range ChainOrder(t) {
		if t.hasFamily(id.Family()) {
			out = append(out, id)
		}
	}
	return out
}

// BuildChoices lists, in catalog order, every token that can reach the
// recipient together with the chains it can travel on and the cheapest one.
func BuildChoices(t Target, cat *Catalog) []SendChoice {
	recipient := RecipientChains(t)
	if len(recipient) == 0 {
		return nil
	}

	var out []SendChoice
	for _, tok := range cat.tokens {
		var chains []ChainID
		for _, id := range recipient {
			if tok.supports(id) {
				chains = append(chains, id)
			}
		}
		if len(chains) == 0 {
			continue
		}
		out = append(out, SendChoice{
			Token:  tok.ID,
			Chains: chains,
			Best:   PickCheapest(chains),
		})
	}
	return out
}

// ChoiceFor returns the choice for one token, if it is sendable.
func ChoiceFor(choices []SendChoice, id TokenID) (SendChoice, bool) {
	for _, c := range choices {
		if c.Token == id {
			return c, true
		}
	}
	return SendChoice{}, false
}

func (c SendChoice) Has(chain ChainID) bool {
	for _, id := range c.Chains {
		if id == chain {
			return true
		}
	}
	return false
}
