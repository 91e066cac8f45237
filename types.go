package payto

import (
	"errors"
	"strings"
)

// Kind tags the variant a Target holds.
type Kind string

const (
	KindSol      Kind = "sol"
	KindEVM      Kind = "evm"
	KindENS      Kind = "ens"
	KindSNS      Kind = "sns"
	KindUsername Kind = "username"
	KindInvite   Kind = "invite"
	KindUnknown  Kind = "unknown"
)

// Family is the address family a chain (or an address) belongs to.
type Family string

const (
	FamilySolana Family = "solana"
	FamilyEVM    Family = "evm"
)

var (
	ErrNameNotFound  = errors.New("name not found")
	ErrUnknownChain  = errors.New("unknown chain")
	ErrUnknownToken  = errors.New("unknown token")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrSelfSend      = errors.New("recipient is this wallet")
	ErrUnresolved    = errors.New("recipient has no address")
	ErrNotSendable   = errors.New("token cannot be sent to this recipient")
)

// Target is a classified send recipient. Exactly one Kind is set and only
// the fields belonging to that kind carry values. Address is the only field
// the resolver ever fills in after matching.
type Target struct {
	Kind    Kind   `json:"kind"`
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Handle  string `json:"handle,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// NeedsResolution reports whether the kind is backed by a name system.
func (t Target) NeedsResolution() bool {
	switch t.Kind {
	case KindENS, KindSNS, KindUsername:
		return true
	}
	return false
}

// Resolved reports whether the target carries a concrete address.
func (t Target) Resolved() bool {
	return t.Address != ""
}

// Families returns the address families the recipient can receive on.
func (t Target) Families() []Family {
	switch t.Kind {
	case KindSol, KindSNS:
		return []Family{FamilySolana}
	case KindEVM, KindENS:
		return []Family{FamilyEVM}
	case KindUsername:
		if f, ok := AddressFamily(t.Address); ok {
			return []Family{f}
		}
		return []Family{FamilySolana, FamilyEVM}
	case KindInvite:
		return []Family{FamilySolana, FamilyEVM}
	}
	return nil
}

func (t Target) hasFamily(f Family) bool {
	for _, have := range t.Families() {
		if have == f {
			return true
		}
	}
	return false
}

// Label is a short human string for the recipient.
func (t Target) Label() string {
	switch t.Kind {
	case KindENS, KindSNS:
		return t.Name
	case KindUsername:
		return t.Handle
	case KindInvite:
		if t.Email != "" {
			return t.Email
		}
		return t.Phone
	case KindSol, KindEVM:
		return t.Address
	}
	return ""
}

// SendChoice is one sendable token for a recipient: the chains it can travel
// on, in presentation order, and the cheapest of them.
type SendChoice struct {
	Token  TokenID   `json:"token"`
	Chains []ChainID `json:"chains"`
	Best   ChainID   `json:"best"`
}

// Send is a recorded send plan.
type Send struct {
	ID      string
	Input   string
	Kind    Kind
	Address string
	Token   TokenID
	Chain   ChainID
	Amount  string
	Time    int64
	Status  string
}

type Wallet struct {
	Pubkey string
	Secret []byte
}

// Contact is an address-book entry. At least one of Handle, Address, Phone
// or Email is set.
type Contact struct {
	ID        string `validate:"omitempty,uuid"`
	Name      string `validate:"required,max=64"`
	Handle    string `validate:"required_without_all=Address Phone Email"`
	Address   string
	Phone     string
	Email     string `validate:"omitempty,email"`
	CreatedAt int64
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(h, "@"))
}
