package payto

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// rule pairs a predicate with the constructor used when it fires. Rules are
// tried in order and the first hit wins; later rules are never consulted,
// so an input that fits several patterns takes the earliest one.
type rule struct {
	name  string
	match func(s string) (Target, bool)
}

var (
	handleRe = regexp.MustCompile(`^@[\w.]{2,32}$`)
	ensRe    = regexp.MustCompile(`^[a-z0-9-]+\.eth$`)
	snsRe    = regexp.MustCompile(`^[a-z0-9_.-]+\.sol$`)
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe  = regexp.MustCompile(`^\+?[0-9][0-9\s().-]{6,}$`)
	base58Re = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

var rules = []rule{
	{"username", func(s string) (Target, bool) {
		if !handleRe.MatchString(s) {
			return Target{}, false
		}
		return Target{Kind: KindUsername, Handle: s}, true
	}},
	{"ens", func(s string) (Target, bool) {
		if !ensRe.MatchString(s) {
			return Target{}, false
		}
		return Target{Kind: KindENS, Name: s}, true
	}},
	{"sns", func(s string) (Target, bool) {
		if !snsRe.MatchString(s) {
			return Target{}, false
		}
		return Target{Kind: KindSNS, Name: s}, true
	}},
	{"evm", func(s string) (Target, bool) {
		if !IsEVMAddress(s) {
			return Target{}, false
		}
		return Target{Kind: KindEVM, Address: strings.ToLower(s)}, true
	}},
	{"invite", func(s string) (Target, bool) {
		switch {
		case emailRe.MatchString(s):
			return Target{Kind: KindInvite, Email: s}, true
		case phoneRe.MatchString(s):
			return Target{Kind: KindInvite, Phone: s}, true
		}
		return Target{}, false
	}},
	{"sol", func(s string) (Target, bool) {
		if !base58Re.MatchString(s) {
			return Target{}, false
		}
		return Target{Kind: KindSol, Address: s}, true
	}},
}

// Match classifies raw recipient text. It never fails: input that fits no
// rule comes back as KindUnknown.
func Match(input string) Target {
	s := strings.TrimSpace(input)
	for _, r := range rules {
		if t, ok := r.match(s); ok {
			return t
		}
	}
	return Target{Kind: KindUnknown}
}

// Rules lists the rule names in evaluation order.
func Rules() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.name
	}
	return out
}

// IsSolanaAddress is stricter than the matcher's heuristic: the text must
// decode to a 32-byte key.
func IsSolanaAddress(s string) bool {
	if !base58Re.MatchString(s) {
		return false
	}
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == 32
}

// IsEVMAddress requires the 0x prefix that common.IsHexAddress treats as
// optional.
func IsEVMAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// AddressFamily reports which family a concrete address belongs to.
func AddressFamily(addr string) (Family, bool) {
	switch {
	case addr == "":
		return "", false
	case IsEVMAddress(addr):
		return FamilyEVM, true
	case IsSolanaAddress(addr):
		return FamilySolana, true
	}
	return "", false
}

// normalizeAddress lower-cases EVM hex and leaves base58 untouched.
func normalizeAddress(addr string) string {
	if IsEVMAddress(addr) {
		return strings.ToLower(addr)
	}
	return addr
}
