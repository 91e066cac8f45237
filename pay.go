package payto

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const StatusPlanned = "planned"

// PlanRequest is what the user typed. Token and Chain are optional: the
// settings' default token and the token's cheapest chain fill them in.
type PlanRequest struct {
	Input  string
	Token  string
	Chain  string
	Amount string
}

// Plan is a checked, recorded intent to send. Signing and broadcasting it
// is left to the wallet.
type Plan struct {
	Send     Send
	Target   Target
	Choice   SendChoice
	Token    Token
	Contract string
	Amount   decimal.Decimal
	Units    *big.Int
}

type Planner struct {
	db       *sql.DB
	resolver *Resolver
	catalog  *Catalog
	settings *SettingsStore
	logger   Logger
	wallet   string
	now      func() time.Time
}

func NewPlanner(db *sql.DB, r *Resolver, cat *Catalog, settings *SettingsStore, logger Logger) *Planner {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Planner{
		db:       db,
		resolver: r,
		catalog:  cat,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// SetWallet sets this wallet's Solana pubkey for self-send checks.
func (p *Planner) SetWallet(pubkey string) {
	p.wallet = pubkey
}

func (p *Planner) Plan(ctx context.Context, req PlanRequest) (Plan, error) {
	st, err := p.settings.Load(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("load settings: %w", err)
	}

	t := p.resolver.Resolve(ctx, Match(req.Input))
	choices := BuildChoices(t, p.catalog)
	if len(choices) == 0 {
		return Plan{}, fmt.Errorf("%w: %q", ErrNotSendable, strings.TrimSpace(req.Input))
	}

	choice, err := p.pickToken(req.Token, st, choices)
	if err != nil {
		return Plan{}, err
	}
	tok, _ := p.catalog.Lookup(choice.Token)

	chain := choice.Best
	if req.Chain != "" {
		chain, err = ParseChain(req.Chain)
		if err != nil {
			return Plan{}, err
		}
		if !choice.Has(chain) {
			return Plan{}, fmt.Errorf("%w: %s on %s", ErrNotSendable, tok.Symbol, chain)
		}
	}

	amount, err := ParseAmount(req.Amount, tok.Decimals)
	if err != nil {
		return Plan{}, err
	}

	if p.isOwn(t.Address, st) {
		return Plan{}, ErrSelfSend
	}
	if t.NeedsResolution() && !t.Resolved() {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnresolved, t.Label())
	}

	contract, _ := tok.Contract(chain)
	now := p.now()
	s := Send{
		Input:   strings.TrimSpace(req.Input),
		Kind:    t.Kind,
		Address: t.Address,
		Token:   tok.ID,
		Chain:   chain,
		Amount:  amount.String(),
		Time:    now.Unix(),
		Status:  StatusPlanned,
	}
	s.ID = mkid(s)

	plan := Plan{
		Target:   t,
		Choice:   choice,
		Token:    tok,
		Contract: contract,
		Amount:   amount,
		Units:    BaseUnits(amount, tok.Decimals),
	}

	existing, err := LoadSend(ctx, p.db, s.ID)
	if err == nil {
		p.logger.Info("send already planned", map[string]any{"id": existing.ID, "status": existing.Status})
		plan.Send = existing
		return plan, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Plan{}, fmt.Errorf("load send: %w", err)
	}

	if err := SaveSend(ctx, p.db, s); err != nil {
		return Plan{}, fmt.Errorf("save send: %w", err)
	}
	p.logger.Info("send planned", map[string]any{
		"id": s.ID, "kind": s.Kind, "token": s.Token, "chain": s.Chain, "amount": s.Amount,
	})
	plan.Send = s
	return plan, nil
}

// Recent lists the latest recorded plans, newest first.
func (p *Planner) Recent(ctx context.Context, limit int) ([]Send, error) {
	if limit <= 0 {
		limit = 20
	}
	return ListSends(ctx, p.db, limit)
}

// pickToken honours an explicit token, otherwise the default token, otherwise
// the first choice the user has not hidden.
func (p *Planner) pickToken(requested string, st Settings, choices []SendChoice) (SendChoice, error) {
	if requested != "" {
		tok, err := p.catalog.Parse(requested)
		if err != nil {
			return SendChoice{}, err
		}
		c, ok := ChoiceFor(choices, tok.ID)
		if !ok {
			return SendChoice{}, fmt.Errorf("%w: %s", ErrNotSendable, tok.Symbol)
		}
		return c, nil
	}

	if c, ok := ChoiceFor(choices, st.DefaultToken); ok && !st.Hidden(c.Token) {
		return c, nil
	}
	for _, c := range choices {
		if !st.Hidden(c.Token) {
			return c, nil
		}
	}
	return SendChoice{}, fmt.Errorf("%w: every sendable token is hidden", ErrNotSendable)
}

func (p *Planner) isOwn(addr string, st Settings) bool {
	if addr == "" {
		return false
	}
	if p.wallet != "" && addr == p.wallet {
		return true
	}
	return st.EVMAddress != "" && strings.EqualFold(addr, st.EVMAddress)
}

func mkid(s Send) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s:%s:%d", s.Input, s.Address, s.Token, s.Chain, s.Amount, s.Time)))
	return hex.EncodeToString(h[:])[:16]
}
