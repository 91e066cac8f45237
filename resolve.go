package payto

import (
	"context"
	"errors"
	"time"
)

// NameResolver looks a name up in one name system. A clean miss is reported
// as ErrNameNotFound.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (string, error)
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(ctx context.Context, name string) (string, error)

func (f NameResolverFunc) ResolveName(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// Resolver fills in the address of name-backed targets. It holds no
// per-call state: concurrent calls are independent and nothing is
// deduplicated.
type Resolver struct {
	ens       NameResolver
	sns       NameResolver
	usernames NameResolver
	cache     Cache
	ttl       time.Duration
	timeout   time.Duration
	logger    Logger
	metrics   Recorder
}

type Option func(*Resolver)

func WithENS(r NameResolver) Option {
	return func(x *Resolver) { x.ens = r }
}

func WithSNS(r NameResolver) Option {
	return func(x *Resolver) { x.sns = r }
}

func WithUsernames(r NameResolver) Option {
	return func(x *Resolver) { x.usernames = r }
}

// WithCache makes the resolver consult c before the network and store hits
// for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(x *Resolver) {
		x.cache = c
		x.ttl = ttl
	}
}

// WithTimeout bounds each backend call. Zero leaves the caller's context
// alone.
func WithTimeout(t time.Duration) Option {
	return func(x *Resolver) { x.timeout = t }
}

func WithLogger(l Logger) Option {
	return func(x *Resolver) { x.logger = l }
}

func WithMetrics(r Recorder) Option {
	return func(x *Resolver) { x.metrics = r }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger:  NoopLogger{},
		metrics: NoopRecorder{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) backend(k Kind) NameResolver {
	switch k {
	case KindENS:
		return r.ens
	case KindSNS:
		return r.sns
	case KindUsername:
		return r.usernames
	}
	return nil
}

// Resolve returns t with Address filled in when its name system knows the
// name. Misses and failures return t unchanged. Targets that need no lookup,
// or already carry an address, are returned as they are.
func (r *Resolver) Resolve(ctx context.Context, t Target) Target {
	if !t.NeedsResolution() || t.Resolved() {
		return t
	}

	key := lookupKey(t)
	labels := map[string]string{"kind": string(t.Kind)}

	if r.cache != nil {
		addr, ok, err := r.cache.Get(ctx, t.Kind, key)
		if err != nil {
			r.logger.Warn("resolution cache read failed", map[string]any{"kind": t.Kind, "name": key, "error": err.Error()})
		} else if ok && fitsKind(t.Kind, addr) {
			r.metrics.IncCounter("resolve", withOutcome(labels, "cached"))
			t.Address = normalizeAddress(addr)
			return t
		}
	}

	b := r.backend(t.Kind)
	if b == nil {
		r.metrics.IncCounter("resolve", withOutcome(labels, "unconfigured"))
		r.logger.Debug("no name system configured", map[string]any{"kind": t.Kind, "name": key})
		return t
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	addr, err := b.ResolveName(callCtx, key)
	r.metrics.ObserveLatency("resolve", time.Since(start), labels)

	switch {
	case errors.Is(err, ErrNameNotFound):
		r.metrics.IncCounter("resolve", withOutcome(labels, "miss"))
		r.logger.Debug("name not found", map[string]any{"kind": t.Kind, "name": key})
		return t
	case err != nil:
		r.metrics.IncCounter("resolve", withOutcome(labels, "error"))
		r.logger.Warn("name resolution failed", map[string]any{"kind": t.Kind, "name": key, "error": err.Error()})
		return t
	case !fitsKind(t.Kind, addr):
		r.metrics.IncCounter("resolve", withOutcome(labels, "invalid"))
		r.logger.Warn("name resolved to an unusable address", map[string]any{"kind": t.Kind, "name": key, "address": addr})
		return t
	}

	t.Address = normalizeAddress(addr)
	r.metrics.IncCounter("resolve", withOutcome(labels, "hit"))

	if r.cache != nil {
		if err := r.cache.Put(ctx, t.Kind, key, t.Address, r.ttl); err != nil {
			r.logger.Warn("resolution cache write failed", map[string]any{"kind": t.Kind, "name": key, "error": err.Error()})
		}
	}
	return t
}

// lookupKey is the name handed to the backend: handles lose the @ and are
// lower-cased, domain names pass through.
func lookupKey(t Target) string {
	if t.Kind == KindUsername {
		return normalizeHandle(t.Handle)
	}
	return t.Name
}

func fitsKind(k Kind, addr string) bool {
	switch k {
	case KindENS:
		return IsEVMAddress(addr)
	case KindSNS:
		return IsSolanaAddress(addr)
	case KindUsername:
		_, ok := AddressFamily(addr)
		return ok
	}
	return false
}

func withOutcome(labels map[string]string, outcome string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out["outcome"] = outcome
	return out
}
