package payto

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// staticNames answers from a fixed table and counts lookups.
type staticNames struct {
	names map[string]string
	err   error
	calls int32
}

func (s *staticNames) ResolveName(ctx context.Context, name string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	addr, ok := s.names[name]
	if !ok {
		return "", ErrNameNotFound
	}
	return addr, nil
}

func (s *staticNames) count() int {
	return int(atomic.LoadInt32(&s.calls))
}

func TestResolveHit(t *testing.T) {
	ens := &staticNames{names: map[string]string{"vitalik.eth": "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"}}
	sns := &staticNames{names: map[string]string{"bob.sol": testSolAddr}}
	users := &staticNames{names: map[string]string{"alice": testSolAddr}}
	r := NewResolver(WithENS(ens), WithSNS(sns), WithUsernames(users))
	ctx := context.Background()

	got := r.Resolve(ctx, Match("vitalik.eth"))
	if got.Address != testEVMAddr || got.Name != "vitalik.eth" || got.Kind != KindENS {
		t.Fatalf("ens: %+v", got)
	}

	got = r.Resolve(ctx, Match("bob.sol"))
	if got.Address != testSolAddr || got.Kind != KindSNS {
		t.Fatalf("sns: %+v", got)
	}

	got = r.Resolve(ctx, Match("@Alice"))
	if got.Address != testSolAddr || got.Handle != "@Alice" {
		t.Fatalf("username: %+v", got)
	}
}

func TestResolveMissAndFailureLeaveTargetUnchanged(t *testing.T) {
	ctx := context.Background()
	in := Match("ghost.eth")

	miss := NewResolver(WithENS(&staticNames{}))
	if got := miss.Resolve(ctx, in); got != in {
		t.Fatalf("miss changed target: %+v", got)
	}

	failing := NewResolver(WithENS(&staticNames{err: errors.New("rpc down")}))
	if got := failing.Resolve(ctx, in); got != in {
		t.Fatalf("failure changed target: %+v", got)
	}

	unconfigured := NewResolver()
	if got := unconfigured.Resolve(ctx, in); got != in {
		t.Fatalf("unconfigured resolver changed target: %+v", got)
	}
}

func TestResolveSkipsOtherKinds(t *testing.T) {
	names := &staticNames{}
	r := NewResolver(WithENS(names), WithSNS(names), WithUsernames(names))
	for _, in := range []string{testSolAddr, testEVMAddr, "carol@example.com", "+1 555 123 4567", "???"} {
		tgt := Match(in)
		if got := r.Resolve(context.Background(), tgt); got != tgt {
			t.Fatalf("%s changed: %+v", in, got)
		}
	}
	if names.count() != 0 {
		t.Fatalf("backend called %d times for non-name targets", names.count())
	}
}

func TestResolveIdempotent(t *testing.T) {
	users := &staticNames{names: map[string]string{"alice": testSolAddr}}
	r := NewResolver(WithUsernames(users))
	ctx := context.Background()

	once := r.Resolve(ctx, Match("@alice"))
	twice := r.Resolve(ctx, once)
	if once != twice {
		t.Fatalf("second resolve changed target: %+v vs %+v", once, twice)
	}
	if users.count() != 1 {
		t.Fatalf("resolved target looked up again: %d calls", users.count())
	}
}

func TestResolveRejectsWrongFamily(t *testing.T) {
	ctx := context.Background()

	ens := &staticNames{names: map[string]string{"odd.eth": testSolAddr}}
	if got := NewResolver(WithENS(ens)).Resolve(ctx, Match("odd.eth")); got.Resolved() {
		t.Fatalf("ens accepted a solana address: %+v", got)
	}

	sns := &staticNames{names: map[string]string{"odd.sol": testEVMAddr}}
	if got := NewResolver(WithSNS(sns)).Resolve(ctx, Match("odd.sol")); got.Resolved() {
		t.Fatalf("sns accepted an evm address: %+v", got)
	}

	users := &staticNames{names: map[string]string{"odd": "not-an-address"}}
	if got := NewResolver(WithUsernames(users)).Resolve(ctx, Match("@odd")); got.Resolved() {
		t.Fatalf("username accepted garbage: %+v", got)
	}

	users = &staticNames{names: map[string]string{"evm": testEVMAddr}}
	if got := NewResolver(WithUsernames(users)).Resolve(ctx, Match("@evm")); got.Address != testEVMAddr {
		t.Fatalf("username should accept evm addresses: %+v", got)
	}
}

func TestResolveTimeout(t *testing.T) {
	slow := NameResolverFunc(func(ctx context.Context, name string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewResolver(WithENS(slow), WithTimeout(20*time.Millisecond))

	start := time.Now()
	got := r.Resolve(context.Background(), Match("slow.eth"))
	if got.Resolved() {
		t.Fatalf("timed out lookup resolved: %+v", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestResolveCache(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "payto.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cache := NewSQLCache(db)
	users := &staticNames{names: map[string]string{"alice": testSolAddr}}
	r := NewResolver(WithUsernames(users), WithCache(cache, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := r.Resolve(ctx, Match("@alice")); got.Address != testSolAddr {
			t.Fatalf("resolve %d: %+v", i, got)
		}
	}
	if users.count() != 1 {
		t.Fatalf("expected one backend call, got %d", users.count())
	}

	// misses are not cached
	for i := 0; i < 2; i++ {
		r.Resolve(ctx, Match("@ghost"))
	}
	if users.count() != 3 {
		t.Fatalf("expected misses to reach the backend, got %d calls", users.count())
	}

	// expired entries are ignored
	cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	r.Resolve(ctx, Match("@alice"))
	if users.count() != 4 {
		t.Fatalf("expired entry served from cache, %d calls", users.count())
	}
}

func TestResolveLogsAndMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := NewPrometheusRecorder()
	names := &staticNames{names: map[string]string{"alice": testSolAddr}}
	r := NewResolver(
		WithUsernames(names),
		WithENS(&staticNames{err: errors.New("boom")}),
		WithLogger(NewZapLoggerFrom(zap.New(core))),
		WithMetrics(rec),
	)
	ctx := context.Background()

	r.Resolve(ctx, Match("@alice"))
	r.Resolve(ctx, Match("@nobody"))
	r.Resolve(ctx, Match("broken.eth"))

	if n := logs.FilterMessage("name not found").FilterLevelExact(zapcore.DebugLevel).Len(); n != 1 {
		t.Fatalf("expected one debug miss log, got %d", n)
	}
	if n := logs.FilterMessage("name resolution failed").FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Fatalf("expected one warn failure log, got %d", n)
	}

	if v := testutil.ToFloat64(rec.counters.WithLabelValues("resolve", "username", "hit")); v != 1 {
		t.Fatalf("hit counter = %v", v)
	}
	if v := testutil.ToFloat64(rec.counters.WithLabelValues("resolve", "username", "miss")); v != 1 {
		t.Fatalf("miss counter = %v", v)
	}
	if v := testutil.ToFloat64(rec.counters.WithLabelValues("resolve", "ens", "error")); v != 1 {
		t.Fatalf("error counter = %v", v)
	}
}
