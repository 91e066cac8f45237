package payto

import (
	"context"
	"sync"
)

// Session serves a recipient field that is re-resolved as the user types.
// Each Resolve call cancels the one before it, so a slow lookup for stale
// input can never overwrite the result for newer input.
type Session struct {
	resolver *Resolver

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewSession(r *Resolver) *Session {
	return &Session{resolver: r}
}

// Resolve matches and resolves input. The bool is false when a later call
// superseded this one; the returned target must then be discarded.
func (s *Session) Resolve(ctx context.Context, input string) (Target, bool) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	t := s.resolver.Resolve(ctx, Match(input))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return t, false
	}
	s.cancel = nil
	cancel()
	return t, true
}

// Close cancels any lookup still in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
