package payto

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Server exposes matching, resolution and send choices over HTTP.
type Server struct {
	resolver   *Resolver
	catalog    *Catalog
	logger     Logger
	httpServer *http.Server
	healthFn   func(context.Context) error
}

type ServerOption func(*Server)

// WithHealthCheck adds a dependency check to /health.
func WithHealthCheck(fn func(context.Context) error) ServerOption {
	return func(s *Server) { s.healthFn = fn }
}

// WithServerLogger sets the logger for request logs.
func WithServerLogger(l Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer wires the routes. metrics may be nil, in which case /metrics is
// not served.
func NewServer(addr string, r *Resolver, cat *Catalog, metrics http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		resolver: r,
		catalog:  cat,
		logger:   NoopLogger{},
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/resolve", s.handleResolve)
	mux.HandleFunc("/v1/choices", s.handleChoices)
	mux.HandleFunc("/v1/chains", s.handleChains)
	mux.HandleFunc("/v1/tokens", s.handleTokens)
	mux.HandleFunc("/health", s.handleHealth)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("http listening", map[string]any{"addr": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type resolveResponse struct {
	Input    string   `json:"input"`
	Target   Target   `json:"target"`
	Families []Family `json:"families"`
}

type choicesResponse struct {
	Input   string       `json:"input"`
	Target  Target       `json:"target"`
	Order   []ChainID    `json:"order"`
	Choices []SendChoice `json:"choices"`
}

type chainResponse struct {
	ID          ChainID  `json:"id"`
	Name        string   `json:"name"`
	Family      Family   `json:"family"`
	NativeToken TokenID  `json:"native_token"`
	Aliases     []string `json:"aliases"`
}

type tokenResponse struct {
	ID       TokenID            `json:"id"`
	Symbol   string             `json:"symbol"`
	Name     string             `json:"name"`
	Decimals int32              `json:"decimals"`
	Chains   []ChainID          `json:"chains"`
	Contract map[ChainID]string `json:"contracts,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w, r)
	if !ok {
		return
	}
	t := s.resolver.Resolve(r.Context(), Match(q))
	families := t.Families()
	if families == nil {
		families = []Family{}
	}
	writeJSON(w, http.StatusOK, resolveResponse{Input: q, Target: t, Families: families})
}

func (s *Server) handleChoices(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w, r)
	if !ok {
		return
	}
	t := s.resolver.Resolve(r.Context(), Match(q))
	choices := BuildChoices(t, s.catalog)
	if choices == nil {
		choices = []SendChoice{}
	}
	order := RecipientChains(t)
	if order == nil {
		order = []ChainID{}
	}
	writeJSON(w, http.StatusOK, choicesResponse{Input: q, Target: t, Order: order, Choices: choices})
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var out []chainResponse
	for _, c := range Chains() {
		out = append(out, chainResponse{
			ID:          c.ID,
			Name:        c.Name,
			Family:      c.Family,
			NativeToken: c.NativeToken,
			Aliases:     c.AlternativeNames,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var out []tokenResponse
	for _, t := range s.catalog.Tokens() {
		tr := tokenResponse{
			ID:       t.ID,
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: t.Decimals,
			Chains:   t.Chains(),
		}
		for _, d := range t.On {
			if d.Contract == "" {
				continue
			}
			if tr.Contract == nil {
				tr.Contract = map[ChainID]string{}
			}
			tr.Contract[d.Chain] = d.Contract
		}
		out = append(out, tr)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthFn != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.healthFn(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return "", false
	}
	return q, true
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", map[string]any{
			"id": id, "method": r.Method, "path": r.URL.Path, "took_ms": time.Since(start).Milliseconds(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
