// Package upstreamsim simula a API remota: cada template de rota cai num bucket
// com token bucket próprio, há um limite global da conta e as respostas trazem os
// headers X-RateLimit-* que o router consome.
//
// Serve para testes de integração do router e para o binário de validação
// (teste-validacao/servidor-upstream).
package upstreamsim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Options struct {
	BucketLimit  int
	BucketWindow time.Duration
	// GlobalLimit <= 0 desliga o limite global.
	GlobalLimit  int
	GlobalWindow time.Duration
	// SharedBuckets força templates diferentes a dividirem um bucket (template -> id).
	SharedBuckets map[string]string
	// Unmetered lista templates que respondem sem headers de rate limit.
	Unmetered []string
	// TemplateFn extrai o template da request; padrão: ids numéricos viram {id}.
	TemplateFn func(r *http.Request) string
	// Handler gera a resposta de sucesso; padrão: JSON com método e path.
	Handler http.Handler
	// StatusFn permite forçar um status (ex: 500) antes do rate limit; 0 segue normal.
	StatusFn func(r *http.Request) int
}

// Server é um http.Handler.
type Server struct {
	opts   Options
	store  *store
	global *rate.Limiter

	mu      sync.Mutex
	ids     map[string]string
	served  map[string]int
	limited map[string]int
}

func New(opts Options) *Server {
	if opts.BucketLimit <= 0 {
		opts.BucketLimit = 5
	}
	if opts.BucketWindow <= 0 {
		opts.BucketWindow = time.Second
	}
	if opts.GlobalWindow <= 0 {
		opts.GlobalWindow = time.Second
	}
	if opts.TemplateFn == nil {
		opts.TemplateFn = func(r *http.Request) string { return templateFromPath(r.URL.Path) }
	}
	if opts.Handler == nil {
		opts.Handler = http.HandlerFunc(echo)
	}

	s := &Server{
		opts:    opts,
		store:   newStore(opts.BucketLimit, opts.BucketWindow, 15*time.Minute, 2*time.Minute),
		ids:     make(map[string]string),
		served:  make(map[string]int),
		limited: make(map[string]int),
	}
	if opts.GlobalLimit > 0 {
		s.global = rate.NewLimiter(rate.Limit(float64(opts.GlobalLimit)/opts.GlobalWindow.Seconds()), opts.GlobalLimit)
	}
	return s
}

// StartJanitor limpa buckets ociosos até ctx encerrar.
func (s *Server) StartJanitor(ctx context.Context) { s.store.startJanitor(ctx) }

func (s *Server) bucketID(tpl string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.opts.SharedBuckets[tpl]; ok {
		return id
	}
	id, ok := s.ids[tpl]
	if !ok {
		id = fmt.Sprintf("bucket-%d", len(s.ids)+1)
		s.ids[tpl] = id
	}
	return id
}

func (s *Server) count(m map[string]int, id string) {
	s.mu.Lock()
	m[id]++
	s.mu.Unlock()
}

// Served devolve quantas requests o bucket atendeu com sucesso.
func (s *Server) Served(bucket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served[bucket]
}

// Limited devolve quantos 429 o bucket (ou "global") respondeu.
func (s *Server) Limited(bucket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limited[bucket]
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tpl := r.Method + " " + s.opts.TemplateFn(r)

	if s.opts.StatusFn != nil {
		if st := s.opts.StatusFn(r); st != 0 {
			http.Error(w, http.StatusText(st), st)
			return
		}
	}

	for _, u := range s.opts.Unmetered {
		if u == tpl {
			s.opts.Handler.ServeHTTP(w, r)
			return
		}
	}

	if s.global != nil && !s.global.Allow() {
		s.count(s.limited, "global")
		res := s.global.Reserve()
		retry := res.Delay()
		res.Cancel()
		w.Header().Set("X-RateLimit-Global", "true")
		w.Header().Set("X-RateLimit-Scope", "global")
		writeTooMany(w, retry, true)
		return
	}

	id := s.bucketID(tpl)
	lim := s.store.get(id)
	allowed := lim.Allow()
	tokens := math.Max(lim.Tokens(), 0)
	resetAfter := s.store.resetAfter(tokens)

	h := w.Header()
	h.Set("X-RateLimit-Bucket", id)
	h.Set("X-RateLimit-Limit", strconv.Itoa(s.store.burst))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Floor(tokens))))
	h.Set("X-RateLimit-Reset-After", formatSeconds(resetAfter))
	h.Set("X-RateLimit-Reset", formatSeconds(time.Duration(time.Now().Add(resetAfter).UnixNano())))

	if !allowed {
		s.count(s.limited, id)
		h.Set("X-RateLimit-Scope", "user")
		// tempo até uma ficha
		retry := time.Duration((1 - tokens) / float64(s.store.rps) * float64(time.Second))
		writeTooMany(w, retry, false)
		return
	}

	s.count(s.served, id)
	s.opts.Handler.ServeHTTP(w, r)
}

func writeTooMany(w http.ResponseWriter, retry time.Duration, global bool) {
	if retry <= 0 {
		retry = time.Millisecond
	}
	w.Header().Set("Retry-After", formatSeconds(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message":     "You are being rate limited.",
		"retry_after": retry.Seconds(),
		"global":      global,
	})
}

func echo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"method": r.Method, "path": r.URL.Path})
}

func templateFromPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseUint(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
