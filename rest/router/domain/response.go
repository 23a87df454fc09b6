package domain

import (
	"context"
	"time"
)

// Escopos do header X-RateLimit-Scope.
const (
	ScopeUser   = "user"
	ScopeGlobal = "global"
	ScopeShared = "shared"
)

// RateLimitInfo é o que a resposta disse sobre a cota.
// Present=false quando a rota não devolveu headers de rate limit (rota não medida).
type RateLimitInfo struct {
	Present bool

	Bucket     string
	Limit      int
	Remaining  int
	ResetAt    time.Time
	ResetAfter time.Duration

	// RetryAfter só vem em 429 e é autoritativo.
	RetryAfter time.Duration
	Global     bool
	Scope      string
}

// ResetTime prefere o delta relativo (imune a relógio desalinhado) ao timestamp.
func (i RateLimitInfo) ResetTime(now time.Time) time.Time {
	if i.ResetAfter > 0 {
		return now.Add(i.ResetAfter)
	}
	return i.ResetAt
}

func (i RateLimitInfo) GlobalScope() bool {
	return i.Global || i.Scope == ScopeGlobal
}

type Response struct {
	Status    int
	Header    map[string][]string
	Body      []byte
	RateLimit RateLimitInfo
}

// Exchanger executa uma troca com o servidor. Erro significa falha de transporte;
// qualquer status HTTP, inclusive 5xx, volta como Response.
type Exchanger interface {
	Exchange(ctx context.Context, req Request) (Response, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
