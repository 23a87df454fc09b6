package domain

import (
	"context"
	"time"
)

// Outcome classifica o resultado de uma troca para estatística.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeClientError    Outcome = "client_error"
	OutcomeServerError    Outcome = "server_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeRateLimited    Outcome = "rate_limited"
)

// ExchangeEvent representa uma troca concluída com o servidor.
//
// Observação: Bucket e Template têm cardinalidade limitada (famílias de endpoint);
// não coloque o Path resolvido aqui.
type ExchangeEvent struct {
	RequestID string
	Bucket    string
	Method    string
	Template  string
	Status    int
	Outcome   Outcome
	// Global: o 429 foi do limite da conta.
	Global   bool
	Attempt  int
	Duration time.Duration
	At       time.Time
}

// StatsStore é a estratégia de persistência das estatísticas do router.
//
// Implementações podem gravar em Redis, Prometheus, memória, etc.
// O router trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev ExchangeEvent) error
}
