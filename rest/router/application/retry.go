package application

import (
	"time"

	"rest-gateway/rest/router/domain"
)

// Action diz o que o dispatcher faz com a request depois da troca.
type Action uint8

const (
	// ActionResolve entrega a resposta ao chamador.
	ActionResolve Action = iota
	// ActionFail entrega um erro terminal ao chamador.
	ActionFail
	// ActionRequeue volta a request para a cabeça da fila após um 429.
	ActionRequeue
	// ActionRetry volta a request para a cabeça da fila com backoff (5xx/transporte).
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionResolve:
		return "resolve"
	case ActionFail:
		return "fail"
	case ActionRequeue:
		return "requeue"
	case ActionRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// sem net/http aqui
const statusTooManyRequests = 429

type Decision struct {
	Action Action
	// Delay: para Requeue é o retry-after do servidor; para Retry é o backoff.
	Delay time.Duration
	// Global indica que o 429 foi do limite da conta, não do bucket.
	Global  bool
	Outcome domain.Outcome
	Err     error
}

// RetryPolicy classifica o resultado de uma troca.
//
// - 429: sempre reenfileira, nunca chega ao chamador;
// - 5xx e falha de transporte: até MaxAttempts tentativas com backoff exponencial;
// - demais 4xx: falha imediata com ClientError.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// DefaultRetryAfter vale quando um 429 não informa quanto esperar.
	DefaultRetryAfter time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		DefaultRetryAfter: 1 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.DefaultRetryAfter <= 0 {
		p.DefaultRetryAfter = def.DefaultRetryAfter
	}
	return p
}

// Backoff devolve a espera antes da tentativa seguinte à falha número `failures`.
func (p RetryPolicy) Backoff(failures int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return min(d, p.MaxDelay)
}

// Decide classifica a troca. `failures` é quantas falhas transitórias a request já
// teve antes desta.
func (p RetryPolicy) Decide(resp domain.Response, err error, failures int) Decision {
	p = p.withDefaults()

	if err != nil {
		n := failures + 1
		if n >= p.MaxAttempts {
			return Decision{
				Action:  ActionFail,
				Outcome: domain.OutcomeTransportError,
				Err:     &domain.ServerError{Attempts: n, Err: err},
			}
		}
		return Decision{Action: ActionRetry, Delay: p.Backoff(n), Outcome: domain.OutcomeTransportError}
	}

	switch {
	case resp.Status == statusTooManyRequests:
		info := resp.RateLimit
		delay := info.RetryAfter
		if delay <= 0 {
			delay = info.ResetAfter
		}
		if delay <= 0 {
			delay = p.DefaultRetryAfter
		}
		return Decision{
			Action:  ActionRequeue,
			Delay:   delay,
			Global:  info.GlobalScope(),
			Outcome: domain.OutcomeRateLimited,
		}

	case resp.Status >= 500:
		n := failures + 1
		if n >= p.MaxAttempts {
			return Decision{
				Action:  ActionFail,
				Outcome: domain.OutcomeServerError,
				Err:     &domain.ServerError{Status: resp.Status, Attempts: n, Body: resp.Body},
			}
		}
		return Decision{Action: ActionRetry, Delay: p.Backoff(n), Outcome: domain.OutcomeServerError}

	case resp.Status >= 400:
		return Decision{
			Action:  ActionFail,
			Outcome: domain.OutcomeClientError,
			Err:     domain.NewClientError(resp.Status, resp.Body),
		}

	default:
		return Decision{Action: ActionResolve, Outcome: domain.OutcomeSuccess}
	}
}
