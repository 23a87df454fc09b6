package application

import (
	"context"
	"time"

	"rest-gateway/rest/router/domain"
)

// Admission limita quantas requests de entrada o gateway segura ao mesmo tempo
// enquanto esperam o router, sem saber nada sobre HTTP.
type Admission struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Sem Pool, sempre admite.
// - Se `AcquireTimeout <= 0`, espera até ctx cancelar.
// - Se `AcquireTimeout > 0`, espera no máximo esse tempo.
func (a Admission) Acquire(ctx context.Context) (func(), error) {
	if a.Pool == nil {
		return func() {}, nil
	}
	if a.AcquireTimeout <= 0 {
		return a.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, a.AcquireTimeout)
	defer cancel()
	return a.Pool.Acquire(acqCtx)
}
