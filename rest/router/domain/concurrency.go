package domain

import "context"

// SlotPool limita quantas requests de entrada o gateway aceita ao mesmo tempo,
// antes mesmo de chegarem ao router.
//
// Acquire espera uma vaga até o ctx encerrar; nesse caso devolve o erro do ctx.
// O release devolvido deve ser chamado uma única vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), err error)
}
