package domain

import (
	"context"
	"fmt"
	"sync"
)

// Handle é o futuro de atribuição única entregue ao chamador no Submit.
//
// Resolve só tem efeito na primeira chamada. Desistir de esperar (Wait com ctx
// encerrado) não cancela a request: ela ainda sai e o efeito na cota é aplicado.
type Handle struct {
	id   string
	once sync.Once
	done chan struct{}

	resp Response
	err  error
}

func NewHandle(id string) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

func (h *Handle) ID() string { return h.id }

// Resolve atribui o resultado. Retorna false se o handle já estava resolvido.
func (h *Handle) Resolve(resp Response, err error) bool {
	resolved := false
	h.once.Do(func() {
		h.resp, h.err = resp, err
		resolved = true
		close(h.done)
	})
	return resolved
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Result só é significativo depois que Done fechou.
func (h *Handle) Result() (Response, error) {
	select {
	case <-h.done:
		return h.resp, h.err
	default:
		return Response{}, fmt.Errorf("handle %s not resolved", h.id)
	}
}

func (h *Handle) Wait(ctx context.Context) (Response, error) {
	select {
	case <-h.done:
		return h.resp, h.err
	case <-ctx.Done():
		return Response{}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}
