package domain

import (
	"sync"
	"time"
)

// Pending é uma request enfileirada junto com o handle que o chamador observa.
type Pending struct {
	Request Request
	Handle  *Handle
	// Attempts conta falhas transitórias (5xx/transporte) já sofridas.
	Attempts int
	// NotBefore segura a cabeça da fila durante o backoff de um retry.
	NotBefore time.Time
}

// Bucket guarda o estado de rate limit de uma família de endpoints e a fila FIFO
// de requests pendentes.
//
// Regras:
//   - remaining só diminui em TryConsume (um envio) e volta para limit quando
//     now >= resetAt, ou é sobrescrito pelos headers da resposta;
//   - sem headers observados o bucket é "não medido" e TryConsume sempre passa.
//
// O worker do bucket é o único que consome; o mutex existe porque a migração de
// chave e o requeue após 429 podem tocar a fila a partir de outro worker.
type Bucket struct {
	mu sync.Mutex

	key       BucketKey
	metered   bool
	limit     int
	remaining int
	resetAt   time.Time
	// window é o último reset-after visto; usado para estimar o próximo reset local.
	window time.Duration

	queue []*Pending
}

func NewBucket(key BucketKey) *Bucket {
	return &Bucket{key: key}
}

func (b *Bucket) Key() BucketKey { return b.key }

// refill aplica o reset por tempo decorrido. Chamar com mu travado.
func (b *Bucket) refill(now time.Time) {
	if !b.metered || now.Before(b.resetAt) {
		return
	}
	if b.limit <= 0 {
		// suspenso por 429 sem nunca ter visto o limite: volta a não medido
		b.metered = false
		return
	}
	b.remaining = b.limit
	if b.window > 0 {
		b.resetAt = now.Add(b.window)
	}
}

// TryConsume gasta uma vaga local se houver. Quando não há, devolve quanto falta
// para o reset.
func (b *Bucket) TryConsume(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if !b.metered {
		return true, 0
	}
	if b.remaining > 0 {
		b.remaining--
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Available é TryConsume sem gastar: 0 se há vaga, senão a espera até o reset.
func (b *Bucket) Available(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if !b.metered || b.remaining > 0 {
		return 0
	}
	return b.resetAt.Sub(now)
}

// UpdateFromResponse sobrescreve o estado com os headers da resposta.
// Os headers do servidor sempre vencem a estimativa local.
func (b *Bucket) UpdateFromResponse(info RateLimitInfo, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !info.Present {
		b.metered = false
		return
	}
	b.metered = true
	if info.Limit > 0 {
		b.limit = info.Limit
	}
	b.remaining = max(info.Remaining, 0)
	if reset := info.ResetTime(now); !reset.IsZero() {
		b.resetAt = reset
		if w := reset.Sub(now); w > 0 {
			b.window = w
		}
	}
}

// Suspend zera o bucket até `until` (429 vindo do servidor).
func (b *Bucket) Suspend(until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metered = true
	b.remaining = 0
	if until.After(b.resetAt) {
		b.resetAt = until
	}
}

func (b *Bucket) Enqueue(p *Pending) {
	b.mu.Lock()
	b.queue = append(b.queue, p)
	b.mu.Unlock()
}

// PushFront devolve p para a cabeça da fila (retry preserva a ordem).
func (b *Bucket) PushFront(p *Pending) {
	b.mu.Lock()
	b.queue = append([]*Pending{p}, b.queue...)
	b.mu.Unlock()
}

func (b *Bucket) Peek() (*Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	return b.queue[0], true
}

func (b *Bucket) Dequeue() (*Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	p := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return p, true
}

// Drain esvazia a fila e devolve os itens na ordem original.
func (b *Bucket) Drain() []*Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// Append enfileira vários itens de uma vez, mantendo a ordem.
func (b *Bucket) Append(items []*Pending) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, items...)
	b.mu.Unlock()
}

func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// BucketState é uma foto do bucket para diagnóstico.
type BucketState struct {
	Key       BucketKey
	Metered   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	Queued    int
}

func (b *Bucket) Snapshot() BucketState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BucketState{
		Key:       b.key,
		Metered:   b.metered,
		Limit:     b.limit,
		Remaining: b.remaining,
		ResetAt:   b.resetAt,
		Queued:    len(b.queue),
	}
}
