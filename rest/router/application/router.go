package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rest-gateway/rest/router/domain"
)

// Options configura o Router. Só Exchanger é obrigatório.
type Options struct {
	Exchanger domain.Exchanger
	// Global é a cota da conta; nil desliga o portão global (429 global ainda suspende).
	Global          *domain.GlobalAllowance
	Retry           RetryPolicy
	ExchangeTimeout time.Duration
	Clock           domain.Clock
	Stats           domain.StatsStore
	Logger          *zap.Logger
}

// Router é a fachada chamada pela camada de serviço.
//
// Submit agrupa as requests por bucket e cada bucket tem um loop próprio (criado
// sob demanda, vivo até Close) que envia em ordem FIFO respeitando a cota local e
// a global.
type Router struct {
	exchanger       domain.Exchanger
	global          *domain.GlobalAllowance
	policy          RetryPolicy
	exchangeTimeout time.Duration
	clock           domain.Clock
	stats           domain.StatsStore
	log             *zap.Logger

	resolver *Resolver

	mu      sync.Mutex
	workers map[domain.BucketKey]*worker
	closed  bool

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRouter(opts Options) *Router {
	if opts.Exchanger == nil {
		panic("application: Router requires an Exchanger")
	}
	if opts.ExchangeTimeout <= 0 {
		opts.ExchangeTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Global == nil {
		opts.Global = domain.NewGlobalAllowance(0, 0)
	}

	return &Router{
		exchanger:       opts.Exchanger,
		global:          opts.Global,
		policy:          opts.Retry.withDefaults(),
		exchangeTimeout: opts.ExchangeTimeout,
		clock:           opts.Clock,
		stats:           opts.Stats,
		log:             opts.Logger,
		resolver:        NewResolver(opts.Logger),
		workers:         make(map[domain.BucketKey]*worker),
		closing:         make(chan struct{}),
	}
}

// Submit enfileira a request no bucket dela e devolve o handle da resposta.
// Nunca falha de forma síncrona: todo erro chega pelo handle.
func (r *Router) Submit(req domain.Request) *domain.Handle {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	h := domain.NewHandle(req.ID)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.Resolve(domain.Response{}, domain.ErrRouterClosed)
		return h
	}
	w := r.workerLocked(r.resolver.Resolve(req))
	w.bucket.Enqueue(&domain.Pending{Request: req, Handle: h})
	r.mu.Unlock()

	w.notify()
	return h
}

// Do é Submit + Wait. Se ctx encerrar antes, a request continua na fila.
func (r *Router) Do(ctx context.Context, req domain.Request) (domain.Response, error) {
	return r.Submit(req).Wait(ctx)
}

// workerLocked devolve (criando se preciso) o loop do bucket. Chamar com mu travado.
func (r *Router) workerLocked(key domain.BucketKey) *worker {
	if w, ok := r.workers[key]; ok {
		return w
	}
	w := newWorker(r, key)
	r.workers[key] = w
	r.wg.Add(1)
	go w.run()
	r.log.Debug("bucket created", zap.Stringer("bucket", key))
	return w
}

// confirmLocked registra a chave confirmada e devolve o loop que passa a ser dono
// das requests daquela rota. Chamar com mu travado.
func (r *Router) confirmLocked(from *worker, req domain.Request, serverID string) *worker {
	key, _ := r.resolver.Confirm(domain.KeyFor(req), serverID)
	if w, ok := r.workers[key]; ok {
		return w
	}
	if r.closed {
		// fechando: nenhum loop novo; Close resolve o que ficar na fila
		return from
	}
	return r.workerLocked(key)
}

func (r *Router) record(ev domain.ExchangeEvent) {
	if r.stats == nil {
		return
	}
	if err := r.stats.Record(context.Background(), ev); err != nil {
		r.log.Debug("stats record failed", zap.Error(err))
	}
}

// Resolver expõe o mapa de chaves confirmadas (diagnóstico e testes).
func (r *Router) Resolver() *Resolver { return r.resolver }

// BucketInfo é a foto de um bucket com o estado do seu loop.
type BucketInfo struct {
	domain.BucketState
	State State
}

func (r *Router) Buckets() []BucketInfo {
	r.mu.Lock()
	out := make([]BucketInfo, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, BucketInfo{BucketState: w.bucket.Snapshot(), State: w.State()})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

func (r *Router) BucketCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Close para os loops. Trocas em voo terminam (o efeito na cota é aplicado); o que
// ainda estava na fila é resolvido com ErrRouterClosed. Pode ser chamado mais de
// uma vez.
func (r *Router) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.closing)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.failQueued()
		return ctx.Err()
	}
	r.failQueued()
	return nil
}

func (r *Router) failQueued() {
	r.mu.Lock()
	workers := make([]*worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	n := 0
	for _, w := range workers {
		for _, p := range w.bucket.Drain() {
			if p.Handle.Resolve(domain.Response{}, domain.ErrRouterClosed) {
				n++
			}
		}
	}
	if n > 0 {
		r.log.Info("router closed with queued requests", zap.Int("failed", n))
	}
}
