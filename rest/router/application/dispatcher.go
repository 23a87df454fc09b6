package application

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rest-gateway/rest/router/domain"
)

// State é o estado do loop de despacho de um bucket.
type State int32

const (
	StateIdle State = iota
	StateWaitingLocal
	StateWaitingGlobal
	StateSending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingLocal:
		return "waiting_local"
	case StateWaitingGlobal:
		return "waiting_global"
	case StateSending:
		return "sending"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// worker é o loop de um bucket: no máximo uma troca em voo por bucket, buckets
// diferentes em paralelo.
type worker struct {
	r      *Router
	bucket *domain.Bucket
	wake   chan struct{}
	state  atomic.Int32
}

func newWorker(r *Router, key domain.BucketKey) *worker {
	return &worker{
		r:      r,
		bucket: domain.NewBucket(key),
		wake:   make(chan struct{}, 1),
	}
}

func (w *worker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) setState(s State) { w.state.Store(int32(s)) }

func (w *worker) State() State { return State(w.state.Load()) }

// sleep suspende até d passar, um novo enqueue acordar o loop ou o router fechar.
// Retorna false quando o router fechou.
func (w *worker) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-w.wake:
		return true
	case <-w.r.closing:
		return false
	}
}

func (w *worker) run() {
	defer w.r.wg.Done()
	defer w.setState(StateStopped)

	for {
		select {
		case <-w.r.closing:
			return
		default:
		}

		p, ok := w.bucket.Peek()
		if !ok {
			w.setState(StateIdle)
			select {
			case <-w.wake:
				continue
			case <-w.r.closing:
				return
			}
		}

		now := w.r.clock.Now()
		if wait := p.NotBefore.Sub(now); wait > 0 {
			w.setState(StateWaitingLocal)
			if !w.sleep(wait) {
				return
			}
			continue
		}
		if wait := w.bucket.Available(now); wait > 0 {
			w.setState(StateWaitingLocal)
			if !w.sleep(wait) {
				return
			}
			continue
		}
		if ok, wait := w.r.global.TryConsume(now); !ok {
			w.setState(StateWaitingGlobal)
			if !w.sleep(wait) {
				return
			}
			continue
		}

		// uma migração concorrente pode ter suspendido o bucket depois de Available;
		// nesse caso a ficha global volta para a conta
		if ok, _ := w.bucket.TryConsume(now); !ok {
			w.r.global.Refund()
			continue
		}
		if p, ok = w.bucket.Dequeue(); !ok {
			w.r.global.Refund()
			continue
		}

		w.setState(StateSending)
		w.send(p)
	}
}

func (w *worker) send(p *domain.Pending) {
	// depois do settle p pode já pertencer a outro loop: nada de p é lido depois dele
	req, h, failures := p.Request, p.Handle, p.Attempts

	log := w.r.log.With(
		zap.String("request_id", req.ID),
		zap.Stringer("bucket", w.bucket.Key()),
		zap.String("method", req.Method),
		zap.String("template", req.Template),
	)

	// a troca não herda o ctx de quem chamou: desistir de esperar não cancela o envio
	ctx, cancel := context.WithTimeout(context.Background(), w.r.exchangeTimeout)
	start := w.r.clock.Now()
	resp, err := w.r.exchanger.Exchange(ctx, req)
	cancel()
	now := w.r.clock.Now()

	attempt := failures + 1
	dec := w.r.policy.Decide(resp, err, failures)
	queued := w.settle(p, resp, err, dec, now)

	w.r.record(domain.ExchangeEvent{
		RequestID: req.ID,
		Bucket:    w.bucket.Key().String(),
		Method:    req.Method,
		Template:  req.Template,
		Status:    resp.Status,
		Outcome:   dec.Outcome,
		Global:    dec.Global,
		Attempt:   attempt,
		Duration:  now.Sub(start),
		At:        now,
	})

	switch dec.Action {
	case ActionResolve:
		log.Debug("exchange resolved", zap.Int("status", resp.Status))
		h.Resolve(resp, nil)
	case ActionFail:
		log.Info("exchange failed", zap.Int("status", resp.Status), zap.Error(dec.Err))
		h.Resolve(resp, dec.Err)
	case ActionRequeue, ActionRetry:
		if !queued {
			log.Info("router closed, pending retry dropped", zap.Int("status", resp.Status))
			return
		}
		if dec.Action == ActionRetry {
			log.Warn("transient failure, retrying",
				zap.Int("status", resp.Status), zap.Int("failures", attempt),
				zap.Duration("backoff", dec.Delay), zap.Error(err))
			return
		}
		log.Info("rate limited, requeued at head",
			zap.Duration("retry_after", dec.Delay), zap.Bool("global", dec.Global))
	}
}

// settle aplica a resposta no estado de rate limit e devolve a request para a fila
// quando a política manda repetir.
//
// Se a resposta confirmou um bucket diferente do atual, os itens ainda não
// despachados migram para o bucket confirmado na mesma ordem. A confirmação, a
// atualização de estado e a migração acontecem sob o lock do router, então nenhum
// Submit concorrente passa na frente dos itens migrados nem vê o bucket novo sem
// o estado dos headers. Com o router fechado nada volta para fila: Close pode já
// ter drenado tudo, então a request que seria repetida falha com ErrRouterClosed.
// Devolve true quando p voltou para uma fila.
func (w *worker) settle(p *domain.Pending, resp domain.Response, err error, dec Decision, now time.Time) bool {
	var head *domain.Pending
	switch dec.Action {
	case ActionRequeue:
		head = p
	case ActionRetry:
		p.Attempts++
		p.NotBefore = now.Add(dec.Delay)
		head = p
	}

	confirm := err == nil && resp.RateLimit.Bucket != ""
	if !confirm && head == nil {
		w.apply(w, resp, err, dec, now)
		return false
	}

	w.r.mu.Lock()
	dest := w
	if confirm {
		dest = w.r.confirmLocked(w, p.Request, resp.RateLimit.Bucket)
	}
	w.apply(dest, resp, err, dec, now)

	if w.r.closed {
		w.r.mu.Unlock()
		if head != nil {
			head.Handle.Resolve(domain.Response{}, domain.ErrRouterClosed)
		}
		return false
	}

	if dest != w {
		items := w.bucket.Drain()
		if head != nil {
			items = append([]*domain.Pending{head}, items...)
		}
		dest.bucket.Append(items)
		w.r.mu.Unlock()

		w.r.log.Info("bucket confirmed, queue migrated",
			zap.Stringer("from", w.bucket.Key()),
			zap.Stringer("to", dest.bucket.Key()),
			zap.Int("migrated", len(items)))
		dest.notify()
		return head != nil
	}
	if head != nil {
		w.bucket.PushFront(head)
	}
	w.r.mu.Unlock()
	return head != nil
}

// apply grava no bucket (e na cota global) o que a resposta disse.
func (w *worker) apply(dest *worker, resp domain.Response, err error, dec Decision, now time.Time) {
	// 429 global sem headers de bucket não diz nada sobre o bucket
	if err == nil && !(dec.Global && !resp.RateLimit.Present) {
		dest.bucket.UpdateFromResponse(resp.RateLimit, now)
	}
	if dec.Action == ActionRequeue {
		until := now.Add(dec.Delay)
		if dec.Global {
			w.r.global.Suspend(until)
		} else {
			dest.bucket.Suspend(until)
		}
	}
}
