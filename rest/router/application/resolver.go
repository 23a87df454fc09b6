package application

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rest-gateway/rest/router/domain"
)

// Resolver mapeia a chave provisória (método + template) para a chave confirmada
// pelo servidor, quando já conhecida.
//
// A primeira confirmação vence. Uma confirmação posterior com outro id (ex.:
// balanceamento do lado do servidor) é ignorada e apenas logada.
type Resolver struct {
	mu        sync.RWMutex
	confirmed map[domain.BucketKey]domain.BucketKey

	log      *zap.Logger
	disagree rate.Sometimes
}

func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		confirmed: make(map[domain.BucketKey]domain.BucketKey),
		log:       log,
		disagree:  rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

func (r *Resolver) Resolve(req domain.Request) domain.BucketKey {
	prov := domain.KeyFor(req)

	r.mu.RLock()
	key, ok := r.confirmed[prov]
	r.mu.RUnlock()
	if ok {
		return key
	}
	return prov
}

// Confirm registra provisional -> serverID. Devolve a chave que passa a valer e se
// esta chamada criou o mapeamento.
func (r *Resolver) Confirm(provisional domain.BucketKey, serverID string) (domain.BucketKey, bool) {
	want := domain.ConfirmedKey(serverID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.confirmed[provisional]; ok {
		if cur != want {
			r.disagree.Do(func() {
				r.log.Warn("bucket confirmation disagreement ignored",
					zap.Stringer("route", provisional),
					zap.String("kept", cur.Value),
					zap.String("ignored", serverID))
			})
		}
		return cur, false
	}
	r.confirmed[provisional] = want
	return want, true
}

// Mappings devolve uma cópia do mapa provisional -> confirmed.
func (r *Resolver) Mappings() map[domain.BucketKey]domain.BucketKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.BucketKey]domain.BucketKey, len(r.confirmed))
	for k, v := range r.confirmed {
		out[k] = v
	}
	return out
}
