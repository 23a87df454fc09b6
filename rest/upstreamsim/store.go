package upstreamsim

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// store guarda um token bucket (x/time/rate) por bucket do servidor simulado,
// com limpeza periódica de buckets ociosos.
type store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newStore(limit int, window time.Duration, idleTTL, cleanupEvery time.Duration) *store {
	return &store{
		entries:      make(map[string]*storeEntry),
		rps:          rate.Limit(float64(limit) / window.Seconds()),
		burst:        limit,
		idleTTL:      idleTTL,
		cleanupEvery: cleanupEvery,
	}
}

func (s *store) get(bucket string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[bucket]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[bucket] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *store) cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// startJanitor limpa buckets ociosos até o ctx encerrar.
func (s *store) startJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.cleanup()
			}
		}
	}()
}

// resetAfter estima quanto falta para o bucket voltar ao teto.
func (s *store) resetAfter(tokens float64) time.Duration {
	missing := float64(s.burst) - tokens
	if missing <= 0 || s.rps <= 0 {
		return 0
	}
	return time.Duration(missing / float64(s.rps) * float64(time.Second))
}
