package infra

import (
	"context"
	"sync"

	"rest-gateway/rest/router/domain"
)

type Counters struct {
	Success        int64
	ClientError    int64
	ServerError    int64
	TransportError int64
	RateLimited    int64
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.OutcomeSuccess:
		c.Success++
	case domain.OutcomeClientError:
		c.ClientError++
	case domain.OutcomeServerError:
		c.ServerError++
	case domain.OutcomeTransportError:
		c.TransportError++
	case domain.OutcomeRateLimited:
		c.RateLimited++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração; o log de eventos é limitado por WithEventLog.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byRoute  map[string]Counters
	byBucket map[string]Counters
	events   []domain.ExchangeEvent

	trackBuckets bool
	eventLog     int
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackBuckets(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackBuckets = track }
}

// WithEventLog guarda os últimos n eventos (0 desliga).
func WithEventLog(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.eventLog = n }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:  make(map[string]Counters),
		byBucket: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.ExchangeEvent) error {
	route := ev.Method + " " + ev.Template

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)
	c := s.byRoute[route]
	c.add(ev.Outcome)
	s.byRoute[route] = c
	if s.trackBuckets {
		b := s.byBucket[ev.Bucket]
		b.add(ev.Outcome)
		s.byBucket[ev.Bucket] = b
	}
	if s.eventLog > 0 {
		if len(s.events) >= s.eventLog {
			copy(s.events, s.events[1:])
			s.events = s.events[:len(s.events)-1]
		}
		s.events = append(s.events, ev)
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByBucket() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byBucket))
	for k, v := range s.byBucket {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) Events() []domain.ExchangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ExchangeEvent(nil), s.events...)
}
