package infra

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"rest-gateway/rest/router/domain"
)

func event(outcome domain.Outcome, bucket string, attempt int) domain.ExchangeEvent {
	return domain.ExchangeEvent{
		RequestID: "r1",
		Bucket:    bucket,
		Method:    "GET",
		Template:  "/webhooks/{webhook.id}",
		Outcome:   outcome,
		Attempt:   attempt,
		Duration:  20 * time.Millisecond,
		At:        now,
	}
}

func TestMemoryStatsStore_Counts(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackBuckets(true), WithEventLog(2))
	ctx := context.Background()

	_ = s.Record(ctx, event(domain.OutcomeRateLimited, "bucket:B1", 1))
	_ = s.Record(ctx, event(domain.OutcomeSuccess, "bucket:B1", 1))
	_ = s.Record(ctx, event(domain.OutcomeServerError, "bucket:B2", 1))

	if tot := s.Total(); tot.Success != 1 || tot.RateLimited != 1 || tot.ServerError != 1 {
		t.Fatalf("unexpected totals %+v", tot)
	}
	if c := s.ByRoute()["GET /webhooks/{webhook.id}"]; c.Success != 1 {
		t.Fatalf("unexpected route counters %+v", c)
	}
	if c := s.ByBucket()["bucket:B2"]; c.ServerError != 1 {
		t.Fatalf("unexpected bucket counters %+v", c)
	}
	ev := s.Events()
	if len(ev) != 2 || ev[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("event log should keep the last 2, got %+v", ev)
	}
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ctx := context.Background()

	_ = m.Record(ctx, event(domain.OutcomeSuccess, "b", 1))
	_ = m.Record(ctx, event(domain.OutcomeServerError, "b", 2))
	ev := event(domain.OutcomeRateLimited, "b", 1)
	ev.Global = true
	_ = m.Record(ctx, ev)

	if v := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("GET", "/webhooks/{webhook.id}", "success")); v != 1 {
		t.Fatalf("exchanges success=%v", v)
	}
	if v := testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("global")); v != 1 {
		t.Fatalf("rate limited global=%v", v)
	}
	if v := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("2")); v != 1 {
		t.Fatalf("retries attempt 2=%v", v)
	}
	if n := testutil.CollectAndCount(m.ExchangeDuration); n != 3 {
		t.Fatalf("expected 3 duration series, got %d", n)
	}

	var nilMetrics *Metrics
	if err := nilMetrics.Record(ctx, ev); err != nil {
		t.Fatalf("nil metrics should be a no-op: %v", err)
	}
}

func TestRegisterBucketGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	g := RegisterBucketGauge(reg, func() int { return n })

	if v := testutil.ToFloat64(g); v != 3 {
		t.Fatalf("gauge=%v", v)
	}
	n = 5
	expected := `
# HELP restrouter_buckets Number of rate limit buckets with a dispatcher loop
# TYPE restrouter_buckets gauge
restrouter_buckets 5
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "restrouter_buckets"); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestRegisterGlobalGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	left := 7
	RegisterGlobalGauges(reg, 10, func() int { return left })

	left = 4
	expected := `
# HELP restrouter_global_ceiling Configured global requests per window (0 = unlimited)
# TYPE restrouter_global_ceiling gauge
restrouter_global_ceiling 10
# HELP restrouter_global_remaining Global requests left in the current window
# TYPE restrouter_global_remaining gauge
restrouter_global_remaining 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"restrouter_global_ceiling", "restrouter_global_remaining"); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

type failingStore struct{ err error }

func (f failingStore) Record(context.Context, domain.ExchangeEvent) error { return f.err }

func TestMultiStatsStore_JoinsErrors(t *testing.T) {
	mem := NewMemoryStatsStore()
	boom := errors.New("boom")
	m := MultiStatsStore{mem, nil, failingStore{err: boom}}

	err := m.Record(context.Background(), event(domain.OutcomeSuccess, "b", 1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if mem.Total().Success != 1 {
		t.Fatalf("healthy store should still record")
	}
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	if err := s.Record(context.Background(), event(domain.OutcomeSuccess, "b", 1)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

// Roda só com um Redis de verdade: REDIS_ADDR=localhost:6379 go test ./...
func TestRedisStatsStore_Record(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	prefix := "router:test:" + time.Now().Format("150405.000000")
	s := NewRedisStatsStore(rdb, WithStatsPrefix(prefix), WithStatsTTL(time.Minute), WithStatsTrackBuckets(true))
	t.Cleanup(func() {
		keys, _ := rdb.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			_ = rdb.Del(ctx, keys...).Err()
		}
	})

	if err := s.Record(ctx, event(domain.OutcomeSuccess, "bucket:B1", 1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, event(domain.OutcomeRateLimited, "bucket:B1", 1)); err != nil {
		t.Fatalf("record: %v", err)
	}

	total, err := rdb.HGetAll(ctx, prefix+":total").Result()
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if total["success"] != "1" || total["rate_limited"] != "1" {
		t.Fatalf("unexpected totals %v", total)
	}
	lat, _ := rdb.HGet(ctx, prefix+":bucket:bucket:B1", "latency_ms").Result()
	if lat != "40" {
		t.Fatalf("latency_ms=%q", lat)
	}
	minute := prefix + ":minute:" + now.UTC().Format("200601021504")
	if ttl, _ := rdb.TTL(ctx, minute).Result(); ttl <= 0 {
		t.Fatalf("minute key should expire, ttl=%s", ttl)
	}
}

func TestSemaphorePool_BlocksAtCapacity(t *testing.T) {
	p := NewSemaphorePool(1)

	release, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	release() // idempotente
	r2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	r2()
	r3, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("double release must not grow capacity: %v", err)
	}
	defer r3()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel2()
	if _, err := p.Acquire(ctx2); err == nil {
		t.Fatalf("capacity should still be 1")
	}
}
