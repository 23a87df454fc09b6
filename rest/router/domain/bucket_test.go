package domain

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func meteredBucket(limit, remaining int, resetAfter time.Duration) *Bucket {
	b := NewBucket(ConfirmedKey("b1"))
	b.UpdateFromResponse(RateLimitInfo{
		Present:    true,
		Bucket:     "b1",
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}, t0)
	return b
}

func TestBucket_UnmeteredAlwaysConsumes(t *testing.T) {
	b := NewBucket(ProvisionalKey("GET", "/x"))
	for i := 0; i < 100; i++ {
		if ok, _ := b.TryConsume(t0); !ok {
			t.Fatalf("unmetered bucket rejected consume %d", i)
		}
	}
	if w := b.Available(t0); w != 0 {
		t.Fatalf("expected no wait, got %s", w)
	}
}

func TestBucket_RejectsBeforeResetAndAcceptsAtReset(t *testing.T) {
	b := meteredBucket(2, 0, 3*time.Second)
	resetAt := t0.Add(3 * time.Second)

	ok, wait := b.TryConsume(t0.Add(time.Second))
	if ok {
		t.Fatalf("expected reject before reset")
	}
	if wait != 2*time.Second {
		t.Fatalf("expected wait 2s, got %s", wait)
	}
	if ok, _ := b.TryConsume(resetAt.Add(-time.Nanosecond)); ok {
		t.Fatalf("expected reject 1ns before reset")
	}
	if ok, _ := b.TryConsume(resetAt); !ok {
		t.Fatalf("expected accept exactly at reset")
	}
	if got := b.Snapshot().Remaining; got != 1 {
		t.Fatalf("expected remaining=limit-1=1 after refill, got %d", got)
	}
}

func TestBucket_RemainingOnlyDecrementsOnConsume(t *testing.T) {
	b := meteredBucket(5, 3, time.Minute)

	_ = b.Available(t0)
	_ = b.Available(t0)
	if got := b.Snapshot().Remaining; got != 3 {
		t.Fatalf("Available must not spend, remaining=%d", got)
	}
	for i := 0; i < 3; i++ {
		if ok, _ := b.TryConsume(t0); !ok {
			t.Fatalf("consume %d should pass", i)
		}
	}
	if ok, _ := b.TryConsume(t0); ok {
		t.Fatalf("4th consume should fail with remaining=0")
	}
}

func TestBucket_HeadersOverrideLocalEstimate(t *testing.T) {
	b := meteredBucket(5, 5, time.Minute)
	b.TryConsume(t0)
	b.TryConsume(t0)

	b.UpdateFromResponse(RateLimitInfo{Present: true, Limit: 5, Remaining: 4, ResetAfter: time.Minute}, t0)
	if got := b.Snapshot().Remaining; got != 4 {
		t.Fatalf("server remaining must win, got %d", got)
	}

	b.UpdateFromResponse(RateLimitInfo{Present: false}, t0)
	if b.Snapshot().Metered {
		t.Fatalf("response without headers should make the bucket unmetered")
	}
}

func TestBucket_SuspendBlocksUntil(t *testing.T) {
	b := NewBucket(ProvisionalKey("POST", "/x"))
	until := t0.Add(500 * time.Millisecond)
	b.Suspend(until)

	if w := b.Available(t0); w != 500*time.Millisecond {
		t.Fatalf("expected 500ms wait, got %s", w)
	}
	// nunca viu limite: depois do suspend volta a não medido
	if ok, _ := b.TryConsume(until); !ok {
		t.Fatalf("expected consume at until")
	}
	if b.Snapshot().Metered {
		t.Fatalf("expected unmetered after suspension without known limit")
	}
}

func TestBucket_QueueFIFOWithPushFront(t *testing.T) {
	b := NewBucket(ProvisionalKey("GET", "/x"))
	p1 := &Pending{Request: Request{ID: "1"}}
	p2 := &Pending{Request: Request{ID: "2"}}
	p3 := &Pending{Request: Request{ID: "3"}}
	b.Enqueue(p1)
	b.Enqueue(p2)

	got, _ := b.Dequeue()
	if got != p1 {
		t.Fatalf("expected p1 first")
	}
	b.Enqueue(p3)
	b.PushFront(p1)

	var order []string
	for _, p := range b.Drain() {
		order = append(order, p.Request.ID)
	}
	if len(order) != 3 || order[0] != "1" || order[1] != "2" || order[2] != "3" {
		t.Fatalf("unexpected order %v", order)
	}
	if _, ok := b.Peek(); ok {
		t.Fatalf("expected empty queue after Drain")
	}
}

func TestBucket_AppendKeepsOrder(t *testing.T) {
	b := NewBucket(ConfirmedKey("b1"))
	b.Enqueue(&Pending{Request: Request{ID: "0"}})
	b.Append([]*Pending{{Request: Request{ID: "1"}}, {Request: Request{ID: "2"}}})
	b.Append(nil)

	if b.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", b.Len())
	}
	for _, want := range []string{"0", "1", "2"} {
		p, _ := b.Dequeue()
		if p.Request.ID != want {
			t.Fatalf("expected %s, got %s", want, p.Request.ID)
		}
	}
}
