package domain

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGlobalAllowance_CeilingPerWindow(t *testing.T) {
	g := NewGlobalAllowance(3, time.Second)

	for i := 0; i < 3; i++ {
		if ok, _ := g.TryConsume(t0); !ok {
			t.Fatalf("consume %d should pass", i)
		}
	}
	ok, wait := g.TryConsume(t0.Add(200 * time.Millisecond))
	if ok {
		t.Fatalf("4th consume in window should fail")
	}
	if wait != 800*time.Millisecond {
		t.Fatalf("expected 800ms wait, got %s", wait)
	}
	if ok, _ := g.TryConsume(t0.Add(time.Second)); !ok {
		t.Fatalf("expected refill at window end")
	}
}

func TestGlobalAllowance_NeverOverSpentConcurrently(t *testing.T) {
	g := NewGlobalAllowance(10, time.Hour)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if ok, _ := g.TryConsume(t0); ok {
					granted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := granted.Load(); got != 10 {
		t.Fatalf("expected exactly 10 grants, got %d", got)
	}
}

func TestGlobalAllowance_SuspendWithoutCeiling(t *testing.T) {
	g := NewGlobalAllowance(0, 0)
	if ok, _ := g.TryConsume(t0); !ok {
		t.Fatalf("open gate should pass")
	}

	g.Suspend(t0.Add(2 * time.Second))
	if ok, wait := g.TryConsume(t0.Add(time.Second)); ok || wait != time.Second {
		t.Fatalf("expected blocked for 1s more, ok=%v wait=%s", ok, wait)
	}
	if ok, _ := g.TryConsume(t0.Add(2 * time.Second)); !ok {
		t.Fatalf("expected open after suspension")
	}
}

func TestGlobalAllowance_NilIsOpen(t *testing.T) {
	var g *GlobalAllowance
	if ok, _ := g.TryConsume(t0); !ok {
		t.Fatalf("nil allowance should pass")
	}
	g.Suspend(t0.Add(time.Hour))
	if g.Remaining() != 0 || g.Ceiling() != 0 {
		t.Fatalf("nil allowance should report zero")
	}
}

func TestGlobalAllowance_Refund(t *testing.T) {
	g := NewGlobalAllowance(2, time.Second)

	g.TryConsume(t0)
	g.TryConsume(t0)
	if ok, _ := g.TryConsume(t0); ok {
		t.Fatalf("window should be spent")
	}
	g.Refund()
	if ok, _ := g.TryConsume(t0); !ok {
		t.Fatalf("refunded token should be usable")
	}

	g.Refund()
	g.Refund()
	g.Refund()
	if g.Remaining() != 2 {
		t.Fatalf("refund must not go over the ceiling, remaining=%d", g.Remaining())
	}

	var open *GlobalAllowance
	open.Refund()
	NewGlobalAllowance(0, 0).Refund()
}
