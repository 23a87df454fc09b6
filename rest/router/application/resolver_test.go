package application

import (
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"rest-gateway/rest/router/domain"
)

func TestResolver_ProvisionalUntilConfirmed(t *testing.T) {
	r := NewResolver(zaptest.NewLogger(t))
	req := domain.NewRoute("POST", "/channels/{channel.id}/webhooks").NewRequest(1)

	if got := r.Resolve(req); got != domain.KeyFor(req) {
		t.Fatalf("expected provisional key, got %v", got)
	}

	key, created := r.Confirm(domain.KeyFor(req), "B1")
	if !created || key != domain.ConfirmedKey("B1") {
		t.Fatalf("unexpected confirm result %v created=%v", key, created)
	}
	if got := r.Resolve(req); got != domain.ConfirmedKey("B1") {
		t.Fatalf("expected confirmed key, got %v", got)
	}
}

func TestResolver_FirstConfirmationWins(t *testing.T) {
	r := NewResolver(nil)
	prov := domain.ProvisionalKey("GET", "/webhooks/{webhook.id}")

	r.Confirm(prov, "B1")
	key, created := r.Confirm(prov, "B2")
	if created || key != domain.ConfirmedKey("B1") {
		t.Fatalf("later disagreement must be ignored, got %v created=%v", key, created)
	}

	m := r.Mappings()
	if len(m) != 1 || m[prov] != domain.ConfirmedKey("B1") {
		t.Fatalf("unexpected mappings %v", m)
	}
}

func TestResolver_ConcurrentConfirmSingleWinner(t *testing.T) {
	r := NewResolver(nil)
	prov := domain.ProvisionalKey("GET", "/x")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, created := r.Confirm(prov, string(rune('a'+i))); created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one creating confirmation, got %d", winners)
	}
}
