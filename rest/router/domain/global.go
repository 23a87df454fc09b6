package domain

import (
	"sync"
	"time"
)

// GlobalAllowance é a cota da conta inteira, compartilhada por todos os buckets.
//
// Mesma semântica de reset do Bucket, sem fila. Toda mutação passa pelo mutex:
// um decremento por vez, sem gastar a mesma ficha duas vezes.
// Com ceiling <= 0 o portão fica aberto, exceto durante um Suspend.
type GlobalAllowance struct {
	mu sync.Mutex

	ceiling   int
	window    time.Duration
	remaining int
	resetAt   time.Time
	// blockedUntil vem de um 429 global e vale mesmo sem ceiling configurado.
	blockedUntil time.Time
}

func NewGlobalAllowance(ceiling int, window time.Duration) *GlobalAllowance {
	if window <= 0 {
		window = time.Second
	}
	return &GlobalAllowance{ceiling: ceiling, window: window}
}

func (g *GlobalAllowance) TryConsume(now time.Time) (bool, time.Duration) {
	if g == nil {
		return true, 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Before(g.blockedUntil) {
		return false, g.blockedUntil.Sub(now)
	}
	if g.ceiling <= 0 {
		return true, 0
	}
	if !now.Before(g.resetAt) {
		g.remaining = g.ceiling
		g.resetAt = now.Add(g.window)
	}
	if g.remaining > 0 {
		g.remaining--
		return true, 0
	}
	return false, g.resetAt.Sub(now)
}

// Suspend fecha o portão até `until` (429 com escopo global).
func (g *GlobalAllowance) Suspend(until time.Time) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if until.After(g.blockedUntil) {
		g.blockedUntil = until
	}
	g.remaining = 0
	if until.After(g.resetAt) {
		g.resetAt = until
	}
}

// Refund devolve uma ficha tirada por TryConsume que acabou não virando envio.
func (g *GlobalAllowance) Refund() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ceiling > 0 && g.remaining < g.ceiling {
		g.remaining++
	}
}

func (g *GlobalAllowance) Remaining() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

func (g *GlobalAllowance) Ceiling() int {
	if g == nil {
		return 0
	}
	return g.ceiling
}
