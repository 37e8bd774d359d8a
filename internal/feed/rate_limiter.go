package feed

import (
	"sync"
	"time"
)

// rateLimiter spaces outgoing feed requests evenly. Callers queue behind
// the previously granted slot rather than racing for the clock.
type rateLimiter struct {
	mu       sync.Mutex
	nextSlot time.Time
	gap      time.Duration
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &rateLimiter{gap: time.Second / time.Duration(requestsPerSecond)}
}

func (r *rateLimiter) waitTurn() {
	r.mu.Lock()
	slot := time.Now()
	if r.nextSlot.After(slot) {
		slot = r.nextSlot
	}
	r.nextSlot = slot.Add(r.gap)
	r.mu.Unlock()

	if wait := time.Until(slot); wait > 0 {
		time.Sleep(wait)
	}
}
