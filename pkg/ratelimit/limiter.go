// Package ratelimit implements a token bucket used to throttle outbound
// chat messages. WhatsApp suspends accounts that send too fast; the bot
// paces itself instead.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a single token bucket. A nil *Limiter never limits.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a limiter allowing perMinute sends sustained, with at most
// burst sends back to back. Returns nil (unlimited) when perMinute <= 0.
func New(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(perMinute) / 60.0,
		lastRefill: time.Now(),
	}
}

func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
}

// Allow takes n tokens if available, without blocking.
func (l *Limiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens < float64(n) {
		return false
	}
	l.tokens -= float64(n)
	return true
}

// Wait blocks until n tokens have been acquired or ctx is done. n may
// exceed the burst capacity; the excess is acquired in capacity-sized
// chunks as the bucket refills.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	chunk := int(l.maxTokens)
	for n > 0 {
		take := n
		if take > chunk {
			take = chunk
		}
		if err := l.waitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

// waitN blocks for n <= capacity tokens.
func (l *Limiter) waitN(ctx context.Context, n int) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= float64(n) {
			l.tokens -= float64(n)
			l.mu.Unlock()
			return nil
		}
		missing := float64(n) - l.tokens
		l.mu.Unlock()

		wait := time.Duration(missing / l.refillRate * float64(time.Second))
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
