package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-instance backend used when Redis is disabled.
type MemoryLimiter struct {
	cfg Config

	mu       sync.Mutex
	attempts map[string][]time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg.withDefaults(), attempts: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := l.cfg.Now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= l.cfg.Limit {
		l.attempts[key] = kept
		return false, nil
	}
	l.attempts[key] = append(kept, now)
	return true, nil
}
