// Package ratelimit bounds how many payment attempts a user may make in a
// trailing window.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Limiter admits or rejects one attempt for key. An error means the decision
// could not be made; callers treat it as a rejection.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config is shared by every backend.
type Config struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
