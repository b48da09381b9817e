// Package ratelimit enforces a minimum delay between requests to the same host.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket of size one per host.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]*rate.Limiter
	minInterval time.Duration
}

// New creates a limiter that spaces requests to one host by minInterval.
// A non-positive interval disables limiting.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]*rate.Limiter),
		minInterval: minInterval,
	}
}

// WaitContext blocks until a request to host is allowed or ctx is done.
// A caller that gives up returns its slot to the host.
func (l *Limiter) WaitContext(ctx context.Context, host string) error {
	return l.forHost(host).Wait(ctx)
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.hosts[host]
	if !ok {
		limit := rate.Inf
		if l.minInterval > 0 {
			limit = rate.Every(l.minInterval)
		}
		lim = rate.NewLimiter(limit, 1)
		l.hosts[host] = lim
	}
	return lim
}
