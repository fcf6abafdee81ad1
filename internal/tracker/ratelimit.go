package tracker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds fetch load across every tier and manual operation: a
// global cap on in-flight attempts plus per-site pacing so requests against
// one site stay spread out.
type RateLimiter struct {
	slots     chan struct{}
	siteDelay time.Duration

	mu    sync.Mutex
	sites map[string]*rate.Limiter
}

func NewRateLimiter(maxConcurrent int, perSiteDelay time.Duration) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		slots:     make(chan struct{}, maxConcurrent),
		siteDelay: perSiteDelay,
		sites:     make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until a global slot is free and the site's pacing allows
// another request, then returns the release func for the slot. Release must
// be called on every exit path; calling it more than once is safe. A
// canceled context aborts the wait and returns the context's error.
func (rl *RateLimiter) Acquire(ctx context.Context, site string) (release func(), err error) {
	select {
	case rl.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release = func() {
		once.Do(func() {
			<-rl.slots
		})
	}

	if err := rl.siteLimiter(site).Wait(ctx); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// MaxConcurrent reports the size of the global slot pool.
func (rl *RateLimiter) MaxConcurrent() int {
	return cap(rl.slots)
}

// InFlight is the number of currently held slots.
func (rl *RateLimiter) InFlight() int {
	return len(rl.slots)
}

func (rl *RateLimiter) siteLimiter(site string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.sites[site]
	if !ok {
		if rl.siteDelay > 0 {
			l = rate.NewLimiter(rate.Every(rl.siteDelay), 1)
		} else {
			l = rate.NewLimiter(rate.Inf, 1)
		}
		rl.sites[site] = l
	}
	return l
}
