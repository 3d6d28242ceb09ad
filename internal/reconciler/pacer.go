package reconciler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces remote calls. Every call waits on one shared limiter, so
// switching from listing to removing or from removing to adding keeps the
// gap. An operation whose delay exceeds the shared one holds back the next
// call, whatever its operation, until that delay has passed. One Pacer is
// shared by every flow of a run so concurrent resources respect the same
// limits.
type Pacer struct {
	limiter *rate.Limiter
	base    time.Duration
	delays  map[Operation]time.Duration

	mu        sync.Mutex
	holdUntil time.Time
}

// NewPacer builds the shared limiter from RateLimitDelay. Removals use
// RemoveRateLimitDelay. A zero delay disables pacing.
func NewPacer(cfg Config) *Pacer {
	return &Pacer{
		limiter: newLimiter(cfg.RateLimitDelay),
		base:    cfg.RateLimitDelay,
		delays: map[Operation]time.Duration{
			OperationAdd:    cfg.RateLimitDelay,
			OperationRemove: cfg.RemoveRateLimitDelay,
			operationList:   cfg.RateLimitDelay,
		},
	}
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Wait blocks until a call for op may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context, op Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	p.mu.Lock()
	hold := time.Until(p.holdUntil)
	p.mu.Unlock()
	if err := sleepContext(ctx, hold); err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	if d := p.delays[op]; d > p.base {
		p.mu.Lock()
		if until := time.Now().Add(d); until.After(p.holdUntil) {
			p.holdUntil = until
		}
		p.mu.Unlock()
	}
	return nil
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
