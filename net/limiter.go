package net

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// SendLimiter is a token bucket in front of Transport.Send. The bucket can be
// swapped at runtime; a rate of 0 disables limiting.
type SendLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewSendLimiter allows limit requests per second with bursts of burst.
func NewSendLimiter(limit, burst int) *SendLimiter {
	l := &SendLimiter{}
	l.Reload(limit, burst)
	return l
}

// Wait blocks until a token is available or ctx is done.
func (l *SendLimiter) Wait(ctx context.Context) error {
	lim := l.limiter.Load()
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

// Allow takes a token if one is available right now.
func (l *SendLimiter) Allow() bool {
	lim := l.limiter.Load()
	if lim == nil {
		return true
	}
	return lim.Allow()
}

// Reload replaces the bucket.
func (l *SendLimiter) Reload(limit, burst int) {
	if limit <= 0 {
		l.limiter.Store(nil)
		return
	}
	if burst <= 0 {
		burst = 1
	}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// Enabled reports whether a rate is in force.
func (l *SendLimiter) Enabled() bool {
	return l.limiter.Load() != nil
}

// FunnelRecvLimiter is a leaky bucket that paces the receiver so a flood of
// datagrams cannot starve the rest of the process. A rate of 0 disables it.
type FunnelRecvLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelRecvLimiter lets limit datagrams per second through.
func NewFunnelRecvLimiter(limit int) *FunnelRecvLimiter {
	l := &FunnelRecvLimiter{}
	l.Reload(limit)
	return l
}

// Take blocks until the next datagram may be processed.
func (l *FunnelRecvLimiter) Take() {
	lim := l.limiter.Load()
	if lim == nil {
		return
	}
	_ = (*lim).Take()
}

// Reload replaces the bucket.
func (l *FunnelRecvLimiter) Reload(limit int) {
	if limit <= 0 {
		l.limiter.Store(nil)
		return
	}
	lim := ratelimit.New(limit)
	l.limiter.Store(&lim)
}

func (l *FunnelRecvLimiter) Enabled() bool {
	return l.limiter.Load() != nil
}
