// Package middleware holds the HTTP and command-surface middleware: rate
// limiting, origin checks, request logging and metrics.
package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller (identity or remote address).
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
	log      *logger.Logger
	stop     context.CancelFunc
}

func NewRateLimiter(perSecond, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		log:      log,
	}
}

// Allow consumes one token for caller. It fails with RATE_LIMITED once the
// bucket is empty.
func (rl *RateLimiter) Allow(caller string) error {
	rl.mu.Lock()
	entry, ok := rl.limiters[caller]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[caller] = entry
	}
	now := rl.now()
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	rl.mu.Unlock()

	if !allowed {
		rl.log.WithField("caller", caller).Debug("rate limit exceeded")
		return svcerrors.RateLimited(int(rl.rate), "1s")
	}
	return nil
}

// Handler limits HTTP requests by remote address.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if err := rl.Allow(host); err != nil {
			WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for caller, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, caller)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked callers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Name implements system.Service.
func (rl *RateLimiter) Name() string { return "ratelimit-janitor" }

// Start runs Cleanup every minute until Stop is called.
func (rl *RateLimiter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	rl.mu.Lock()
	rl.stop = cancel
	rl.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(10 * time.Minute); n > 0 {
					rl.log.WithField("removed", n).Debug("idle rate limiters dropped")
				}
			}
		}
	}()
	return nil
}

func (rl *RateLimiter) Stop(context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stop != nil {
		rl.stop()
		rl.stop = nil
	}
	return nil
}
