// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/internal/observability"
)

// Rate limiting defaults for the credential endpoints.
const (
	// DefaultBurst is the number of requests a client may make back to back.
	DefaultBurst = 10

	// DefaultPerSecond is the sustained refill rate in requests per second.
	DefaultPerSecond = 0.5

	// DefaultCleanupInterval is how often idle clients are forgotten.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultClientMaxAge is how long an idle client is remembered.
	DefaultClientMaxAge = time.Hour
)

// RateLimitConfig configures a RateLimiter.
type RateLimitConfig struct {
	// Burst defaults to DefaultBurst if zero or negative.
	Burst int

	// PerSecond defaults to DefaultPerSecond if zero or negative.
	PerSecond float64

	// CleanupInterval defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration

	// ClientMaxAge defaults to DefaultClientMaxAge if zero.
	ClientMaxAge time.Duration

	// Clock defaults to the system clock.
	Clock auth.Clock

	// Metrics receives the tracked client count. May be nil.
	Metrics *observability.Metrics
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter throttles clients with one token bucket per client key.
// It is safe for concurrent use.
//
// A background goroutine forgets idle clients. Call Close to stop it.
type RateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*bucket
	burst        float64
	perSecond    float64
	clientMaxAge time.Duration
	clock        auth.Clock
	metrics      *observability.Metrics

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultPerSecond
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.ClientMaxAge <= 0 {
		cfg.ClientMaxAge = DefaultClientMaxAge
	}
	if cfg.Clock == nil {
		cfg.Clock = auth.SystemClock{}
	}

	rl := &RateLimiter{
		clients:      make(map[string]*bucket),
		burst:        float64(cfg.Burst),
		perSecond:    cfg.PerSecond,
		clientMaxAge: cfg.ClientMaxAge,
		clock:        cfg.Clock,
		metrics:      cfg.Metrics,
		stop:         make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cfg.CleanupInterval)

	return rl
}

// Allow consumes one token for key. When none is available it reports how
// long until the next token refills.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	b, ok := rl.clients[key]
	if !ok {
		b = &bucket{tokens: rl.burst, lastSeen: now}
		rl.clients[key] = b
		rl.metrics.SetRateLimitedClients(len(rl.clients))
	}

	if elapsed := now.Sub(b.lastSeen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(rl.burst, b.tokens+elapsed*rl.perSecond)
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / rl.perSecond * float64(time.Second))
	return false, wait
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Cleanup forgets clients not seen within maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.clock.Now().Add(-maxAge)
	for key, b := range rl.clients {
		if b.lastSeen.Before(threshold) {
			delete(rl.clients, key)
		}
	}
	rl.metrics.SetRateLimitedClients(len(rl.clients))
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.Cleanup(rl.clientMaxAge)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
	rl.wg.Wait()
}

// throttle rejects requests from clients that exhausted their bucket.
// Without a limiter every request passes.
func (s *Server) throttle(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		client := s.clientKey(r)
		allowed, wait := s.limiter.Allow(client)
		if allowed {
			next(w, r)
			return
		}
		s.metrics.ObserveRateLimited(r.Pattern)
		s.logger.WarnContext(r.Context(), "rate limited",
			"client", client,
			"route", r.Pattern,
			"retry_after", wait,
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: msgTooManyRequests})
	}
}

// clientKey identifies the caller by IP. The first X-Forwarded-For hop is
// used only when the deployment trusts its proxy.
func (s *Server) clientKey(r *http.Request) string {
	if s.cfg.TrustProxyHeaders {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
