// Package ratelimit bounds request rates per client using token buckets.
// The server applies it to run submission endpoints, which each cost real
// model calls.
package ratelimit

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds limiter settings, loaded from the environment.
type Config struct {
	Enabled         bool
	PerMinute       int // steady-state requests per minute per client
	Burst           int // bucket capacity
	CleanupInterval time.Duration
}

// LoadConfig reads RATE_LIMIT_ENABLED (default true), RATE_LIMIT_PER_MINUTE
// (default 6) and RATE_LIMIT_BURST (default 3).
func LoadConfig() *Config {
	cfg := &Config{
		Enabled:         true,
		PerMinute:       6,
		Burst:           3,
		CleanupInterval: 5 * time.Minute,
	}

	if raw := os.Getenv("RATE_LIMIT_ENABLED"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Enabled = parsed
		}
	}
	if raw := os.Getenv("RATE_LIMIT_PER_MINUTE"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.PerMinute = parsed
		}
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Burst = parsed
		}
	}

	return cfg
}

// Info reports the limit state for response headers.
type Info struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter tracks one token bucket per client ID. Tokens refill continuously
// at the configured rate up to the burst capacity.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     *Config
	rate    float64 // tokens per second
	stop    chan struct{}
}

// NewLimiter builds a limiter and starts its idle-bucket janitor.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = LoadConfig()
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		rate:    float64(cfg.PerMinute) / 60.0,
		stop:    make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.janitor()
	}

	return l
}

// Allow consumes one token for clientID if available.
func (l *Limiter) Allow(clientID string) (bool, Info) {
	if !l.cfg.Enabled {
		return true, Info{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.buckets[clientID] = b
	} else {
		b.tokens = min(float64(l.cfg.Burst), b.tokens+now.Sub(b.last).Seconds()*l.rate)
		b.last = now
	}

	info := Info{Limit: l.cfg.PerMinute}
	if b.tokens >= 1.0 {
		b.tokens--
		info.Remaining = int(b.tokens)
		return true, info
	}

	info.RetryAfter = time.Duration((1.0 - b.tokens) / l.rate * float64(time.Second))
	return false, info
}

// Stop halts the janitor goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// janitor drops buckets idle for more than two cleanup intervals.
func (l *Limiter) janitor() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * l.cfg.CleanupInterval)
			l.mu.Lock()
			for id, b := range l.buckets {
				if b.last.Before(cutoff) {
					delete(l.buckets, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
