// Package ratelimit limits requests per caller key. A Redis fixed window is
// used when redis is configured so limits hold across replicas; otherwise a
// per-process token bucket is used.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fatflowers/clinicbilling/pkg/config"
)

const (
	defaultRequests = 100
	defaultWindow   = 15 * time.Minute
	staleAfter      = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

type Result struct {
	Allowed bool
	// RetryAfter is how long a rejected caller should wait.
	RetryAfter time.Duration
	Remaining  int
}

type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1.
func (r *Result) RetryAfterSeconds() int {
	return max(int(math.Ceil(r.RetryAfter.Seconds())), 1)
}

// RedisLimiter is a fixed window counter: INCR per request, the key expiring
// at the end of the window.
type RedisLimiter struct {
	client   redis.UniversalClient
	prefix   string
	requests int
	window   time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, requests: requests, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	k := l.prefix + ":" + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return nil, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			return nil, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return nil, fmt.Errorf("ratelimit ttl: %w", err)
	}
	if ttl < 0 {
		// lost the expire after a crash between INCR and PEXPIRE
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			return nil, fmt.Errorf("ratelimit expire: %w", err)
		}
		ttl = l.window
	}

	res := &Result{Allowed: n <= int64(l.requests), Remaining: max(l.requests-int(n), 0)}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key, refilling requests tokens per window.
type MemoryLimiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	r        rate.Limit
	b        int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		entries: map[string]*entry{},
		r:       rate.Limit(float64(requests) / window.Seconds()),
		b:       requests,
		stopCh:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (*Result, error) {
	lim := l.get(key)
	reservation := lim.Reserve()
	if d := reservation.Delay(); d > 0 {
		// give the token back; this request is rejected
		reservation.Cancel()
		return &Result{Allowed: false, RetryAfter: d}, nil
	}
	return &Result{Allowed: true, Remaining: int(lim.Tokens())}, nil
}

func (l *MemoryLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.r, l.b)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for k, e := range l.entries {
				if time.Since(e.lastSeen) > staleAfter {
					delete(l.entries, k)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// New picks the Redis limiter when redis.addr is set.
func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) Limiter {
	requests := cfg.RateLimit.Requests
	if requests <= 0 {
		requests = defaultRequests
	}
	window := cfg.RateLimit.Window
	if window <= 0 {
		window = defaultWindow
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					// requests still go through: Allow errors fail open
					log.Warnw("ratelimit_redis_unreachable", "addr", cfg.Redis.Addr, "err", err)
				}
				return nil
			},
			OnStop: func(ctx context.Context) error { return client.Close() },
		})
		log.Infow("ratelimit_backend", "backend", "redis", "requests", requests, "window", window)
		return NewRedisLimiter(client, cfg.RateLimit.Prefix, requests, window)
	}

	l := NewMemoryLimiter(requests, window)
	lc.Append(fx.StopHook(l.Stop))
	log.Infow("ratelimit_backend", "backend", "memory", "requests", requests, "window", window)
	return l
}

var Module = fx.Options(
	fx.Provide(New),
)
