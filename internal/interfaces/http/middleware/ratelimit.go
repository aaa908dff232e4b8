package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"golang.org/x/time/rate"
)

// RateLimiter throttles scan triggers with one token bucket per key. Buckets
// untouched for the idle period are dropped on a later call.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Verdict is the outcome of one Take
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter allows perSecond events per key after an initial burst. A
// perSecond of zero switches limiting off.
func NewRateLimiter(perSecond float64, burst int, idle time.Duration) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limit:   limit,
		burst:   max(burst, 1),
		idle:    positiveOr(idle, 10*time.Minute),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Burst is the bucket size
func (l *RateLimiter) Burst() int { return l.burst }

// Take spends one token from key's bucket if one is available
func (l *RateLimiter) Take(key string) Verdict {
	if l.limit == rate.Inf {
		return Verdict{Allowed: true, Remaining: l.burst}
	}
	now := l.now()
	lim := l.bucketFor(key, now)

	if lim.AllowN(now, 1) {
		return Verdict{Allowed: true, Remaining: int(math.Max(0, lim.TokensAt(now)))}
	}
	missing := 1 - lim.TokensAt(now)
	return Verdict{RetryAfter: time.Duration(missing / float64(l.limit) * float64(time.Second))}
}

func (l *RateLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.idle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit rejects requests over the limit with 429 and a Retry-After in whole
// seconds. Requests are keyed by client IP unless key is given.
func RateLimit(limiter *RateLimiter, key ...func(*gin.Context) string) gin.HandlerFunc {
	keyOf := (*gin.Context).ClientIP
	if len(key) > 0 {
		keyOf = key[0]
	}
	return func(c *gin.Context) {
		v := limiter.Take(keyOf(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
		if v.Allowed {
			c.Next()
			return
		}

		secs := max(1, int(math.Ceil(v.RetryAfter.Seconds())))
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRateLimited,
			"Too many scan requests, wait before triggering the camera again",
			GetRequestID(c),
		))
	}
}
