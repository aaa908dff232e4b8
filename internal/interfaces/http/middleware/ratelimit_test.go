package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frozenLimiter runs on a clock the test moves by hand
func frozenLimiter(perSecond float64, burst int, idle time.Duration) (*RateLimiter, *time.Time) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(perSecond, burst, idle)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestRateLimiter_Take(t *testing.T) {
	l, clock := frozenLimiter(0.5, 2, time.Hour)

	first := l.Take("kiosk")
	assert.Equal(t, Verdict{Allowed: true, Remaining: 1}, first)
	assert.True(t, l.Take("kiosk").Allowed)

	denied := l.Take("kiosk")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 2*time.Second, denied.RetryAfter)

	// Another station has its own bucket
	assert.True(t, l.Take("tablet").Allowed)

	*clock = clock.Add(time.Second)
	assert.Equal(t, time.Second, l.Take("kiosk").RetryAfter)
	*clock = clock.Add(time.Second)
	assert.True(t, l.Take("kiosk").Allowed)
}

func TestRateLimiter_ZeroRateIsUnlimited(t *testing.T) {
	l, _ := frozenLimiter(0, 1, time.Hour)
	for range 50 {
		require.True(t, l.Take("kiosk").Allowed)
	}
}

func TestRateLimiter_ForgetsIdleKeys(t *testing.T) {
	l, clock := frozenLimiter(1, 1, time.Minute)
	l.Take("a")
	l.Take("b")
	assert.Equal(t, 2, l.size())

	*clock = clock.Add(30 * time.Second)
	l.Take("b")
	*clock = clock.Add(45 * time.Second)
	l.Take("c")
	assert.Equal(t, 2, l.size(), "a idled out, b was seen 45s ago")
}

func TestRateLimiter_ConcurrentTakes(t *testing.T) {
	l := NewRateLimiter(0.001, 40, time.Minute)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Take("shared").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(40), allowed.Load())
}

func TestRateLimit_Middleware(t *testing.T) {
	l, _ := frozenLimiter(0.25, 1, time.Hour)
	engine := gin.New()
	engine.Use(RequestID(), RateLimit(l))
	engine.POST("/scan", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	scan := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/scan", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	w := scan("10.0.0.7:5000")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = scan("10.0.0.7:5001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "4", w.Header().Get("Retry-After"))
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)

	assert.Equal(t, http.StatusAccepted, scan("10.0.0.8:5000").Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	l, _ := frozenLimiter(0.001, 1, time.Hour)
	engine := gin.New()
	engine.Use(RateLimit(l, func(c *gin.Context) string { return c.Query("camera") }))
	engine.POST("/scan", func(c *gin.Context) { c.Status(http.StatusOK) })

	status := func(camera string) int {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan?camera="+camera, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, status("front"))
	assert.Equal(t, http.StatusTooManyRequests, status("front"))
	assert.Equal(t, http.StatusOK, status("back"))
}
