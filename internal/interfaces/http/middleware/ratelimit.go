package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CodeRateLimited is the adapter level code of a throttled request
const CodeRateLimited shared.ErrorCode = "RATE_LIMITED"

// RateLimiter is a fixed window limiter keyed by tenant
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	period   time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

type window struct {
	remaining int
	start     time.Time
}

// NewRateLimiter allows limit requests per key in every period and starts a
// sweeper that drops idle keys. Call Stop to end it.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := newRateLimiter(limit, period, time.Now)
	go rl.sweep(period * 2)
	return rl
}

func newRateLimiter(limit int, period time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     now,
		stop:    make(chan struct{}),
	}
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, w := range rl.windows {
				if now.Sub(w.start) > rl.period*2 {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the sweeper. Safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow consumes one request for key and returns the requests left in the
// current window
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.period {
		rl.windows[key] = &window{remaining: rl.limit - 1, start: now}
		return true, rl.limit - 1
	}
	if w.remaining == 0 {
		return false, 0
	}
	w.remaining--
	return true, w.remaining
}

// RateLimit throttles requests per tenant, falling back to the client IP for
// unscoped paths. Place it after RequestScope.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(logger.GinKeyTenantID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		ok, remaining := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(limiter.period.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Code:          CodeRateLimited,
				Message:       "too many requests, retry later",
				CorrelationID: CorrelationID(c),
			})
			return
		}
		c.Next()
	}
}
