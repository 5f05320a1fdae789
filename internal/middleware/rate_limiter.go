package middleware

import (
	"net/http"
	"sync"
	"time"

	"boxtrack/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// windowEntry tracks requests of one IP within a fixed window.
type windowEntry struct {
	count     int
	windowEnd time.Time
}

// windowLimiter counts requests per client IP in fixed windows. Expired
// entries are purged on a timer so IPs that never return do not pile up.
type windowLimiter struct {
	name   string
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
	purge   sync.Once
}

func newWindowLimiter(name string, limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{name: name, limit: limit, window: window, now: time.Now, entries: make(map[string]*windowEntry)}
}

// allow registers one hit for ip and reports whether it is within limit,
// plus the end of the current window.
func (l *windowLimiter) allow(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[ip] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

func (l *windowLimiter) purgeExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	purged := 0
	for ip, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
	}
	return purged
}

func (l *windowLimiter) startPurge() {
	l.purge.Do(func() {
		go func() {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for range ticker.C {
				if n := l.purgeExpired(); n > 0 {
					log.Debug().Str("limiter", l.name).Int("purged", n).Msg("rate limiter entries purged")
				}
			}
		}()
	})
}

func (l *windowLimiter) handler(message string) gin.HandlerFunc {
	l.startPurge()
	return func(c *gin.Context) {
		ok, windowEnd := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(message))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return newWindowLimiter("login", 20, time.Minute).handler("too many login attempts, try again in a minute")
}

// RateLimiter returns a general-purpose per-IP limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newWindowLimiter("api", limit, window).handler("too many requests, try again shortly")
}
