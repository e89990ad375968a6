package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/roach88/claimledger/internal/auth"
)

// Request headers.
const (
	HeaderPrincipal = "X-Principal"
	HeaderAPIKey    = "X-API-Key"
)

// extractBearerToken returns the token of "Authorization: Bearer <token>",
// matching the scheme case-insensitively.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// caller returns the claimed principal of the request.
func caller(c *gin.Context) auth.Principal {
	return auth.Principal(strings.TrimSpace(c.GetHeader(HeaderPrincipal)))
}

// credentials attaches presented proofs to the request context.
func credentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := auth.Credentials{
			Token:  extractBearerToken(c),
			APIKey: c.GetHeader(HeaderAPIKey),
		}
		ctx := auth.WithCredentials(c.Request.Context(), creds)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// observe logs and measures every request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), elapsed)
		}
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"caller", string(caller(c)),
			"elapsed", elapsed,
		)
	}
}

// limiterIdleTTL is how long an idle caller's bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// callerLimiter keeps one token bucket per caller. Buckets expire after
// idle, which is never shorter than a full refill, so eviction cannot
// hand a caller extra tokens.
type callerLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *gocache.Cache
}

func newCallerLimiter(r float64, burst int, idle time.Duration) *callerLimiter {
	if r > 0 {
		if refill := time.Duration(float64(burst) / r * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &callerLimiter{
		limit:   rate.Limit(r),
		burst:   burst,
		buckets: gocache.New(idle, idle/2),
	}
}

func (l *callerLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.lookup(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Set on every hit so the idle clock restarts.
	l.buckets.Set(key, lim, gocache.DefaultExpiration)
	l.mu.Unlock()
	return lim.Allow()
}

func (l *callerLimiter) lookup(key string) (*rate.Limiter, bool) {
	v, ok := l.buckets.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*rate.Limiter), true
}

// rateLimit rejects callers over their budget with 429. Requests without a
// principal share a bucket per client IP.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		key := string(caller(c))
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !s.limiter.allow(key) {
			abortWithError(c, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
