package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/contextkeys"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
)

// RateLimitMessage is the body text of every 429 from the limiter.
const RateLimitMessage = "Too many requests, please try again later."

// LimitClass names a throttled endpoint group and its budget.
type LimitClass struct {
	Name   string
	Max    int
	Window time.Duration
}

// Endpoint classes.
var (
	ClassAuth          = LimitClass{Name: "auth", Max: 10, Window: 15 * time.Minute}
	ClassPasswordReset = LimitClass{Name: "password_reset", Max: 3, Window: 15 * time.Minute}
	ClassContact       = LimitClass{Name: "contact", Max: 5, Window: 15 * time.Minute}
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per (class, client) pair.
type Limiter interface {
	Allow(ctx context.Context, class LimitClass, client string) (Decision, error)
}

// RateLimitMetrics receives rejection counts.
type RateLimitMetrics interface {
	RecordRateLimitRejection(class string)
}

type window struct {
	start time.Time
	count int
	span  time.Duration
}

// FixedWindowLimiter is an in-process fixed-window counter. State is lost on
// restart and not shared between instances.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewFixedWindowLimiter creates a limiter. clock may be nil.
func NewFixedWindowLimiter(clock func() time.Time) *FixedWindowLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &FixedWindowLimiter{
		windows: make(map[string]*window),
		now:     clock,
	}
}

// Allow never returns an error.
func (l *FixedWindowLimiter) Allow(_ context.Context, class LimitClass, client string) (Decision, error) {
	key := class.Name + ":" + client
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= class.Window {
		w = &window{start: now, span: class.Window}
		l.windows[key] = w
	}
	w.count++

	return decide(class, w.count, w.start.Add(class.Window)), nil
}

func decide(class LimitClass, count int, resetAt time.Time) Decision {
	remaining := class.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= class.Max,
		Limit:     class.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Cleanup drops windows that have already rolled over and returns how many
// were removed.
func (l *FixedWindowLimiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= w.span {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RateLimitMiddleware gates routes by client IP.
type RateLimitMiddleware struct {
	limiter Limiter
	metrics RateLimitMetrics
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewRateLimitMiddleware wraps limiter. metrics may be nil.
func NewRateLimitMiddleware(limiter Limiter, metrics RateLimitMetrics, logger logrus.FieldLogger) *RateLimitMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimitMiddleware{limiter: limiter, metrics: metrics, logger: logger, now: time.Now}
}

// Limit returns a gate for class. Limiter errors let the request through.
func (m *RateLimitMiddleware) Limit(class LimitClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := contextkeys.GetClientIP(r.Context())
			if client == "" {
				client = httputil.ClientIP(r, false)
			}

			d, err := m.limiter.Allow(r.Context(), class, client)
			if err != nil {
				m.logger.WithError(err).WithField("class", class.Name).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, d)
			if !d.Allowed {
				if m.metrics != nil {
					m.metrics.RecordRateLimitRejection(class.Name)
				}
				m.rateLimitExceeded(w, d)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func (m *RateLimitMiddleware) rateLimitExceeded(w http.ResponseWriter, d Decision) {
	retryAfter := int(d.ResetAt.Sub(m.now()).Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteErrorCode(w, http.StatusTooManyRequests, auth.CodeRateLimited, RateLimitMessage)
}
