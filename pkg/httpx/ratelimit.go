package httpx

import (
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// RateLimitConfig is a token bucket: RequestsPerWindow refill over Window,
// at most Burst at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

func (c RateLimitConfig) limit() rate.Limit {
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// refill is how long an idle bucket takes to fill up again. Forgetting a
// bucket earlier would hand out a fresh burst too soon.
func (c RateLimitConfig) refill() time.Duration {
	d := time.Duration(float64(c.Burst) / float64(c.limit()) * float64(time.Second))
	return max(d, time.Second)
}

// RateLimits are the limit profiles the router picks from.
type RateLimits struct {
	// Strict guards credential checks (token endpoint).
	Strict RateLimitConfig
	// Moderate guards authenticated admin operations.
	Moderate RateLimitConfig
	// Public guards probes and read-only endpoints such as JWKS.
	Public RateLimitConfig
}

// DefaultRateLimits returns the built-in profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10},
		Moderate: RateLimitConfig{RequestsPerWindow: 30, Window: time.Minute, Burst: 30},
		Public:   RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
	}
}

// RateLimitsFromEnv applies RATELIMIT_{STRICT,MODERATE,PUBLIC}_* overrides
// to the defaults.
func RateLimitsFromEnv() RateLimits {
	d := DefaultRateLimits()
	return RateLimits{
		Strict:   ParseRateLimitFromEnv("STRICT", d.Strict),
		Moderate: ParseRateLimitFromEnv("MODERATE", d.Moderate),
		Public:   ParseRateLimitFromEnv("PUBLIC", d.Public),
	}
}

// ParseRateLimitFromEnv overrides def with RATELIMIT_<prefix>_REQUESTS,
// RATELIMIT_<prefix>_WINDOW_SEC and RATELIMIT_<prefix>_BURST. Values that
// are not positive integers are ignored.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnv(name string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(name))
	return n, err == nil && n > 0
}

// KeyExtractor groups requests for rate limiting. An empty key is not
// limited.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys by client address, trusting X-Forwarded-For and
// X-Real-IP set by the proxy in front.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// HeaderKeyExtractor keys requests by a header value, e.g. X-Tenant.
func HeaderKeyExtractor(name string) KeyExtractor {
	return func(r *http.Request) string {
		return strings.ToLower(strings.TrimSpace(r.Header.Get(name)))
	}
}

// SubjectKeyExtractor keys requests by the authenticated caller.
func SubjectKeyExtractor(r *http.Request) string {
	a, ok := AuthFromContext(r.Context())
	if !ok {
		return ""
	}
	return a.Tenant + "/" + a.Subject
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// FormFieldKeyExtractor keys by a query or form field such as username.
func FormFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.FormValue(field)
	}
}

// buckets holds one limiter per key. Idle buckets are forgotten once they
// would be full again.
type buckets struct {
	cfg   RateLimitConfig
	cache *cache.Cache
}

func newBuckets(cfg RateLimitConfig) *buckets {
	ttl := cfg.refill()
	return &buckets{cfg: cfg, cache: cache.New(ttl, 2*ttl)}
}

func (b *buckets) get(key string) *rate.Limiter {
	if v, ok := b.cache.Get(key); ok {
		l := v.(*rate.Limiter)
		b.cache.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(b.cfg.limit(), b.cfg.Burst)
	if err := b.cache.Add(key, l, cache.DefaultExpiration); err != nil {
		// Lost the race to a concurrent request of the same key.
		if v, ok := b.cache.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// RateLimitMiddleware throttles requests grouped by keyOf, answering 429
// with a Retry-After header once a bucket is empty.
func RateLimitMiddleware(cfg RateLimitConfig, keyOf KeyExtractor) Middleware {
	b := newBuckets(cfg)
	limit := strconv.Itoa(cfg.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := b.get(key)
			if l.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Reserve()
			retry := int(math.Ceil(res.Delay().Seconds()))
			res.Cancel()
			retry = max(retry, 1)

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", key,
				"path", r.URL.Path,
				"retry_after", retry,
			)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("X-RateLimit-Limit", limit)
			WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated caller and address.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":",
		SubjectKeyExtractor,
		IPKeyExtractor,
	))
}

// RateLimitLogins limits password attempts per tenant, username and IP, so
// brute force against one tenant cannot lock the same username out of
// another.
func RateLimitLogins(cfg RateLimitConfig, tenantHeader string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":",
		HeaderKeyExtractor(tenantHeader),
		FormFieldKeyExtractor("username"),
		IPKeyExtractor,
	))
}
