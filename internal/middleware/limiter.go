package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront-be/internal/utils"

	"github.com/99designs/gqlgen/graphql"
	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Checkout and charge creation (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20
)

// Gateway deliveries are never limited. A refused delivery is retried by
// the gateway and may arrive after the order moved on.
const webhookPrefix = "/webhooks/"

var ErrRateLimited = errors.New("too many requests, slow down")

const (
	visitorIdle   = 3 * time.Minute
	sweepInterval = time.Minute
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// getVisitor retrieves or creates a rate limiter for the given key.
func (l *RateLimiter) getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		l.visitors[key] = &visitor{limiter, l.now()}
		return limiter
	}

	v.lastSeen = l.now()
	return v.limiter
}

// Sweep removes visitors idle for longer than visitorIdle.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorIdle {
			delete(l.visitors, key)
		}
	}
}

// Run sweeps idle visitors until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware rejects requests over the general budget with 429. The
// client address is kept in the context for StrictFields.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, webhookPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := utils.SetClientIPContext(r.Context(), clientIP(r))
		key := requestIdentity(ctx) + ":general"

		if !l.getVisitor(key, limitGeneral, burstGeneral).Allow() {
			w.Header().Set("Retry-After", "1")
			utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StrictFields applies the strict tier to selected mutations. Checkout and
// charges share the /query endpoint with everything else, so the budget is
// enforced per resolved field instead of per path.
type StrictFields struct {
	limiter *RateLimiter
	fields  map[string]bool
}

var (
	_ graphql.HandlerExtension = (*StrictFields)(nil)
	_ graphql.FieldInterceptor = (*StrictFields)(nil)
)

// Strict returns the interceptor for the named Mutation fields.
func (l *RateLimiter) Strict(mutations ...string) *StrictFields {
	fields := make(map[string]bool, len(mutations))
	for _, m := range mutations {
		fields[m] = true
	}
	return &StrictFields{limiter: l, fields: fields}
}

func (s *StrictFields) ExtensionName() string {
	return "StrictFieldRateLimit"
}

func (s *StrictFields) Validate(graphql.ExecutableSchema) error {
	return nil
}

func (s *StrictFields) InterceptField(ctx context.Context, next graphql.Resolver) (any, error) {
	fc := graphql.GetFieldContext(ctx)
	if fc == nil || fc.Object != "Mutation" || fc.Field.Field == nil || !s.fields[fc.Field.Name] {
		return next(ctx)
	}

	key := fmt.Sprintf("%s:strict", requestIdentity(ctx))
	if !s.limiter.getVisitor(key, limitStrict, burstStrict).Allow() {
		return nil, ErrRateLimited
	}
	return next(ctx)
}

func requestIdentity(ctx context.Context) string {
	if userID, ok := utils.GetUserIDFromContext(ctx); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	if sid := utils.GetSessionIDFromContext(ctx); sid != "" {
		return "session:" + sid
	}
	if ip := utils.GetClientIPFromContext(ctx); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
