package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
)

// LimiterStore hands out one token bucket per client key.
// A store is created once at startup and shared by every request.
// Keys unused for a while are dropped by Sweep.
type LimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a store allowing requestsPerSecond per key with the given burst.
// A non-positive burst falls back to one request.
func NewLimiterStore(requestsPerSecond float64, burst int) *LimiterStore {
	if burst < 1 {
		burst = 1
	}
	return &LimiterStore{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Get returns the limiter of key, creating it on first use.
func (s *LimiterStore) Get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Sweep drops the limiters not used within idle and returns how many were dropped.
// A dropped key starts again with a full bucket.
func (s *LimiterStore) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	dropped := 0
	for key, e := range s.limiters {
		if now.Sub(e.lastSeen) >= idle {
			delete(s.limiters, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked keys.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimit rejects requests above the per-client rate with 429 Too Many Requests.
// Clients are keyed by the user id set by UserScope when the header was sent,
// and by remote address otherwise.
func RateLimit(store *LimiterStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.Get(clientKey(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				response.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if r.Header.Get(UserIDHeader) != "" {
		return "user:" + UserID(r.Context())
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
