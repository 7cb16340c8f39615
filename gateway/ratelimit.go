package gateway

import (
	"net"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle client keeps its limiter.
const visitorTTL = 10 * time.Minute

// clientLimiter holds one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	visitors *gocache.Cache
	rps      rate.Limit
	burst    int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		visitors: gocache.New(visitorTTL, visitorTTL/2),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// limiter returns the bucket for key, creating it on first use. Each access
// extends the entry's lifetime.
func (l *clientLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.visitors.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
	}
	l.visitors.SetDefault(key, lim)
	return lim.(*rate.Limiter)
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter(clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the client IP. RealIP has already replaced RemoteAddr when a
// forwarding header was present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
