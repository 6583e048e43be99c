package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketTTL define por quanto tempo um bucket ocioso permanece na memória.
const bucketTTL = 10 * time.Minute

// RateLimiter mantém um token bucket por chave. A chave é o IP remoto
// nas rotas públicas e o subject autenticado nas rotas do painel.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
	ops     int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter cria o limitador com a taxa e o burst configurados.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(reqPerSec),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()

	// varredura amortizada de buckets ociosos
	rl.ops++
	if rl.ops%256 == 0 {
		for k, old := range rl.buckets {
			if time.Since(old.lastSeen) > bucketTTL {
				delete(rl.buckets, k)
			}
		}
	}

	return b.limiter.Allow()
}

func (rl *RateLimiter) middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.allow(key) {
				w.Header().Set("Retry-After", "1")
				writeEnvelopeError(w, http.StatusTooManyRequests, "RATE_LIMIT", "limite de requisições excedido", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit limita por IP remoto. Assume chi RealIP já aplicado, de
// modo que RemoteAddr reflete o cliente real atrás do proxy.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) string {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	})
}

// UserRateLimit limita por subject autenticado; sem subject no contexto a
// requisição passa direto (o Auth já barrou anônimos antes).
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) string {
		return GetSubject(r.Context())
	})
}
