// Package ratelimiter throttles mutating requests per sender. Signed-in users
// get a bucket of their own; anonymous requests share one per client IP.
package ratelimiter

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/johndosdos/cove/internal/auth"
)

type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

// senderKey names a bucket: "user:{id}" or "ip:{addr}".
type senderKey string

func userKey(id uuid.UUID) senderKey { return senderKey("user:" + id.String()) }
func ipKey(addr string) senderKey    { return senderKey("ip:" + addr) }

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type SenderLimiter struct {
	mu      sync.Mutex
	buckets map[senderKey]*bucket
	rate    rate.Limit
	burst   int
	opts    CleanupOpts
	Cancel  context.CancelFunc
}

// NewSenderLimiter allows each sender requests per window, all of which may
// be spent at once.
func NewSenderLimiter(requests int, window time.Duration, opts CleanupOpts) *SenderLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	sl := &SenderLimiter{
		buckets: make(map[senderKey]*bucket),
		rate:    rate.Every(window / time.Duration(requests)),
		burst:   requests,
		opts:    opts,
		Cancel:  cancel,
	}

	go sl.evictIdle(ctx)

	return sl
}

func (sl *SenderLimiter) evictIdle(ctx context.Context) {
	ticker := time.NewTicker(sl.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sl.mu.Lock()
			for key, b := range sl.buckets {
				if now.Sub(b.lastSeen) > sl.opts.TTL {
					delete(sl.buckets, key)
				}
			}
			sl.mu.Unlock()
		}
	}
}

// Key picks the bucket for r: the authenticated user when the identity
// middleware found one, the client IP otherwise.
func Key(r *http.Request) senderKey {
	if id := auth.UserOrNil(r.Context()); id != uuid.Nil {
		return userKey(id)
	}
	return ipKey(ClientIP(r))
}

// ClientIP prefers the last X-Forwarded-For hop, the one our proxy added.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		slog.Warn("invalid remote address", "remote_addr", r.RemoteAddr)
		return r.RemoteAddr
	}
	return host
}

// reserve takes a token from key's bucket. When none is left it returns
// how long until one is.
func (sl *SenderLimiter) reserve(key senderKey, now time.Time) (bool, time.Duration) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	b, ok := sl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(sl.rate, sl.burst)}
		sl.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (sl *SenderLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := Key(r)

		ok, wait := sl.reserve(key, time.Now())
		if !ok {
			slog.WarnContext(r.Context(), "rate limit exceeded",
				"sender", key,
				"path", r.URL.Path,
				"method", r.Method)

			w.Header().Set("Retry-After", strconv.Itoa(max(int(math.Ceil(wait.Seconds())), 1)))
			http.Error(w, "Too many requests. Try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
