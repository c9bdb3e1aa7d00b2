package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const rateLimitWindow = time.Minute

// Repeat offenders are banned for progressively longer.
var banDurations = []time.Duration{
	10 * time.Minute,
	time.Hour,
	24 * time.Hour,
}

// rateLimiter is a per-client sliding-window limiter for the write routes.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	requests  map[string][]time.Time
	banned    map[string]time.Time
	banCounts map[string]int
	log       *slog.Logger
}

func newRateLimiter(limit int, log *slog.Logger) *rateLimiter {
	return &rateLimiter{
		limit:     limit,
		window:    rateLimitWindow,
		now:       time.Now,
		requests:  map[string][]time.Time{},
		banned:    map[string]time.Time{},
		banCounts: map[string]int{},
		log:       log,
	}
}

// allow records a request from client. When refused it returns how long the
// client must wait.
func (l *rateLimiter) allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	if until, ok := l.banned[client]; ok {
		if now.Before(until) {
			return false, until.Sub(now)
		}
		delete(l.banned, client)
	}

	recent := l.requests[client][:0]
	for _, t := range l.requests[client] {
		if now.Sub(t) < l.window {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	l.requests[client] = recent
	if len(recent) <= l.limit {
		return true, 0
	}

	l.banCounts[client]++
	n := l.banCounts[client]
	dur := banDurations[len(banDurations)-1]
	if n <= len(banDurations) {
		dur = banDurations[n-1]
	}
	l.banned[client] = now.Add(dur)
	delete(l.requests, client)
	l.log.Warn("client rate limited",
		slog.String("client", client),
		slog.Int("violation", n),
		slog.Duration("ban", dur),
	)
	return false, dur
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.allow(clientAddr(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
