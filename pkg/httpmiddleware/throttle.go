package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// ThrottleConfig configures Throttle.
type ThrottleConfig struct {
	// Max is the number of requests a key may make per Window.
	Max    int
	Window time.Duration
	// KeyFunc picks the throttling key. RemoteIP is used when nil.
	KeyFunc func(r *http.Request) string
	// Rejected serves requests over the limit. When nil a JSON 429 is sent.
	Rejected http.Handler
}

// window counts requests of one key in the current fixed window and keeps
// the count of the window before it.
type window struct {
	start time.Time
	count float64
	prev  float64
}

// throttle approximates a sliding window from two fixed windows: the
// previous count is weighted by how much of it still overlaps.
type throttle struct {
	max    float64
	size   time.Duration
	key    func(r *http.Request) string
	reject http.Handler

	mu      sync.Mutex
	windows map[string]*window
}

func newThrottle(cfg ThrottleConfig) *throttle {
	t := &throttle{
		max:     float64(cfg.Max),
		size:    cfg.Window,
		key:     cfg.KeyFunc,
		reject:  cfg.Rejected,
		windows: make(map[string]*window),
	}
	if t.key == nil {
		t.key = RemoteIP
	}
	if t.reject == nil {
		t.reject = http.HandlerFunc(tooManyRequests)
	}
	return t
}

// take records one request for key at now. It reports whether the request
// is admitted and when the current window ends.
func (t *throttle) take(key string, now time.Time) (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := now.Truncate(t.size)
	w, ok := t.windows[key]
	switch {
	case !ok:
		w = &window{start: start}
		t.windows[key] = w
	case start.Sub(w.start) >= 2*t.size:
		*w = window{start: start}
	case start.After(w.start):
		*w = window{start: start, prev: w.count}
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(t.size)
	estimate := w.prev*math.Max(overlap, 0) + w.count
	resetAt := w.start.Add(t.size)
	if estimate >= t.max {
		return false, resetAt
	}
	w.count++
	return true, resetAt
}

// sweep drops keys that have been idle for two windows.
func (t *throttle) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, w := range t.windows {
		if now.Sub(w.start) >= 2*t.size {
			delete(t.windows, key)
		}
	}
}

func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, resetAt := t.take(t.key(r), time.Now())
		if !ok {
			wait := math.Ceil(time.Until(resetAt).Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Max(wait, 0))))
			t.reject.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Throttle limits requests per key with a sliding window. It is meant for a
// narrow route such as the sign-in form, not the whole server.
func Throttle(cfg ThrottleConfig) Middleware {
	return newThrottle(cfg).middleware
}

// ThrottleWithSweep is Throttle plus a goroutine that forgets idle keys every
// two windows until ctx is done.
func ThrottleWithSweep(ctx context.Context, cfg ThrottleConfig) Middleware {
	t := newThrottle(cfg)
	go func() {
		ticker := time.NewTicker(2 * t.size)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.sweep(now)
			}
		}
	}()
	return t.middleware
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusTooManyRequests) })
		e.Field("message", func(e *jx.Encoder) { e.Str("too many requests") })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(e.Bytes())
}

// RemoteIP returns the host of RemoteAddr. Client supplied headers are
// ignored.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteIP. Use it only behind a proxy that overwrites these headers.
func ForwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return RemoteIP(r)
}
