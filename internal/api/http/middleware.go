package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

type logCtxKey struct{}

// RequestLogger logs one line per request and stores a request-scoped
// logger in the context for handlers.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), logCtxKey{}, reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case status >= 500:
				reqLog.Error("request", fields...)
			case status >= 400:
				reqLog.Warn("request", fields...)
			default:
				reqLog.Info("request", fields...)
			}
		})
	}
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(logCtxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// writeError renders err; server-side failures are logged with their detail
// since the client only sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apierr.Status(err) >= http.StatusInternalServerError {
		loggerFrom(r.Context()).Error("request failed", zap.Error(err))
	}
	apierr.Write(w, err)
}

// RateLimiter throttles requests per client IP with a token bucket.
// A nil *RateLimiter lets everything through.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*visitor
	now     func() time.Time
	idle    time.Duration
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows perMinute requests per IP per minute, with bursts of
// the same size. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		clients: map[string]*visitor{},
		now:     time.Now,
		idle:    10 * time.Minute,
	}
}

func (l *RateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= 10000 {
			l.sweep(now)
		}
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (l *RateLimiter) sweep(now time.Time) {
	for ip, v := range l.clients {
		if now.Sub(v.seen) > l.idle {
			delete(l.clients, ip)
		}
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			apierr.WriteStatus(w, http.StatusTooManyRequests, "too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP expects middleware.RealIP to have run; RemoteAddr may or may not
// carry a port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
