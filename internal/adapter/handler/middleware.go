package handler

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/metrics"
	"github.com/sokoni/storefront/internal/port"
)

type contextKey string

const (
	userIDKey     contextKey = "userID"
	privilegedKey contextKey = "privileged"
)

// Identity trusts the X-User-ID header set by the upstream auth proxy;
// authentication itself lives outside this service. Requests without a
// valid identity are rejected before any handler runs.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		if r.Header.Get("X-User-Role") == "admin" {
			ctx = context.WithValue(ctx, privilegedKey, true)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

func privilegedFrom(ctx context.Context) bool {
	p, _ := ctx.Value(privilegedKey).(bool)
	return p
}

// RateLimit is a fixed-window limiter keyed by client IP. A limiter
// outage fails open: checkout availability beats throttling accuracy.
func RateLimit(limiter port.RateLimiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			allowed, err := limiter.Allow(r.Context(), host)
			if err != nil {
				logger.Warn().Err(err).Msg("rate limiter unavailable")
				allowed = true
			}
			if !allowed {
				logger.Warn().Str("ip", host).Msg("rate limit exceeded")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests, please try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func Instrument(m *metrics.ServerMetrics, name string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.Requests.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()
		m.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	}
}
