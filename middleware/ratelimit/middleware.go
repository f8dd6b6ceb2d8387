package ratelimit

import (
	"io"
	"net/http"
	"time"

	"ratelimit-gateway/middleware/ratelimit/application"
	"ratelimit-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RejectMessage é o corpo (text/plain) das respostas 429.
const RejectMessage = "Rate limit exceeded. Try again later."

type Options struct {
	Counter             domain.WindowCounter
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	FallbackKey         string
	Now                 func() time.Time
	AddRateLimitHeaders bool
	Logger              *zap.Logger
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor, opts.FallbackKey)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("ratelimit")

	svc := application.Service{
		Counter: opts.Counter,
		Now:     opts.Now,
	}

	// erro de stats se repete a cada request quando o Redis cai; loga no máximo a cada 10s
	statsErrLog := &rate.Sometimes{First: 1, Interval: 10 * time.Second}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))
			dec := svc.Decide(key)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Outcome: dec.Outcome,
					Count:   dec.Count,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				})
				if err != nil {
					statsErrLog.Do(func() {
						log.Warn("failed to record rate limit stats", zap.Error(err))
					})
				}
			}

			if opts.AddRateLimitHeaders && opts.Counter != nil {
				h := w.Header()
				h.Set("X-RateLimit-Key", string(key))
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining()))
				h.Set("X-RateLimit-Reset", formatInt64(dec.ResetAt))
			}

			if !dec.Allowed() {
				// só a primeira rejeição da janela vai para o log
				if dec.Count == dec.Limit+1 {
					log.Info("client exceeded rate limit",
						zap.String("key", string(key)),
						zap.Int("limit", dec.Limit),
						zap.Int64("window_start", dec.WindowStart),
						zap.Int64("reset_at", dec.ResetAt),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
				}
				writeRejection(w, dec.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRejection(w http.ResponseWriter, retryAfter time.Duration) {
	h := w.Header()
	if retryAfter > 0 {
		h.Set("Retry-After", formatSeconds(retryAfter.Seconds()))
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = io.WriteString(w, RejectMessage)
}
