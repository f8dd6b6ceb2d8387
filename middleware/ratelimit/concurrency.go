package ratelimit

import (
	"net/http"
	"time"

	"ratelimit-gateway/middleware/ratelimit/application"
	"ratelimit-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *zap.Logger
	// Service, se não nil, é usado no lugar de um novo (para expor InFlight em métricas).
	Service *application.ConcurrencyService
}

// NewConcurrencyService cria o serviço com um pool de `max` vagas.
func NewConcurrencyService(max int, acquireTimeout time.Duration) *application.ConcurrencyService {
	return &application.ConcurrencyService{
		Pool:           infra.NewSemaphorePool(max),
		AcquireTimeout: acquireTimeout,
	}
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 && opts.Service == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("concurrency")

	svc := opts.Service
	if svc == nil {
		svc = NewConcurrencyService(opts.Max, opts.AcquireTimeout)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				log.Debug("no concurrency slot available",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int64("inflight", svc.InFlight()),
					zap.Int("capacity", svc.Pool.Capacity()),
				)
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
