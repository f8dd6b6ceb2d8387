package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ratelimit-gateway/internal/logging"
	"ratelimit-gateway/middleware/ratelimit"
	"ratelimit-gateway/middleware/ratelimit/application"
	"ratelimit-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	log, err := logging.New(os.Getenv("LOG_LEVEL"), "console")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Exemplo: injetando o middleware diretamente no seu webserver (sem proxy)
	window := infra.NewFixedWindow()
	window.StartJanitor(ctx)
	stats := infra.NewMemoryStatsStore()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(window, stats, ratelimit.NewConcurrencyService(50, time.Second), log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}

// newRouter limita só as rotas de API; /stats fica fora do limite.
// O rate limit vem antes da concorrência: requisição rejeitada não ocupa vaga.
func newRouter(window *infra.FixedWindow, stats *infra.MemoryStatsStore, conc *application.ConcurrencyService, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		total := stats.Total()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "admitted=%d rejected=%d clients=%d\n", total.Admitted, total.Rejected, window.Len())
	})

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Counter:             window,
			Stats:               stats,
			KeyHeader:           "X-Api-Key", // ou vazio para usar IP
			TrustXForwardedFor:  true,
			AddRateLimitHeaders: true,
			Logger:              log,
		}))
		r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Service: conc, Logger: log}))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
	})
	return r
}
