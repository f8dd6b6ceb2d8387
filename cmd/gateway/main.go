package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ratelimit-gateway/internal/logging"
	"ratelimit-gateway/middleware/ratelimit"
	"ratelimit-gateway/middleware/ratelimit/application"
	"ratelimit-gateway/middleware/ratelimit/domain"
	"ratelimit-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var gatewayError = errs.Class("gateway")

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgFile string
	var bindErr error

	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "Reverse proxy with per-client fixed-window rate limiting",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bindErr != nil {
				return bindErr
			}
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return configError.Wrap(err)
				}
			}
			cfg, err := readConfig(v)
			if err != nil {
				return err
			}

			log, err := logging.New(cfg.logLevel, cfg.logFormat)
			if err != nil {
				return configError.Wrap(err)
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml)")
	flags.String("listen-addr", ":8080", "public listen address (LISTEN_ADDR)")
	flags.String("upstream-url", "", "upstream URL (UPSTREAM_URL)")
	flags.String("ops-addr", ":9090", "metrics/health listen address, empty disables (OPS_ADDR)")
	bindErr = bindFlags(v, flags)

	return cmd
}

// flagKeys liga cada flag à chave de config correspondente.
var flagKeys = map[string]string{
	"listen-addr":  "listen_addr",
	"upstream-url": "upstream_url",
	"ops-addr":     "ops_addr",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var group errs.Group
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			group.Add(configError.New("bind flag --%s: %v", name, err))
		}
	}
	return group.Err()
}

// components agrupa o que o gateway monta a partir da config.
type components struct {
	window      *infra.FixedWindow
	concurrency *application.ConcurrencyService
	stats       domain.StatsStore
	registry    *prometheus.Registry
	closers     []func() error
}

func buildComponents(ctx context.Context, cfg config, log *zap.Logger) (*components, error) {
	c := &components{
		window: infra.NewFixedWindow(
			infra.WithWindow(cfg.rateWindow),
			infra.WithMaxRequests(cfg.rateMaxRequests),
			infra.WithShards(cfg.rateShards),
			infra.WithIdleWindows(cfg.rateIdleWindows),
			infra.WithSweepEvery(cfg.rateSweepEvery),
		),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promOpts := []infra.PrometheusOption{infra.WithTrackedClients(c.window.Len)}
	if cfg.concurrencyMax > 0 {
		c.concurrency = ratelimit.NewConcurrencyService(cfg.concurrencyMax, cfg.concurrencyTimeout)
		promOpts = append(promOpts, infra.WithInFlight(c.concurrency.InFlight))
	}
	promStats := infra.NewPrometheusStats(c.registry, promOpts...)

	var redisStats domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		c.closers = append(c.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = c.close()
			return nil, gatewayError.New("redis stats ping: %v", err)
		}

		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		log.Info("redis stats enabled", zap.String("addr", cfg.rateStatsRedisAddr), zap.String("bucket", cfg.rateStatsBucket))
	}
	c.stats = infra.NewMultiStats(promStats, redisStats)

	return c, nil
}

func (c *components) close() error {
	var group errs.Group
	for _, fn := range c.closers {
		group.Add(fn())
	}
	return group.Err()
}

// buildHandler monta a cadeia: rate limit -> concorrência -> upstream.
func buildHandler(cfg config, c *components, upstream http.Handler, log *zap.Logger) http.Handler {
	h := upstream
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Service:        c.concurrency,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
		Logger:         log,
	})(h)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Counter:             c.window,
			Stats:               c.stats,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			FallbackKey:         cfg.rateFallbackKey,
			AddRateLimitHeaders: cfg.addHeaders,
			Logger:              log,
		})(h)
	}
	return h
}

func newOpsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return r
}

func newProxy(target *url.URL, log *zap.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("proxy error", zap.Error(err), zap.String("method", r.Method), zap.String("path", r.URL.Path))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

func run(ctx context.Context, cfg config, log *zap.Logger) error {
	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return configError.New("invalid UPSTREAM_URL: %v", err)
	}

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = c.close() }()

	c.window.StartJanitor(ctx)

	servers := []*http.Server{newServer(cfg.listenAddr, buildHandler(cfg, c, newProxy(target, log), log))}
	if cfg.opsAddr != "" {
		servers = append(servers, newServer(cfg.opsAddr, newOpsRouter(c.registry)))
	}

	log.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", target.String()),
		zap.String("ops_addr", cfg.opsAddr),
	)
	log.Info("rate limit",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.Duration("window", c.window.Window()),
		zap.Int("max_requests", c.window.MaxRequests()),
		zap.Duration("sweep_every", c.window.SweepEvery()),
		zap.Int("shards", cfg.rateShards),
		zap.String("key_header", cfg.rateKeyHeader),
		zap.Bool("trust_xff", cfg.trustXFF),
	)
	log.Info("concurrency", zap.Int("max", cfg.concurrencyMax), zap.Duration("acquire_timeout", cfg.concurrencyTimeout))

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return gatewayError.Wrap(err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", zap.Error(err))
		return err
	}
	log.Info("gateway stopped")
	return nil
}
