package main

import (
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
)

var configError = errs.Class("config")

type config struct {
	listenAddr         string
	upstreamURL        string
	opsAddr            string
	rateEnabled        bool
	rateWindow         time.Duration
	rateMaxRequests    int
	rateShards         int
	rateIdleWindows    int
	rateSweepEvery     time.Duration
	rateKeyHeader      string
	trustXFF           bool
	rateFallbackKey    string
	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool

	logLevel  string
	logFormat string
}

// newViper lê do ambiente com os mesmos nomes das chaves em maiúsculas
// (rate_window <-> RATE_WINDOW).
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("upstream_url", "")
	v.SetDefault("ops_addr", ":9090")
	v.SetDefault("rate_enabled", true)
	v.SetDefault("rate_window", 60*time.Second)
	v.SetDefault("rate_max_requests", 10)
	v.SetDefault("rate_shards", 32)
	v.SetDefault("rate_idle_windows", 5)
	v.SetDefault("rate_sweep_every", time.Minute)
	v.SetDefault("rate_key_header", "")
	v.SetDefault("trust_xff", false)
	v.SetDefault("rate_fallback_key", "unknown")
	v.SetDefault("add_ratelimit_headers", false)
	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", time.Duration(0))

	v.SetDefault("rate_stats_enabled", false)
	v.SetDefault("rate_stats_redis_addr", "")
	v.SetDefault("rate_stats_redis_password", "")
	v.SetDefault("rate_stats_redis_db", 0)
	v.SetDefault("rate_stats_prefix", "ratelimit:stats")
	v.SetDefault("rate_stats_ttl", 24*time.Hour)
	v.SetDefault("rate_stats_bucket", "minute")
	v.SetDefault("rate_stats_track_keys", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr:         v.GetString("listen_addr"),
		upstreamURL:        strings.TrimSpace(v.GetString("upstream_url")),
		opsAddr:            v.GetString("ops_addr"),
		rateEnabled:        v.GetBool("rate_enabled"),
		rateWindow:         v.GetDuration("rate_window"),
		rateMaxRequests:    v.GetInt("rate_max_requests"),
		rateShards:         v.GetInt("rate_shards"),
		rateIdleWindows:    v.GetInt("rate_idle_windows"),
		rateSweepEvery:     v.GetDuration("rate_sweep_every"),
		rateKeyHeader:      v.GetString("rate_key_header"),
		trustXFF:           v.GetBool("trust_xff"),
		rateFallbackKey:    v.GetString("rate_fallback_key"),
		addHeaders:         v.GetBool("add_ratelimit_headers"),
		concurrencyMax:     v.GetInt("concurrency_max"),
		concurrencyTimeout: v.GetDuration("concurrency_timeout"),

		rateStatsEnabled:       v.GetBool("rate_stats_enabled"),
		rateStatsRedisAddr:     strings.TrimSpace(v.GetString("rate_stats_redis_addr")),
		rateStatsRedisPassword: v.GetString("rate_stats_redis_password"),
		rateStatsRedisDB:       v.GetInt("rate_stats_redis_db"),
		rateStatsPrefix:        v.GetString("rate_stats_prefix"),
		rateStatsTTL:           v.GetDuration("rate_stats_ttl"),
		rateStatsBucket:        v.GetString("rate_stats_bucket"),
		rateStatsTrackKeys:     v.GetBool("rate_stats_track_keys"),

		logLevel:  v.GetString("log_level"),
		logFormat: v.GetString("log_format"),
	}

	if cfg.upstreamURL == "" {
		return config{}, configError.New("UPSTREAM_URL is required")
	}
	if u, err := url.Parse(cfg.upstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		return config{}, configError.New("invalid UPSTREAM_URL %q", cfg.upstreamURL)
	}
	if cfg.rateWindow < time.Second {
		return config{}, configError.New("RATE_WINDOW must be >= 1s")
	}
	if cfg.rateWindow%time.Second != 0 {
		return config{}, configError.New("RATE_WINDOW must be a whole number of seconds")
	}
	if cfg.rateMaxRequests <= 0 {
		return config{}, configError.New("RATE_MAX_REQUESTS must be > 0")
	}
	if cfg.rateShards <= 0 {
		return config{}, configError.New("RATE_SHARDS must be > 0")
	}
	if cfg.rateIdleWindows <= 0 {
		return config{}, configError.New("RATE_IDLE_WINDOWS must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, configError.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.rateStatsEnabled && cfg.rateStatsRedisAddr == "" {
		return config{}, configError.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.rateStatsBucket)) {
	case "minute", "none":
	default:
		return config{}, configError.New("RATE_STATS_BUCKET must be minute or none")
	}
	return cfg, nil
}
