package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ratelimit-gateway/middleware/ratelimit"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:8081")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, ":9090", cfg.opsAddr)
	assert.True(t, cfg.rateEnabled)
	assert.Equal(t, 60*time.Second, cfg.rateWindow)
	assert.Equal(t, 10, cfg.rateMaxRequests)
	assert.Equal(t, 32, cfg.rateShards)
	assert.Equal(t, "unknown", cfg.rateFallbackKey)
	assert.Equal(t, 100, cfg.concurrencyMax)
	assert.Equal(t, "ratelimit:stats", cfg.rateStatsPrefix)
	assert.Equal(t, 24*time.Hour, cfg.rateStatsTTL)
}

func TestReadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:8081")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("RATE_MAX_REQUESTS", "3")
	t.Setenv("RATE_KEY_HEADER", "X-Api-Key")
	t.Setenv("TRUST_XFF", "true")
	t.Setenv("CONCURRENCY_TIMEOUT", "250ms")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.rateWindow)
	assert.Equal(t, 3, cfg.rateMaxRequests)
	assert.Equal(t, "X-Api-Key", cfg.rateKeyHeader)
	assert.True(t, cfg.trustXFF)
	assert.Equal(t, 250*time.Millisecond, cfg.concurrencyTimeout)
}

func TestReadConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upstream_url: http://upstream:9000\nrate_max_requests: 42\n"), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := readConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://upstream:9000", cfg.upstreamURL)
	assert.Equal(t, 42, cfg.rateMaxRequests)
}

func TestReadConfig_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing upstream":  {},
		"relative upstream": {"UPSTREAM_URL": "localhost"},
		"sub-second window": {"UPSTREAM_URL": "http://u", "RATE_WINDOW": "500ms"},
		"fractional window": {"UPSTREAM_URL": "http://u", "RATE_WINDOW": "1500ms"},
		"zero quota":        {"UPSTREAM_URL": "http://u", "RATE_MAX_REQUESTS": "0"},
		"negative inflight": {"UPSTREAM_URL": "http://u", "CONCURRENCY_MAX": "-1"},
		"stats w/o redis":   {"UPSTREAM_URL": "http://u", "RATE_STATS_ENABLED": "true"},
		"bad bucket":        {"UPSTREAM_URL": "http://u", "RATE_STATS_BUCKET": "hour"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("UPSTREAM_URL", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig(newViper())
			require.Error(t, err)
			assert.True(t, configError.Has(err))
		})
	}
}

func testConfig(t *testing.T, upstream string) config {
	t.Helper()
	t.Setenv("UPSTREAM_URL", upstream)
	t.Setenv("RATE_MAX_REQUESTS", "2")
	t.Setenv("ADD_RATELIMIT_HEADERS", "true")
	cfg, err := readConfig(newViper())
	require.NoError(t, err)
	return cfg
}

func TestGateway_ProxiesUntilQuotaThenRejects(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "upstream ok")
	}))
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)
	log := zaptest.NewLogger(t)

	c, err := buildComponents(context.Background(), cfg, log)
	require.NoError(t, err)
	defer func() { _ = c.close() }()

	target, _ := url.Parse(cfg.upstreamURL)
	gw := httptest.NewServer(buildHandler(cfg, c, newProxy(target, log), log))
	defer gw.Close()

	for i := 0; i < 2; i++ {
		res, err := http.Get(gw.URL + "/showTela")
		require.NoError(t, err)
		body, _ := io.ReadAll(res.Body)
		_ = res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "upstream ok", string(body))
	}

	res, err := http.Get(gw.URL + "/showTela")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, ratelimit.RejectMessage, string(body))
	assert.Equal(t, "0", res.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, res.Header.Get("Retry-After"))
	assert.Equal(t, int64(2), hits.Load())
	assert.Equal(t, 1, c.window.Len())
}

func TestGateway_OpsRouter(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	log := zaptest.NewLogger(t)

	c, err := buildComponents(context.Background(), cfg, log)
	require.NoError(t, err)

	h := buildHandler(cfg, c, http.NotFoundHandler(), log)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	ops := newOpsRouter(c.registry)

	w := httptest.NewRecorder()
	ops.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())

	w = httptest.NewRecorder()
	ops.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `ratelimit_decisions_total{method="GET",outcome="admit"} 2`)
	assert.Contains(t, body, `ratelimit_decisions_total{method="GET",outcome="reject"} 1`)
	assert.Contains(t, body, "ratelimit_tracked_clients 1")
	assert.Contains(t, body, "ratelimit_inflight_requests 0")
	assert.Contains(t, body, "go_goroutines")
}

func TestGateway_RateLimitDisabled(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.rateEnabled = false
	log := zaptest.NewLogger(t)

	c, err := buildComponents(context.Background(), cfg, log)
	require.NoError(t, err)

	h := buildHandler(cfg, c, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), log)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBindFlags_ReportsMissingFlags(t *testing.T) {
	err := bindFlags(newViper(), pflag.NewFlagSet("empty", pflag.ContinueOnError))
	require.Error(t, err)
	assert.True(t, configError.Has(err))
	assert.Contains(t, err.Error(), "--upstream-url")
}

func TestRootCmd_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://from-env:1")

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Set("upstream-url", "http://from-flag:2"))

	v := newViper()
	require.NoError(t, bindFlags(v, cmd.Flags()))
	cfg, err := readConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:2", cfg.upstreamURL)
}
