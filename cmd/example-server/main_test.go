package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ratelimit-gateway/middleware/ratelimit"
	"ratelimit-gateway/middleware/ratelimit/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRouter_LimitsAPIButNotStats(t *testing.T) {
	window := infra.NewFixedWindow(infra.WithMaxRequests(2))
	stats := infra.NewMemoryStatsStore()
	h := newRouter(window, stats, ratelimit.NewConcurrencyService(50, time.Second), zaptest.NewLogger(t))

	codes := []int{}
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Api-Key", "client-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "admitted=2 rejected=1 clients=1\n", w.Body.String())
	}
}

func TestRouter_RejectsOverQuotaWithoutWaitingForSlot(t *testing.T) {
	window := infra.NewFixedWindow(infra.WithMaxRequests(1))
	conc := ratelimit.NewConcurrencyService(1, 10*time.Millisecond)
	h := newRouter(window, infra.NewMemoryStatsStore(), conc, zaptest.NewLogger(t))

	call := func() int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Api-Key", "client-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, call())

	release, ok := conc.Acquire(context.Background())
	require.True(t, ok)
	defer release()

	assert.Equal(t, http.StatusTooManyRequests, call())
	assert.Equal(t, int64(1), conc.InFlight())
}
