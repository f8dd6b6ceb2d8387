package infra

import (
	"context"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats exporta as decisões como métricas.
//
// Só o método HTTP entra como label, normalizado por methodLabel; chave e path ficam de fora.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
}

type PrometheusOption func(prometheus.Registerer)

// WithTrackedClients registra um gauge com o tamanho do registro de clientes.
func WithTrackedClients(fn func() int) PrometheusOption {
	return func(reg prometheus.Registerer) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ratelimit_tracked_clients",
			Help: "Number of clients currently held by the fixed-window registry",
		}, func() float64 { return float64(fn()) }))
	}
}

// WithInFlight registra um gauge com requisições em andamento no limite de concorrência.
func WithInFlight(fn func() int64) PrometheusOption {
	return func(reg prometheus.Registerer) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ratelimit_inflight_requests",
			Help: "Requests currently holding a concurrency slot",
		}, func() float64 { return float64(fn()) }))
	}
}

func NewPrometheusStats(reg prometheus.Registerer, opts ...PrometheusOption) *PrometheusStats {
	s := &PrometheusStats{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit decisions by outcome and method",
		}, []string{"outcome", "method"}),
	}
	reg.MustRegister(s.decisions)
	for _, opt := range opts {
		opt(reg)
	}
	return s
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.decisions.WithLabelValues(ev.Outcome.String(), methodLabel(ev.Method)).Inc()
	return nil
}
