package infra

import (
	"context"
	"sync"
	"sync/atomic"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Admitted int64
	Rejected int64
}

func (c *Counters) add(o domain.Outcome) {
	if o == domain.Reject {
		c.Rejected++
		return
	}
	c.Admitted++
}

// MemoryStatsStore guarda contadores de decisões em memória.
// Útil para testes e desenvolvimento.
//
// O total é atômico. Rotas e chaves ficam em mapas limitados por maxKeys:
// chaves novas além do limite entram só no total.
type MemoryStatsStore struct {
	admitted atomic.Int64
	rejected atomic.Int64

	mu      sync.Mutex
	byRoute map[string]Counters
	byKey   map[domain.Key]Counters

	trackKeys bool
	maxKeys   int
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

// WithMaxKeys limita quantas rotas/chaves distintas são guardadas. <= 0 não limita.
func WithMaxKeys(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.maxKeys = n }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[domain.Key]Counters),
		maxKeys: 10000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Outcome == domain.Reject {
		s.rejected.Add(1)
	} else {
		s.admitted.Add(1)
	}

	route := methodLabel(ev.Method) + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byRoute[route]; ok || s.hasRoom(len(s.byRoute)) {
		c.add(ev.Outcome)
		s.byRoute[route] = c
	}
	if s.trackKeys {
		if c, ok := s.byKey[ev.Key]; ok || s.hasRoom(len(s.byKey)) {
			c.add(ev.Outcome)
			s.byKey[ev.Key] = c
		}
	}
	return nil
}

func (s *MemoryStatsStore) hasRoom(n int) bool {
	return s.maxKeys <= 0 || n < s.maxKeys
}

func (s *MemoryStatsStore) Total() Counters {
	return Counters{Admitted: s.admitted.Load(), Rejected: s.rejected.Load()}
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
