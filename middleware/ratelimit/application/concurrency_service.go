package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	inflight atomic.Int64
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até ctx cancelar.
//   - AcquireTimeout > 0: espera no máximo o timeout.
//
// O release retornado pode ser chamado mais de uma vez; só a primeira devolve a vaga.
func (s *ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(ctx)
	if !ok {
		return nil, false
	}
	s.inflight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.inflight.Add(-1)
			release()
		})
	}, true
}

// InFlight retorna quantas vagas estão em uso por este serviço.
func (s *ConcurrencyService) InFlight() int64 { return s.inflight.Load() }
