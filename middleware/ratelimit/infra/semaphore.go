package infra

import (
	"context"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"golang.org/x/sync/semaphore"
)

type semaphorePool struct {
	sem *semaphore.Weighted
	max int
}

// NewSemaphorePool cria um pool com capacidade `max` sobre x/sync/semaphore.
func NewSemaphorePool(max int) domain.SlotPool {
	return &semaphorePool{sem: semaphore.NewWeighted(int64(max)), max: max}
}

func (p *semaphorePool) Capacity() int { return p.max }

func (p *semaphorePool) Acquire(ctx context.Context) (func(), bool) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	return func() { p.sem.Release(1) }, true
}
