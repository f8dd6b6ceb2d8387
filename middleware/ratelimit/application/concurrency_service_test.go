package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingPool struct{}

func (blockingPool) Capacity() int { return 0 }

func (blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type countingPool struct {
	acquired int
	released int
}

func (p *countingPool) Capacity() int { return 1 }

func (p *countingPool) Acquire(context.Context) (func(), bool) {
	p.acquired++
	return func() { p.released++ }, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := &ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	require.True(t, ok)
	release()
	assert.Zero(t, svc.InFlight())
}

func TestConcurrencyService_Acquire_UsesTimeout(t *testing.T) {
	svc := &ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	_, ok := svc.Acquire(context.Background())
	assert.False(t, ok)
	assert.Zero(t, svc.InFlight())
}

func TestConcurrencyService_ReleaseIsIdempotent(t *testing.T) {
	pool := &countingPool{}
	svc := &ConcurrencyService{Pool: pool}

	release, ok := svc.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), svc.InFlight())

	release()
	release()

	assert.Equal(t, 1, pool.acquired)
	assert.Equal(t, 1, pool.released)
	assert.Zero(t, svc.InFlight())
}
