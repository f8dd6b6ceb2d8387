package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePool_BlocksUntilRelease(t *testing.T) {
	p := NewSemaphorePool(1)
	assert.Equal(t, 1, p.Capacity())

	release, ok := p.Acquire(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = p.Acquire(ctx)
	assert.False(t, ok, "second acquire should time out while the slot is held")

	release()

	release, ok = p.Acquire(context.Background())
	require.True(t, ok)
	release()
}
