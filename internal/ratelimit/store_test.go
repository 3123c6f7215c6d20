package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore(4)
	ctx := context.Background()

	_, err := s.Take(ctx, "short", 5, time.Second, start)
	require.NoError(t, err)
	_, err = s.Take(ctx, "long", 5, time.Hour, start)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 0, s.Sweep(start.Add(500*time.Millisecond)))
	assert.Equal(t, 1, s.Sweep(start.Add(time.Second)))
	assert.Equal(t, 1, s.Len())

	d, err := s.Take(ctx, "long", 5, time.Hour, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, d.Remaining)
}
