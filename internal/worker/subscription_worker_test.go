package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) ExpireLapsed(context.Context) (int64, error) {
	e.calls.Add(1)
	return 2, e.err
}

func TestSubscriptionExpiryWorker_RunsUntilStopped(t *testing.T) {
	expirer := &countingExpirer{}
	core, logs := observer.New(zap.InfoLevel)

	stop, err := StartSubscriptionExpiryWorker(context.Background(), expirer, "@every 1s", zap.New(core))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return expirer.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	stop()
	stopped := expirer.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, stopped, expirer.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("subscription expiry scheduled").Len())
	assert.NotZero(t, logs.FilterMessage("subscriptions expired").Len())

	stop()
}

func TestSubscriptionExpiryWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	expirer := &countingExpirer{}

	_, err := StartSubscriptionExpiryWorker(ctx, expirer, "@every 1s", zap.NewNop())
	require.NoError(t, err)
	cancel()

	time.Sleep(1500 * time.Millisecond)
	assert.Zero(t, expirer.calls.Load())
}

func TestSubscriptionExpiryWorker_InvalidSchedule(t *testing.T) {
	_, err := StartSubscriptionExpiryWorker(context.Background(), &countingExpirer{}, "every so often", zap.NewNop())
	assert.Error(t, err)
}

func TestSubscriptionExpiryWorker_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	runExpiry(context.Background(), &countingExpirer{err: errors.New("timeout")}, time.Second, zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("subscription expiry failed").Len())
}

func TestSubscriptionExpiryWorker_DisabledSchedule(t *testing.T) {
	expirer := &countingExpirer{}
	stop, err := StartSubscriptionExpiryWorker(context.Background(), expirer, "", zap.NewNop())
	require.NoError(t, err)
	stop()
	assert.Zero(t, expirer.calls.Load())
}
