package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const expiryTimeout = 30 * time.Second

// Expirer moves lapsed subscriptions to expired.
type Expirer interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// StartSubscriptionExpiryWorker schedules expirer on the cron schedule until
// ctx is done. An empty schedule disables the job. The returned stop func
// waits for a running pass to finish.
func StartSubscriptionExpiryWorker(ctx context.Context, expirer Expirer, schedule string, logger *zap.Logger) (func(), error) {
	if expirer == nil || schedule == "" {
		return func() {}, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		runExpiry(ctx, expirer, expiryTimeout, logger)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	logger.Info("subscription expiry scheduled", zap.String("schedule", schedule))

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		<-c.Stop().Done()
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopped) })
		<-c.Stop().Done()
	}, nil
}

func runExpiry(ctx context.Context, expirer Expirer, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := expirer.ExpireLapsed(ctx)
	if err != nil {
		logger.Warn("subscription expiry failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("subscriptions expired", zap.Int64("count", n))
	}
}
