package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"camrelay/internal/core/services"
	"camrelay/pkg/config"
	"camrelay/pkg/distributed"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingRunner struct {
	mu    sync.Mutex
	runs  map[string]int
	block chan struct{}
}

func newCountingRunner() *countingRunner {
	return &countingRunner{runs: make(map[string]int)}
}

func (r *countingRunner) Run(ctx context.Context, name string) (services.SweepReport, error) {
	r.mu.Lock()
	r.runs[name]++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	return services.SweepReport{Sweep: name}, nil
}

func (r *countingRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[name]
}

func TestScheduler_RunsEnabledSweeps(t *testing.T) {
	runner := newCountingRunner()
	sweeps := map[string]config.SweepConfig{
		services.SweepStaleOffers: {Enabled: true, Interval: 10 * time.Millisecond, Timeout: time.Minute},
		services.SweepReap:        {Enabled: false, Interval: 10 * time.Millisecond},
	}
	s := NewScheduler(runner, sweeps, nil, zaptest.NewLogger(t).Sugar())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runner.count(services.SweepStaleOffers) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Zero(t, runner.count(services.SweepReap))
	after := runner.count(services.SweepStaleOffers)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runner.count(services.SweepStaleOffers), "no runs after Stop")
}

func TestScheduler_LockSkipsConcurrentRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := distributed.NewLockManager(client, "test:")

	runner := newCountingRunner()
	runner.block = make(chan struct{})
	first := NewScheduler(runner, nil, locks, zaptest.NewLogger(t).Sugar())
	second := NewScheduler(runner, nil, locks, zaptest.NewLogger(t).Sugar())

	done := make(chan struct{})
	go func() {
		first.RunOnce(context.Background(), services.SweepOrphans, time.Minute)
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.count(services.SweepOrphans) == 1 }, time.Second, 5*time.Millisecond)

	second.RunOnce(context.Background(), services.SweepOrphans, time.Minute)
	assert.Equal(t, 1, runner.count(services.SweepOrphans), "second process must skip while the lease is held")

	close(runner.block)
	<-done
	runner.mu.Lock()
	runner.block = nil
	runner.mu.Unlock()

	second.RunOnce(context.Background(), services.SweepOrphans, time.Minute)
	assert.Equal(t, 2, runner.count(services.SweepOrphans))
}
