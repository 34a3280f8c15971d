package reliability

import (
	"context"
	"fmt"

	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/scheduler"
	"camrelay/pkg/retry"

	"go.uber.org/zap"
)

// RetryingRunner retries sweeps whose query failed. Sweeps are idempotent,
// so a rerun after a partial failure only redoes work that did not commit.
type RetryingRunner struct {
	runner      scheduler.Runner
	retryConfig retry.Config
	known       map[string]struct{}
	logger      *zap.SugaredLogger
}

var _ scheduler.Runner = (*RetryingRunner)(nil)

func NewRetryingRunner(runner scheduler.Runner, retryConfig retry.Config, logger *zap.SugaredLogger) *RetryingRunner {
	known := make(map[string]struct{})
	for _, name := range services.SweepNames() {
		known[name] = struct{}{}
	}
	return &RetryingRunner{
		runner:      runner,
		retryConfig: retryConfig,
		known:       known,
		logger:      logger,
	}
}

func (r *RetryingRunner) Run(ctx context.Context, name string) (services.SweepReport, error) {
	if _, ok := r.known[name]; !ok || !r.retryConfig.Enabled {
		return r.runner.Run(ctx, name)
	}

	attempt := 0
	return retry.Do(ctx, r.retryConfig, func() (services.SweepReport, error) {
		attempt++
		report, err := r.runner.Run(ctx, name)
		if err == nil {
			return report, nil
		}
		r.logger.Warnw("sweep attempt failed",
			"sweep", name,
			"attempt", attempt,
			"error", err,
		)
		return report, fmt.Errorf("sweep %s: %w", name, err)
	})
}
