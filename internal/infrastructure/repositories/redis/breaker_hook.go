package redis

import (
	"context"
	"errors"
	"fmt"
	"net"

	"camrelay/internal/core/domain"
	"camrelay/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// breakerHook fails commands fast with domain.ErrStoreUnavailable while
// Redis is unreachable instead of letting every request wait for a dial
// timeout. Only transport errors trip it; Redis replies such as nil or
// WRONGTYPE mean the server is up.
type breakerHook struct {
	cb *circuitbreaker.CircuitBreaker
}

func isTransportFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var replyErr redis.Error
	return !errors.As(err, &replyErr)
}

func newBreakerHook(cfg circuitbreaker.Config, logger *zap.SugaredLogger) *breakerHook {
	cfg.IsFailure = isTransportFailure
	cb := circuitbreaker.New(cfg)
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("redis circuit breaker state changed", "from", from.String(), "to", to.String())
	})
	return &breakerHook{cb: cb}
}

func (h *breakerHook) guard(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (h *breakerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if err := h.guard(h.cb.Allow()); err != nil {
			return nil, err
		}
		conn, err := next(ctx, network, addr)
		h.cb.Record(err)
		return conn, err
	}
}

func (h *breakerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if err := h.guard(h.cb.Allow()); err != nil {
			cmd.SetErr(err)
			return err
		}
		err := next(ctx, cmd)
		h.cb.Record(err)
		return err
	}
}

func (h *breakerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if err := h.guard(h.cb.Allow()); err != nil {
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
			return err
		}
		err := next(ctx, cmds)
		h.cb.Record(err)
		return err
	}
}
