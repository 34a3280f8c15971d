package redis

import (
	"context"
	"net"

	"camrelay/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// tracingHook opens one client span per command or pipeline.
type tracingHook struct{}

func (tracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (tracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := tracing.TraceStoreOperation(ctx, "redis", cmd.Name())
		defer span.End()

		err := next(ctx, cmd)
		if err != nil && err != redis.Nil {
			tracing.RecordError(ctx, err)
		}
		return err
	}
}

func (tracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := tracing.TraceStoreOperation(ctx, "redis", "pipeline")
		defer span.End()

		err := next(ctx, cmds)
		if err != nil && err != redis.Nil {
			tracing.RecordError(ctx, err)
		}
		return err
	}
}
