package repositories

import (
	"context"

	"camrelay/internal/core/ports"
	"camrelay/internal/infrastructure/repositories/memory"
	redisrepo "camrelay/internal/infrastructure/repositories/redis"
	"camrelay/pkg/config"
	"camrelay/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Repositories is the full set of store ports one process works with.
type Repositories struct {
	Cameras    ports.CameraRepository
	Links      ports.LinkRepository
	Sessions   ports.SessionRepository
	Candidates ports.CandidateRepository
}

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	backend     string
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when configured. If Redis cannot be
// reached the factory falls back to the in-memory store, which only works
// for single-process deployments, so the fallback is logged loudly.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		backend: config.BackendMemory,
		cfg:     cfg,
		logger:  logger,
	}

	if cfg.Store.Backend == config.BackendRedis {
		client, err := redisrepo.NewRedisClient(ctx,
			cfg.Store.Redis.Address,
			cfg.Store.Redis.Password,
			cfg.Store.Redis.DB,
			cfg.Store.Redis.PoolSize,
			cfg.Store.KeyPrefix,
			logger,
		)
		if err != nil {
			logger.Errorw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
		} else {
			factory.backend = config.BackendRedis
			factory.redisClient = client
		}
	}

	logger.Infow("store backend selected", "backend", factory.backend)
	return factory
}

// Backend reports the backend actually in use after fallback.
func (f *RepositoryFactory) Backend() string {
	return f.backend
}

// Create builds all repositories on one shared store so that live feeds
// see writes made through any of them.
func (f *RepositoryFactory) Create() *Repositories {
	if f.redisClient != nil {
		store := redisrepo.NewStore(f.redisClient, f.cfg.Store.KeyPrefix, f.cfg.Store.MaxBatchSize, f.logger)
		return &Repositories{
			Cameras:    redisrepo.NewRedisCameraRepository(store),
			Links:      redisrepo.NewRedisLinkRepository(store),
			Sessions:   redisrepo.NewRedisSessionRepository(store),
			Candidates: redisrepo.NewRedisCandidateRepository(store),
		}
	}

	store := memory.NewStore(memory.WithMaxBatchSize(f.cfg.Store.MaxBatchSize))
	return &Repositories{
		Cameras:    memory.NewMemoryCameraRepository(store),
		Links:      memory.NewMemoryLinkRepository(store),
		Sessions:   memory.NewMemorySessionRepository(store),
		Candidates: memory.NewMemoryCandidateRepository(store),
	}
}

// LockManager returns nil for the memory backend, where there is only ever
// one process to coordinate.
func (f *RepositoryFactory) LockManager() *distributed.LockManager {
	if f.redisClient == nil {
		return nil
	}
	return distributed.NewLockManager(f.redisClient, f.cfg.Store.KeyPrefix)
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck pings Redis; the memory backend is always healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
