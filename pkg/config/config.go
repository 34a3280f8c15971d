package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// SweepConfig schedules one reconciler sweep. Timeout is the age threshold
// the sweep compares against, not a deadline for the sweep itself.
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"signal"`

	Store struct {
		Backend      string `yaml:"backend"`
		KeyPrefix    string `yaml:"key_prefix"`
		MaxBatchSize int    `yaml:"max_batch_size"`
		Redis        struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Presence struct {
		// A camera is considered reachable while online and seen within this window.
		ReachableTimeout time.Duration `yaml:"reachable_timeout"`
	} `yaml:"presence"`

	Reconciler struct {
		StaleOffers SweepConfig `yaml:"stale_offers"`
		Heartbeats  SweepConfig `yaml:"heartbeats"`
		Orphans     SweepConfig `yaml:"orphans"`
		Reap        SweepConfig `yaml:"reap"`
		Recount     SweepConfig `yaml:"recount"`
	} `yaml:"reconciler"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		Issuer         string        `yaml:"issuer"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond   float64 `yaml:"messages_per_second"`
			Burst               int     `yaml:"burst"`
			MaxConcurrent       int     `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		ServiceName    string  `yaml:"service_name"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SampleRatio    float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
}

// Sweeps returns the reconciler sweeps keyed by their CLI name.
func (c *Config) Sweeps() map[string]SweepConfig {
	return map[string]SweepConfig{
		"stale-offers": c.Reconciler.StaleOffers,
		"heartbeats":   c.Reconciler.Heartbeats,
		"orphans":      c.Reconciler.Orphans,
		"reap":         c.Reconciler.Reap,
		"recount":      c.Reconciler.Recount,
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server timeouts must be > 0")
	}

	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be greater than signal.ping_interval")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("store.redis.address must not be empty when store.backend=redis")
		}
		if c.Store.Redis.PoolSize <= 0 {
			return fmt.Errorf("store.redis.pool_size must be > 0 when store.backend=redis")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Store.Backend)
	}
	if c.Store.MaxBatchSize <= 0 {
		return fmt.Errorf("store.max_batch_size must be > 0")
	}

	if c.Presence.ReachableTimeout <= 0 {
		return fmt.Errorf("presence.reachable_timeout must be > 0")
	}

	for name, sweep := range c.Sweeps() {
		if !sweep.Enabled {
			continue
		}
		if sweep.Interval <= 0 {
			return fmt.Errorf("reconciler.%s.interval must be > 0", name)
		}
		if sweep.Timeout <= 0 && name != "recount" {
			return fmt.Errorf("reconciler.%s.timeout must be > 0", name)
		}
	}
	if c.Reconciler.Heartbeats.Enabled && c.Reconciler.StaleOffers.Enabled &&
		c.Reconciler.Heartbeats.Timeout >= c.Reconciler.StaleOffers.Timeout {
		return fmt.Errorf("reconciler.heartbeats.timeout must be shorter than reconciler.stale_offers.timeout")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 || c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http requires requests_per_second and burst > 0")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 || c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket requires messages_per_second and burst > 0")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 || c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket limits must be >= 0")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults, an optional
// .env file next to the working directory and CAMRELAY_* env overrides.
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second

	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second

	cfg.Store.Backend = BackendMemory
	cfg.Store.KeyPrefix = "camrelay:"
	cfg.Store.MaxBatchSize = 500
	cfg.Store.Redis.Address = "localhost:6379"
	cfg.Store.Redis.PoolSize = 10

	cfg.Presence.ReachableTimeout = 5 * time.Minute

	cfg.Reconciler.StaleOffers = SweepConfig{Enabled: true, Interval: 5 * time.Minute, Timeout: 10 * time.Minute}
	cfg.Reconciler.Heartbeats = SweepConfig{Enabled: true, Interval: time.Minute, Timeout: 2 * time.Minute}
	cfg.Reconciler.Orphans = SweepConfig{Enabled: true, Interval: time.Hour, Timeout: time.Hour}
	cfg.Reconciler.Reap = SweepConfig{Enabled: true, Interval: time.Hour, Timeout: time.Hour}
	cfg.Reconciler.Recount = SweepConfig{Enabled: true, Interval: 15 * time.Minute}

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.Issuer = "camrelay"
	cfg.Auth.AccessTokenTTL = 24 * time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 20
	cfg.RateLimiting.WebSocket.Burst = 40
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	cfg.Tracing.ServiceName = "camrelay"
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRatio = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"CAMRELAY_SERVER_ADDRESS":  &c.Server.Address,
		"CAMRELAY_STORE_BACKEND":   &c.Store.Backend,
		"CAMRELAY_STORE_PREFIX":    &c.Store.KeyPrefix,
		"CAMRELAY_REDIS_ADDRESS":   &c.Store.Redis.Address,
		"CAMRELAY_REDIS_PASSWORD":  &c.Store.Redis.Password,
		"CAMRELAY_LOG_LEVEL":       &c.Logging.Level,
		"CAMRELAY_LOG_FORMAT":      &c.Logging.Format,
		"CAMRELAY_JWT_SECRET":      &c.Auth.JWTSecret,
		"CAMRELAY_JAEGER_ENDPOINT": &c.Tracing.JaegerEndpoint,
	}
	for env, dst := range strs {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("CAMRELAY_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAMRELAY_REDIS_DB: %w", err)
		}
		c.Store.Redis.DB = db
	}
	if v := os.Getenv("CAMRELAY_STORE_MAX_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAMRELAY_STORE_MAX_BATCH_SIZE: %w", err)
		}
		c.Store.MaxBatchSize = n
	}
	if v := os.Getenv("CAMRELAY_TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CAMRELAY_TRACING_ENABLED: %w", err)
		}
		c.Tracing.Enabled = enabled
	}
	return nil
}
