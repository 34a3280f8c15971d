package app

import (
	"context"
	"testing"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNew_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	a, err := New(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer a.Close(context.Background())

	camera, err := a.Presence.Register(context.Background(), "owner", domain.DeviceInfo{Name: "Nursery"})
	require.NoError(t, err)
	_, err = a.Pairing.Verify(context.Background(), camera.ID, camera.PairingCode)
	require.NoError(t, err)

	assert.True(t, a.Health.IsReady(context.Background()))
	report, err := a.Reconciler.Run(context.Background(), "orphans")
	require.NoError(t, err)
	assert.Zero(t, report.Affected)
}

func TestNew_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.Redis.Address = mr.Addr()

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, config.BackendRedis, a.Factory.Backend())
	assert.True(t, a.Health.IsReady(context.Background()))
}

func TestReconcilerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconciler.Heartbeats.Timeout = 90 * time.Second
	cfg.Reconciler.Recount.Timeout = 0

	rc := ReconcilerConfig(cfg)
	assert.Equal(t, 90*time.Second, rc.HeartbeatTimeout)
	assert.Equal(t, 10*time.Minute, rc.StaleOfferTimeout)
}
