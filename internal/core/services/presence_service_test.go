package services

import (
	"context"
	"testing"
	"time"

	"camrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCamera(t *testing.T, env *testEnv, owner domain.UserID) *domain.Camera {
	t.Helper()
	camera, err := env.presence.Register(context.Background(), owner, domain.DeviceInfo{
		Name:      "Nursery",
		Model:     "Pixel 4a",
		OSVersion: "13",
	})
	require.NoError(t, err)
	return camera
}

func TestPresenceService_Register(t *testing.T) {
	env := newTestEnv(t)
	camera := registerCamera(t, env, "owner")

	assert.NotEmpty(t, camera.ID)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, camera.PairingCode)
	assert.True(t, camera.IsOnline)

	stored, err := env.presence.Get(context.Background(), camera.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("owner"), stored.OwnerUserID)
	assert.Equal(t, "Pixel 4a", stored.DeviceModel)
	assert.Equal(t, env.clock.Now(), stored.LastSeen)

	_, err = env.presence.Register(context.Background(), "owner", domain.DeviceInfo{})
	assert.Error(t, err)
}

func TestPresenceService_OnlineAndReachability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camera := registerCamera(t, env, "owner")

	env.clock.Advance(time.Minute)
	require.NoError(t, env.presence.SetOnline(ctx, camera.ID, false))

	stored, err := env.presence.Get(ctx, camera.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.Equal(t, env.clock.Now(), stored.LastSeen)

	reachable, err := env.presence.IsReachable(ctx, camera.ID)
	require.NoError(t, err)
	assert.True(t, reachable, "recently seen cameras stay reachable")

	env.clock.Advance(6 * time.Minute)
	reachable, err = env.presence.IsReachable(ctx, camera.ID)
	require.NoError(t, err)
	assert.False(t, reachable)

	require.NoError(t, env.presence.Touch(ctx, camera.ID))
	reachable, err = env.presence.IsReachable(ctx, camera.ID)
	require.NoError(t, err)
	assert.True(t, reachable)

	_, err = env.presence.IsReachable(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)
}

func TestPresenceService_UpdateBattery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camera := registerCamera(t, env, "owner")

	require.NoError(t, env.presence.UpdateBattery(ctx, camera.ID, 42))
	assert.ErrorIs(t, env.presence.UpdateBattery(ctx, camera.ID, 101), domain.ErrInvalidBatteryLevel)
	assert.ErrorIs(t, env.presence.UpdateBattery(ctx, camera.ID, -1), domain.ErrInvalidBatteryLevel)

	stored, err := env.presence.Get(ctx, camera.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BatteryLevel)
	assert.Equal(t, 42, *stored.BatteryLevel)
}

func TestPresenceService_PushTokenAndMonitors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camera := registerCamera(t, env, "owner")

	require.NoError(t, env.presence.SetPushToken(ctx, camera.ID, "fcm-token-abcdef"))
	require.NoError(t, env.presence.SetConnectedMonitors(ctx, camera.ID, 2))
	assert.Error(t, env.presence.SetConnectedMonitors(ctx, camera.ID, -1))

	stored, err := env.presence.Get(ctx, camera.ID)
	require.NoError(t, err)
	assert.Equal(t, "fcm-token-abcdef", stored.PushToken)
	assert.Equal(t, 2, stored.ConnectedMonitors)
}

func TestPresenceService_RenameFansOutToLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camera := registerCamera(t, env, "owner")

	_, err := env.pairing.CreateLink(ctx, "u1", camera.ID, camera.DeviceName)
	require.NoError(t, err)

	require.NoError(t, env.presence.Rename(ctx, camera.ID, "Living room"))

	stored, err := env.presence.Get(ctx, camera.ID)
	require.NoError(t, err)
	assert.Equal(t, "Living room", stored.DeviceName)

	link, err := env.links.Get(ctx, domain.NewLinkID("u1", camera.ID))
	require.NoError(t, err)
	assert.Equal(t, "Living room", link.CameraName)

	assert.ErrorIs(t, env.presence.Rename(ctx, "missing", "x"), domain.ErrCameraNotFound)
}

func TestPresenceService_RegeneratePairingCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camera := registerCamera(t, env, "owner")
	_, err := env.pairing.CreateLink(ctx, "u1", camera.ID, camera.DeviceName)
	require.NoError(t, err)

	var code string
	for i := 0; i < 5; i++ {
		code, err = env.presence.RegeneratePairingCode(ctx, camera.ID)
		require.NoError(t, err)
		if code != camera.PairingCode {
			break
		}
	}
	require.NotEqual(t, camera.PairingCode, code)

	_, err = env.pairing.Verify(ctx, camera.ID, camera.PairingCode)
	assert.ErrorIs(t, err, domain.ErrInvalidPairingCode)
	_, err = env.pairing.Verify(ctx, camera.ID, code)
	assert.NoError(t, err)

	links, err := env.pairing.GetPairedCameras(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, links, 1, "existing links survive a new code")
}

func TestPresenceService_Watch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camera := registerCamera(t, env, "owner")

	sub, err := env.presence.Watch(ctx, camera.ID)
	require.NoError(t, err)
	defer sub.Cancel()
	waitFor(t, sub, func(c *domain.Camera) bool { return c != nil && c.IsOnline })

	require.NoError(t, env.presence.SetOnline(ctx, camera.ID, false))
	waitFor(t, sub, func(c *domain.Camera) bool { return c != nil && !c.IsOnline })

	require.NoError(t, env.cameras.Delete(ctx, camera.ID))
	waitFor(t, sub, func(c *domain.Camera) bool { return c == nil })
}
