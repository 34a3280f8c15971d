package services

import (
	"context"
	"fmt"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"
	"camrelay/pkg/utils"
	"camrelay/pkg/validation"

	"go.uber.org/zap"
)

type presenceService struct {
	cameras          ports.CameraRepository
	pairing          ports.PairingService
	reachableTimeout time.Duration
	now              func() time.Time
	logger           *zap.SugaredLogger
}

// NewPresenceService builds the camera presence tracker. pairing receives
// rename fan-outs so cached names on monitor links follow the camera.
func NewPresenceService(
	cameras ports.CameraRepository,
	pairing ports.PairingService,
	reachableTimeout time.Duration,
	logger *zap.SugaredLogger,
) ports.PresenceService {
	return &presenceService{
		cameras:          cameras,
		pairing:          pairing,
		reachableTimeout: reachableTimeout,
		now:              time.Now,
		logger:           logger,
	}
}

func (s *presenceService) Register(ctx context.Context, owner domain.UserID, device domain.DeviceInfo) (*domain.Camera, error) {
	if err := validation.ValidateDeviceName(device.Name); err != nil {
		return nil, fmt.Errorf("invalid device name: %w", err)
	}
	code, err := utils.GeneratePairingCode()
	if err != nil {
		return nil, err
	}

	camera := &domain.Camera{
		OwnerUserID: owner,
		PairingCode: code,
		DeviceName:  utils.SanitizeString(device.Name),
		DeviceModel: device.Model,
		OSVersion:   device.OSVersion,
		IsOnline:    true,
	}
	if err := s.cameras.Create(ctx, camera); err != nil {
		return nil, fmt.Errorf("failed to register camera: %w", err)
	}

	s.logger.Infow("camera registered", "camera_id", camera.ID, "owner", owner)
	return camera, nil
}

func (s *presenceService) Get(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	return s.cameras.Get(ctx, id)
}

// SetOnline flips the online flag and refreshes last-seen in the same write,
// so going offline records when the camera was last known to be up.
func (s *presenceService) SetOnline(ctx context.Context, id domain.CameraID, online bool) error {
	return s.cameras.Update(ctx, id, domain.CameraUpdate{Online: &online, TouchLastSeen: true})
}

func (s *presenceService) Touch(ctx context.Context, id domain.CameraID) error {
	return s.cameras.Update(ctx, id, domain.CameraUpdate{TouchLastSeen: true})
}

func (s *presenceService) UpdateBattery(ctx context.Context, id domain.CameraID, level int) error {
	if err := validation.ValidateBatteryLevel(level); err != nil {
		return fmt.Errorf("%w: %d", domain.ErrInvalidBatteryLevel, level)
	}
	return s.cameras.Update(ctx, id, domain.CameraUpdate{BatteryLevel: &level})
}

// SetPushToken stores the token for the push collaborator. It is never read back here.
func (s *presenceService) SetPushToken(ctx context.Context, id domain.CameraID, token string) error {
	if err := s.cameras.Update(ctx, id, domain.CameraUpdate{PushToken: &token}); err != nil {
		return err
	}
	s.logger.Debugw("push token updated", "camera_id", id, "token", utils.MaskSensitive(token, 6))
	return nil
}

// Rename updates the camera and then the cached name on its monitor links.
func (s *presenceService) Rename(ctx context.Context, id domain.CameraID, name string) error {
	if err := validation.ValidateDeviceName(name); err != nil {
		return fmt.Errorf("invalid device name: %w", err)
	}
	name = utils.SanitizeString(name)
	if err := s.cameras.Update(ctx, id, domain.CameraUpdate{DeviceName: &name}); err != nil {
		return err
	}
	return s.pairing.RenameLinksForCamera(ctx, id, name)
}

// RegeneratePairingCode invalidates the old code; existing links are kept.
func (s *presenceService) RegeneratePairingCode(ctx context.Context, id domain.CameraID) (string, error) {
	code, err := utils.GeneratePairingCode()
	if err != nil {
		return "", err
	}
	if err := s.cameras.Update(ctx, id, domain.CameraUpdate{PairingCode: &code}); err != nil {
		return "", err
	}
	return code, nil
}

func (s *presenceService) SetConnectedMonitors(ctx context.Context, id domain.CameraID, count int) error {
	if count < 0 {
		return fmt.Errorf("connected monitor count must be >= 0, got %d", count)
	}
	return s.cameras.Update(ctx, id, domain.CameraUpdate{ConnectedMonitors: &count})
}

func (s *presenceService) IsReachable(ctx context.Context, id domain.CameraID) (bool, error) {
	camera, err := s.cameras.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return camera.IsReachable(s.now(), s.reachableTimeout), nil
}

func (s *presenceService) Watch(ctx context.Context, id domain.CameraID) (*feed.Subscription[*domain.Camera], error) {
	return s.cameras.Watch(ctx, id)
}
