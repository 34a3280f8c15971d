package services

import (
	"context"
	"fmt"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/batch"

	"go.uber.org/zap"
)

type accountService struct {
	cameras  ports.CameraRepository
	links    ports.LinkRepository
	sessions ports.SessionRepository
	logger   *zap.SugaredLogger
}

func NewAccountService(
	cameras ports.CameraRepository,
	links ports.LinkRepository,
	sessions ports.SessionRepository,
	logger *zap.SugaredLogger,
) ports.AccountService {
	return &accountService{cameras: cameras, links: links, sessions: sessions, logger: logger}
}

// DeleteAccount removes everything the user owns, leaves first: for each
// owned camera its sessions (with their candidates) and then the camera
// itself; then the user's own links. Links other users hold to the deleted
// cameras are deactivated, not deleted, so those users keep their history.
// Every step is idempotent, so a failed cascade is retried by calling again.
func (s *accountService) DeleteAccount(ctx context.Context, userID domain.UserID) error {
	cameras, err := s.cameras.ListByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}

	for _, camera := range cameras {
		if err := s.deleteCamera(ctx, camera.ID, userID); err != nil {
			return err
		}
	}

	own, err := s.links.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}
	deletes := make([]domain.LinkMutation, len(own))
	for i, link := range own {
		deletes[i] = domain.LinkMutation{ID: link.ID, Kind: domain.LinkDelete}
	}
	if err := batch.ForEachChunk(ctx, deletes, s.links.MaxBatchSize(), s.links.ApplyBatch).Err(); err != nil {
		return fmt.Errorf("failed to delete links: %w", err)
	}

	s.logger.Infow("account deleted",
		"user_id", userID,
		"cameras", len(cameras),
		"links", len(own),
	)
	return nil
}

func (s *accountService) deleteCamera(ctx context.Context, cameraID domain.CameraID, owner domain.UserID) error {
	sessions, err := s.sessions.ListByCamera(ctx, cameraID, domain.SessionFilter{})
	if err != nil {
		return fmt.Errorf("failed to list sessions of camera %s: %w", cameraID, err)
	}
	deletes := make([]domain.SessionMutation, len(sessions))
	for i, session := range sessions {
		deletes[i] = domain.SessionMutation{Ref: session.Ref(), Kind: domain.SessionDelete}
	}
	if err := batch.ForEachChunk(ctx, deletes, s.sessions.MaxBatchSize(), s.sessions.ApplyBatch).Err(); err != nil {
		return fmt.Errorf("failed to delete sessions of camera %s: %w", cameraID, err)
	}

	if err := s.cameras.Delete(ctx, cameraID); err != nil {
		return fmt.Errorf("failed to delete camera %s: %w", cameraID, err)
	}

	links, err := s.links.ListByCamera(ctx, cameraID)
	if err != nil {
		return fmt.Errorf("failed to list links of camera %s: %w", cameraID, err)
	}
	var deactivate []domain.LinkMutation
	for _, link := range links {
		if link.MonitorUserID != owner && link.IsActive {
			deactivate = append(deactivate, domain.LinkMutation{ID: link.ID, Kind: domain.LinkSetActive, Active: false})
		}
	}
	if err := batch.ForEachChunk(ctx, deactivate, s.links.MaxBatchSize(), s.links.ApplyBatch).Err(); err != nil {
		return fmt.Errorf("failed to deactivate links of camera %s: %w", cameraID, err)
	}
	return nil
}
