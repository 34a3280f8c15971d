package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/batch"
	"camrelay/pkg/feed"

	"go.uber.org/zap"
)

type pairingService struct {
	cameras ports.CameraRepository
	links   ports.LinkRepository
	metrics MetricsRecorder
	logger  *zap.SugaredLogger
}

func NewPairingService(
	cameras ports.CameraRepository,
	links ports.LinkRepository,
	metrics MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.PairingService {
	return &pairingService{
		cameras: cameras,
		links:   links,
		metrics: metricsOrNop(metrics),
		logger:  logger,
	}
}

// Verify returns the camera only when code matches its pairing code exactly.
// A wrong code is reported as not-found so callers cannot enumerate camera ids.
func (s *pairingService) Verify(ctx context.Context, cameraID domain.CameraID, code string) (*domain.Camera, error) {
	camera, err := s.cameras.Get(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	if camera.PairingCode != code {
		return nil, fmt.Errorf("%w: %w", domain.ErrCameraNotFound, domain.ErrInvalidPairingCode)
	}
	return camera, nil
}

// CreateLink pairs userID with cameraID under the deterministic link id.
// Active links of the same user for the same camera stored under another id
// are deactivated first. The deactivation and the upsert are separate
// writes; a crash between them leaves a duplicate active link that the next
// CreateLink for the pair removes.
func (s *pairingService) CreateLink(ctx context.Context, userID domain.UserID, cameraID domain.CameraID, cameraName string) (*domain.MonitorLink, error) {
	id := domain.NewLinkID(userID, cameraID)

	active, err := s.links.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active links: %w", err)
	}

	var stale []domain.LinkMutation
	for _, link := range active {
		if link.ID != id && link.CameraID == cameraID {
			stale = append(stale, domain.LinkMutation{ID: link.ID, Kind: domain.LinkSetActive, Active: false})
		}
	}
	if len(stale) > 0 {
		res := batch.ForEachChunk(ctx, stale, s.links.MaxBatchSize(), s.links.ApplyBatch)
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("failed to deactivate superseded links: %w", err)
		}
		s.logger.Infow("deactivated superseded links",
			"user_id", userID,
			"camera_id", cameraID,
			"count", res.Committed,
		)
	}

	link := &domain.MonitorLink{
		ID:            id,
		MonitorUserID: userID,
		CameraID:      cameraID,
		CameraName:    cameraName,
		IsActive:      true,
	}
	if err := s.links.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to write link: %w", err)
	}
	s.metrics.LinkCreated()

	stored, err := s.links.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read back link: %w", err)
	}
	return stored, nil
}

func (s *pairingService) GetPairedCameras(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error) {
	links, err := s.links.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sortByPairedAt(links), nil
}

// sortByPairedAt orders most recent pairing first. The sort is stable so
// ties keep the store's natural order.
func sortByPairedAt(links []*domain.MonitorLink) []*domain.MonitorLink {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].PairedAt.After(links[j].PairedAt)
	})
	return links
}

func (s *pairingService) Deactivate(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error {
	err := s.links.SetActive(ctx, domain.NewLinkID(userID, cameraID), false)
	if errors.Is(err, domain.ErrLinkNotFound) {
		return nil
	}
	return err
}

// RenameLinksForCamera updates the cached camera name on every link. Chunks
// commit independently; an error means some links still carry the old name
// and the call can simply be repeated.
func (s *pairingService) RenameLinksForCamera(ctx context.Context, cameraID domain.CameraID, name string) error {
	links, err := s.links.ListByCamera(ctx, cameraID)
	if err != nil {
		return fmt.Errorf("failed to list links for camera: %w", err)
	}
	if len(links) == 0 {
		return nil
	}

	mutations := make([]domain.LinkMutation, len(links))
	for i, link := range links {
		mutations[i] = domain.LinkMutation{ID: link.ID, Kind: domain.LinkSetName, CameraName: name}
	}

	res := batch.ForEachChunk(ctx, mutations, s.links.MaxBatchSize(), s.links.ApplyBatch)
	s.logger.Infow("renamed camera links",
		"camera_id", cameraID,
		"matched", len(mutations),
		"affected", res.Committed,
		"failed_chunks", res.FailedChunks,
	)
	return res.Err()
}

func (s *pairingService) WatchPairedCameras(ctx context.Context, userID domain.UserID) (*feed.Subscription[[]*domain.MonitorLink], error) {
	sub, err := s.links.WatchActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return feed.Map(sub, sortByPairedAt), nil
}
