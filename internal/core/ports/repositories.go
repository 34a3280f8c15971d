package ports

import (
	"context"

	"camrelay/internal/core/domain"
	"camrelay/pkg/feed"
)

// CameraRepository stores cameras/{cameraId}.
type CameraRepository interface {
	// Create assigns an id when camera.ID is empty and stamps CreatedAt and
	// LastSeen with the store clock.
	Create(ctx context.Context, camera *domain.Camera) error
	Get(ctx context.Context, id domain.CameraID) (*domain.Camera, error)
	Update(ctx context.Context, id domain.CameraID, update domain.CameraUpdate) error
	Delete(ctx context.Context, id domain.CameraID) error
	ListByOwner(ctx context.Context, owner domain.UserID) ([]*domain.Camera, error)
	List(ctx context.Context) ([]*domain.Camera, error)
	// Watch emits the camera on every change, or nil while it does not exist.
	Watch(ctx context.Context, id domain.CameraID) (*feed.Subscription[*domain.Camera], error)
}

// LinkRepository stores monitorLinks/{monitorUserId}_{cameraId}.
type LinkRepository interface {
	Get(ctx context.Context, id domain.LinkID) (*domain.MonitorLink, error)
	// Upsert merges link into any existing record; PairedAt is stamped with the store clock.
	Upsert(ctx context.Context, link *domain.MonitorLink) error
	SetActive(ctx context.Context, id domain.LinkID, active bool) error
	ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error)
	ListByCamera(ctx context.Context, cameraID domain.CameraID) ([]*domain.MonitorLink, error)
	// ApplyBatch commits mutations atomically. It fails with
	// domain.ErrBatchTooLarge when len(mutations) > MaxBatchSize().
	ApplyBatch(ctx context.Context, mutations []domain.LinkMutation) error
	MaxBatchSize() int
	WatchActiveByUser(ctx context.Context, userID domain.UserID) (*feed.Subscription[[]*domain.MonitorLink], error)
}

// SessionRepository stores cameras/{cameraId}/sessions/{sessionId}.
type SessionRepository interface {
	// Create stamps CreatedAt with the store clock.
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, ref domain.SessionRef) (*domain.Session, error)
	Update(ctx context.Context, ref domain.SessionRef, update domain.SessionUpdate) error
	// Delete removes the session together with its candidates.
	Delete(ctx context.Context, ref domain.SessionRef) error
	ListByCamera(ctx context.Context, cameraID domain.CameraID, filter domain.SessionFilter) ([]*domain.Session, error)
	// Query searches sessions of every camera.
	Query(ctx context.Context, q domain.SessionQuery) ([]*domain.Session, error)
	ApplyBatch(ctx context.Context, mutations []domain.SessionMutation) error
	MaxBatchSize() int
	Watch(ctx context.Context, cameraID domain.CameraID, filter domain.SessionFilter) (*feed.Subscription[[]*domain.Session], error)
	// WatchOne emits the session on every change, or nil while it does not exist.
	WatchOne(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Session], error)
}

// CandidateRepository stores cameras/{cameraId}/sessions/{sessionId}/iceCandidates/{id}.
type CandidateRepository interface {
	// Add fails with domain.ErrSessionNotFound when the parent session is absent.
	Add(ctx context.Context, ref domain.SessionRef, candidate *domain.ICECandidate) error
	List(ctx context.Context, ref domain.SessionRef) ([]*domain.ICECandidate, error)
	Watch(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[[]*domain.ICECandidate], error)
}
