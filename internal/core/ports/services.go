package ports

import (
	"context"

	"camrelay/internal/core/domain"
	"camrelay/pkg/feed"
)

type PairingService interface {
	Verify(ctx context.Context, cameraID domain.CameraID, code string) (*domain.Camera, error)
	CreateLink(ctx context.Context, userID domain.UserID, cameraID domain.CameraID, cameraName string) (*domain.MonitorLink, error)
	GetPairedCameras(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error)
	Deactivate(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error
	RenameLinksForCamera(ctx context.Context, cameraID domain.CameraID, name string) error
	WatchPairedCameras(ctx context.Context, userID domain.UserID) (*feed.Subscription[[]*domain.MonitorLink], error)
}

// CreateSessionRequest carries what a monitor writes when it offers a session.
type CreateSessionRequest struct {
	CameraID          domain.CameraID
	SessionID         domain.SessionID
	MonitorUserID     domain.UserID
	MonitorDeviceID   string
	MonitorDeviceName string
	DisplayName       string
	PairingCode       string
	Offer             domain.Negotiation
}

type SessionService interface {
	Create(ctx context.Context, req CreateSessionRequest) (domain.SessionID, error)
	Get(ctx context.Context, ref domain.SessionRef) (*domain.Session, error)
	SetAnswer(ctx context.Context, ref domain.SessionRef, answer domain.Negotiation) error
	SetStatus(ctx context.Context, ref domain.SessionRef, status domain.SessionStatus) error
	SetAudioEnabled(ctx context.Context, ref domain.SessionRef, enabled bool) error
	Heartbeat(ctx context.Context, ref domain.SessionRef) error
	Delete(ctx context.Context, ref domain.SessionRef) error
	WatchNewSessions(ctx context.Context, cameraID domain.CameraID) (*feed.Subscription[[]*domain.Session], error)
	WatchConnectedSessions(ctx context.Context, cameraID domain.CameraID) (*feed.Subscription[[]*domain.Session], error)
	WatchAnswer(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Negotiation], error)
	WatchSession(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Session], error)
}

type CandidateService interface {
	Add(ctx context.Context, ref domain.SessionRef, candidate *domain.ICECandidate) (domain.CandidateID, error)
	List(ctx context.Context, ref domain.SessionRef) ([]*domain.ICECandidate, error)
	Watch(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[[]*domain.ICECandidate], error)
}

type PresenceService interface {
	Register(ctx context.Context, owner domain.UserID, device domain.DeviceInfo) (*domain.Camera, error)
	Get(ctx context.Context, id domain.CameraID) (*domain.Camera, error)
	SetOnline(ctx context.Context, id domain.CameraID, online bool) error
	Touch(ctx context.Context, id domain.CameraID) error
	UpdateBattery(ctx context.Context, id domain.CameraID, level int) error
	SetPushToken(ctx context.Context, id domain.CameraID, token string) error
	Rename(ctx context.Context, id domain.CameraID, name string) error
	RegeneratePairingCode(ctx context.Context, id domain.CameraID) (string, error)
	SetConnectedMonitors(ctx context.Context, id domain.CameraID, count int) error
	IsReachable(ctx context.Context, id domain.CameraID) (bool, error)
	Watch(ctx context.Context, id domain.CameraID) (*feed.Subscription[*domain.Camera], error)
}

type AccountService interface {
	DeleteAccount(ctx context.Context, userID domain.UserID) error
}
