package services

import (
	"context"
	"errors"
	"fmt"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/batch"
	"camrelay/pkg/feed"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

type sessionService struct {
	sessions ports.SessionRepository
	metrics  MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewSessionService(sessions ports.SessionRepository, metrics MetricsRecorder, logger *zap.SugaredLogger) ports.SessionService {
	return &sessionService{
		sessions: sessions,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// Create writes a waiting session and then supersedes every other live
// session of the same monitor user on this camera. The pairing code is
// stored with the session but not checked here; callers verify it through
// the pairing service first. Reusing an existing session id fails with
// ErrSessionExists.
func (s *sessionService) Create(ctx context.Context, req ports.CreateSessionRequest) (domain.SessionID, error) {
	if err := req.Offer.Validate(webrtc.SDPTypeOffer); err != nil {
		return "", err
	}
	if req.SessionID == "" {
		req.SessionID = domain.SessionID(uuid.NewString())
	}

	session := &domain.Session{
		ID:                req.SessionID,
		CameraID:          req.CameraID,
		MonitorUserID:     req.MonitorUserID,
		MonitorDeviceID:   req.MonitorDeviceID,
		MonitorDeviceName: req.MonitorDeviceName,
		DisplayName:       req.DisplayName,
		PairingCode:       req.PairingCode,
		Offer:             req.Offer,
		Status:            domain.SessionWaiting,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	s.metrics.SessionCreated()

	// Supersession failures are not returned: the new session exists and the
	// heartbeat and stale-offer sweeps retire whatever is left behind.
	if err := s.supersede(ctx, session); err != nil {
		s.logger.Warnw("failed to supersede previous sessions",
			"camera_id", session.CameraID,
			"session_id", session.ID,
			"monitor_user_id", session.MonitorUserID,
			"error", err,
		)
	}
	return session.ID, nil
}

// supersede flips older sessions to disconnected rather than deleting them
// so a camera that is mid-read of an old session sees a status change
// instead of a vanished document.
func (s *sessionService) supersede(ctx context.Context, current *domain.Session) error {
	live, err := s.sessions.ListByCamera(ctx, current.CameraID, domain.SessionFilter{
		MonitorUserID: current.MonitorUserID,
		Statuses:      []domain.SessionStatus{domain.SessionWaiting, domain.SessionConnected},
	})
	if err != nil {
		return err
	}

	var mutations []domain.SessionMutation
	for _, old := range live {
		if old.ID == current.ID {
			continue
		}
		mutations = append(mutations, domain.SessionMutation{
			Ref:    old.Ref(),
			Kind:   domain.SessionSetStatus,
			Status: domain.SessionDisconnected,
		})
	}
	if len(mutations) == 0 {
		return nil
	}

	res := batch.ForEachChunk(ctx, mutations, s.sessions.MaxBatchSize(), s.sessions.ApplyBatch)
	s.metrics.SessionsSuperseded(res.Committed)
	s.logger.Infow("superseded sessions",
		"camera_id", current.CameraID,
		"session_id", current.ID,
		"affected", res.Committed,
	)
	return res.Err()
}

func (s *sessionService) Get(ctx context.Context, ref domain.SessionRef) (*domain.Session, error) {
	return s.sessions.Get(ctx, ref)
}

// SetAnswer stores the answer and marks the session connected in one write.
// Waiting and connected sessions accept it and the last writer wins; a
// disconnected session rejects it.
func (s *sessionService) SetAnswer(ctx context.Context, ref domain.SessionRef, answer domain.Negotiation) error {
	if err := answer.Validate(webrtc.SDPTypeAnswer); err != nil {
		return err
	}
	connected := domain.SessionConnected
	if err := s.sessions.Update(ctx, ref, domain.SessionUpdate{Answer: &answer, Status: &connected}); err != nil {
		return fmt.Errorf("failed to set answer: %w", err)
	}
	s.metrics.SessionStatusChanged(string(connected))
	return nil
}

// SetStatus moves the session forward. Returning to waiting is rejected;
// waiting is only ever set at creation. Disconnected is terminal, which keeps
// a superseded session from coming back next to its replacement. The
// repository repeats the terminal check atomically with the write.
func (s *sessionService) SetStatus(ctx context.Context, ref domain.SessionRef, status domain.SessionStatus) error {
	if _, err := domain.ParseSessionStatus(string(status)); err != nil {
		return err
	}
	if status == domain.SessionWaiting {
		return fmt.Errorf("%w: sessions cannot return to %s", domain.ErrInvalidSessionStatus, status)
	}
	current, err := s.sessions.Get(ctx, ref)
	if err != nil {
		return err
	}
	if err := current.Status.CheckTransition(status); err != nil {
		return err
	}
	if err := s.sessions.Update(ctx, ref, domain.SessionUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	s.metrics.SessionStatusChanged(string(status))
	return nil
}

func (s *sessionService) SetAudioEnabled(ctx context.Context, ref domain.SessionRef, enabled bool) error {
	return s.sessions.Update(ctx, ref, domain.SessionUpdate{AudioEnabled: &enabled})
}

// Heartbeat stamps lastHeartbeat with the store clock.
func (s *sessionService) Heartbeat(ctx context.Context, ref domain.SessionRef) error {
	return s.sessions.Update(ctx, ref, domain.SessionUpdate{Heartbeat: true})
}

// Delete removes the session and its candidates. Deleting an absent session succeeds.
func (s *sessionService) Delete(ctx context.Context, ref domain.SessionRef) error {
	err := s.sessions.Delete(ctx, ref)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *sessionService) WatchNewSessions(ctx context.Context, cameraID domain.CameraID) (*feed.Subscription[[]*domain.Session], error) {
	return s.sessions.Watch(ctx, cameraID, domain.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionWaiting},
	})
}

func (s *sessionService) WatchConnectedSessions(ctx context.Context, cameraID domain.CameraID) (*feed.Subscription[[]*domain.Session], error) {
	return s.sessions.Watch(ctx, cameraID, domain.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionConnected},
	})
}

// WatchAnswer emits the current answer, or nil while there is none or the
// session is gone.
func (s *sessionService) WatchAnswer(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Negotiation], error) {
	sub, err := s.sessions.WatchOne(ctx, ref)
	if err != nil {
		return nil, err
	}
	return feed.Map(sub, func(session *domain.Session) *domain.Negotiation {
		if session == nil {
			return nil
		}
		return session.Answer
	}), nil
}

func (s *sessionService) WatchSession(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Session], error) {
	return s.sessions.WatchOne(ctx, ref)
}
