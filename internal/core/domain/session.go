package domain

import (
	"fmt"
	"time"
)

type SessionID string

type SessionStatus string

const (
	SessionWaiting      SessionStatus = "waiting"
	SessionConnected    SessionStatus = "connected"
	SessionDisconnected SessionStatus = "disconnected"
)

// ParseSessionStatus validates a wire value.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch st := SessionStatus(s); st {
	case SessionWaiting, SessionConnected, SessionDisconnected:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSessionStatus, s)
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionDisconnected
}

// CheckTransition rejects moving a session out of a terminal status. Writing
// the same status again is allowed so repeated updates stay idempotent.
func (s SessionStatus) CheckTransition(next SessionStatus) error {
	if s.IsTerminal() && next != s {
		return fmt.Errorf("%w: %s is terminal, cannot move to %s", ErrInvalidSessionStatus, s, next)
	}
	return nil
}

// Session is one connection attempt between a monitor and a camera.
type Session struct {
	ID                SessionID     `json:"id"`
	CameraID          CameraID      `json:"cameraId"`
	MonitorUserID     UserID        `json:"monitorUserId"`
	MonitorDeviceID   string        `json:"monitorDeviceId"`
	MonitorDeviceName string        `json:"monitorDeviceName"`
	DisplayName       string        `json:"displayName,omitempty"`
	PairingCode       string        `json:"pairingCode,omitempty"`
	Offer             Negotiation   `json:"offer"`
	Answer            *Negotiation  `json:"answer,omitempty"`
	Status            SessionStatus `json:"status"`
	AudioEnabled      *bool         `json:"audioEnabled,omitempty"`
	LastHeartbeat     *time.Time    `json:"lastHeartbeat,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

func (s *Session) Ref() SessionRef {
	return SessionRef{CameraID: s.CameraID, SessionID: s.ID}
}

// SessionRef addresses a session document under its parent camera.
type SessionRef struct {
	CameraID  CameraID
	SessionID SessionID
}

func (r SessionRef) String() string {
	return "cameras/" + string(r.CameraID) + "/sessions/" + string(r.SessionID)
}

// SessionUpdate is a field-level patch applied in one write.
type SessionUpdate struct {
	Answer       *Negotiation
	Status       *SessionStatus
	AudioEnabled *bool
	// Heartbeat sets lastHeartbeat to the store's clock.
	Heartbeat bool
}

func (u SessionUpdate) IsEmpty() bool {
	return u.Answer == nil && u.Status == nil && u.AudioEnabled == nil && !u.Heartbeat
}

// SessionFilter narrows the sessions of one camera. Zero values match all.
type SessionFilter struct {
	Statuses      []SessionStatus
	MonitorUserID UserID
}

func (f SessionFilter) Matches(s *Session) bool {
	if f.MonitorUserID != "" && s.MonitorUserID != f.MonitorUserID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if s.Status == st {
			return true
		}
	}
	return false
}

// SessionQuery selects sessions across every camera.
type SessionQuery struct {
	Status SessionStatus
	// CreatedBefore, when set, keeps only sessions created strictly earlier.
	CreatedBefore time.Time
}

func (q SessionQuery) Matches(s *Session) bool {
	if q.Status != "" && s.Status != q.Status {
		return false
	}
	if !q.CreatedBefore.IsZero() && !s.CreatedAt.Before(q.CreatedBefore) {
		return false
	}
	return true
}

type SessionMutationKind int

const (
	SessionDelete SessionMutationKind = iota
	SessionSetStatus
)

// SessionMutation is one entry of a batched session write.
type SessionMutation struct {
	Ref    SessionRef
	Kind   SessionMutationKind
	Status SessionStatus
}
