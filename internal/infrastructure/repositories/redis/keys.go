package redis

import (
	"strings"

	"camrelay/internal/core/domain"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "camrelay:"

type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) camera(id domain.CameraID) string {
	return k.prefix + "camera:" + string(id)
}

// allCameras indexes every camera id for store-wide sweeps.
func (k keyspace) allCameras() string {
	return k.prefix + "cameras"
}

func (k keyspace) ownerCameras(owner domain.UserID) string {
	return k.prefix + "user:" + string(owner) + ":cameras"
}

func (k keyspace) session(ref domain.SessionRef) string {
	return k.prefix + "camera:" + string(ref.CameraID) + ":session:" + string(ref.SessionID)
}

// cameraSessions is a sorted set of session ids scored by creation time.
func (k keyspace) cameraSessions(id domain.CameraID) string {
	return k.prefix + "camera:" + string(id) + ":sessions"
}

// statusSessions is a sorted set of "cameraId/sessionId" members scored by
// creation time, one per status.
func (k keyspace) statusSessions(status domain.SessionStatus) string {
	return k.prefix + "sessions:" + string(status)
}

func (k keyspace) candidates(ref domain.SessionRef) string {
	return k.session(ref) + ":candidates"
}

func (k keyspace) link(id domain.LinkID) string {
	return k.prefix + "link:" + string(id)
}

func (k keyspace) userLinks(userID domain.UserID) string {
	return k.prefix + "user:" + string(userID) + ":links"
}

func (k keyspace) cameraLinks(id domain.CameraID) string {
	return k.prefix + "camera:" + string(id) + ":links"
}

func (k keyspace) changes(topic string) string {
	return k.prefix + "changes:" + topic
}

func refMember(ref domain.SessionRef) string {
	return string(ref.CameraID) + "/" + string(ref.SessionID)
}

func parseRefMember(member string) (domain.SessionRef, bool) {
	cameraID, sessionID, ok := strings.Cut(member, "/")
	if !ok || cameraID == "" || sessionID == "" {
		return domain.SessionRef{}, false
	}
	return domain.SessionRef{CameraID: domain.CameraID(cameraID), SessionID: domain.SessionID(sessionID)}, true
}

var allStatuses = []domain.SessionStatus{
	domain.SessionWaiting,
	domain.SessionConnected,
	domain.SessionDisconnected,
}
