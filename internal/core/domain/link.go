package domain

import "time"

type LinkID string

// NewLinkID returns the canonical link key for a (monitor user, camera) pair.
func NewLinkID(userID UserID, cameraID CameraID) LinkID {
	return LinkID(string(userID) + "_" + string(cameraID))
}

// MonitorLink records that a monitor user has paired with a camera.
// Links are deactivated, never hard-deleted, outside of account deletion.
type MonitorLink struct {
	ID            LinkID    `json:"id"`
	MonitorUserID UserID    `json:"monitorUserId"`
	CameraID      CameraID  `json:"cameraId"`
	CameraName    string    `json:"cameraDeviceName"`
	PairedAt      time.Time `json:"pairedAt"`
	IsActive      bool      `json:"isActive"`
}

type LinkMutationKind int

const (
	LinkSetActive LinkMutationKind = iota
	LinkSetName
	LinkDelete
)

// LinkMutation is one entry of a batched link write.
type LinkMutation struct {
	ID         LinkID
	Kind       LinkMutationKind
	Active     bool
	CameraName string
}
