package domain

import "time"

type CameraID string

// Camera is the presence record a camera app keeps current.
type Camera struct {
	ID                CameraID  `json:"id"`
	OwnerUserID       UserID    `json:"userId"`
	PairingCode       string    `json:"pairingCode"`
	DeviceName        string    `json:"deviceName"`
	DeviceModel       string    `json:"deviceModel"`
	OSVersion         string    `json:"osVersion"`
	IsOnline          bool      `json:"isOnline"`
	LastSeen          time.Time `json:"lastSeen"`
	BatteryLevel      *int      `json:"batteryLevel,omitempty"`
	PushToken         string    `json:"pushToken,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	ConnectedMonitors int       `json:"connectedMonitors"`
}

// IsReachable reports whether a monitor should bother offering a session.
// An offline camera is still considered reachable until its last-seen
// timestamp is older than timeout.
func (c *Camera) IsReachable(now time.Time, timeout time.Duration) bool {
	if c.IsOnline {
		return true
	}
	return now.Sub(c.LastSeen) <= timeout
}

// CameraUpdate is a field-level patch. Nil fields are left untouched.
type CameraUpdate struct {
	Online            *bool
	TouchLastSeen     bool
	BatteryLevel      *int
	DeviceName        *string
	PushToken         *string
	PairingCode       *string
	ConnectedMonitors *int
}

func (u CameraUpdate) IsEmpty() bool {
	return u.Online == nil && !u.TouchLastSeen && u.BatteryLevel == nil &&
		u.DeviceName == nil && u.PushToken == nil && u.PairingCode == nil &&
		u.ConnectedMonitors == nil
}
