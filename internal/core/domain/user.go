package domain

// UserID is the authenticated identity supplied by the identity collaborator.
type UserID string

// DeviceInfo describes the hardware a camera app runs on.
type DeviceInfo struct {
	Name      string `json:"deviceName"`
	Model     string `json:"deviceModel"`
	OSVersion string `json:"osVersion"`
}
