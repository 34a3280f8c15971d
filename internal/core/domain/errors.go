package domain

import "errors"

var (
	ErrCameraNotFound       = errors.New("camera not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExists        = errors.New("session already exists")
	ErrLinkNotFound         = errors.New("monitor link not found")
	ErrInvalidPairingCode   = errors.New("invalid pairing code")
	ErrInvalidNegotiation   = errors.New("invalid negotiation payload")
	ErrInvalidSessionStatus = errors.New("invalid session status")
	ErrInvalidCandidate     = errors.New("invalid ice candidate")
	ErrInvalidBatteryLevel  = errors.New("battery level must be between 0 and 100")
	ErrBatchTooLarge        = errors.New("batch exceeds store mutation limit")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrDecodeFailed         = errors.New("document decode failed")
)

// IsNotFound reports whether err is any of the document-absent errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCameraNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrLinkNotFound)
}
