package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// IDRegex matches camera, session and user ids: store ids, uuids and
	// the user_camera link form.
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	PairingCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)
)

const (
	maxIDLength         = 128
	maxDeviceNameLength = 100
	maxCandidateLength  = 1024
)

func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s is too long (max %d characters)", kind, maxIDLength)
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", kind)
	}
	return nil
}

func ValidateCameraID(id string) error  { return validateID("camera ID", id) }
func ValidateSessionID(id string) error { return validateID("session ID", id) }
func ValidateUserID(id string) error    { return validateID("user ID", id) }

// ValidatePairingCode only checks the shape; whether it matches a camera is
// decided by the pairing registry.
func ValidatePairingCode(code string) error {
	if !PairingCodeRegex.MatchString(code) {
		return fmt.Errorf("pairing code must be 6 alphanumeric characters")
	}
	return nil
}

func ValidateBatteryLevel(level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("battery level must be between 0 and 100, got %d", level)
	}
	return nil
}

func ValidateDeviceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("device name is required")
	}
	if utf8.RuneCountInString(name) > maxDeviceNameLength {
		return fmt.Errorf("device name is too long (max %d characters)", maxDeviceNameLength)
	}
	return nil
}

// ValidateCandidate rejects the empty end-of-candidates marker; peers keep
// that one local.
func ValidateCandidate(candidate string) error {
	if candidate == "" {
		return fmt.Errorf("candidate is required")
	}
	if len(candidate) > maxCandidateLength {
		return fmt.Errorf("candidate is too long (max %d bytes)", maxCandidateLength)
	}
	if !strings.HasPrefix(candidate, "candidate:") {
		return fmt.Errorf("candidate must start with \"candidate:\"")
	}
	return nil
}
