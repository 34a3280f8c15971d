package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIDs(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "3f1c2b7e-4a0d-4a8e-9d1e-7f6b8a9c0d1e", false},
		{"link style", "user1_cam1", false},
		{"empty", "", true},
		{"slash", "cameras/x", true},
		{"too long", strings.Repeat("a", 129), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, fn := range []func(string) error{ValidateCameraID, ValidateSessionID, ValidateUserID} {
				err := fn(tt.id)
				if tt.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			}
		})
	}
}

func TestValidatePairingCode(t *testing.T) {
	assert.NoError(t, ValidatePairingCode("ABC123"))
	assert.NoError(t, ValidatePairingCode("abc123"))
	assert.Error(t, ValidatePairingCode("ABC12"))
	assert.Error(t, ValidatePairingCode("ABC-12"))
	assert.Error(t, ValidatePairingCode(""))
}

func TestValidateBatteryLevel(t *testing.T) {
	assert.NoError(t, ValidateBatteryLevel(0))
	assert.NoError(t, ValidateBatteryLevel(100))
	assert.Error(t, ValidateBatteryLevel(-1))
	assert.Error(t, ValidateBatteryLevel(101))
}

func TestValidateDeviceName(t *testing.T) {
	assert.NoError(t, ValidateDeviceName("Nursery"))
	assert.Error(t, ValidateDeviceName("   "))
	assert.Error(t, ValidateDeviceName(strings.Repeat("x", 101)))
}

func TestValidateCandidate(t *testing.T) {
	assert.NoError(t, ValidateCandidate("candidate:1 1 UDP 2122252543 192.168.1.5 51000 typ host"))
	assert.Error(t, ValidateCandidate(""))
	assert.Error(t, ValidateCandidate("host 1.2.3.4"))
	assert.Error(t, ValidateCandidate("candidate:"+strings.Repeat("x", 1024)))
}
