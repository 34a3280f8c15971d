package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairingCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GeneratePairingCode()
		require.NoError(t, err)
		require.Len(t, code, PairingCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(PairingCodeAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 90)
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.NotEqual(t, a, b)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Kitchen cam", SanitizeString("  Kitchen\x00 cam\n"))
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"Living room camera", 10, "Living ..."},
		{"Камера", 3, "Кам"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateString(tt.in, tt.max))
	}
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "abc*****", MaskSensitive("abcdefgh", 3))
	assert.Equal(t, "**", MaskSensitive("ab", 3))
}
