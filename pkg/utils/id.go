package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Codes are compared case-sensitively, so generated codes stay uppercase.
const PairingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const PairingCodeLength = 6

// GeneratePairingCode returns a random 6-character alphanumeric code.
func GeneratePairingCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(PairingCodeAlphabet)))
	code := make([]byte, PairingCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate pairing code: %w", err)
		}
		code[i] = PairingCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}
