package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v3"
)

// Negotiation is one half of the offer/answer handshake. The store keeps it
// as an opaque structured payload; it is only validated, never interpreted.
type Negotiation struct {
	Type webrtc.SDPType `json:"type"`
	SDP  string         `json:"sdp"`
}

// NewNegotiation wraps a pion session description.
func NewNegotiation(desc webrtc.SessionDescription) Negotiation {
	return Negotiation{Type: desc.Type, SDP: desc.SDP}
}

// SessionDescription converts the payload back into the form pion consumes.
func (n Negotiation) SessionDescription() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: n.Type, SDP: n.SDP}
}

// Validate checks the payload is of the expected kind and carries a
// structurally complete SDP body. The pion parser stops quietly at input it
// cannot tokenize, so the version, origin and media lines are checked on the
// parsed result as well.
func (n Negotiation) Validate(expected webrtc.SDPType) error {
	if n.Type != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidNegotiation, expected, n.Type)
	}
	if n.SDP == "" {
		return fmt.Errorf("%w: empty sdp", ErrInvalidNegotiation)
	}
	if !strings.HasPrefix(n.SDP, "v=0") {
		return fmt.Errorf("%w: sdp must start with v=0", ErrInvalidNegotiation)
	}
	desc := n.SessionDescription()
	parsed, err := desc.Unmarshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNegotiation, err)
	}
	if parsed.Origin.NetworkType == "" || parsed.Origin.UnicastAddress == "" {
		return fmt.Errorf("%w: sdp has no origin line", ErrInvalidNegotiation)
	}
	if len(parsed.MediaDescriptions) == 0 {
		return fmt.Errorf("%w: sdp has no media descriptions", ErrInvalidNegotiation)
	}
	return nil
}

// DecodeNegotiation parses and validates a stored payload.
func DecodeNegotiation(data []byte, expected webrtc.SDPType) (Negotiation, error) {
	var n Negotiation
	if err := json.Unmarshal(data, &n); err != nil {
		return Negotiation{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if err := n.Validate(expected); err != nil {
		return Negotiation{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return n, nil
}
