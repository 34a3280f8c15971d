package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type CandidateID string

type SenderRole string

const (
	SenderMonitor SenderRole = "monitor"
	SenderCamera  SenderRole = "camera"
)

func (r SenderRole) Valid() bool {
	return r == SenderMonitor || r == SenderCamera
}

// ICECandidate is a routing hint appended to a session during negotiation.
// SDPMid and SDPMLineIndex are omitted from the stored payload when absent.
type ICECandidate struct {
	ID            CandidateID `json:"id"`
	Candidate     string      `json:"candidate"`
	SDPMid        *string     `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16     `json:"sdpMLineIndex,omitempty"`
	Sender        SenderRole  `json:"sender"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// CandidateFromInit builds a candidate from what pion emits in OnICECandidate.
func CandidateFromInit(init webrtc.ICECandidateInit, sender SenderRole) *ICECandidate {
	return &ICECandidate{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
		Sender:        sender,
	}
}

// Init converts the candidate for AddICECandidate on the remote peer.
func (c *ICECandidate) Init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}
