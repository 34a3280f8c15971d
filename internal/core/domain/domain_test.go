package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=rtpmap:96 VP8/90000\r\n"

func TestNegotiation_Validate(t *testing.T) {
	tests := []struct {
		name     string
		n        Negotiation
		expected webrtc.SDPType
		wantErr  bool
	}{
		{"valid offer", Negotiation{Type: webrtc.SDPTypeOffer, SDP: testSDP}, webrtc.SDPTypeOffer, false},
		{"valid answer", Negotiation{Type: webrtc.SDPTypeAnswer, SDP: testSDP}, webrtc.SDPTypeAnswer, false},
		{"wrong type", Negotiation{Type: webrtc.SDPTypeAnswer, SDP: testSDP}, webrtc.SDPTypeOffer, true},
		{"empty sdp", Negotiation{Type: webrtc.SDPTypeOffer}, webrtc.SDPTypeOffer, true},
		{"garbage sdp", Negotiation{Type: webrtc.SDPTypeOffer, SDP: "hello"}, webrtc.SDPTypeOffer, true},
		{"garbage after version", Negotiation{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\ngarbage"}, webrtc.SDPTypeOffer, true},
		{"no origin", Negotiation{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\ns=-\r\nt=0 0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\n"}, webrtc.SDPTypeOffer, true},
		{"no media", Negotiation{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"}, webrtc.SDPTypeOffer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.n.Validate(tt.expected)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNegotiation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecodeNegotiation(t *testing.T) {
	data, err := json.Marshal(Negotiation{Type: webrtc.SDPTypeAnswer, SDP: testSDP})
	require.NoError(t, err)

	n, err := DecodeNegotiation(data, webrtc.SDPTypeAnswer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, n.Type)
	assert.Equal(t, webrtc.SDPTypeAnswer, n.SessionDescription().Type)

	_, err = DecodeNegotiation([]byte(`{"type":`), webrtc.SDPTypeAnswer)
	assert.ErrorIs(t, err, ErrDecodeFailed)

	_, err = DecodeNegotiation(data, webrtc.SDPTypeOffer)
	assert.ErrorIs(t, err, ErrDecodeFailed)

	_, err = DecodeNegotiation([]byte(`{"type":"answer","sdp":"garbage"}`), webrtc.SDPTypeAnswer)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestParseSessionStatus(t *testing.T) {
	st, err := ParseSessionStatus("connected")
	require.NoError(t, err)
	assert.Equal(t, SessionConnected, st)
	assert.True(t, SessionDisconnected.IsTerminal())
	assert.False(t, SessionWaiting.IsTerminal())

	_, err = ParseSessionStatus("ringing")
	assert.ErrorIs(t, err, ErrInvalidSessionStatus)
}

func TestSessionFilterAndQuery(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &Session{MonitorUserID: "u1", Status: SessionWaiting, CreatedAt: now}

	assert.True(t, SessionFilter{}.Matches(s))
	assert.True(t, SessionFilter{MonitorUserID: "u1", Statuses: []SessionStatus{SessionConnected, SessionWaiting}}.Matches(s))
	assert.False(t, SessionFilter{MonitorUserID: "u2"}.Matches(s))
	assert.False(t, SessionFilter{Statuses: []SessionStatus{SessionConnected}}.Matches(s))

	assert.True(t, SessionQuery{Status: SessionWaiting, CreatedBefore: now.Add(time.Second)}.Matches(s))
	assert.False(t, SessionQuery{CreatedBefore: now}.Matches(s), "CreatedBefore is exclusive")
}

func TestSessionRef_String(t *testing.T) {
	ref := SessionRef{CameraID: "c1", SessionID: "s1"}
	assert.Equal(t, "cameras/c1/sessions/s1", ref.String())
	assert.Equal(t, ref, (&Session{ID: "s1", CameraID: "c1"}).Ref())
}

func TestNewLinkID(t *testing.T) {
	assert.Equal(t, LinkID("user1_cam1"), NewLinkID("user1", "cam1"))
}

func TestCamera_IsReachable(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	online := &Camera{IsOnline: true, LastSeen: now.Add(-24 * time.Hour)}
	recent := &Camera{LastSeen: now.Add(-time.Minute)}
	stale := &Camera{LastSeen: now.Add(-time.Hour)}

	assert.True(t, online.IsReachable(now, 5*time.Minute))
	assert.True(t, recent.IsReachable(now, 5*time.Minute))
	assert.False(t, stale.IsReachable(now, 5*time.Minute))
}

func TestCandidate_InitRoundTrip(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	init := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2122260223 10.0.0.2 50000 typ host", SDPMid: &mid, SDPMLineIndex: &idx}

	c := CandidateFromInit(init, SenderCamera)
	assert.Equal(t, SenderCamera, c.Sender)
	assert.Equal(t, init, c.Init())

	data, err := json.Marshal(&ICECandidate{Candidate: "candidate:x", Sender: SenderMonitor})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sdpMid")
	assert.NotContains(t, string(data), "sdpMLineIndex")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrCameraNotFound))
	assert.True(t, IsNotFound(errors.Join(errors.New("x"), ErrLinkNotFound)))
	assert.False(t, IsNotFound(ErrPermissionDenied))
	assert.False(t, SenderRole("relay").Valid())
}
