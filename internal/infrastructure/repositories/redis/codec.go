package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"camrelay/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// Documents are stored as hashes so single-field updates are atomic and
// unspecified fields survive a write (merge semantics).

const (
	fieldUserID            = "userId"
	fieldPairingCode       = "pairingCode"
	fieldDeviceName        = "deviceName"
	fieldDeviceModel       = "deviceModel"
	fieldOSVersion         = "osVersion"
	fieldIsOnline          = "isOnline"
	fieldLastSeen          = "lastSeen"
	fieldBatteryLevel      = "batteryLevel"
	fieldPushToken         = "pushToken"
	fieldCreatedAt         = "createdAt"
	fieldConnectedMonitors = "connectedMonitors"

	fieldMonitorUserID     = "monitorUserId"
	fieldMonitorDeviceID   = "monitorDeviceId"
	fieldMonitorDeviceName = "monitorDeviceName"
	fieldDisplayName       = "displayName"
	fieldOffer             = "offer"
	fieldAnswer            = "answer"
	fieldStatus            = "status"
	fieldAudioEnabled      = "audioEnabled"
	fieldLastHeartbeat     = "lastHeartbeat"

	fieldCameraID   = "cameraId"
	fieldCameraName = "cameraDeviceName"
	fieldPairedAt   = "pairedAt"
	fieldIsActive   = "isActive"
)

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseTime(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}

func encodeCamera(c *domain.Camera) map[string]interface{} {
	fields := map[string]interface{}{
		fieldUserID:            string(c.OwnerUserID),
		fieldPairingCode:       c.PairingCode,
		fieldDeviceName:        c.DeviceName,
		fieldDeviceModel:       c.DeviceModel,
		fieldOSVersion:         c.OSVersion,
		fieldIsOnline:          formatBool(c.IsOnline),
		fieldLastSeen:          formatTime(c.LastSeen),
		fieldCreatedAt:         formatTime(c.CreatedAt),
		fieldConnectedMonitors: strconv.Itoa(c.ConnectedMonitors),
	}
	if c.BatteryLevel != nil {
		fields[fieldBatteryLevel] = strconv.Itoa(*c.BatteryLevel)
	}
	if c.PushToken != "" {
		fields[fieldPushToken] = c.PushToken
	}
	return fields
}

func decodeCamera(id domain.CameraID, h map[string]string) (*domain.Camera, error) {
	if len(h) == 0 {
		return nil, domain.ErrCameraNotFound
	}
	c := &domain.Camera{
		ID:          id,
		OwnerUserID: domain.UserID(h[fieldUserID]),
		PairingCode: h[fieldPairingCode],
		DeviceName:  h[fieldDeviceName],
		DeviceModel: h[fieldDeviceModel],
		OSVersion:   h[fieldOSVersion],
		PushToken:   h[fieldPushToken],
	}
	var err error
	if c.IsOnline, err = parseBool(h[fieldIsOnline]); err != nil {
		return nil, decodeErr(fieldIsOnline, err)
	}
	if c.LastSeen, err = parseTime(h[fieldLastSeen]); err != nil {
		return nil, decodeErr(fieldLastSeen, err)
	}
	if c.CreatedAt, err = parseTime(h[fieldCreatedAt]); err != nil {
		return nil, decodeErr(fieldCreatedAt, err)
	}
	if v, ok := h[fieldConnectedMonitors]; ok {
		if c.ConnectedMonitors, err = strconv.Atoi(v); err != nil {
			return nil, decodeErr(fieldConnectedMonitors, err)
		}
	}
	if v, ok := h[fieldBatteryLevel]; ok {
		level, err := strconv.Atoi(v)
		if err != nil {
			return nil, decodeErr(fieldBatteryLevel, err)
		}
		c.BatteryLevel = &level
	}
	return c, nil
}

func encodeSession(s *domain.Session) (map[string]interface{}, error) {
	offer, err := json.Marshal(s.Offer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer: %w", err)
	}
	fields := map[string]interface{}{
		fieldMonitorUserID:     string(s.MonitorUserID),
		fieldMonitorDeviceID:   s.MonitorDeviceID,
		fieldMonitorDeviceName: s.MonitorDeviceName,
		fieldOffer:             string(offer),
		fieldStatus:            string(s.Status),
		fieldCreatedAt:         formatTime(s.CreatedAt),
	}
	if s.DisplayName != "" {
		fields[fieldDisplayName] = s.DisplayName
	}
	if s.PairingCode != "" {
		fields[fieldPairingCode] = s.PairingCode
	}
	if s.Answer != nil {
		answer, err := json.Marshal(s.Answer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		fields[fieldAnswer] = string(answer)
	}
	if s.AudioEnabled != nil {
		fields[fieldAudioEnabled] = formatBool(*s.AudioEnabled)
	}
	if s.LastHeartbeat != nil {
		fields[fieldLastHeartbeat] = formatTime(*s.LastHeartbeat)
	}
	return fields, nil
}

// decodeSession returns ErrDecodeFailed for a document whose required fields
// are malformed. A malformed answer alone is dropped and reported through
// answerErr, leaving the rest of the session usable.
func decodeSession(ref domain.SessionRef, h map[string]string) (s *domain.Session, answerErr error, err error) {
	if len(h) == 0 {
		return nil, nil, domain.ErrSessionNotFound
	}
	status, err := domain.ParseSessionStatus(h[fieldStatus])
	if err != nil {
		return nil, nil, decodeErr(fieldStatus, err)
	}
	offer, err := domain.DecodeNegotiation([]byte(h[fieldOffer]), webrtc.SDPTypeOffer)
	if err != nil {
		return nil, nil, decodeErr(fieldOffer, err)
	}
	createdAt, err := parseTime(h[fieldCreatedAt])
	if err != nil {
		return nil, nil, decodeErr(fieldCreatedAt, err)
	}

	s = &domain.Session{
		ID:                ref.SessionID,
		CameraID:          ref.CameraID,
		MonitorUserID:     domain.UserID(h[fieldMonitorUserID]),
		MonitorDeviceID:   h[fieldMonitorDeviceID],
		MonitorDeviceName: h[fieldMonitorDeviceName],
		DisplayName:       h[fieldDisplayName],
		PairingCode:       h[fieldPairingCode],
		Offer:             offer,
		Status:            status,
		CreatedAt:         createdAt,
	}
	if v, ok := h[fieldAudioEnabled]; ok {
		enabled, err := parseBool(v)
		if err != nil {
			return nil, nil, decodeErr(fieldAudioEnabled, err)
		}
		s.AudioEnabled = &enabled
	}
	if v, ok := h[fieldLastHeartbeat]; ok {
		hb, err := parseTime(v)
		if err != nil {
			return nil, nil, decodeErr(fieldLastHeartbeat, err)
		}
		s.LastHeartbeat = &hb
	}
	if v, ok := h[fieldAnswer]; ok {
		answer, err := domain.DecodeNegotiation([]byte(v), webrtc.SDPTypeAnswer)
		if err != nil {
			answerErr = decodeErr(fieldAnswer, err)
		} else {
			s.Answer = &answer
		}
	}
	return s, answerErr, nil
}

func encodeLink(l *domain.MonitorLink) map[string]interface{} {
	fields := map[string]interface{}{
		fieldPairedAt: formatTime(l.PairedAt),
		fieldIsActive: formatBool(l.IsActive),
	}
	if l.MonitorUserID != "" {
		fields[fieldMonitorUserID] = string(l.MonitorUserID)
	}
	if l.CameraID != "" {
		fields[fieldCameraID] = string(l.CameraID)
	}
	if l.CameraName != "" {
		fields[fieldCameraName] = l.CameraName
	}
	return fields
}

func decodeLink(id domain.LinkID, h map[string]string) (*domain.MonitorLink, error) {
	if len(h) == 0 {
		return nil, domain.ErrLinkNotFound
	}
	l := &domain.MonitorLink{
		ID:            id,
		MonitorUserID: domain.UserID(h[fieldMonitorUserID]),
		CameraID:      domain.CameraID(h[fieldCameraID]),
		CameraName:    h[fieldCameraName],
	}
	var err error
	if l.PairedAt, err = parseTime(h[fieldPairedAt]); err != nil {
		return nil, decodeErr(fieldPairedAt, err)
	}
	if l.IsActive, err = parseBool(h[fieldIsActive]); err != nil {
		return nil, decodeErr(fieldIsActive, err)
	}
	return l, nil
}

func decodeErr(field string, err error) error {
	return fmt.Errorf("%w: field %s: %v", domain.ErrDecodeFailed, field, err)
}
