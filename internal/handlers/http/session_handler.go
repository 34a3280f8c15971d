package http

import (
	"net/http"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/errors"
	"camrelay/pkg/utils"
	"camrelay/pkg/validation"

	"github.com/gin-gonic/gin"
)

const maxDisplayNameRunes = 100

// SessionHandler exposes the session coordinator and ICE candidate exchange.
type SessionHandler struct {
	sessions   ports.SessionService
	candidates ports.CandidateService
}

func NewSessionHandler(sessions ports.SessionService, candidates ports.CandidateService) *SessionHandler {
	return &SessionHandler{sessions: sessions, candidates: candidates}
}

type CreateSessionRequest struct {
	SessionID         string             `json:"sessionId"`
	MonitorDeviceID   string             `json:"monitorDeviceId" binding:"required,max=128"`
	MonitorDeviceName string             `json:"monitorDeviceName" binding:"max=100"`
	DisplayName       string             `json:"displayName"`
	PairingCode       string             `json:"pairingCode"`
	Offer             domain.Negotiation `json:"offer" binding:"required"`
}

// Create writes the monitor's offer. An older session by the same monitor
// user on this camera is superseded.
func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	camera, ok := cameraID(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if !bind(c, &req) {
		return
	}
	if req.SessionID != "" {
		if err := validation.ValidateSessionID(req.SessionID); err != nil {
			_ = c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	id, err := h.sessions.Create(c.Request.Context(), ports.CreateSessionRequest{
		CameraID:          camera,
		SessionID:         domain.SessionID(req.SessionID),
		MonitorUserID:     userID,
		MonitorDeviceID:   req.MonitorDeviceID,
		MonitorDeviceName: utils.SanitizeString(req.MonitorDeviceName),
		DisplayName:       utils.TruncateString(utils.SanitizeString(req.DisplayName), maxDisplayNameRunes),
		PairingCode:       req.PairingCode,
		Offer:             req.Offer,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": id})
}

func (h *SessionHandler) Get(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), ref)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *SessionHandler) SetAnswer(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	var req struct {
		Answer domain.Negotiation `json:"answer" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.sessions.SetAnswer(c.Request.Context(), ref, req.Answer); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) SetStatus(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	status, err := domain.ParseSessionStatus(req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.sessions.SetStatus(c.Request.Context(), ref, status); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) SetAudio(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.sessions.SetAudioEnabled(c.Request.Context(), ref, *req.Enabled); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Heartbeat(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	if err := h.sessions.Heartbeat(c.Request.Context(), ref); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), ref); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type AddCandidateRequest struct {
	Candidate     string            `json:"candidate"`
	SDPMid        *string           `json:"sdpMid"`
	SDPMLineIndex *uint16           `json:"sdpMLineIndex"`
	Sender        domain.SenderRole `json:"sender" binding:"required"`
}

func (h *SessionHandler) AddCandidate(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	var req AddCandidateRequest
	if !bind(c, &req) {
		return
	}

	id, err := h.candidates.Add(c.Request.Context(), ref, &domain.ICECandidate{
		Candidate:     req.Candidate,
		SDPMid:        req.SDPMid,
		SDPMLineIndex: req.SDPMLineIndex,
		Sender:        req.Sender,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"candidateId": id})
}

func (h *SessionHandler) ListCandidates(c *gin.Context) {
	ref, ok := sessionRef(c)
	if !ok {
		return
	}
	candidates, err := h.candidates.List(c.Request.Context(), ref)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}
