package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/class-service/internal/models"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
	"github.com/learnsphere/class-service/pkg/response"
)

type meetingService interface {
	Start(ctx context.Context, classID, callerID string) (*models.StartMeetingResult, error)
	Stop(ctx context.Context, classID, callerID string) error
	Status(ctx context.Context, classID string) (*models.MeetingStatus, error)
	JoinToken(ctx context.Context, classID string, caller models.Identity) (*models.JoinTokenResult, error)
}

// MeetingHandler exposes the live-session endpoints.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler constructs a meeting handler.
func NewMeetingHandler(svc meetingService) *MeetingHandler {
	return &MeetingHandler{service: svc}
}

// Start begins a live meeting for the class. Idempotent for the owning
// teacher: a second start returns the existing room.
func (h *MeetingHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.Start(c.Request.Context(), c.Param("classId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if result.AlreadyRunning {
		meta = map[string]interface{}{"message": "meeting already active"}
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// Stop ends the live meeting for the class.
func (h *MeetingHandler) Stop(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Stop(c.Request.Context(), c.Param("classId"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status reports whether the class meeting is live.
func (h *MeetingHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// JoinToken issues a short-lived conferencing credential for the caller.
func (h *MeetingHandler) JoinToken(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.JoinToken(c.Request.Context(), c.Param("classId"), models.IdentityFromClaims(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
