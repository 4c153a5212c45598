package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/class-service/internal/service"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
	"github.com/learnsphere/class-service/pkg/response"
)

// QuickLinkHandler exposes per-class quick link endpoints.
type QuickLinkHandler struct {
	service *service.QuickLinkService
}

// NewQuickLinkHandler constructs a quick link handler.
func NewQuickLinkHandler(svc *service.QuickLinkService) *QuickLinkHandler {
	return &QuickLinkHandler{service: svc}
}

// List returns the quick links attached to a class.
func (h *QuickLinkHandler) List(c *gin.Context) {
	links, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Create attaches a quick link to a class.
func (h *QuickLinkHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateQuickLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	link, err := h.service.Create(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Delete removes a quick link from a class.
func (h *QuickLinkHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("linkId"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
