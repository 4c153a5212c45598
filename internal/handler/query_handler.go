package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/class-service/internal/service"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
	"github.com/learnsphere/class-service/pkg/response"
)

// QueryHandler exposes per-class question endpoints.
type QueryHandler struct {
	service *service.QueryService
}

// NewQueryHandler constructs a query handler.
func NewQueryHandler(svc *service.QueryService) *QueryHandler {
	return &QueryHandler{service: svc}
}

// List returns the caller's view of class questions.
func (h *QueryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	queries, err := h.service.List(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queries, nil)
}

// Create raises a question in a class.
func (h *QueryHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	q, err := h.service.Create(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}

// Answer resolves a question with the teacher's answer.
func (h *QueryHandler) Answer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AnswerQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	q, err := h.service.Answer(c.Request.Context(), c.Param("id"), c.Param("queryId"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, q, nil)
}
