package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type catalogService interface {
	List(ctx context.Context, query dto.RequirementQuery) ([]models.RequirementTemplate, error)
	Get(ctx context.Context, id string) (*models.RequirementTemplate, error)
	Create(ctx context.Context, req dto.UpsertRequirementRequest, actorID string) (*models.RequirementTemplate, error)
	Update(ctx context.Context, id string, req dto.UpsertRequirementRequest, actorID string) (*models.RequirementTemplate, error)
	Delete(ctx context.Context, id, actorID string) error
}

// RequirementHandler exposes the requirement catalog.
type RequirementHandler struct {
	service catalogService
}

// NewRequirementHandler builds a new handler.
func NewRequirementHandler(service catalogService) *RequirementHandler {
	return &RequirementHandler{service: service}
}

// List godoc
// @Summary List requirement templates
// @Tags Requirements
// @Produce json
// @Param kind query string false "FIXED or PERIODIC"
// @Param mandatory query bool false "Mandatory filter"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *RequirementHandler) List(c *gin.Context) {
	var query dto.RequirementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get requirement template
// @Tags Requirements
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /requirements/{id} [get]
func (h *RequirementHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create requirement template
// @Tags Requirements
// @Accept json
// @Produce json
// @Param payload body dto.UpsertRequirementRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /requirements [post]
func (h *RequirementHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpsertRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requirement payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Replace requirement template
// @Tags Requirements
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.UpsertRequirementRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /requirements/{id} [put]
func (h *RequirementHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpsertRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requirement payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete requirement template
// @Tags Requirements
// @Param id path string true "Template ID"
// @Success 204
// @Router /requirements/{id} [delete]
func (h *RequirementHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
