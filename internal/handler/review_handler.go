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

type reviewService interface {
	SubmitReview(ctx context.Context, id, actorID string, action dto.ReviewAction) (*models.DocumentInstance, error)
	Suggest(ctx context.Context, id string) (*models.AISuggestion, error)
	ApplySuggestion(ctx context.Context, id, actorID string, suggestion *models.AISuggestion, overrideComment string) (*models.DocumentInstance, error)
}

// ReviewHandler exposes reviewer decisions and the review assistant.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Review godoc
// @Summary Approve or reject a pending document
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ReviewAction true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/review [post]
func (h *ReviewHandler) Review(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ReviewAction
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	doc, err := h.service.SubmitReview(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Suggestion godoc
// @Summary Ask the review assistant for a suggestion
// @Tags Reviews
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /documents/{id}/suggestion [get]
func (h *ReviewHandler) Suggestion(c *gin.Context) {
	suggestion, err := h.service.Suggest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}

// ApplySuggestion godoc
// @Summary Apply a review assistant suggestion
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ApplySuggestionRequest false "Suggestion to apply"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/suggestion/apply [post]
func (h *ReviewHandler) ApplySuggestion(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ApplySuggestionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suggestion payload"))
			return
		}
	}
	doc, err := h.service.ApplySuggestion(c.Request.Context(), c.Param("id"), claims.UserID, req.Suggestion, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}
