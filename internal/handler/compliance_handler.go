package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/export"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

const maxLookaheadDays = 365

type complianceService interface {
	View(ctx context.Context, studentID string) (*models.ComplianceView, error)
	Summary(ctx context.Context, studentID string) (*models.ComplianceSummary, []string, error)
	Alerts(ctx context.Context, studentID string, lookaheadDays int) ([]models.Alert, []string, error)
	Overview(ctx context.Context, query dto.OverviewQuery) ([]models.StudentComplianceOverview, *models.Pagination, []string, error)
	LookaheadDays() int
}

type reportExporter interface {
	ComplianceReport(ctx context.Context, studentID string, format export.Format) (*service.ComplianceReport, error)
}

// ComplianceHandler serves per-student compliance views, alerts and reports.
type ComplianceHandler struct {
	service  complianceService
	exporter reportExporter
}

// NewComplianceHandler constructs the handler.
func NewComplianceHandler(service complianceService, exporter reportExporter) *ComplianceHandler {
	return &ComplianceHandler{service: service, exporter: exporter}
}

// View godoc
// @Summary Compliance records and summary for a student
// @Tags Compliance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/compliance [get]
func (h *ComplianceHandler) View(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, view, view.Warnings)
}

// Summary godoc
// @Summary Compliance summary for a student
// @Tags Compliance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/compliance/summary [get]
func (h *ComplianceHandler) Summary(c *gin.Context) {
	summary, warnings, err := h.service.Summary(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, summary, warnings)
}

// Alerts godoc
// @Summary Dashboard alerts for a student
// @Tags Compliance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param lookaheadDays query int false "Expiry window in days"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/compliance/alerts [get]
func (h *ComplianceHandler) Alerts(c *gin.Context) {
	var query dto.AlertsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lookaheadDays must be a number"))
		return
	}
	if query.LookaheadDays < 0 || query.LookaheadDays > maxLookaheadDays {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lookaheadDays must be between 0 and %d", maxLookaheadDays)))
		return
	}
	studentID := c.Param("studentId")
	alerts, warnings, err := h.service.Alerts(c.Request.Context(), studentID, query.LookaheadDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	lookahead := query.LookaheadDays
	if lookahead == 0 {
		lookahead = h.service.LookaheadDays()
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	response.WithWarnings(c, dto.AlertsResponse{StudentID: studentID, LookaheadDays: lookahead, Alerts: alerts}, warnings)
}

// Export godoc
// @Summary Download a compliance report
// @Tags Compliance
// @Produce text/csv,application/pdf
// @Param studentId path string true "Student ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /students/{studentId}/compliance/export [get]
func (h *ComplianceHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "report export not configured"))
		return
	}
	report, err := h.exporter.ComplianceReport(c.Request.Context(), c.Param("studentId"), export.Format(c.DefaultQuery("format", string(export.FormatCSV))))
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(report.Warnings) > 0 {
		c.Header("X-Compliance-Warnings", strings.Join(report.Warnings, "; "))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", report.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, report.ContentType, report.Body)
}

// Overview godoc
// @Summary Compliance summary for every active student
// @Tags Compliance
// @Produce json
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /compliance/overview [get]
func (h *ComplianceHandler) Overview(c *gin.Context) {
	var query dto.OverviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	rows, pagination, warnings, err := h.service.Overview(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if len(warnings) > 0 {
		meta = map[string]interface{}{"degraded": true, "warnings": warnings}
	}
	response.JSON(c, http.StatusOK, rows, pagination, meta)
}
