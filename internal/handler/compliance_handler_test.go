package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/export"
)

type complianceServiceMock struct {
	warnings  []string
	lookahead int
	format    export.Format
}

func (m *complianceServiceMock) View(_ context.Context, studentID string) (*models.ComplianceView, error) {
	if studentID == "ghost" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &models.ComplianceView{StudentID: studentID, Records: []models.ComplianceRecord{}, Warnings: m.warnings}, nil
}

func (m *complianceServiceMock) Summary(_ context.Context, _ string) (*models.ComplianceSummary, []string, error) {
	return &models.ComplianceSummary{TotalCount: 2, ApprovedCount: 1, PercentComplete: 50}, m.warnings, nil
}

func (m *complianceServiceMock) Alerts(_ context.Context, _ string, lookaheadDays int) ([]models.Alert, []string, error) {
	m.lookahead = lookaheadDays
	return nil, m.warnings, nil
}

func (m *complianceServiceMock) Overview(_ context.Context, query dto.OverviewQuery) ([]models.StudentComplianceOverview, *models.Pagination, []string, error) {
	return []models.StudentComplianceOverview{{StudentID: "stu-1"}}, &models.Pagination{Page: query.Page, PageSize: 20, TotalCount: 1}, m.warnings, nil
}

func (m *complianceServiceMock) LookaheadDays() int { return service.DefaultAlertLookaheadDays }

func (m *complianceServiceMock) ComplianceReport(_ context.Context, studentID string, format export.Format) (*service.ComplianceReport, error) {
	m.format = format
	return &service.ComplianceReport{Filename: "compliance_" + studentID + ".csv", ContentType: "text/csv", Body: []byte("a,b\n"), Warnings: m.warnings}, nil
}

func TestComplianceHandlerViewReportsWarnings(t *testing.T) {
	mock := &complianceServiceMock{warnings: []string{"submission store unavailable"}}
	h := NewComplianceHandler(mock, mock)
	c, rec := newTestContext(http.MethodGet, "/students/stu-1/compliance", nil, studentClaims)
	c.Params = gin.Params{{Key: "studentId", Value: "stu-1"}}

	h.View(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["degraded"])
	assert.Equal(t, []interface{}{"submission store unavailable"}, env.Meta["warnings"])
	assert.NotContains(t, string(env.Data), "Warnings")
}

func TestComplianceHandlerViewNotFound(t *testing.T) {
	mock := &complianceServiceMock{}
	h := NewComplianceHandler(mock, mock)
	c, rec := newTestContext(http.MethodGet, "/students/ghost/compliance", nil, adminClaims)
	c.Params = gin.Params{{Key: "studentId", Value: "ghost"}}

	h.View(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComplianceHandlerAlertsLookahead(t *testing.T) {
	mock := &complianceServiceMock{}
	h := NewComplianceHandler(mock, mock)

	c, rec := newTestContext(http.MethodGet, "/students/stu-1/compliance/alerts?lookaheadDays=30", nil, studentClaims)
	h.Alerts(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, mock.lookahead)

	c, rec = newTestContext(http.MethodGet, "/students/stu-1/compliance/alerts", nil, studentClaims)
	h.Alerts(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"lookaheadDays":7`)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"alerts":[]`)

	c, rec = newTestContext(http.MethodGet, "/students/stu-1/compliance/alerts?lookaheadDays=-1", nil, studentClaims)
	h.Alerts(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/students/stu-1/compliance/alerts?lookaheadDays=soon", nil, studentClaims)
	h.Alerts(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComplianceHandlerExportAndOverview(t *testing.T) {
	mock := &complianceServiceMock{}
	h := NewComplianceHandler(mock, mock)

	c, rec := newTestContext(http.MethodGet, "/students/stu-1/compliance/export?format=csv", nil, adminClaims)
	c.Params = gin.Params{{Key: "studentId", Value: "stu-1"}}
	h.Export(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatCSV, mock.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "compliance_stu-1.csv")

	c, rec = newTestContext(http.MethodGet, "/compliance/overview?page=2", nil, adminClaims)
	h.Overview(c)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), env.Pagination["page"])
	assert.Nil(t, env.Meta)
}
