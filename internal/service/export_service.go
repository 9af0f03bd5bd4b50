package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/export"
)

type complianceViewer interface {
	View(ctx context.Context, studentID string) (*models.ComplianceView, error)
}

// ComplianceReport is a rendered per-student report.
type ComplianceReport struct {
	Filename    string
	ContentType string
	Body        []byte
	Warnings    []string
}

// ExportService renders compliance views as downloadable reports.
type ExportService struct {
	views    complianceViewer
	students studentFinder
	logger   *zap.Logger
}

// NewExportService constructs an ExportService. students is optional and
// only enriches the report subtitle.
func NewExportService(views complianceViewer, students studentFinder, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{views: views, students: students, logger: logger}
}

// ComplianceReport renders the student's current compliance view.
func (s *ExportService) ComplianceReport(ctx context.Context, studentID string, format export.Format) (*ComplianceReport, error) {
	format = export.Format(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	view, err := s.views.View(ctx, studentID)
	if err != nil {
		return nil, err
	}

	table := ComplianceTable(view, s.studentLabel(ctx, studentID))
	body, err := export.Render(format, table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Debug("compliance report rendered", zap.String("student_id", studentID), zap.String("format", string(format)), zap.Int("bytes", len(body)))
	return &ComplianceReport{
		Filename:    fmt.Sprintf("compliance_%s_%s.%s", sanitize(studentID), view.Generated.UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Warnings:    view.Warnings,
	}, nil
}

// ComplianceTable lays a view out as report rows, one per record.
func ComplianceTable(view *models.ComplianceView, studentLabel string) export.Table {
	summary := view.Summary
	subtitle := fmt.Sprintf("Completado %d%% (%d/%d) | Generado %s",
		summary.PercentComplete, summary.ApprovedCount, summary.TotalCount, view.Generated.UTC().Format("2006-01-02 15:04"))
	if studentLabel != "" {
		subtitle = studentLabel + " | " + subtitle
	}
	if len(view.Warnings) > 0 {
		subtitle += " | Datos incompletos"
	}

	rows := make([][]string, 0, len(view.Records))
	for _, rec := range view.Records {
		comment := ""
		if rec.Document != nil && rec.Document.ReviewerComment != nil {
			comment = *rec.Document.ReviewerComment
		}
		rows = append(rows, []string{
			rec.TemplateName,
			string(rec.Kind),
			yesNo(rec.Mandatory),
			string(rec.Status),
			formatDate(rec.UploadedAt),
			formatDate(rec.ExpiresAt),
			comment,
		})
	}
	return export.Table{
		Title:    "Reporte de cumplimiento documental",
		Subtitle: subtitle,
		Columns: []export.Column{
			{Header: "Requisito", Width: 3},
			{Header: "Tipo", Width: 1.2},
			{Header: "Obligatorio", Width: 1.2},
			{Header: "Estado", Width: 1.2},
			{Header: "Subido", Width: 1.3},
			{Header: "Vence", Width: 1.3},
			{Header: "Comentario", Width: 3},
		},
		Rows: rows,
	}
}

func (s *ExportService) studentLabel(ctx context.Context, studentID string) string {
	if s.students == nil {
		return ""
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s - %s", student.NIS, student.FullName)
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
