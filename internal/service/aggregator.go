package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

// DefaultAlertLookaheadDays applies when callers pass a non-positive window.
const DefaultAlertLookaheadDays = 7

const day = 24 * time.Hour

// Summarize counts records by status. PercentComplete is the rounded share of
// approved records and is 0 for an empty set.
func Summarize(records []models.ComplianceRecord) models.ComplianceSummary {
	summary := models.ComplianceSummary{TotalCount: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case models.ComplianceStatusApproved:
			summary.ApprovedCount++
		case models.ComplianceStatusPending:
			summary.PendingCount++
		case models.ComplianceStatusRejected:
			summary.RejectedCount++
		case models.ComplianceStatusExpired:
			summary.ExpiredCount++
		default:
			summary.MissingCount++
		}
		if rec.Mandatory && rec.Status != models.ComplianceStatusApproved {
			summary.MandatoryOutstanding++
		}
	}
	if summary.TotalCount > 0 {
		summary.PercentComplete = int(math.Round(float64(summary.ApprovedCount) / float64(summary.TotalCount) * 100))
	}
	return summary
}

// BuildAlerts lists rejection alerts first, then expiration alerts, each in
// record order.
func BuildAlerts(records []models.ComplianceRecord, lookaheadDays int, now time.Time) []models.Alert {
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultAlertLookaheadDays
	}
	horizon := now.Add(time.Duration(lookaheadDays) * day)

	rejections := make([]models.Alert, 0)
	expirations := make([]models.Alert, 0)
	for _, rec := range records {
		switch rec.Status {
		case models.ComplianceStatusRejected:
			if alert, ok := rejectionAlert(rec); ok {
				rejections = append(rejections, alert)
			}
		case models.ComplianceStatusApproved:
			if rec.ExpiresAt == nil || rec.ExpiresAt.Before(now) || rec.ExpiresAt.After(horizon) {
				continue
			}
			expirations = append(expirations, expiringAlert(rec, now))
		case models.ComplianceStatusExpired:
			if rec.ExpiresAt != nil {
				expirations = append(expirations, expiredAlert(rec))
			}
		}
	}
	return append(rejections, expirations...)
}

// DaysRemaining rounds the time left up to whole days.
func DaysRemaining(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(float64(left) / float64(day)))
}

func rejectionAlert(rec models.ComplianceRecord) (models.Alert, bool) {
	if rec.Document == nil || rec.Document.ReviewerComment == nil {
		return models.Alert{}, false
	}
	comment := strings.TrimSpace(*rec.Document.ReviewerComment)
	if comment == "" {
		return models.Alert{}, false
	}
	return models.Alert{
		Type:         models.AlertTypeRejected,
		TemplateID:   rec.TemplateID,
		TemplateName: rec.TemplateName,
		DocumentID:   rec.Document.ID,
		Comment:      comment,
		Message:      fmt.Sprintf("El documento \"%s\" fue rechazado: %s", rec.TemplateName, comment),
	}, true
}

func expiringAlert(rec models.ComplianceRecord, now time.Time) models.Alert {
	days := DaysRemaining(*rec.ExpiresAt, now)
	expires := *rec.ExpiresAt
	return models.Alert{
		Type:          models.AlertTypeExpiring,
		TemplateID:    rec.TemplateID,
		TemplateName:  rec.TemplateName,
		DocumentID:    documentID(rec),
		ExpiresAt:     &expires,
		DaysRemaining: &days,
		Message:       fmt.Sprintf("El documento \"%s\" vence en %d día(s)", rec.TemplateName, days),
	}
}

func expiredAlert(rec models.ComplianceRecord) models.Alert {
	expires := *rec.ExpiresAt
	zero := 0
	return models.Alert{
		Type:          models.AlertTypeExpired,
		TemplateID:    rec.TemplateID,
		TemplateName:  rec.TemplateName,
		DocumentID:    documentID(rec),
		ExpiresAt:     &expires,
		DaysRemaining: &zero,
		Message:       fmt.Sprintf("El documento \"%s\" venció el %s y debe renovarse", rec.TemplateName, expires.Format("2006-01-02")),
	}
}

func documentID(rec models.ComplianceRecord) string {
	if rec.Document == nil {
		return ""
	}
	return rec.Document.ID
}
