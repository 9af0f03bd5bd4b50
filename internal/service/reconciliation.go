package service

import (
	"time"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

// Reconcile merges the catalog with a student's submissions into exactly one
// record per applicable template, preserving template order. Instances of
// other students or of unknown templates are ignored. Inputs are not mutated.
func Reconcile(subject models.ComplianceSubject, templates []models.RequirementTemplate, instances []models.DocumentInstance, now time.Time) []models.ComplianceRecord {
	current := currentInstances(subject.StudentID, instances)

	records := make([]models.ComplianceRecord, 0, len(templates))
	seen := make(map[string]struct{}, len(templates))
	for _, tmpl := range templates {
		if _, dup := seen[tmpl.ID]; dup {
			continue
		}
		seen[tmpl.ID] = struct{}{}
		if !tmpl.AppliesToPopulation(subject.Population) {
			continue
		}
		records = append(records, resolveRecord(subject.StudentID, tmpl, current[tmpl.ID], now))
	}
	return records
}

// currentInstances picks, per template, the latest submission of the student.
func currentInstances(studentID string, instances []models.DocumentInstance) map[string]*models.DocumentInstance {
	current := make(map[string]*models.DocumentInstance)
	for i := range instances {
		inst := &instances[i]
		if inst.StudentID != studentID {
			continue
		}
		if prev, ok := current[inst.TemplateID]; !ok || isNewer(inst, prev) {
			current[inst.TemplateID] = inst
		}
	}
	return current
}

func isNewer(a, b *models.DocumentInstance) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID > b.ID
}

func resolveRecord(studentID string, tmpl models.RequirementTemplate, inst *models.DocumentInstance, now time.Time) models.ComplianceRecord {
	record := models.ComplianceRecord{
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		Kind:         tmpl.Kind,
		Mandatory:    tmpl.Mandatory,
		StudentID:    studentID,
		Status:       models.ComplianceStatusMissing,
	}
	if inst == nil {
		return record
	}

	doc := inst.Copy()
	record.Document = doc
	uploaded := doc.SubmittedAt
	record.UploadedAt = &uploaded
	record.ExpiresAt = doc.ExpiresAt
	record.Status = statusForInstance(doc, now)
	return record
}

// statusForInstance maps a persisted state to a compliance status. Approvals
// past their expiry are reported as expired.
func statusForInstance(doc *models.DocumentInstance, now time.Time) models.ComplianceStatus {
	switch doc.State {
	case models.DocumentStateApproved:
		if doc.ExpiresAt != nil && doc.ExpiresAt.Before(now) {
			return models.ComplianceStatusExpired
		}
		return models.ComplianceStatusApproved
	case models.DocumentStateRejected:
		return models.ComplianceStatusRejected
	default:
		return models.ComplianceStatusPending
	}
}
