package models

import "time"

// ComplianceStatus is the resolved status of one requirement for one student.
type ComplianceStatus string

const (
	ComplianceStatusMissing  ComplianceStatus = "missing"
	ComplianceStatusPending  ComplianceStatus = "pending"
	ComplianceStatusApproved ComplianceStatus = "approved"
	ComplianceStatusRejected ComplianceStatus = "rejected"
	ComplianceStatusExpired  ComplianceStatus = "expired"
)

// ComplianceSubject identifies whose compliance is being resolved.
type ComplianceSubject struct {
	StudentID  string
	Population string
}

// ComplianceRecord pairs a template with its current submission. Document is
// nil exactly when Status is missing.
type ComplianceRecord struct {
	TemplateID   string            `json:"templateId"`
	TemplateName string            `json:"templateName"`
	Kind         RequirementKind   `json:"kind"`
	Mandatory    bool              `json:"mandatory"`
	StudentID    string            `json:"studentId"`
	Status       ComplianceStatus  `json:"status"`
	Document     *DocumentInstance `json:"document,omitempty"`
	UploadedAt   *time.Time        `json:"uploadedAt,omitempty"`
	ExpiresAt    *time.Time        `json:"expiresAt,omitempty"`
}

// ComplianceSummary aggregates a student's records.
type ComplianceSummary struct {
	ApprovedCount        int `json:"approvedCount"`
	TotalCount           int `json:"totalCount"`
	PercentComplete      int `json:"percentComplete"`
	PendingCount         int `json:"pendingCount"`
	RejectedCount        int `json:"rejectedCount"`
	MissingCount         int `json:"missingCount"`
	ExpiredCount         int `json:"expiredCount"`
	MandatoryOutstanding int `json:"mandatoryOutstanding"`
}

// AlertType classifies dashboard alerts.
type AlertType string

const (
	AlertTypeRejected AlertType = "REJECTED"
	AlertTypeExpiring AlertType = "EXPIRING"
	AlertTypeExpired  AlertType = "EXPIRED"
)

// Alert is a dashboard notice derived from a compliance record.
type Alert struct {
	Type          AlertType  `json:"type"`
	TemplateID    string     `json:"templateId"`
	TemplateName  string     `json:"templateName"`
	DocumentID    string     `json:"documentId,omitempty"`
	Message       string     `json:"message"`
	Comment       string     `json:"comment,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	DaysRemaining *int       `json:"daysRemaining,omitempty"`
}

// ComplianceView is the per-student response of the compliance engine.
type ComplianceView struct {
	StudentID string             `json:"studentId"`
	Records   []ComplianceRecord `json:"records"`
	Summary   ComplianceSummary  `json:"summary"`
	Generated time.Time          `json:"generatedAt"`
	Warnings  []string           `json:"-"`
}

// StudentComplianceOverview is one row of the staff overview.
type StudentComplianceOverview struct {
	StudentID string            `json:"studentId"`
	NIS       string            `json:"nis"`
	FullName  string            `json:"fullName"`
	Summary   ComplianceSummary `json:"summary"`
}
