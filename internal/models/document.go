package models

import "time"

// DocumentState is the persisted review state of a submission.
type DocumentState string

const (
	DocumentStatePending  DocumentState = "PENDING"
	DocumentStateApproved DocumentState = "APPROVED"
	DocumentStateRejected DocumentState = "REJECTED"
)

// DocumentInstance is one concrete submission against a requirement template.
type DocumentInstance struct {
	ID              string        `db:"id" json:"id"`
	TemplateID      string        `db:"template_id" json:"templateId"`
	StudentID       string        `db:"student_id" json:"studentId"`
	FileRef         string        `db:"file_ref" json:"-"`
	OriginalName    string        `db:"original_name" json:"originalName"`
	MimeType        string        `db:"mime_type" json:"mimeType"`
	SizeBytes       int64         `db:"size_bytes" json:"sizeBytes"`
	State           DocumentState `db:"state" json:"state"`
	ReviewerComment *string       `db:"reviewer_comment" json:"reviewerComment,omitempty"`
	ReviewedBy      *string       `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ExpiresAt       *time.Time    `db:"expires_at" json:"expiresAt,omitempty"`
	SubmittedAt     time.Time     `db:"submitted_at" json:"submittedAt"`
}

// Copy returns a deep copy so callers can hand instances out without aliasing.
func (d DocumentInstance) Copy() *DocumentInstance {
	out := d
	out.ReviewerComment = copyString(d.ReviewerComment)
	out.ReviewedBy = copyString(d.ReviewedBy)
	out.ReviewedAt = copyTime(d.ReviewedAt)
	out.ExpiresAt = copyTime(d.ExpiresAt)
	return &out
}

// DocumentFilter narrows submission history listings.
type DocumentFilter struct {
	StudentID  string
	TemplateID string
	State      DocumentState
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
