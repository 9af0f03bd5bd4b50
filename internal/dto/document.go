package dto

import (
	"time"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

// SubmitDocumentRequest carries the multipart fields sent with an upload.
type SubmitDocumentRequest struct {
	TemplateID string `form:"templateId" json:"templateId" validate:"required"`
}

// DocumentQuery filters a student's submission history.
type DocumentQuery struct {
	TemplateID string `form:"templateId"`
	State      string `form:"state"`
}

// DownloadURLResponse exposes a signed, short-lived download link.
type DownloadURLResponse struct {
	DocumentID  string    `json:"documentId"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DocumentResponse wraps an instance with an optional download link.
type DocumentResponse struct {
	models.DocumentInstance
	DownloadURL string `json:"downloadUrl,omitempty"`
}
