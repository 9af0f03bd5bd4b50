package models

import "time"

// DocumentEventType names lifecycle events emitted by the review workflow.
type DocumentEventType string

const (
	DocumentEventSubmitted DocumentEventType = "document.submitted"
	DocumentEventApproved  DocumentEventType = "document.approved"
	DocumentEventRejected  DocumentEventType = "document.rejected"
	DocumentEventWithdrawn DocumentEventType = "document.withdrawn"
)

// DocumentEvent is published after each successful state change.
type DocumentEvent struct {
	ID         string            `json:"id"`
	Type       DocumentEventType `json:"type"`
	DocumentID string            `json:"documentId"`
	TemplateID string            `json:"templateId"`
	StudentID  string            `json:"studentId"`
	ActorID    string            `json:"actorId"`
	State      DocumentState     `json:"state,omitempty"`
	Comment    *string           `json:"comment,omitempty"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
