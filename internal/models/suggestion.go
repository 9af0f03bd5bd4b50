package models

// SuggestedOutcome is the oracle's verb for a review decision.
type SuggestedOutcome string

const (
	SuggestedOutcomeApprove SuggestedOutcome = "APPROVE"
	SuggestedOutcomeReject  SuggestedOutcome = "REJECT"
)

// AISuggestion is a non-binding review proposal. It is never persisted.
type AISuggestion struct {
	DocumentID       string           `json:"documentId"`
	SuggestedOutcome SuggestedOutcome `json:"suggestedOutcome" validate:"required"`
	Confidence       float64          `json:"confidence"`
	Reasons          []string         `json:"reasons,omitempty"`
	SuggestedComment string           `json:"suggestedComment,omitempty"`
}
