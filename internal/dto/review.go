package dto

import "github.com/noah-isme/sma-docs-api/internal/models"

// ReviewAction is a reviewer decision against a pending document.
type ReviewAction struct {
	Outcome models.DocumentState `json:"outcome" validate:"required,oneof=APPROVED REJECTED"`
	Comment string               `json:"comment" validate:"max=1000"`
}

// ApplySuggestionRequest accepts an oracle suggestion. When Suggestion is
// omitted a fresh one is requested; Comment overrides the suggested comment.
type ApplySuggestionRequest struct {
	Suggestion *models.AISuggestion `json:"suggestion"`
	Comment    string               `json:"comment" validate:"max=1000"`
}
