package dto

import "github.com/noah-isme/sma-docs-api/internal/models"

// UpsertRequirementRequest is the payload for creating or replacing a template.
type UpsertRequirementRequest struct {
	Name         string                 `json:"name" validate:"required,max=160"`
	Description  string                 `json:"description" validate:"max=2000"`
	Kind         models.RequirementKind `json:"kind" validate:"required,oneof=FIXED PERIODIC"`
	ValidityDays *int                   `json:"validityDays" validate:"omitempty,gt=0,lte=3650"`
	Mandatory    bool                   `json:"mandatory"`
	AppliesTo    *string                `json:"appliesTo" validate:"omitempty,max=64"`
}

// RequirementQuery captures catalog listing filters.
type RequirementQuery struct {
	Kind      models.RequirementKind `form:"kind"`
	Mandatory *bool                  `form:"mandatory"`
	Search    string                 `form:"search"`
}
